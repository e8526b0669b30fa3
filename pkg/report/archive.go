//go:build linux

package report

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"

	"github.com/ja7ad/microbench/pkg/errs"
	"github.com/ja7ad/microbench/pkg/runner"
)

const (
	bundleReportName = "report.md"
	bundleDumpSuffix = ".dump.snappy"
)

func ioErr(cause error) error {
	return errs.NewPhase(errs.IOFailure, errs.PhaseReport, "%s", cause.Error())
}

// WriteBundle writes a tar.gz archive to path containing the rendered
// Markdown report plus one Snappy-compressed JSON dump per result that
// carries a buffer (failed results included), so a run can be archived
// and its raw samples later reloaded
// and merged without rerunning anything.
func WriteBundle(path string, execPath string, info SysInfo, results []runner.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return ioErr(err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	report := Render(execPath, info, results)
	if err := writeTarEntry(tw, bundleReportName, []byte(report)); err != nil {
		return err
	}

	for _, r := range results {
		if r.Buffer == nil {
			continue
		}
		payload, err := json.Marshal(r.Buffer.Dump())
		if err != nil {
			return ioErr(err)
		}

		var compressed bytes.Buffer
		sw := snappy.NewBufferedWriter(&compressed)
		if _, err := sw.Write(payload); err != nil {
			return ioErr(err)
		}
		if err := sw.Close(); err != nil {
			return ioErr(err)
		}

		if err := writeTarEntry(tw, r.Name+bundleDumpSuffix, compressed.Bytes()); err != nil {
			return err
		}
	}

	return nil
}

func writeTarEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return ioErr(err)
	}
	if _, err := tw.Write(content); err != nil {
		return ioErr(err)
	}
	return nil
}

// ReadDumpFromBundle extracts and decompresses a single named dump
// entry from a bundle written by WriteBundle, returning its decoded
// JSON payload.
func ReadDumpFromBundle(path, name string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr(err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, ioErr(err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	target := name + bundleDumpSuffix
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, errs.New(errs.NotFound, "bundle entry %q not found", target)
		}
		if err != nil {
			return nil, ioErr(err)
		}
		if hdr.Name != target {
			continue
		}
		compressed, err := io.ReadAll(tr)
		if err != nil {
			return nil, ioErr(err)
		}
		return io.ReadAll(snappy.NewReader(bytes.NewReader(compressed)))
	}
}
