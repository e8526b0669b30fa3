//go:build linux

package report

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/microbench/pkg/ci"
	"github.com/ja7ad/microbench/pkg/errs"
	"github.com/ja7ad/microbench/pkg/sample"
	"github.com/ja7ad/microbench/pkg/runner"
)

func TestWriteBundle_RoundTripsDump(t *testing.T) {
	buf, err := sample.New("append", 10, 0, 95, 5)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.tar.gz")
	results := []runner.Result{{Name: "append", Buffer: buf, Report: ci.Report{Quality: ci.Good}}}

	require.NoError(t, WriteBundle(path, "bench/append_bench.so", SysInfo{OS: "linux"}, results))

	payload, err := ReadDumpFromBundle(path, "append")
	require.NoError(t, err)

	var dump sample.Dump
	require.NoError(t, json.Unmarshal(payload, &dump))
	assert.Equal(t, "append", dump.Name)
	assert.Equal(t, sample.SchemaVersion, dump.SchemaVersion)
}

func TestReadDumpFromBundle_MissingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.tar.gz")
	require.NoError(t, WriteBundle(path, "bench/append_bench.so", SysInfo{}, nil))

	_, err := ReadDumpFromBundle(path, "missing")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.NotFound, kind)
}
