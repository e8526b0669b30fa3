//go:build linux

// Package report turns a run's results into the two artifacts a user
// actually looks at: a Markdown summary printed to stdout, and an
// optional archive bundling that summary with the raw per-benchmark
// dumps for later merging.
package report

import (
	"fmt"
	"strings"

	"github.com/ja7ad/microbench/pkg/runner"
	"github.com/ja7ad/microbench/pkg/types"
)

// Render assembles the full Markdown report for one loaded file: a
// sysinfo block followed by an "Exec" section with one result table
// row per described benchmark.
func Render(execPath string, info SysInfo, results []runner.Result) string {
	var b strings.Builder
	b.WriteString(info.Fenced())
	b.WriteString("\n")
	b.WriteString(renderExec(execPath, results))
	return b.String()
}

func renderExec(execPath string, results []runner.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Exec: %s\n\n", execPath)
	b.WriteString("| describe | n | mean (ns) | stddev (ns) | CI | rciw % | quality | alloc/op | error |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|\n")
	for _, r := range results {
		b.WriteString(renderRow(r))
	}
	return b.String()
}

func renderRow(r runner.Result) string {
	name := r.Name
	if r.Err != nil {
		return fmt.Sprintf("| %s | - | - | - | - | - | - | - | %s |\n", name, escapePipes(r.Err.Error()))
	}

	n := 0
	mean, stddev := 0.0, 0.0
	allocPerOp := "-"
	if r.Buffer != nil {
		n = r.Buffer.Count()
		mean = r.Buffer.Mean()
		stddev = r.Buffer.Stddev()
		if n > 0 {
			kb := r.Buffer.MemStat().AllocPerOpKB
			allocPerOp = types.FromKiB(uint64(kb)).Humanized()
		}
	}

	ci := "-"
	if !isNaN(r.Report.Lower) && !isNaN(r.Report.Upper) {
		ci = fmt.Sprintf("[%.1f, %.1f] @%.0f%%", r.Report.Lower, r.Report.Upper, r.Report.Level)
	}
	rciw := "-"
	if !isNaN(r.Report.RCIWObserved) {
		rciw = fmt.Sprintf("%.2f", r.Report.RCIWObserved)
	}

	return fmt.Sprintf("| %s | %d | %.1f | %.1f | %s | %s | %s | %s | |\n",
		name, n, mean, stddev, ci, rciw, r.Report.Quality, allocPerOp)
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func isNaN(f float64) bool {
	return f != f
}
