//go:build linux

package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/microbench/pkg/ci"
	"github.com/ja7ad/microbench/pkg/errs"
	"github.com/ja7ad/microbench/pkg/sample"
	"github.com/ja7ad/microbench/pkg/runner"
)

func TestRender_IncludesSysInfoAndTable(t *testing.T) {
	buf, err := sample.New("append", 10, 0, 95, 5)
	require.NoError(t, err)

	info := SysInfo{OS: "linux", Arch: "amd64", CPUCount: 8, GoVersion: "go1.23"}
	results := []runner.Result{
		{Name: "append", Buffer: buf, Report: ci.Report{Lower: 100, Upper: 120, Level: 95, RCIWObserved: 3.2, Quality: ci.Good}},
		{Name: "broken", Err: errs.New(errs.UserError, "boom")},
	}

	out := Render("bench/append_bench.so", info, results)
	assert.Contains(t, out, "```sysinfo")
	assert.Contains(t, out, "linux")
	assert.Contains(t, out, "## Exec: bench/append_bench.so")
	assert.Contains(t, out, "append")
	assert.Contains(t, out, "broken")
	assert.Contains(t, out, "boom")
}

func TestRenderRow_PendingReportShowsDashes(t *testing.T) {
	row := renderRow(runner.Result{Name: "pending", Report: ci.Report{Lower: nanF(), Upper: nanF()}})
	assert.Contains(t, row, "pending")
	assert.Contains(t, row, "| - |")
}

func nanF() float64 {
	var zero float64
	return zero / zero
}
