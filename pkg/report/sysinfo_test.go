//go:build linux

package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeSysInfo_PopulatesRuntimeFields(t *testing.T) {
	info := ProbeSysInfo()
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
	assert.NotEmpty(t, info.GoVersion)
	assert.Greater(t, info.CPUCount, 0)
}

func TestFenced_ContainsAllFields(t *testing.T) {
	info := SysInfo{OS: "linux", Arch: "amd64", Hostname: "h", KernelVersion: "k", CPUModel: "c", CPUCount: 4, TotalMemoryMB: 1024, GoVersion: "go1.23"}
	out := info.Fenced()
	assert.Contains(t, out, "```sysinfo")
	assert.Contains(t, out, "linux")
	assert.Contains(t, out, "amd64")
	assert.Contains(t, out, "1024 MB")
}
