//go:build linux

package report

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SysInfo is the host-environment snapshot printed in every report's
// fenced sysinfo block.
type SysInfo struct {
	OS            string
	Arch          string
	Hostname      string
	KernelVersion string
	CPUModel      string
	CPUCount      int
	TotalMemoryMB uint64
	GoVersion     string
}

// ProbeSysInfo gathers the host snapshot via gopsutil, falling back to
// the runtime package's own view of OS/arch/CPU count/Go version if a
// probe fails (the report is still useful without, say, kernel
// version on a sandboxed host).
func ProbeSysInfo() SysInfo {
	info := SysInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUCount:  runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}

	if hi, err := host.Info(); err == nil {
		info.Hostname = hi.Hostname
		info.KernelVersion = hi.KernelVersion
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemoryMB = vm.Total / (1024 * 1024)
	}

	return info
}

// Fenced renders info as the Markdown fenced `sysinfo` block every
// report leads with.
func (info SysInfo) Fenced() string {
	return fmt.Sprintf("```sysinfo\nos: %s\narch: %s\nhostname: %s\nkernel: %s\ncpu: %s (%d logical)\nmemory: %d MB\ngo: %s\n```\n",
		info.OS, info.Arch, info.Hostname, info.KernelVersion, info.CPUModel, info.CPUCount, info.TotalMemoryMB, info.GoVersion)
}
