//go:build linux

package alloc

import (
	"os"

	"github.com/ja7ad/microbench/pkg/osmem"
)

// ProcessBridge is the non-managed Bridge fallback: current process RSS
// stands in for heap usage. It is also useful for Go programs that want
// to measure total process footprint, including cgo allocations the Go
// heap never sees, instead of just runtime.MemStats.HeapAlloc.
//
// There is no collector to control at the process level, so
// CollectFull/Stop/Restart/Step are no-ops, and SaveTuning/RestoreTuning
// round-trip a TuningSnapshot that never changes. The Buffer
// preprocess/postprocess protocol still runs unmodified against this
// bridge, keeping the GC-coordination contract uniform across both
// bridges.
type ProcessBridge struct {
	pid int
}

// NewProcessBridge returns a ProcessBridge tracking the current process.
func NewProcessBridge() *ProcessBridge {
	return &ProcessBridge{pid: os.Getpid()}
}

func (b *ProcessBridge) HeapKB() (uint64, error) {
	rss, err := osmem.ReadRSS(b.pid)
	if err != nil {
		return 0, err
	}
	return rss / 1024, nil
}

func (b *ProcessBridge) CollectFull() {}
func (b *ProcessBridge) Stop()        {}
func (b *ProcessBridge) Restart()     {}
func (b *ProcessBridge) Step(kb uint64) {}

func (b *ProcessBridge) SaveTuning() TuningSnapshot { return TuningSnapshot{} }
func (b *ProcessBridge) RestoreTuning(_ TuningSnapshot) {}
