//go:build linux

package alloc

import (
	"runtime"
	"runtime/debug"
)

// RuntimeBridge is the Bridge implementation for the managed-runtime
// case: it drives the Go garbage collector directly via runtime/debug.
// There is no third-party GC-control library in the Go ecosystem for
// this — debug.SetGCPercent/SetMemoryLimit/runtime.GC are the only
// surface that exists, so this bridge is necessarily stdlib-only (see
// DESIGN.md).
type RuntimeBridge struct{}

// NewRuntimeBridge returns a ready-to-use RuntimeBridge.
func NewRuntimeBridge() *RuntimeBridge { return &RuntimeBridge{} }

// HeapKB reports runtime.MemStats.HeapAlloc in KiB.
func (b *RuntimeBridge) HeapKB() (uint64, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc / 1024, nil
}

// CollectFull runs a full GC cycle to completion; runtime.GC never
// returns a partial collection.
func (b *RuntimeBridge) CollectFull() {
	runtime.GC()
}

// Stop disables percent-based GC triggering. A cycle already in
// flight is allowed to finish; "stop" can only mean "don't start new
// cycles" on a runtime that cannot halt its collector without halting
// the process.
func (b *RuntimeBridge) Stop() {
	debug.SetGCPercent(-1)
}

// Restart is a no-op by itself: RestoreTuning is what reinstates the
// saved GC percent. Exposed separately to satisfy the Bridge interface
// and to keep stop/restart as a visible pair.
func (b *RuntimeBridge) Restart() {}

// Step forces one incremental collection pass. The Go runtime has no
// partial/incremental GC knob exposed to programs, so a step is
// implemented as a full collection — the caller (SampleBuffer) only
// invokes Step when the measured allocation since the last sample
// crossed its configured gc_step threshold, so the frequency of calls
// is what actually implements the "step" policy, not the collection
// itself.
func (b *RuntimeBridge) Step(kb uint64) {
	runtime.GC()
}

// SaveTuning reads the current GC percent and memory limit.
// debug.SetGCPercent has no read-only mode, so reading it means
// setting some value and immediately restoring what comes back;
// debug.SetMemoryLimit, by contrast, documents a negative input as a
// pure query with no side effect.
func (b *RuntimeBridge) SaveTuning() TuningSnapshot {
	percent := debug.SetGCPercent(100)
	debug.SetGCPercent(percent)
	limit := debug.SetMemoryLimit(-1)
	return TuningSnapshot{GCPercent: percent, MemoryLimitBytes: limit}
}

// RestoreTuning re-applies a previously saved snapshot.
func (b *RuntimeBridge) RestoreTuning(s TuningSnapshot) {
	debug.SetGCPercent(s.GCPercent)
	debug.SetMemoryLimit(s.MemoryLimitBytes)
}
