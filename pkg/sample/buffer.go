//go:build linux

// Package sample implements the fixed-capacity, grow-on-request column
// store of per-iteration records plus the online Welford aggregates,
// and the GC-coordination protocol (preprocess/init_sample/
// update_sample/postprocess) a Sampler drives it through.
package sample

import (
	"math"

	"github.com/ja7ad/microbench/pkg/alloc"
	"github.com/ja7ad/microbench/pkg/clock"
	"github.com/ja7ad/microbench/pkg/errs"
)

// MaxNameBytes is the maximum length, in bytes, of a Buffer's name.
const MaxNameBytes = 255

// MinMAD is the minimum sample count below which MAD() reports NaN.
const MinMAD = 5

// Buffer is exclusively owned by the benchmark that created it, mutated
// only by the Sampler during a run, and read by the CIController and
// the reporter.
type Buffer struct {
	name     string
	capacity int
	count    int
	records  []Record

	baseKB uint64

	sum            uint64
	min            uint64
	max            uint64
	mean           float64
	m2             float64
	sumAllocatedKB uint64

	gcStep int64
	cl     float64
	rciw   float64

	savedTuning alloc.TuningSnapshot
	clk         clock.Clock
}

// Option configures optional Buffer construction parameters.
type Option func(*Buffer)

// WithClock overrides the Buffer's time source; tests use this to
// inject a deterministic clock.
func WithClock(c clock.Clock) Option {
	return func(b *Buffer) { b.clk = c }
}

// New constructs a Buffer, validating its configuration up front.
func New(name string, capacity int, gcStep int64, cl, rciw float64, opts ...Option) (*Buffer, error) {
	if err := validateArgs(name, capacity, cl, rciw); err != nil {
		return nil, err
	}
	b := &Buffer{
		name:     name,
		capacity: capacity,
		records:  make([]Record, capacity),
		min:      math.MaxUint64,
		gcStep:   gcStep,
		cl:       cl,
		rciw:     rciw,
		clk:      clock.New(),
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func validateArgs(name string, capacity int, cl, rciw float64) error {
	if capacity <= 0 {
		return errs.New(errs.InvalidArgument, "capacity must be positive, got %d", capacity)
	}
	if len(name) > MaxNameBytes {
		return errs.New(errs.InvalidArgument, "name exceeds %d bytes", MaxNameBytes)
	}
	if !(cl > 0 && cl <= 100) {
		return errs.New(errs.InvalidArgument, "confidence level must be in (0,100], got %v", cl)
	}
	if !(rciw > 0 && rciw <= 100) {
		return errs.New(errs.InvalidArgument, "rciw must be in (0,100], got %v", rciw)
	}
	return nil
}

// Capacity is the maximum number of records the Buffer can hold.
func (b *Buffer) Capacity() int { return b.capacity }

// Count is the number of valid records currently held.
func (b *Buffer) Count() int { return b.count }

// Name is the Buffer's label.
func (b *Buffer) Name() string { return b.name }

// GCStep returns the configured GC step policy.
func (b *Buffer) GCStep() int64 { return b.gcStep }

// ConfidenceLevel returns the configured confidence level percentage.
func (b *Buffer) ConfidenceLevel() float64 { return b.cl }

// RCIW returns the configured target relative CI width percentage.
func (b *Buffer) RCIW() float64 { return b.rciw }

// BaseKB is the heap usage recorded by the last preprocess call.
func (b *Buffer) BaseKB() uint64 { return b.baseKB }

// Grow increases capacity by additional, preserving all existing
// records and aggregates.
func (b *Buffer) Grow(additional int) error {
	if additional <= 0 {
		return errs.New(errs.InvalidArgument, "additional must be positive, got %d", additional)
	}
	b.records = append(b.records, make([]Record, additional)...)
	b.capacity += additional
	return nil
}

// Clear resets count and all aggregates. Saved tuning and base_kb are
// untouched.
func (b *Buffer) Clear() {
	b.count = 0
	b.sum = 0
	b.min = math.MaxUint64
	b.max = 0
	b.mean = 0
	b.m2 = 0
	b.sumAllocatedKB = 0
	for i := range b.records {
		b.records[i] = Record{}
	}
}

// Preprocess performs the scoped acquisition protocol: save tuning,
// collect fully and record base_kb, and if gc_step is negative, stop
// the collector. Every exit path from a measurement run must be
// followed by exactly one Postprocess call.
func (b *Buffer) Preprocess(bridge alloc.Bridge) error {
	b.savedTuning = bridge.SaveTuning()
	bridge.CollectFull()
	base, err := bridge.HeapKB()
	if err != nil {
		return err
	}
	b.baseKB = base
	if b.gcStep < 0 {
		bridge.Stop()
	}
	return nil
}

// Postprocess restarts the collector and restores saved tuning.
func (b *Buffer) Postprocess(bridge alloc.Bridge) {
	bridge.Restart()
	bridge.RestoreTuning(b.savedTuning)
}

// InitSample reserves the next record slot: if gc_step==0 it performs
// a full collection first, then records the start time and pre-sample
// heap usage. The slot is provisional; Count is not advanced until
// UpdateSample completes it.
func (b *Buffer) InitSample(bridge alloc.Bridge) error {
	if b.count == b.capacity {
		return errs.ErrNoSpace
	}
	if b.gcStep == 0 {
		bridge.CollectFull()
	}
	before, err := bridge.HeapKB()
	if err != nil {
		return err
	}
	b.records[b.count] = Record{
		TimeNS:   b.clk.Now(),
		BeforeKB: before,
	}
	return nil
}

// UpdateSample completes the provisional slot InitSample reserved,
// folds it into the online aggregates via Welford's method, and
// advances Count.
func (b *Buffer) UpdateSample(bridge alloc.Bridge) error {
	if b.count == b.capacity {
		return errs.ErrNoSpace
	}
	slot := &b.records[b.count]
	elapsed := b.clk.Now() - slot.TimeNS
	after, err := bridge.HeapKB()
	if err != nil {
		return err
	}
	slot.TimeNS = elapsed
	slot.AfterKB = after
	slot.AllocatedKB = allocatedKB(slot.BeforeKB, after)

	b.updateAggregates(*slot)

	if b.gcStep > 0 && slot.AllocatedKB >= uint64(b.gcStep) {
		bridge.Step(uint64(b.gcStep))
	}

	b.count++
	return nil
}

// updateAggregates folds one completed record into the running
// Welford state. It is also used to replay records on Restore and to
// concatenate buffers in Merge, so both paths stay numerically
// identical to the live sampling path.
func (b *Buffer) updateAggregates(rec Record) {
	x := float64(rec.TimeNS)
	n := b.count + 1
	if n == 1 {
		b.mean = x
		b.m2 = 0
	} else {
		delta := x - b.mean
		b.mean += delta / float64(n)
		b.m2 += delta * (x - b.mean)
	}
	b.sum += rec.TimeNS
	if rec.TimeNS < b.min {
		b.min = rec.TimeNS
	}
	if rec.TimeNS > b.max {
		b.max = rec.TimeNS
	}
	b.sumAllocatedKB += rec.AllocatedKB
}

// Sum is the total elapsed nanoseconds across all recorded samples.
func (b *Buffer) Sum() uint64 { return b.sum }

// Min is the smallest recorded per-sample time in nanoseconds.
func (b *Buffer) Min() uint64 { return b.min }

// Max is the largest recorded per-sample time in nanoseconds.
func (b *Buffer) Max() uint64 { return b.max }

// Mean is the running mean elapsed nanoseconds.
func (b *Buffer) Mean() float64 { return b.mean }

// M2 is the Welford sum-of-squared-deviations accumulator.
func (b *Buffer) M2() float64 { return b.m2 }

// SumAllocatedKB is the total allocated KiB across all recorded samples.
func (b *Buffer) SumAllocatedKB() uint64 { return b.sumAllocatedKB }

// Variance is the sample variance, M2/(n-1); NaN for n<2.
func (b *Buffer) Variance() float64 {
	if b.count < 2 {
		return math.NaN()
	}
	return b.m2 / float64(b.count-1)
}

// Stddev is the sample standard deviation.
func (b *Buffer) Stddev() float64 {
	return math.Sqrt(b.Variance())
}

// StdErr is the standard error of the mean, stddev/sqrt(n).
func (b *Buffer) StdErr() float64 {
	if b.count < 2 {
		return math.NaN()
	}
	return b.Stddev() / math.Sqrt(float64(b.count))
}

// CV is the coefficient of variation, stddev/mean.
func (b *Buffer) CV() float64 {
	if b.mean == 0 {
		return math.NaN()
	}
	return b.Stddev() / b.mean
}

// Throughput is operations per second, 1/(mean/1e9); NaN if mean is
// approximately zero.
func (b *Buffer) Throughput() float64 {
	if math.Abs(b.mean) < 1e-9 {
		return math.NaN()
	}
	return 1.0 / (b.mean / 1e9)
}

// Records exposes the valid record prefix for read-only inspection by
// statistics and dump code. Callers must not mutate the returned slice.
func (b *Buffer) Records() []Record {
	return b.records[:b.count]
}
