//go:build linux

package sample

import (
	"math"
	"sort"
)

// Percentile computes the p-th percentile of elapsed times by sorting
// a scratch copy of the recorded values and interpolating linearly at
// index (p/100)*(n-1). The stored record order is never mutated.
func (b *Buffer) Percentile(p float64) float64 {
	if b.count == 0 {
		return math.NaN()
	}
	scratch := make([]uint64, b.count)
	for i := 0; i < b.count; i++ {
		scratch[i] = b.records[i].TimeNS
	}
	sort.Slice(scratch, func(i, j int) bool { return scratch[i] < scratch[j] })
	return interpolate(scratch, p)
}

func interpolate(sorted []uint64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return float64(sorted[0])
	}
	idx := (p / 100) * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo == hi {
		return float64(sorted[lo])
	}
	frac := idx - float64(lo)
	return float64(sorted[lo])*(1-frac) + float64(sorted[hi])*frac
}

// MAD is the median of absolute deviations from the median, computed
// over elapsed times. NaN when count < MinMAD.
func (b *Buffer) MAD() float64 {
	if b.count < MinMAD {
		return math.NaN()
	}
	vals := make([]float64, b.count)
	for i := 0; i < b.count; i++ {
		vals[i] = float64(b.records[i].TimeNS)
	}
	med := medianOf(vals)
	devs := make([]float64, len(vals))
	for i, v := range vals {
		devs[i] = math.Abs(v - med)
	}
	return medianOf(devs)
}

func medianOf(vals []float64) float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

// MemStat is a record-by-record memory-pressure summary.
type MemStat struct {
	AllocPerOpKB    float64
	PeakAfterKB     uint64
	UncollectedKB   uint64
	AvgIncrementKB  float64
	MaxAllocPerOpKB uint64
}

// MemStat computes MemStat over the recorded prefix.
func (b *Buffer) MemStat() MemStat {
	var ms MemStat
	if b.count == 0 {
		return ms
	}
	ms.AllocPerOpKB = float64(b.sumAllocatedKB) / float64(b.count)

	var incSum float64
	var incN int
	for i := 0; i < b.count; i++ {
		r := b.records[i]
		if r.AfterKB > ms.PeakAfterKB {
			ms.PeakAfterKB = r.AfterKB
		}
		if r.AllocatedKB > ms.MaxAllocPerOpKB {
			ms.MaxAllocPerOpKB = r.AllocatedKB
		}
		if i > 0 {
			prev := b.records[i-1]
			if r.BeforeKB > prev.BeforeKB {
				incSum += float64(r.BeforeKB - prev.BeforeKB)
				incN++
			} else {
				incN++
			}
		}
	}
	if incN > 0 {
		ms.AvgIncrementKB = incSum / float64(incN)
	}

	first := b.records[0].BeforeKB
	last := b.records[b.count-1].BeforeKB
	if last > first {
		ms.UncollectedKB = last - first
	}
	return ms
}

// Merge combines several buffers into a new one using Chan's parallel
// Welford combining formula for mean and M2; min/max combine by
// extremum and sums add. The merged capacity is the sum of the inputs'
// capacities, and its records are the concatenation of the inputs'
// records in argument order, so a dump of the result reproduces the
// same (sum, min, max, count) as concatenating the underlying records
// directly.
func Merge(buffers []*Buffer) (*Buffer, error) {
	if len(buffers) == 0 {
		return nil, errNoBuffers
	}
	first := buffers[0]
	out := &Buffer{
		name:     first.name,
		capacity: 0,
		min:      math.MaxUint64,
		gcStep:   first.gcStep,
		cl:       first.cl,
		rciw:     first.rciw,
		clk:      first.clk,
		baseKB:   first.baseKB,
	}
	for _, buf := range buffers {
		out.capacity += buf.capacity
	}
	out.records = make([]Record, 0, out.capacity)

	for _, buf := range buffers {
		out.combine(buf)
		out.records = append(out.records, buf.Records()...)
	}
	out.count = len(out.records)
	if out.capacity < out.count {
		out.capacity = out.count
	}
	return out, nil
}

// combine folds buf's aggregates into out using Chan's parallel
// combining formula.
func (out *Buffer) combine(buf *Buffer) {
	if buf.count == 0 {
		return
	}
	if out.count == 0 {
		out.mean = buf.mean
		out.m2 = buf.m2
	} else {
		nA := float64(out.count)
		nB := float64(buf.count)
		n := nA + nB
		delta := buf.mean - out.mean
		out.mean = out.mean + delta*nB/n
		out.m2 = out.m2 + buf.m2 + delta*delta*nA*nB/n
	}
	out.sum += buf.sum
	out.sumAllocatedKB += buf.sumAllocatedKB
	if buf.min < out.min {
		out.min = buf.min
	}
	if buf.max > out.max {
		out.max = buf.max
	}
	out.count += buf.count
}

var errNoBuffers = &mergeError{"merge requires at least one buffer"}

type mergeError struct{ msg string }

func (e *mergeError) Error() string { return e.msg }
