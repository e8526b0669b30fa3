//go:build linux

package sample

import (
	"math"

	"github.com/ja7ad/microbench/pkg/clock"
	"github.com/ja7ad/microbench/pkg/errs"
)

// aggregateTolerance bounds how far a replayed mean/M2 may drift from
// the dumped value before Restore rejects the dump. Mean and M2 are
// re-derived by folding records through the same sequential Welford
// path the live sampling loop uses, while a dump produced via Merge
// carries aggregates computed by Chan's parallel combining formula
// instead; both are mathematically equivalent but accumulate
// floating-point rounding differently, so an exact comparison would
// reject legitimate merged dumps.
const aggregateTolerance = 1e-6

// SchemaVersion is the current on-disk/wire format of Dump. Bumping it
// is a breaking change for any Restore of an older dump.
const SchemaVersion uint32 = 1

// Dump is the serializable snapshot of a Buffer: its configuration, its
// aggregates, and its full record columns. It is the interchange format
// used to persist a completed run and to reload it for merging or
// reporting later.
type Dump struct {
	SchemaVersion uint32

	Name     string
	Capacity int
	Count    int
	GCStep   int64
	CL       float64
	RCIW     float64
	BaseKB   uint64

	Sum uint64
	Min uint64
	Max uint64
	// Mean and M2 are carried as independent fields alongside the
	// record columns rather than implied by them; Restore re-derives
	// both from TimeNS by replaying the online-update path and rejects
	// the dump if they disagree, so a corrupted or hand-edited dump
	// can't produce a buffer that violates its own aggregate invariants.
	Mean float64
	M2   float64

	SumAllocatedKB uint64

	TimeNS      []uint64
	BeforeKB    []uint64
	AfterKB     []uint64
	AllocatedKB []uint64
}

// Dump snapshots the Buffer's current state.
func (b *Buffer) Dump() Dump {
	d := Dump{
		SchemaVersion:  SchemaVersion,
		Name:           b.name,
		Capacity:       b.capacity,
		Count:          b.count,
		GCStep:         b.gcStep,
		CL:             b.cl,
		RCIW:           b.rciw,
		BaseKB:         b.baseKB,
		Sum:            b.sum,
		Min:            b.min,
		Max:            b.max,
		Mean:           b.mean,
		M2:             b.m2,
		SumAllocatedKB: b.sumAllocatedKB,
		TimeNS:         make([]uint64, b.count),
		BeforeKB:       make([]uint64, b.count),
		AfterKB:        make([]uint64, b.count),
		AllocatedKB:    make([]uint64, b.count),
	}
	for i := 0; i < b.count; i++ {
		r := b.records[i]
		d.TimeNS[i] = r.TimeNS
		d.BeforeKB[i] = r.BeforeKB
		d.AfterKB[i] = r.AfterKB
		d.AllocatedKB[i] = r.AllocatedKB
	}
	return d
}

// Restore rebuilds a Buffer from a Dump, validating its configuration
// exactly as New does and rejecting a schema it cannot interpret. It
// replays the record columns through the same online-update path the
// live sampling loop uses to re-derive sum/min/max/mean/M2/
// sum_allocated_kb, then rejects the dump if those re-derived
// aggregates disagree with the ones it carries — a dump whose
// aggregate fields were corrupted or edited independently of its
// record columns cannot produce a Buffer that violates its own
// invariants.
func Restore(d Dump) (*Buffer, error) {
	if d.SchemaVersion != SchemaVersion {
		return nil, errs.New(errs.InvalidArgument,
			"dump schema version %d is not supported (want %d)", d.SchemaVersion, SchemaVersion)
	}
	if err := validateArgs(d.Name, d.Capacity, d.CL, d.RCIW); err != nil {
		return nil, err
	}
	if d.Count < 0 || d.Count > d.Capacity {
		return nil, errs.New(errs.InvalidArgument, "count %d out of range for capacity %d", d.Count, d.Capacity)
	}
	for _, col := range [][]uint64{d.TimeNS, d.BeforeKB, d.AfterKB, d.AllocatedKB} {
		if len(col) != d.Count {
			return nil, errs.New(errs.InvalidArgument, "record column length %d does not match count %d", len(col), d.Count)
		}
	}

	b := &Buffer{
		name:     d.Name,
		capacity: d.Capacity,
		records:  make([]Record, d.Capacity),
		baseKB:   d.BaseKB,
		min:      math.MaxUint64,
		gcStep:   d.GCStep,
		cl:       d.CL,
		rciw:     d.RCIW,
		clk:      clock.New(),
	}
	for i := 0; i < d.Count; i++ {
		rec := Record{
			TimeNS:      d.TimeNS[i],
			BeforeKB:    d.BeforeKB[i],
			AfterKB:     d.AfterKB[i],
			AllocatedKB: d.AllocatedKB[i],
		}
		b.records[i] = rec
		b.updateAggregates(rec)
		b.count++
	}

	if b.sum != d.Sum || b.min != d.Min || b.max != d.Max || b.sumAllocatedKB != d.SumAllocatedKB {
		return nil, errs.New(errs.InvalidArgument,
			"dump aggregates disagree with its record columns: sum/min/max/sum_allocated_kb mismatch")
	}
	if math.Abs(b.mean-d.Mean) > aggregateTolerance || math.Abs(b.m2-d.M2) > aggregateTolerance {
		return nil, errs.New(errs.InvalidArgument,
			"dump aggregates disagree with its record columns: mean/M2 mismatch")
	}
	return b, nil
}
