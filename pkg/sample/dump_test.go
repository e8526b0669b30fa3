//go:build linux

package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpRestore_RoundTrips(t *testing.T) {
	b, err := New("bench", 5, 10, 95, 5)
	require.NoError(t, err)
	fillDirect(t, b, []uint64{100, 200, 150})
	b.baseKB = 512

	d := b.Dump()
	assert.Equal(t, SchemaVersion, d.SchemaVersion)
	assert.Equal(t, 3, d.Count)
	assert.Len(t, d.TimeNS, 3)

	restored, err := Restore(d)
	require.NoError(t, err)

	assert.Equal(t, b.Name(), restored.Name())
	assert.Equal(t, b.Capacity(), restored.Capacity())
	assert.Equal(t, b.Count(), restored.Count())
	assert.Equal(t, b.Sum(), restored.Sum())
	assert.Equal(t, b.Min(), restored.Min())
	assert.Equal(t, b.Max(), restored.Max())
	assert.Equal(t, b.Mean(), restored.Mean())
	assert.Equal(t, b.M2(), restored.M2())
	assert.Equal(t, b.BaseKB(), restored.BaseKB())
	assert.Equal(t, b.Records(), restored.Records())
}

func TestRestore_RejectsBadSchemaVersion(t *testing.T) {
	b, err := New("bench", 2, 0, 95, 5)
	require.NoError(t, err)
	d := b.Dump()
	d.SchemaVersion = 999

	_, err = Restore(d)
	assert.Error(t, err)
}

func TestRestore_RejectsMismatchedColumnLengths(t *testing.T) {
	b, err := New("bench", 2, 0, 95, 5)
	require.NoError(t, err)
	fillDirect(t, b, []uint64{10})
	d := b.Dump()
	d.BeforeKB = d.BeforeKB[:0]

	_, err = Restore(d)
	assert.Error(t, err)
}

func TestRestore_RejectsInvalidConfiguration(t *testing.T) {
	b, err := New("bench", 2, 0, 95, 5)
	require.NoError(t, err)
	d := b.Dump()
	d.CL = 0

	_, err = Restore(d)
	assert.Error(t, err)
}

func TestRestore_RejectsMismatchedSum(t *testing.T) {
	b, err := New("bench", 5, 0, 95, 5)
	require.NoError(t, err)
	fillDirect(t, b, []uint64{100, 200, 150})
	d := b.Dump()
	d.Sum += 1

	_, err = Restore(d)
	assert.Error(t, err)
}

func TestRestore_RejectsMismatchedMean(t *testing.T) {
	b, err := New("bench", 5, 0, 95, 5)
	require.NoError(t, err)
	fillDirect(t, b, []uint64{100, 200, 150})
	d := b.Dump()
	d.Mean += 1000

	_, err = Restore(d)
	assert.Error(t, err)
}

func TestRestore_AcceptsMergeCombinedAggregates(t *testing.T) {
	a, err := New("bench", 5, 0, 95, 5)
	require.NoError(t, err)
	fillDirect(t, a, []uint64{100, 200, 150})
	b2, err := New("bench", 5, 0, 95, 5)
	require.NoError(t, err)
	fillDirect(t, b2, []uint64{90, 310, 175, 220})

	merged, err := Merge([]*Buffer{a, b2})
	require.NoError(t, err)

	restored, err := Restore(merged.Dump())
	require.NoError(t, err)
	assert.Equal(t, merged.Sum(), restored.Sum())
	assert.InDelta(t, merged.Mean(), restored.Mean(), 1e-6)
	assert.InDelta(t, merged.M2(), restored.M2(), 1e-6)
}

func TestRestore_RejectsCountExceedingCapacity(t *testing.T) {
	b, err := New("bench", 2, 0, 95, 5)
	require.NoError(t, err)
	d := b.Dump()
	d.Count = 3
	d.TimeNS = []uint64{1, 2, 3}
	d.BeforeKB = []uint64{1, 2, 3}
	d.AfterKB = []uint64{1, 2, 3}
	d.AllocatedKB = []uint64{1, 2, 3}

	_, err = Restore(d)
	assert.Error(t, err)
}
