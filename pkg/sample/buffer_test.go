//go:build linux

package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/microbench/pkg/alloc"
	"github.com/ja7ad/microbench/pkg/errs"
)

type fakeClock struct{ t uint64 }

func (f *fakeClock) Now() uint64 {
	f.t += 100
	return f.t
}

type fakeBridge struct {
	heapKB      uint64
	collectFull int
	stopped     int
	restarted   int
	steps       []uint64
}

func (f *fakeBridge) HeapKB() (uint64, error) { f.heapKB += 10; return f.heapKB, nil }
func (f *fakeBridge) CollectFull()            { f.collectFull++ }
func (f *fakeBridge) Stop()                   { f.stopped++ }
func (f *fakeBridge) Restart()                { f.restarted++ }
func (f *fakeBridge) Step(kb uint64)          { f.steps = append(f.steps, kb) }
func (f *fakeBridge) SaveTuning() alloc.TuningSnapshot {
	return alloc.TuningSnapshot{GCPercent: 100}
}
func (f *fakeBridge) RestoreTuning(alloc.TuningSnapshot) {}

func TestNew_ValidatesArgs(t *testing.T) {
	_, err := New("ok", 0, 0, 95, 5)
	assert.Error(t, err)

	_, err = New("ok", 10, 0, 0, 5)
	assert.Error(t, err)

	_, err = New("ok", 10, 0, 95, 0)
	assert.Error(t, err)

	long := make([]byte, MaxNameBytes+1)
	_, err = New(string(long), 10, 0, 95, 5)
	assert.Error(t, err)

	b, err := New("ok", 10, 0, 95, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, b.Capacity())
	assert.Equal(t, 0, b.Count())
}

func TestBuffer_InitAndUpdateSample(t *testing.T) {
	b, err := New("bench", 4, 0, 95, 5, WithClock(&fakeClock{}))
	require.NoError(t, err)
	bridge := &fakeBridge{}

	require.NoError(t, b.InitSample(bridge))
	require.NoError(t, b.UpdateSample(bridge))
	assert.Equal(t, 1, b.Count())

	require.NoError(t, b.InitSample(bridge))
	require.NoError(t, b.UpdateSample(bridge))
	assert.Equal(t, 2, b.Count())

	assert.Greater(t, b.Mean(), 0.0)
	assert.Equal(t, b.Sum(), b.Min()+b.Max())
}

func TestBuffer_NoSpace(t *testing.T) {
	b, err := New("bench", 1, 0, 95, 5, WithClock(&fakeClock{}))
	require.NoError(t, err)
	bridge := &fakeBridge{}

	require.NoError(t, b.InitSample(bridge))
	require.NoError(t, b.UpdateSample(bridge))

	err = b.InitSample(bridge)
	assert.ErrorIs(t, err, errs.ErrNoSpace)
}

func TestBuffer_Grow(t *testing.T) {
	b, err := New("bench", 1, 0, 95, 5, WithClock(&fakeClock{}))
	require.NoError(t, err)
	require.NoError(t, b.Grow(3))
	assert.Equal(t, 4, b.Capacity())

	assert.Error(t, b.Grow(0))
}

func TestBuffer_Clear(t *testing.T) {
	b, err := New("bench", 2, 0, 95, 5, WithClock(&fakeClock{}))
	require.NoError(t, err)
	bridge := &fakeBridge{}
	require.NoError(t, b.InitSample(bridge))
	require.NoError(t, b.UpdateSample(bridge))
	require.Equal(t, 1, b.Count())

	b.Clear()
	assert.Equal(t, 0, b.Count())
	assert.Equal(t, uint64(0), b.Sum())
	assert.True(t, b.Mean() == 0)
}

func TestBuffer_PreprocessPostprocess_NegativeGCStep(t *testing.T) {
	b, err := New("bench", 2, -1, 95, 5, WithClock(&fakeClock{}))
	require.NoError(t, err)
	bridge := &fakeBridge{}

	require.NoError(t, b.Preprocess(bridge))
	assert.Equal(t, 1, bridge.collectFull)
	assert.Equal(t, 1, bridge.stopped)
	assert.Greater(t, b.BaseKB(), uint64(0))

	b.Postprocess(bridge)
	assert.Equal(t, 1, bridge.restarted)
}

func TestBuffer_GCStepTriggersStep(t *testing.T) {
	b, err := New("bench", 2, 5, 95, 5, WithClock(&fakeClock{}))
	require.NoError(t, err)
	bridge := &fakeBridge{heapKB: 0}

	require.NoError(t, b.InitSample(bridge))
	bridge.heapKB += 1000 // force a large allocated delta past gc_step
	require.NoError(t, b.UpdateSample(bridge))
	assert.NotEmpty(t, bridge.steps)
}

func TestBuffer_VarianceStddevCVThroughput(t *testing.T) {
	b, err := New("bench", 1, 0, 95, 5)
	require.NoError(t, err)
	assert.True(t, isNaN(b.Variance()))
	assert.True(t, isNaN(b.Stddev()))
	assert.True(t, isNaN(b.StdErr()))
	assert.True(t, isNaN(b.CV()))
	assert.True(t, isNaN(b.Throughput()))
}

func isNaN(f float64) bool { return f != f }
