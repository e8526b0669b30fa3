//go:build linux

package sampler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/microbench/pkg/alloc"
	"github.com/ja7ad/microbench/pkg/errs"
	"github.com/ja7ad/microbench/pkg/sample"
)

type stepClock struct{ t uint64 }

func (c *stepClock) Now() uint64 { c.t += 1; return c.t }

type stubBridge struct {
	kb uint64
}

func (b *stubBridge) HeapKB() (uint64, error)            { b.kb += 1; return b.kb, nil }
func (b *stubBridge) CollectFull()                       {}
func (b *stubBridge) Stop()                              {}
func (b *stubBridge) Restart()                           {}
func (b *stubBridge) Step(kb uint64)                      {}
func (b *stubBridge) SaveTuning() alloc.TuningSnapshot    { return alloc.TuningSnapshot{} }
func (b *stubBridge) RestoreTuning(alloc.TuningSnapshot) {}

func TestSampler_FillsBufferToCapacity(t *testing.T) {
	buf, err := sample.New("b", 10, 0, 95, 5)
	require.NoError(t, err)
	s := New(&stubBridge{}, &stepClock{})

	calls := 0
	runErr := s.Run(context.Background(), func(isWarmup bool) error {
		calls++
		return nil
	}, buf, 0, true)

	require.NoError(t, runErr)
	assert.Equal(t, 10, calls)
	assert.Equal(t, 10, buf.Count())
}

func TestSampler_PropagatesUserError(t *testing.T) {
	buf, err := sample.New("b", 10, 0, 95, 5)
	require.NoError(t, err)
	s := New(&stubBridge{}, &stepClock{})

	boom := errors.New("boom")
	calls := 0
	runErr := s.Run(context.Background(), func(isWarmup bool) error {
		calls++
		if calls == 7 {
			return boom
		}
		return nil
	}, buf, 0, true)

	require.Error(t, runErr)
	kind, ok := errs.KindOf(runErr)
	require.True(t, ok)
	assert.Equal(t, errs.UserError, kind)
	assert.Equal(t, 7, buf.Count())
}

func TestSampler_ClearFirstResetsBuffer(t *testing.T) {
	buf, err := sample.New("b", 3, 0, 95, 5)
	require.NoError(t, err)
	s := New(&stubBridge{}, &stepClock{})

	require.NoError(t, s.Run(context.Background(), func(bool) error { return nil }, buf, 0, true))
	assert.Equal(t, 3, buf.Count())

	require.NoError(t, s.Run(context.Background(), func(bool) error { return nil }, buf, 0, true))
	assert.Equal(t, 3, buf.Count())
}

func TestSampler_CancellationBetweenSamples(t *testing.T) {
	buf, err := sample.New("b", 10, 0, 95, 5)
	require.NoError(t, err)
	s := New(&stubBridge{}, &stepClock{})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	runErr := s.Run(ctx, func(bool) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil
	}, buf, 0, true)

	assert.ErrorIs(t, runErr, errs.ErrCancelled)
	assert.Equal(t, 3, buf.Count())
}
