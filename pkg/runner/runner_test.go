//go:build linux

package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/microbench/pkg/alloc"
	"github.com/ja7ad/microbench/pkg/describe"
)

type countingBridge struct{ kb uint64 }

func (b *countingBridge) HeapKB() (uint64, error)           { b.kb += 1; return b.kb, nil }
func (b *countingBridge) CollectFull()                      {}
func (b *countingBridge) Stop()                             {}
func (b *countingBridge) Restart()                          {}
func (b *countingBridge) Step(kb uint64)                     {}
func (b *countingBridge) SaveTuning() alloc.TuningSnapshot   { return alloc.TuningSnapshot{} }
func (b *countingBridge) RestoreTuning(alloc.TuningSnapshot) {}

func TestRunDescribe_HappyPath(t *testing.T) {
	r := New(&countingBridge{}, 500)
	calls := 0
	sb := describe.NewSpec()
	_, err := sb.Describe("noop").
		Options(describe.Options{Warmup: 0, ConfidenceLevel: 95, RCIW: 5}).
		SetupOnce(func() error { return nil }).
		Run(func(ctx any, isWarmup bool) error { calls++; return nil }).
		Done()
	require.NoError(t, err)

	res := r.RunDescribe(context.Background(), sb.Build().Describes[0])
	require.NoError(t, res.Err)
	assert.GreaterOrEqual(t, calls, 100)
	assert.NotNil(t, res.Buffer)
}

func TestRunDescribe_UserErrorSurfaces(t *testing.T) {
	r := New(&countingBridge{}, 0)
	boom := errors.New("boom")
	sb := describe.NewSpec()
	_, err := sb.Describe("fails").
		SetupOnce(func() error { return nil }).
		Run(func(ctx any, isWarmup bool) error { return boom }).
		Done()
	require.NoError(t, err)

	res := r.RunDescribe(context.Background(), sb.Build().Describes[0])
	assert.Error(t, res.Err)
	assert.Equal(t, 1, res.Buffer.Count())
}

func TestRunSpec_StopsFileOnError(t *testing.T) {
	r := New(&countingBridge{}, 0)
	boom := errors.New("boom")
	sb := describe.NewSpec()
	_, err := sb.Describe("a").
		SetupOnce(func() error { return nil }).
		Run(func(ctx any, isWarmup bool) error { return boom }).
		Done()
	require.NoError(t, err)
	_, err = sb.Describe("b").
		SetupOnce(func() error { return nil }).
		Run(func(ctx any, isWarmup bool) error { return nil }).
		Done()
	require.NoError(t, err)

	results, err := r.RunSpec(context.Background(), sb.Build())
	assert.Error(t, err)
	assert.Len(t, results, 1)
}

func TestRunSpec_BeforeAllAfterAll(t *testing.T) {
	r := New(&countingBridge{}, 500)
	var beforeCalled, afterCalled bool
	sb := describe.NewSpec().WithHooks(describe.Hooks{
		BeforeAll: func() error { beforeCalled = true; return nil },
		AfterAll:  func() error { afterCalled = true; return nil },
	})
	_, err := sb.Describe("a").
		SetupOnce(func() error { return nil }).
		Run(func(ctx any, isWarmup bool) error { return nil }).
		Done()
	require.NoError(t, err)

	_, err = r.RunSpec(context.Background(), sb.Build())
	require.NoError(t, err)
	assert.True(t, beforeCalled)
	assert.True(t, afterCalled)
}

func TestRunDescribe_ProgressEmitted(t *testing.T) {
	r := New(&countingBridge{}, 500)
	sb := describe.NewSpec()
	_, err := sb.Describe("a").
		SetupOnce(func() error { return nil }).
		Run(func(ctx any, isWarmup bool) error { return nil }).
		Done()
	require.NoError(t, err)

	res := r.RunDescribe(context.Background(), sb.Build().Describes[0])
	require.NoError(t, res.Err)

	select {
	case p := <-r.Progress():
		assert.Equal(t, "a", p.DescribeName)
	default:
		t.Fatal("expected a buffered progress update")
	}
}
