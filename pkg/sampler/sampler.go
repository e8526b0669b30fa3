//go:build linux

// Package sampler drives a measured function through warmup then
// collection against a sample buffer, coordinating allocator state
// around each sample and surfacing the error that terminated a run, if
// any.
package sampler

import (
	"context"

	"github.com/ja7ad/microbench/pkg/alloc"
	"github.com/ja7ad/microbench/pkg/clock"
	"github.com/ja7ad/microbench/pkg/errs"
	"github.com/ja7ad/microbench/pkg/sample"
)

// Func is the measured body. isWarmup tells it whether the call is a
// warmup iteration (some benchmarks skip expensive assertions during
// warmup). Any error returned is captured and surfaces as a UserError.
type Func func(isWarmup bool) error

// Sampler drives Func against a Buffer using a Bridge for allocator
// coordination and a Clock for warmup timing.
type Sampler struct {
	bridge alloc.Bridge
	clk    clock.Clock
}

// New returns a Sampler bound to bridge. If clk is nil a real monotonic
// clock is used.
func New(bridge alloc.Bridge, clk clock.Clock) *Sampler {
	if clk == nil {
		clk = clock.New()
	}
	return &Sampler{bridge: bridge, clk: clk}
}

// Run executes one sampling pass: optional clear, preprocess, optional
// warmup, then fills buf from its current count up to its capacity,
// checking ctx for cancellation between samples. Postprocess always
// runs, even when fn, ctx, or the buffer itself fails partway through.
func (s *Sampler) Run(ctx context.Context, fn Func, buf *sample.Buffer, warmupSeconds int64, clearFirst bool) error {
	if clearFirst {
		buf.Clear()
	}
	if err := buf.Preprocess(s.bridge); err != nil {
		return errs.NewPhase(errs.InvalidArgument, errs.PhaseSetup, "preprocess: %v", err)
	}
	defer buf.Postprocess(s.bridge)

	if warmupSeconds > 0 {
		if err := s.warmup(warmupSeconds, fn); err != nil {
			return err
		}
	}

	for buf.Count() < buf.Capacity() {
		if err := buf.InitSample(s.bridge); err != nil {
			return errs.NewPhase(errs.NoSpace, errs.PhaseRun, "init_sample: %v", err)
		}

		runErr := fn(false)

		if err := buf.UpdateSample(s.bridge); err != nil {
			return errs.NewPhase(errs.NoSpace, errs.PhaseRun, "update_sample: %v", err)
		}
		if runErr != nil {
			return errs.Wrap(errs.PhaseRun, runErr)
		}

		select {
		case <-ctx.Done():
			return errs.ErrCancelled
		default:
		}
	}
	return nil
}

func (s *Sampler) warmup(seconds int64, fn Func) error {
	budget := uint64(seconds) * 1_000_000_000
	t0 := s.clk.Now()
	for s.clk.Now()-t0 < budget {
		if err := fn(true); err != nil {
			return errs.Wrap(errs.PhaseRun, err)
		}
	}
	return nil
}
