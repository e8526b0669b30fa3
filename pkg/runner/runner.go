//go:build linux

// Package runner composes the measurement engine's pieces into the
// per-file control loop: apply lifecycle hooks, set up each described
// benchmark's options, then drive the Sampler against the
// CIController until the target confidence interval is met or a hard
// cap on sample count is reached.
package runner

import (
	"context"

	"github.com/ja7ad/microbench/pkg/alloc"
	"github.com/ja7ad/microbench/pkg/ci"
	"github.com/ja7ad/microbench/pkg/describe"
	"github.com/ja7ad/microbench/pkg/errs"
	"github.com/ja7ad/microbench/pkg/sample"
	"github.com/ja7ad/microbench/pkg/sampler"
)

// defaultWarmupSeconds applies when a describe's options omit warmup.
const defaultWarmupSeconds = 0

// defaultGCStep applies when a describe's options omit gc_step.
const defaultGCStep = 0

// defaultConfidenceLevel and defaultRCIW apply when a describe's
// options omit them.
const (
	defaultConfidenceLevel = 95
	defaultRCIW            = 5
)

// Progress reports one describe's outcome after each sampling pass. The
// runner sends on a buffered-size-1 channel and drops the update
// rather than block the measurement loop if nothing is listening yet.
type Progress struct {
	DescribeName string
	Iteration    int
	Report       ci.Report
	Done         bool
}

// Result is the final outcome of one described benchmark.
type Result struct {
	Name   string
	Buffer *sample.Buffer
	Report ci.Report
	Err    error
}

// Runner composes a Sampler and CIController against a shared
// AllocatorBridge, driving one Spec's describes to completion.
type Runner struct {
	bridge     alloc.Bridge
	sampler    *sampler.Sampler
	controller *ci.Controller
	progress   chan Progress

	defaultConfidenceLevel float64
	defaultRCIW            float64
}

// New returns a Runner. hardCap bounds the CIController's resample
// recommendation; 0 means unlimited.
func New(bridge alloc.Bridge, hardCap int) *Runner {
	return &Runner{
		bridge:                 bridge,
		sampler:                sampler.New(bridge, nil),
		controller:             ci.New(hardCap),
		progress:               make(chan Progress, 1),
		defaultConfidenceLevel: defaultConfidenceLevel,
		defaultRCIW:            defaultRCIW,
	}
}

// SetDefaults overrides the confidence level and RCIW a describe falls
// back to when it doesn't set its own, e.g. from a CLI flag or
// environment variable. A zero argument leaves that default unchanged.
func (r *Runner) SetDefaults(confidenceLevel, rciw float64) {
	if confidenceLevel != 0 {
		r.defaultConfidenceLevel = confidenceLevel
	}
	if rciw != 0 {
		r.defaultRCIW = rciw
	}
}

// Progress exposes the runner's progress channel. Callers that want
// live updates must drain it continuously; updates are dropped, never
// queued, when the channel is full.
func (r *Runner) Progress() <-chan Progress { return r.progress }

func (r *Runner) emit(p Progress) {
	select {
	case r.progress <- p:
	default:
	}
}

// RunSpec executes every describe in spec in order, honoring
// before_all/after_all around the whole file and before_each/after_each
// around each describe. A UserError from any describe (or its hooks)
// stops the file: remaining describes are skipped, but after_all still
// runs. Results already produced are always returned alongside the
// first error encountered.
func (r *Runner) RunSpec(ctx context.Context, spec describe.Spec) ([]Result, error) {
	if spec.Hooks.BeforeAll != nil {
		if err := spec.Hooks.BeforeAll(); err != nil {
			return nil, errs.Wrap(errs.PhaseBeforeAll, err)
		}
	}
	defer func() {
		if spec.Hooks.AfterAll != nil {
			_ = spec.Hooks.AfterAll()
		}
	}()

	var results []Result
	for _, d := range spec.Describes {
		if spec.Hooks.BeforeEach != nil {
			if err := spec.Hooks.BeforeEach(); err != nil {
				results = append(results, Result{Name: d.Name, Err: errs.Wrap(errs.PhaseBeforeEach, err)})
				break
			}
		}

		res := r.RunDescribe(ctx, d)
		results = append(results, res)

		if spec.Hooks.AfterEach != nil {
			_ = spec.Hooks.AfterEach()
		}

		if res.Err != nil {
			break
		}
	}

	for _, res := range results {
		if res.Err != nil {
			return results, res.Err
		}
	}
	return results, nil
}

// RunDescribe drives one described benchmark through setup, the
// adaptive sampling loop, and teardown.
func (r *Runner) RunDescribe(ctx context.Context, d describe.Describe) Result {
	opts := r.resolveOptions(d.Options)
	ctxVal := resolveContext(d.Options)

	if d.SetupOnce != nil {
		if err := d.SetupOnce(); err != nil {
			return Result{Name: d.Name, Err: errs.Wrap(errs.PhaseSetup, err)}
		}
	}

	buf, err := sample.New(d.Name, ci.MinSampleSize, opts.GCStep, opts.ConfidenceLevel, opts.RCIW)
	if err != nil {
		return Result{Name: d.Name, Err: err}
	}

	fn := func(isWarmup bool) error {
		if d.Run != nil {
			return d.Run(ctxVal, isWarmup)
		}
		return d.RunWithTimer(ctxVal, noopTimer{})
	}

	var report ci.Report
	iteration := 1
	for {
		if d.Setup != nil {
			if err := d.Setup(ctxVal); err != nil {
				teardownErr := runTeardown(d, ctxVal)
				err = errs.Wrap(errs.PhaseSetup, err)
				if teardownErr != nil {
					err = teardownErr
				}
				return Result{Name: d.Name, Buffer: buf, Err: err}
			}
		}

		if err := r.sampler.Run(ctx, fn, buf, warmupForIteration(opts.Warmup, iteration), iteration == 1); err != nil {
			teardownErr := runTeardown(d, ctxVal)
			if teardownErr != nil {
				err = teardownErr
			}
			return Result{Name: d.Name, Buffer: buf, Err: err}
		}

		report = r.controller.Decide(buf)
		// A run_with_timer body is never regrown: it gets a single pass.
		done := !report.HasResampleSize || d.RunWithTimer != nil
		r.emit(Progress{DescribeName: d.Name, Iteration: iteration, Report: report, Done: done})

		if done {
			break
		}
		if err := buf.Grow(report.ResampleSize - buf.Capacity()); err != nil {
			return Result{Name: d.Name, Buffer: buf, Err: err}
		}
		iteration++
	}

	if err := runTeardown(d, ctxVal); err != nil {
		return Result{Name: d.Name, Buffer: buf, Report: report, Err: err}
	}
	return Result{Name: d.Name, Buffer: buf, Report: report}
}

func runTeardown(d describe.Describe, ctxVal any) error {
	if d.Teardown == nil {
		return nil
	}
	if err := d.Teardown(ctxVal); err != nil {
		return errs.Wrap(errs.PhaseTeardown, err)
	}
	return nil
}

// warmupForIteration applies warmup only on the first pass, per the
// benchmark loop's contract that resamples never repeat it.
func warmupForIteration(seconds int64, iteration int) int64 {
	if iteration == 1 {
		return seconds
	}
	return 0
}

type resolvedOptions struct {
	GCStep          int64
	ConfidenceLevel float64
	RCIW            float64
	Warmup          int64
}

func (r *Runner) resolveOptions(o *describe.Options) resolvedOptions {
	resolved := resolvedOptions{
		GCStep:          defaultGCStep,
		ConfidenceLevel: r.defaultConfidenceLevel,
		RCIW:            r.defaultRCIW,
		Warmup:          defaultWarmupSeconds,
	}
	if o == nil {
		return resolved
	}
	resolved.GCStep = o.GCStep
	if o.ConfidenceLevel != 0 {
		resolved.ConfidenceLevel = o.ConfidenceLevel
	}
	if o.RCIW != 0 {
		resolved.RCIW = o.RCIW
	}
	if o.WarmupFn != nil {
		resolved.Warmup = o.WarmupFn()
	} else if o.Warmup != 0 {
		resolved.Warmup = o.Warmup
	}
	return resolved
}

func resolveContext(o *describe.Options) any {
	if o == nil {
		return nil
	}
	if o.ContextFn != nil {
		return o.ContextFn()
	}
	return o.Context
}

type noopTimer struct{}

func (noopTimer) Start() {}
func (noopTimer) Stop()  {}
