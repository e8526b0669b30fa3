// Package describe implements the fluent benchmark-definition surface:
// a builder that enforces the order lattice a file's benchmarks must
// follow (options once and first, exactly one of setup/setup_once,
// exactly one of run/run_with_timer, teardown only after a run step)
// and assembles the result into an immutable Spec the runner consumes.
//
// There is no hidden module-global registry here: every builder method
// consumes and returns a value, and the finished Spec is returned to
// the caller, not stashed anywhere the loader has to dig for it.
package describe

import "github.com/ja7ad/microbench/pkg/errs"

// Options are the recognised per-describe configuration knobs.
type Options struct {
	Context         any
	ContextFn       func() any
	Warmup          int64
	WarmupFn        func() int64
	GCStep          int64
	ConfidenceLevel float64
	RCIW            float64
}

// Hooks are the file-level lifecycle callbacks.
type Hooks struct {
	BeforeAll  func() error
	BeforeEach func() error
	AfterEach  func() error
	AfterAll   func() error
}

// Timer is handed to a run_with_timer body. The runner in pkg/runner
// passes a Timer whose Start and Stop do nothing, so each sample times
// the whole call; a body's Start/Stop calls do not narrow the measured
// region.
type Timer interface {
	Start()
	Stop()
}

// Describe is one named benchmark: its options, setup, body, and
// teardown.
type Describe struct {
	Name string

	Options *Options

	Setup     func(ctx any) error
	SetupOnce func() error

	Run          func(ctx any, isWarmup bool) error
	RunWithTimer func(ctx any, timer Timer) error

	Teardown func(ctx any) error
}

// Spec is a file's set of Describes plus its lifecycle hooks.
type Spec struct {
	Hooks     Hooks
	Describes []Describe
}

// SpecBuilder assembles a Spec from a sequence of describe builders.
type SpecBuilder struct {
	hooks     Hooks
	describes []Describe
}

// NewSpec starts a new, empty Spec.
func NewSpec() *SpecBuilder {
	return &SpecBuilder{}
}

// WithHooks attaches file-level lifecycle hooks.
func (s *SpecBuilder) WithHooks(h Hooks) *SpecBuilder {
	s.hooks = h
	return s
}

// Describe starts building a new named benchmark.
func (s *SpecBuilder) Describe(name string) *DescribeBuilder {
	return &DescribeBuilder{spec: s, d: Describe{Name: name}}
}

// Build finalizes the Spec. Individual describes are appended to it as
// each DescribeBuilder completes via Done.
func (s *SpecBuilder) Build() Spec {
	return Spec{Hooks: s.hooks, Describes: s.describes}
}

// stage tracks which lattice edge a DescribeBuilder currently permits,
// so that calling methods out of order is a construction-time error
// rather than a silently ignored call.
type stage int

const (
	stageStart stage = iota
	stageOptionsSet
	stageSetupSet
	stageRunSet
	stageTeardownSet
)

// DescribeBuilder enforces the order lattice for a single Describe:
// options (at most once, first) -> exactly one of setup/setup_once ->
// exactly one of run/run_with_timer -> optional teardown.
type DescribeBuilder struct {
	spec *SpecBuilder
	d    Describe
	st   stage
	err  error
}

// Options sets the describe's configuration. Must precede setup/run.
func (b *DescribeBuilder) Options(o Options) *DescribeBuilder {
	if b.err != nil {
		return b
	}
	if b.st != stageStart {
		b.err = errs.New(errs.InvalidArgument, "options must be set at most once and before setup/run")
		return b
	}
	if err := validateOptions(o); err != nil {
		b.err = err
		return b
	}
	b.d.Options = &o
	b.st = stageOptionsSet
	return b
}

// Setup registers a per-pass setup function. Mutually exclusive with
// SetupOnce.
func (b *DescribeBuilder) Setup(fn func(ctx any) error) *DescribeBuilder {
	if b.err != nil {
		return b
	}
	if b.st != stageStart && b.st != stageOptionsSet {
		b.err = errs.New(errs.InvalidArgument, "setup must come before run and after options")
		return b
	}
	b.d.Setup = fn
	b.st = stageSetupSet
	return b
}

// SetupOnce registers a once-per-benchmark setup function. Mutually
// exclusive with Setup.
func (b *DescribeBuilder) SetupOnce(fn func() error) *DescribeBuilder {
	if b.err != nil {
		return b
	}
	if b.st != stageStart && b.st != stageOptionsSet {
		b.err = errs.New(errs.InvalidArgument, "setup_once must come before run and after options")
		return b
	}
	b.d.SetupOnce = fn
	b.st = stageSetupSet
	return b
}

// Run registers the measured body, called once per iteration on the
// measurement thread. Mutually exclusive with RunWithTimer.
func (b *DescribeBuilder) Run(fn func(ctx any, isWarmup bool) error) *DescribeBuilder {
	if b.err != nil {
		return b
	}
	if b.st == stageRunSet || b.st == stageTeardownSet {
		b.err = errs.New(errs.InvalidArgument, "exactly one of run/run_with_timer is permitted")
		return b
	}
	b.d.Run = fn
	b.st = stageRunSet
	return b
}

// RunWithTimer registers a body that is handed a Timer (see Timer for
// what the runner does with it). Mutually exclusive with Run, and
// rejected when the describe's options set a nonzero RCIW target: the
// runner gives a run_with_timer describe a single sampling pass and
// never regrows it, so an RCIW target could not be met.
func (b *DescribeBuilder) RunWithTimer(fn func(ctx any, timer Timer) error) *DescribeBuilder {
	if b.err != nil {
		return b
	}
	if b.st == stageRunSet || b.st == stageTeardownSet {
		b.err = errs.New(errs.InvalidArgument, "exactly one of run/run_with_timer is permitted")
		return b
	}
	if b.d.Options != nil && b.d.Options.RCIW > 0 {
		b.err = errs.New(errs.InvalidArgument, "run_with_timer cannot be combined with a nonzero rciw target")
		return b
	}
	b.d.RunWithTimer = fn
	b.st = stageRunSet
	return b
}

// Teardown registers a cleanup function. Must follow run/run_with_timer.
func (b *DescribeBuilder) Teardown(fn func(ctx any) error) *DescribeBuilder {
	if b.err != nil {
		return b
	}
	if b.st != stageRunSet {
		b.err = errs.New(errs.InvalidArgument, "teardown must follow run/run_with_timer")
		return b
	}
	b.d.Teardown = fn
	b.st = stageTeardownSet
	return b
}

// Done validates the completed describe, appends it to the parent
// Spec, and returns the SpecBuilder to continue the chain.
func (b *DescribeBuilder) Done() (*SpecBuilder, error) {
	if b.err != nil {
		return b.spec, b.err
	}
	if b.d.Setup == nil && b.d.SetupOnce == nil {
		return b.spec, errs.New(errs.InvalidArgument, "exactly one of setup/setup_once is required")
	}
	if b.d.Run == nil && b.d.RunWithTimer == nil {
		return b.spec, errs.New(errs.InvalidArgument, "exactly one of run/run_with_timer is required")
	}
	b.spec.describes = append(b.spec.describes, b.d)
	return b.spec, nil
}

func validateOptions(o Options) error {
	if o.Warmup < 0 {
		return errs.New(errs.InvalidArgument, "warmup must be non-negative, got %d", o.Warmup)
	}
	if o.ConfidenceLevel != 0 && !(o.ConfidenceLevel > 0 && o.ConfidenceLevel <= 100) {
		return errs.New(errs.InvalidArgument, "confidence_level must be in (0,100], got %v", o.ConfidenceLevel)
	}
	if o.RCIW != 0 && !(o.RCIW > 0 && o.RCIW <= 100) {
		return errs.New(errs.InvalidArgument, "rciw must be in (0,100], got %v", o.RCIW)
	}
	return nil
}
