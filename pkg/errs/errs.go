// Package errs defines the error taxonomy shared by every microbench
// package: construction/argument errors, a full buffer, a user error
// raised from a describe's setup/run/teardown/hooks, and cooperative
// cancellation.
package errs

import (
	"errors"
	"fmt"
)

// Kind discriminates the error taxonomy.
type Kind int

const (
	// InvalidArgument is returned by SampleBuffer/CIController/describe
	// construction when a caller-supplied value violates a contract.
	InvalidArgument Kind = iota
	// NoSpace means a SampleBuffer is full; a programmer error, never
	// retried.
	NoSpace
	// UserError means the measured function, a hook, or setup/teardown
	// raised.
	UserError
	// Cancelled means a caller's cancellation request was observed
	// between samples.
	Cancelled
	// ClockFailure is fatal; there is no recovery path.
	ClockFailure
	// NotFound means a requested entry (a bundle member, a loaded spec)
	// does not exist.
	NotFound
	// IOFailure wraps a failed filesystem or archive operation.
	IOFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NoSpace:
		return "NoSpace"
	case UserError:
		return "UserError"
	case Cancelled:
		return "Cancelled"
	case ClockFailure:
		return "ClockFailure"
	case NotFound:
		return "NotFound"
	case IOFailure:
		return "IOFailure"
	default:
		return "Unknown"
	}
}

// Phase names the lifecycle stage an error occurred in, so the phase
// tag travels with the error itself instead of being inferred from a
// stack trace.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseRun        Phase = "run"
	PhaseTeardown   Phase = "teardown"
	PhaseBeforeAll  Phase = "before_all"
	PhaseBeforeEach Phase = "before_each"
	PhaseAfterEach  Phase = "after_each"
	PhaseAfterAll   Phase = "after_all"
	PhaseReport     Phase = "report"
)

// Error is the error type every microbench package returns. It is
// comparable by Kind via errors.Is against the Err* sentinels below, and
// unwraps to the underlying cause when one is present.
type Error struct {
	Kind    Kind
	Phase   Phase
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Phase, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports Kind equality so errors.Is(err, errs.ErrNoSpace) style
// checks match any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error carrying no phase tag.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewPhase constructs an *Error tagged with the phase it occurred in.
func NewPhase(kind Kind, phase Phase, format string, args ...any) *Error {
	return &Error{Kind: kind, Phase: phase, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an arbitrary error raised by user code (a describe's
// setup/run/teardown/hook) as a UserError carrying the phase it
// occurred in.
func Wrap(phase Phase, cause error) *Error {
	return &Error{Kind: UserError, Phase: phase, Message: cause.Error(), Cause: cause}
}

// sentinels usable with errors.Is(err, errs.ErrNoSpace) etc.
var (
	ErrNoSpace   = &Error{Kind: NoSpace, Message: "sample buffer full"}
	ErrCancelled = &Error{Kind: Cancelled, Message: "cancelled"}
)

// KindOf extracts the Kind from err, returning ok=false if err is not
// (or does not wrap) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
