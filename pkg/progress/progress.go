//go:build linux

// Package progress renders live sampling-pass updates to the
// terminal. A real TTY gets a bubbletea view with a bubbles progress
// bar styled by lipgloss; anything else (CI logs, piped output) falls
// back to a schollz/progressbar single-line bar, the same split the
// rest of the ecosystem's CLI tooling makes for long-running work.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/ja7ad/microbench/pkg/runner"
)

// Mode selects how progress is rendered.
type Mode string

const (
	// Auto detects a terminal and picks TTY or Plain accordingly.
	Auto Mode = "auto"
	// TTY forces the bubbletea live view.
	TTY Mode = "tty"
	// Plain forces the schollz/progressbar fallback.
	Plain Mode = "plain"
	// None disables progress rendering entirely.
	None Mode = "none"
)

// Resolve turns a configured Mode into the concrete mode that should
// actually render, based on whether out is a terminal.
func Resolve(mode Mode, out *os.File) Mode {
	if mode != Auto {
		return mode
	}
	if isTerminal(out) {
		return TTY
	}
	return Plain
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Reporter renders updates read from a runner.Progress channel until it
// closes.
type Reporter interface {
	Run(updates <-chan runner.Progress)
}

// New constructs the Reporter matching mode. None returns a Reporter
// whose Run drains the channel silently, which keeps callers from
// having to special-case "no progress" themselves.
func New(mode Mode, out io.Writer) Reporter {
	switch mode {
	case TTY:
		return newTeaReporter(out)
	case Plain:
		return newBarReporter(out)
	default:
		return noopReporter{}
	}
}

type noopReporter struct{}

func (noopReporter) Run(updates <-chan runner.Progress) {
	for range updates {
	}
}

func formatLine(p runner.Progress) string {
	return fmt.Sprintf("%s: pass %d, n=%d, rciw=%.2f%%, quality=%s",
		p.DescribeName, p.Iteration, p.Report.SampleSize, p.Report.RCIWObserved, p.Report.Quality)
}
