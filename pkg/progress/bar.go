//go:build linux

package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/ja7ad/microbench/pkg/runner"
)

// barReporter renders each update as a refreshed single-line
// schollz/progressbar, keyed by describe name so a multi-benchmark
// file still produces readable non-TTY output.
type barReporter struct {
	out io.Writer
}

func newBarReporter(out io.Writer) *barReporter {
	return &barReporter{out: out}
}

func (r *barReporter) Run(updates <-chan runner.Progress) {
	bars := map[string]*progressbar.ProgressBar{}
	for p := range updates {
		bar, ok := bars[p.DescribeName]
		if !ok {
			bar = progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(r.out),
				progressbar.OptionSetDescription(p.DescribeName),
				progressbar.OptionClearOnFinish(),
			)
			bars[p.DescribeName] = bar
		}
		_ = bar.Set(p.Report.SampleSize)
		_, _ = io.WriteString(r.out, "\n"+formatLine(p)+"\n")
		if p.Done {
			_ = bar.Finish()
		}
	}
}
