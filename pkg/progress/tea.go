//go:build linux

package progress

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ja7ad/microbench/pkg/runner"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type updateMsg runner.Progress
type closedMsg struct{}

type teaModel struct {
	bar     progress.Model
	current runner.Progress
	closed  bool
}

func (m teaModel) Init() tea.Cmd { return nil }

func (m teaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.current = runner.Progress(msg)
		var cmd tea.Cmd
		if m.current.Report.SampleSize > 0 {
			cmd = m.bar.SetPercent(percentComplete(m.current))
		}
		return m, cmd
	case closedMsg:
		m.closed = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m teaModel) View() string {
	if m.closed {
		return doneStyle.Render("done") + "\n"
	}
	return titleStyle.Render(m.current.DescribeName) + "\n" +
		m.bar.View() + "\n" +
		fmt.Sprintf("n=%d rciw=%.2f%% quality=%s\n",
			m.current.Report.SampleSize, m.current.Report.RCIWObserved, m.current.Report.Quality)
}

func percentComplete(p runner.Progress) float64 {
	if p.Done {
		return 1
	}
	target := ciMinSampleSize
	if p.Report.HasResampleSize {
		target = p.Report.ResampleSize
	}
	if target <= 0 {
		return 0
	}
	pct := float64(p.Report.SampleSize) / float64(target)
	if pct > 1 {
		pct = 1
	}
	return pct
}

// ciMinSampleSize mirrors ci.MinSampleSize: the pass size a report
// without a resample recommendation is measured against.
const ciMinSampleSize = 100

type teaReporter struct {
	out io.Writer
}

func newTeaReporter(out io.Writer) *teaReporter {
	return &teaReporter{out: out}
}

func (r *teaReporter) Run(updates <-chan runner.Progress) {
	bar := progress.New(progress.WithDefaultGradient())
	p := tea.NewProgram(teaModel{bar: bar}, tea.WithOutput(r.out))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			p.Send(updateMsg(u))
		}
		p.Send(closedMsg{})
	}()

	_, _ = p.Run()
	<-done
}
