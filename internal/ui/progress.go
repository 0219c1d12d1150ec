// ABOUTME: Bubble Tea progress view shown while a generation request is in flight
// ABOUTME: Spinner, model id and received bytes; ctrl+c cancels the request context

package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const tickInterval = 100 * time.Millisecond

// ProgressMsg reports the total bytes received so far.
type ProgressMsg struct{ Bytes int64 }

// DoneMsg ends the progress view.
type DoneMsg struct{ Err error }

type tickMsg struct{}

// ProgressModel renders the in-flight state of one or more requests.
type ProgressModel struct {
	model     string
	count     int
	bytes     int64
	frame     int
	done      bool
	cancelled bool
	err       error
	cancel    context.CancelFunc
	styles    Styles
}

// NewProgressModel returns a model for count requests to model. cancel is
// called on ctrl+c.
func NewProgressModel(model string, count int, cancel context.CancelFunc) ProgressModel {
	return ProgressModel{model: model, count: max(count, 1), cancel: cancel, styles: NewStyles()}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Init starts the spinner.
func (m ProgressModel) Init() tea.Cmd { return tick() }

// Update handles progress, completion, spinner ticks and ctrl+c.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		if msg.Bytes > m.bytes {
			m.bytes = msg.Bytes
		}
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if !m.cancelled && m.cancel != nil {
				m.cancel()
			}
			m.cancelled = true
		}
	}
	return m, nil
}

// View renders one status line; empty once done.
func (m ProgressModel) View() string {
	if m.done {
		return ""
	}
	label := "Generating"
	if m.cancelled {
		label = "Cancelling"
	}
	what := m.model
	if m.count > 1 {
		what = fmt.Sprintf("%d × %s", m.count, m.model)
	}
	return fmt.Sprintf("%s %s %s %s",
		m.styles.Accent.Render(spinnerFrames[m.frame]),
		label,
		m.styles.Accent.Render(what),
		m.styles.Dim.Render("· "+FormatBytes(m.bytes)+" received"),
	)
}

// FormatBytes renders n as B, KB or MB with one decimal.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// RunWithProgress runs work while showing the progress view on out. work
// receives a callback for byte counts and a context cancelled by ctrl+c.
// When interactive is false, work runs without any view.
func RunWithProgress(ctx context.Context, out io.Writer, interactive bool, model string, count int,
	work func(ctx context.Context, report func(int64)) error) error {
	if !interactive {
		return work(ctx, func(int64) {})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(
		NewProgressModel(model, count, cancel),
		tea.WithOutput(out),
		tea.WithContext(ctx),
	)

	errc := make(chan error, 1)
	go func() {
		err := work(ctx, func(n int64) { p.Send(ProgressMsg{Bytes: n}) })
		errc <- err
		p.Send(DoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
	}
	return <-errc
}
