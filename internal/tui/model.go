// Package tui is the interactive front-end: a live dashboard for a running
// benchmark and a browser for stored runs.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"breachbench/internal/benchmark"
	"breachbench/internal/tui/live"
	"breachbench/internal/tui/styles"
)

// Result is what the run goroutine hands back to the UI.
type Result struct {
	Summary benchmark.Summary
	Err     error
}

type doneMsg Result

type Model struct {
	Orch    *benchmark.Orchestrator
	Target  string
	Live    live.Model
	Result  *Result
	Width   int
	Height  int
	Aborted bool

	cancel context.CancelFunc
	done   <-chan Result
}

// NewModel watches o. cancel stops the run when the user quits early; done
// delivers the run's outcome.
func NewModel(o *benchmark.Orchestrator, target string, cancel context.CancelFunc, done <-chan Result) Model {
	return Model{
		Orch:   o,
		Target: target,
		Live:   live.NewModel(),
		cancel: cancel,
		done:   done,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.Orch.Updates), waitForDone(m.done))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.Result == nil {
				m.Aborted = true
				m.cancel()
			}
			return m, tea.Quit
		}

	case benchmark.StatsSnapshot:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		if m.Result != nil {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForUpdate(m.Orch.Updates))

	case doneMsg:
		res := Result(msg)
		m.Result = &res
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(m.Orch.Snapshot())
		return m, cmd

	default:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("⛓  breachbench"))
	s.WriteString("\n")

	cfg := m.Orch.Cfg
	s.WriteString(fmt.Sprintf("Target: %s | Run: %s\n", m.Target, m.Orch.ID))
	s.WriteString(styles.Subtle.Render(fmt.Sprintf(
		"Iterations: %d | Pool: %d | Writes/participant: %d | Read batch: %d | Redeploy: %t",
		cfg.Iterations, cfg.PoolSize, cfg.WritesPerParticipant, cfg.ReadBatch(), cfg.Redeploy)))
	s.WriteString("\n\n")

	s.WriteString(m.Live.View())
	s.WriteString("\n\n")

	if m.Result != nil {
		if m.Result.Err != nil {
			s.WriteString(styles.Error.Render("✗ " + m.Result.Err.Error()))
		} else {
			s.WriteString(styles.Success.Render(fmt.Sprintf("✓ completed in %s", m.Result.Summary.Duration().Round(time.Millisecond))))
		}
		s.WriteString("\n")
		s.WriteString(styles.RenderKey("q", "exit"))
	} else {
		s.WriteString(styles.RenderKey("q", "abort run"))
	}
	return s.String()
}

func waitForUpdate(ch benchmark.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func waitForDone(ch <-chan Result) tea.Cmd {
	return func() tea.Msg {
		return doneMsg(<-ch)
	}
}

// Run executes o under the dashboard and returns once the run has ended and
// the user has left the screen. Quitting early cancels the run.
func Run(ctx context.Context, o *benchmark.Orchestrator, target string) (benchmark.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan Result, 1)
	final := make(chan Result, 1)
	go func() {
		sum, err := o.Run(ctx)
		res := Result{Summary: sum, Err: err}
		final <- res
		done <- res
	}()

	p := tea.NewProgram(NewModel(o, target, cancel, done), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		res := <-final
		if res.Err == nil {
			res.Err = err
		}
		return res.Summary, res.Err
	}

	res := <-final
	return res.Summary, res.Err
}
