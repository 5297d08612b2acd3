package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"breachbench/internal/benchmark"
	"breachbench/internal/tui/components"
	"breachbench/internal/tui/styles"
)

// Model renders the progress of a running benchmark from its snapshots.
type Model struct {
	Stats    benchmark.StatsSnapshot
	Progress progress.Model

	OpsLine     components.Sparkline
	LatencyLine components.Sparkline

	LastElapsed time.Duration
	LastOps     uint64

	Width  int
	Height int
}

func NewModel() Model {
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		OpsLine:     components.NewSparkline(40, "Calls / s", styles.Active),
		LatencyLine: components.NewSparkline(40, "Write P99 (ms)", styles.Warn),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case benchmark.StatsSnapshot:
		ops := msg.Writes + msg.Penalties + msg.Reads + msg.Failures

		// snapshots carry the run clock, so the rate does not drift with UI lag
		dt := (msg.Elapsed - m.LastElapsed).Seconds()
		if dt > 0.01 && ops >= m.LastOps {
			m.OpsLine.Add(float64(ops-m.LastOps) / dt)
			m.LatencyLine.Add(msg.P99WriteMs)
			m.LastElapsed = msg.Elapsed
			m.LastOps = ops
		}

		m.Stats = msg
		return m, m.Progress.SetPercent(msg.Progress())

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.OpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}
	st := m.Stats

	phase := styles.ForState(st.State).Render(strings.ToUpper(st.State.String()))
	col1 := fmt.Sprintf("ITER:   %d / %d\nPHASE:  %s\nDEPLOY: %d",
		st.Iteration, st.Iterations, phase, st.Deployments)
	col2 := fmt.Sprintf("WRITES:    %s\nPENALTIES: %s\nREADS:     %s",
		humanize.Comma(int64(st.Writes)), humanize.Comma(int64(st.Penalties)), humanize.Comma(int64(st.Reads)))

	failStyle := styles.Active
	if st.Failures > 0 {
		failStyle = styles.Error
	}
	col3 := fmt.Sprintf("FAIL: %s\nINF:  %d\nTIME: %s",
		failStyle.Render(humanize.Comma(int64(st.Failures))), st.Inflight, st.Elapsed.Round(time.Second))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.OpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"Write P50: %.2f ms  P99: %.2f ms  |  Penalty P50: %.2f ms  P99: %.2f ms  |  Gas/write: %s",
		st.P50WriteMs, st.P99WriteMs,
		st.P50PenaltyMs, st.P99PenaltyMs,
		humanize.Comma(int64(st.MeanWriteGas)),
	)
	box := styles.Box
	if m.Width > 4 {
		box = box.Width(m.Width - 4)
	}
	s.WriteString(box.Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())

	return s.String()
}
