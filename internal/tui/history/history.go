package history

import (
	"bytes"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"breachbench/internal/record"
	"breachbench/internal/report"
	"breachbench/internal/storage"
	"breachbench/internal/tui/styles"
)

// Store is the part of storage.Store the browser needs.
type Store interface {
	List(limit int) ([]storage.RunRecord, error)
	Delete(id string) error
}

type Model struct {
	Store Store
	Table table.Model
	Items []storage.RunRecord
	Err   error

	// Detail holds the rendered summary of the selected run while it is open.
	Detail string

	Width  int
	Height int
}

func NewModel(store Store) Model {
	columns := []table.Column{
		{Title: "Time", Width: 20},
		{Title: "Run", Width: 10},
		{Title: "Backend", Width: 16},
		{Title: "Outcome", Width: 10},
		{Title: "Iter", Width: 7},
		{Title: "Writes", Width: 9},
		{Title: "Duration", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := Model{
		Store: store,
		Table: t,
	}
	m.Refresh()
	return m
}

func (m *Model) Refresh() {
	items, err := m.Store.List(0)
	m.Items, m.Err = items, err

	rows := make([]table.Row, len(items))
	for i, item := range items {
		rows[i] = Row(item)
	}
	m.Table.SetRows(rows)
}

// Row is the table line of a stored run.
func Row(r storage.RunRecord) table.Row {
	id := r.ID
	if len(id) > 8 {
		id = id[:8]
	}
	backend := r.Backend
	if r.Target != "" {
		backend += "/" + r.Target
	}
	return table.Row{
		r.Timestamp.Local().Format(time.RFC822),
		id,
		backend,
		r.Summary.State.String(),
		fmt.Sprintf("%d/%d", r.Summary.Iterations, r.Config.Iterations),
		humanize.Comma(int64(r.Summary.Rows[record.WriteEvent])),
		r.Summary.Duration().Round(time.Millisecond).String(),
	}
}

func (m Model) selected() (storage.RunRecord, bool) {
	i := m.Table.Cursor()
	if i < 0 || i >= len(m.Items) {
		return storage.RunRecord{}, false
	}
	return m.Items[i], true
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
		if msg.Height > 8 {
			m.Table.SetHeight(msg.Height - 8)
		}

	case tea.KeyMsg:
		if m.Detail != "" {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "esc", "enter", "backspace":
				m.Detail = ""
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "enter":
			if rec, ok := m.selected(); ok {
				var buf bytes.Buffer
				report.PrintSummary(&buf, rec)
				m.Detail = buf.String()
			}
			return m, nil
		case "d":
			if rec, ok := m.selected(); ok {
				m.Err = m.Store.Delete(rec.ID)
				m.Refresh()
			}
			return m, nil
		case "r":
			m.Refresh()
			return m, nil
		}
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Detail != "" {
		return styles.Box.Render(m.Detail) + "\n" + styles.RenderKey("esc", "back")
	}

	out := styles.Title.Render("Run history") + "\n"
	if len(m.Items) == 0 {
		out += styles.Subtle.Render("no runs recorded yet") + "\n"
	} else {
		out += styles.Box.Render(m.Table.View()) + "\n"
	}
	if m.Err != nil {
		out += styles.Error.Render(m.Err.Error()) + "\n"
	}
	return out + lipgloss.JoinHorizontal(lipgloss.Top,
		styles.RenderKey("enter", "details"), "  ",
		styles.RenderKey("d", "delete"), "  ",
		styles.RenderKey("r", "reload"), "  ",
		styles.RenderKey("q", "quit"),
	)
}
