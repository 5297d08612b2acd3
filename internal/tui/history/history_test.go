package history

import (
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachbench/internal/benchmark"
	"breachbench/internal/record"
	"breachbench/internal/stats"
	"breachbench/internal/storage"
)

func seededStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"11111111-old", "22222222-new"} {
		sum := benchmark.Summary{
			RunID:      id,
			Started:    base.Add(time.Duration(i) * time.Hour),
			Finished:   base.Add(time.Duration(i)*time.Hour + 1500*time.Millisecond),
			State:      benchmark.Completed,
			Iterations: 10,
			Rows:       map[record.Kind]uint64{record.WriteEvent: 1000},
		}
		require.NoError(t, s.Save(storage.NewRunRecord("sim", "fast", benchmark.DefaultConfig(), sum, stats.NewStats(), nil)))
	}
	return s
}

func key(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	if s == "esc" {
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRowsNewestFirst(t *testing.T) {
	m := NewModel(seededStore(t))
	require.Len(t, m.Items, 2)

	rows := m.Table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "22222222", rows[0][1])
	assert.Equal(t, "sim/fast", rows[0][2])
	assert.Equal(t, "completed", rows[0][3])
	assert.Equal(t, "10/10", rows[0][4])
	assert.Equal(t, "1,000", rows[0][5])
	assert.Equal(t, "1.5s", rows[0][6])
}

func TestEnterOpensDetail(t *testing.T) {
	m := NewModel(seededStore(t))

	next, _ := m.Update(key("enter"))
	hm := next.(Model)
	assert.Contains(t, hm.Detail, "22222222-new")
	assert.Contains(t, hm.View(), "BENCHMARK RESULTS")

	next, _ = hm.Update(key("esc"))
	assert.Empty(t, next.(Model).Detail)
}

func TestDeleteRemovesSelected(t *testing.T) {
	store := seededStore(t)
	m := NewModel(store)

	next, _ := m.Update(key("d"))
	hm := next.(Model)
	require.NoError(t, hm.Err)
	require.Len(t, hm.Items, 1)
	assert.Equal(t, "11111111-old", hm.Items[0].ID)

	left, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestEmptyHistory(t *testing.T) {
	s, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	m := NewModel(s)
	assert.Contains(t, m.View(), "no runs recorded yet")

	next, _ := m.Update(key("enter"))
	assert.Empty(t, next.(Model).Detail)
}
