package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachbench/internal/record"
)

func writeRow(iter, ordinal, seq int) record.Row {
	return record.Row{
		Kind:      record.WriteEvent,
		Iteration: iter,
		Ordinal:   ordinal,
		Identity:  "0x" + strconv.Itoa(ordinal),
		BatchSize: 5,
		Fields:    []string{strconv.Itoa(seq), "21000", "0.010"},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir, nil)
	require.NoError(t, s.Initialize(record.Schemas(false)...))

	require.NoError(t, s.Append(writeRow(1, 1, 1)))
	require.NoError(t, s.Append(writeRow(1, 1, 2)))
	require.NoError(t, s.Close())

	recs := readCSV(t, filepath.Join(dir, "breachData.csv"))
	require.Len(t, recs, 3)
	assert.Equal(t, record.WriteSchema.Columns, recs[0])
	assert.Equal(t, []string{"1", "1", "0x1", "5", "2", "21000", "0.010"}, recs[2])

	penalty := readCSV(t, filepath.Join(dir, "penaltyData.csv"))
	assert.Equal(t, [][]string{record.PenaltySchema.Columns}, penalty)

	_, err := os.Stat(filepath.Join(dir, "readData.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestCSVSinkRowsVisibleBeforeClose(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir, nil)
	require.NoError(t, s.Initialize(record.WriteSchema))
	defer s.Close()

	require.NoError(t, s.Append(writeRow(1, 1, 1)))
	assert.Len(t, readCSV(t, s.Path(record.WriteEvent)), 2)
}

func TestCSVSinkReinitializeDiscardsPrevious(t *testing.T) {
	dir := t.TempDir()

	first := NewCSVSink(dir, nil)
	require.NoError(t, first.Initialize(record.WriteSchema))
	for i := 1; i <= 3; i++ {
		require.NoError(t, first.Append(writeRow(1, 1, i)))
	}
	require.NoError(t, first.Close())

	second := NewCSVSink(dir, nil)
	require.NoError(t, second.Initialize(record.WriteSchema))
	require.NoError(t, second.Close())

	assert.Equal(t, [][]string{record.WriteSchema.Columns}, readCSV(t, second.Path(record.WriteEvent)))
}

func TestCSVSinkSecondInitializeFails(t *testing.T) {
	s := NewCSVSink(t.TempDir(), nil)
	require.NoError(t, s.Initialize(record.WriteSchema))
	defer s.Close()

	err := s.Initialize(record.WriteSchema)
	assert.True(t, errors.Is(err, ErrAlreadyInitialized))
}

func TestCSVSinkAppendWithoutDestination(t *testing.T) {
	s := NewCSVSink(t.TempDir(), nil)
	require.NoError(t, s.Initialize(record.WriteSchema))
	defer s.Close()

	err := s.Append(record.Row{Kind: record.ReadState, Iteration: 1, Ordinal: 1})
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestCSVSinkCustomNames(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir, map[record.Kind]string{record.WriteEvent: "writes.csv"})
	assert.Equal(t, filepath.Join(dir, "writes.csv"), s.Path(record.WriteEvent))
	assert.Equal(t, filepath.Join(dir, "penaltyData.csv"), s.Path(record.ComputePenalty))
}

func TestCSVSinkConcurrentAppends(t *testing.T) {
	s := NewCSVSink(t.TempDir(), nil)
	require.NoError(t, s.Initialize(record.WriteSchema))

	var wg sync.WaitGroup
	for p := 1; p <= 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 1; i <= 25; i++ {
				assert.NoError(t, s.Append(writeRow(1, p, i)))
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, s.Close())

	recs := readCSV(t, s.Path(record.WriteEvent))
	require.Len(t, recs, 1+8*25)
	for _, r := range recs[1:] {
		assert.Len(t, r, len(record.WriteSchema.Columns))
	}
}

func TestMemorySink(t *testing.T) {
	m := NewMemorySink()
	require.NoError(t, m.Initialize(record.Schemas(true)...))

	require.NoError(t, m.Append(writeRow(1, 2, 1)))
	assert.Len(t, m.Rows(record.WriteEvent), 1)
	assert.Equal(t, record.ReadSchema.Columns, m.Header(record.ReadState))
	assert.True(t, errors.Is(m.Initialize(), ErrAlreadyInitialized))

	m.FailAfter = 1
	assert.Error(t, m.Append(writeRow(1, 2, 2)))
}
