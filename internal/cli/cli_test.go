package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachbench/internal/benchmark"
	"breachbench/internal/dummy"
	"breachbench/internal/sink"
	"breachbench/internal/stats"
	"breachbench/internal/storage"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[----]", progressBar(0, 4))
	assert.Equal(t, "[██--]", progressBar(0.5, 4))
	assert.Equal(t, "[████]", progressBar(1.5, 4))
	assert.Equal(t, "[----]", progressBar(-1, 4))
}

func TestStartRunsToCompletion(t *testing.T) {
	l := dummy.New(dummy.Options{Seed: 7})
	parts, err := l.Participants(context.Background(), 2)
	require.NoError(t, err)

	cfg := benchmark.DefaultConfig()
	cfg.Iterations = 2
	cfg.ReadBatchSize = 1
	st := stats.NewStats()
	o, err := benchmark.New(cfg, l, parts, sink.NewMemorySink(), benchmark.WithStats(st), benchmark.WithRunID("cli-run"))
	require.NoError(t, err)

	var out bytes.Buffer
	sum, err := Start(context.Background(), &out, o, "sim/none")
	require.NoError(t, err)
	assert.Equal(t, benchmark.Completed, sum.State)

	text := out.String()
	assert.Contains(t, text, "STARTING BREACHBENCH RUN")
	assert.Contains(t, text, "Final read  : 1 participants")
	assert.Contains(t, text, "100%")
	assert.Contains(t, text, "W: 20 P: 4 R: 1")

	rec := storage.NewRunRecord("sim", "none", cfg, sum, st, []string{"out/breachData.csv"})
	path := filepath.Join(t.TempDir(), "summary.json")
	out.Reset()
	require.NoError(t, Finish(&out, rec, path))
	assert.Contains(t, out.String(), "BENCHMARK RESULTS")
	assert.Contains(t, out.String(), "out/breachData.csv")
	assert.FileExists(t, path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"cli-run"`)
}
