package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return len(recs) - 1
}

func TestRunSimEndToEnd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")

	out, err := execute(t, "run",
		"--backend", "sim", "--profile", "none", "--seed", "3",
		"--iterations", "2", "--pool", "2", "--writes", "3", "--read-batch", "5",
		"--out-dir", dir, "--history-db", db, "--summary", "--log-level", "error",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "BENCHMARK RESULTS")
	assert.Contains(t, out, "Outcome        : completed")

	assert.Equal(t, 12, countRows(t, filepath.Join(dir, "breachData.csv")))
	assert.Equal(t, 4, countRows(t, filepath.Join(dir, "penaltyData.csv")))
	assert.Equal(t, 2, countRows(t, filepath.Join(dir, "readData.csv")))
	assert.FileExists(t, filepath.Join(dir, "summary.json"))

	out, err = execute(t, "history", "--history-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 run(s)")
	assert.Contains(t, out, "sim/none")

	out, err = execute(t, "histogram", "--file", filepath.Join(dir, "breachData.csv"), "--column", "Cost", "--iteration", "1", "--bins", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Cost  (n = 6)")
}

func TestRunRejectsBadInput(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	_, err := execute(t, "run", "--backend", "bogus", "--out-dir", dir, "--no-history", "--pool", "2", "--iterations", "1")
	assert.ErrorContains(t, err, "unknown backend")

	_, err = execute(t, "run", "--backend", "sim", "--pool", "0", "--out-dir", dir, "--no-history")
	assert.ErrorContains(t, err, "pool size")
}

func TestLogFileClosedAfterFailedRun(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	logPath := filepath.Join(dir, "bench.log")
	t.Cleanup(func() {
		pf := rootCmd.PersistentFlags()
		pf.Set("log-file", "")
		pf.Set("log-level", "warn")
	})

	_, err := execute(t, "run", "--backend", "bogus", "--out-dir", dir, "--no-history",
		"--log-file", logPath, "--log-level", "debug")
	require.ErrorContains(t, err, "unknown backend")
	assert.Nil(t, logFile)

	// the standard logger leaves the file once it is closed
	logrus.Info("after the run")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "after the run")

	// a second run reopens the file and closes it again
	_, err = execute(t, "run", "--backend", "bogus", "--out-dir", dir, "--no-history", "--log-file", logPath)
	require.Error(t, err)
	assert.Nil(t, logFile)
}

func TestSimListsProfiles(t *testing.T) {
	out, err := execute(t, "sim")
	require.NoError(t, err)
	assert.Contains(t, out, "spike")
	assert.Contains(t, out, "none")
}
