package storage

import (
	"time"

	"breachbench/internal/benchmark"
	"breachbench/internal/stats"
)

// RunRecord is what is kept of one benchmark run.
type RunRecord struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Backend   string            `json:"backend"`
	Target    string            `json:"target,omitempty"`
	Config    benchmark.Config  `json:"config"`
	Summary   benchmark.Summary `json:"summary"`
	Kinds     []stats.Summary   `json:"kinds"`
	Outputs   []string          `json:"outputs,omitempty"`
}

// Succeeded reports whether the run completed.
func (r RunRecord) Succeeded() bool {
	return r.Summary.State == benchmark.Completed
}

// NewRunRecord assembles the record of a finished run.
func NewRunRecord(backend, target string, cfg benchmark.Config, sum benchmark.Summary, st *stats.Stats, outputs []string) RunRecord {
	ts := sum.Started
	if ts.IsZero() {
		ts = time.Now()
	}
	return RunRecord{
		ID:        sum.RunID,
		Timestamp: ts,
		Backend:   backend,
		Target:    target,
		Config:    cfg,
		Summary:   sum,
		Kinds:     st.Summaries(),
		Outputs:   outputs,
	}
}
