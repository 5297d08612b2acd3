package benchmark

import (
	"context"
	"sync/atomic"
	"time"

	"breachbench/internal/record"
)

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	RunID       string
	State       State
	Iteration   int
	Iterations  int
	Deployments int
	Elapsed     time.Duration

	Writes    uint64
	Penalties uint64
	Reads     uint64
	Failures  uint64
	Inflight  int64

	// Pre-calculated percentiles for the UI (cheap copy)
	P50WriteMs   float64
	P99WriteMs   float64
	P50PenaltyMs float64
	P99PenaltyMs float64
	MeanWriteGas float64
}

// Done reports whether the run has reached a terminal state.
func (s StatsSnapshot) Done() bool {
	return s.State.Terminal()
}

// Progress is the fraction of iterations finished, in [0,1].
func (s StatsSnapshot) Progress() float64 {
	if s.Iterations == 0 {
		return 0
	}
	if s.State == Completed {
		return 1
	}
	done := s.Iteration - 1
	if done < 0 {
		done = 0
	}
	return float64(done) / float64(s.Iterations)
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

// StartTickLoop starts a goroutine that pushes stats updates
func (o *Orchestrator) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.sendUpdate()
			}
		}
	}()
}

// Snapshot returns the current progress and aggregates.
func (o *Orchestrator) Snapshot() StatsSnapshot {
	w := o.Stats.Kind(record.WriteEvent)
	p := o.Stats.Kind(record.ComputePenalty)

	var elapsed time.Duration
	if started := o.startedAt(); !started.IsZero() {
		elapsed = time.Since(started)
	}

	return StatsSnapshot{
		RunID:        o.ID,
		State:        o.sm.current(),
		Iteration:    int(atomic.LoadInt64(&o.iteration)),
		Iterations:   o.Cfg.Iterations,
		Deployments:  int(atomic.LoadInt64(&o.deployments)),
		Elapsed:      elapsed,
		Writes:       atomic.LoadUint64(&o.rows[record.WriteEvent]),
		Penalties:    atomic.LoadUint64(&o.rows[record.ComputePenalty]),
		Reads:        atomic.LoadUint64(&o.rows[record.ReadState]),
		Failures:     o.Stats.Failed(),
		Inflight:     atomic.LoadInt64(&o.inflight),
		P50WriteMs:   w.LatencyMs(50),
		P99WriteMs:   w.LatencyMs(99),
		P50PenaltyMs: p.LatencyMs(50),
		P99PenaltyMs: p.LatencyMs(99),
		MeanWriteGas: w.MeanGas(),
	}
}

func (o *Orchestrator) sendUpdate() {
	s := o.Snapshot()

	// Non-blocking send
	select {
	case o.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}
