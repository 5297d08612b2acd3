// Package benchmark drives a ledger service through repeated iterations of
// deploy, write and penalize phases over a pool of participants, and
// streams every measured call to a sink.
package benchmark

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"breachbench/internal/ledger"
	"breachbench/internal/record"
	"breachbench/internal/sink"
	"breachbench/internal/stats"
)

type Orchestrator struct {
	Cfg     Config
	ID      string
	Stats   *stats.Stats
	Updates StatsUpdateChan

	deployer     ledger.Deployer
	participants []ledger.Participant
	sink         sink.Sink
	exec         *Executor
	log          logrus.FieldLogger
	observers    []Observer

	sm          stateMachine
	iteration   int64
	completed   int64
	deployments int64
	inflight    int64
	rows        [3]uint64

	mu      sync.Mutex
	started time.Time
	abort   context.CancelFunc
	cause   error
}

type Option func(*Orchestrator)

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithObserver(obs ...Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs...) }
}

func WithUpdates(ch StatsUpdateChan) Option {
	return func(o *Orchestrator) { o.Updates = ch }
}

func WithStats(s *stats.Stats) Option {
	return func(o *Orchestrator) { o.Stats = s }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.ID = id }
}

// New prepares a run over the first cfg.PoolSize participants.
func New(cfg Config, deployer ledger.Deployer, participants []ledger.Participant, s sink.Sink, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deployer == nil {
		return nil, errors.New("no deployer")
	}
	if s == nil {
		return nil, errors.New("no sink")
	}
	if len(participants) < cfg.PoolSize {
		return nil, errors.Errorf("pool size %d but only %d participants", cfg.PoolSize, len(participants))
	}
	pool := append([]ledger.Participant(nil), participants[:cfg.PoolSize]...)
	seen := make(map[int]bool, len(pool))
	for _, p := range pool {
		if p.Ordinal < 1 || seen[p.Ordinal] {
			return nil, errors.Errorf("invalid participant ordinal %d", p.Ordinal)
		}
		seen[p.Ordinal] = true
	}

	o := &Orchestrator{
		Cfg:          cfg,
		ID:           uuid.New().String(),
		deployer:     deployer,
		participants: pool,
		sink:         s,
		exec:         NewExecutor(cfg),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Stats == nil {
		o.Stats = stats.NewStats()
	}
	if o.Updates == nil {
		// Avoid nil panics if not provided
		o.Updates = make(StatsUpdateChan, 10)
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	o.log = o.log.WithField("run", o.ID)
	return o, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.sm.current()
}

// Participants returns the pool this run drives.
func (o *Orchestrator) Participants() []ledger.Participant {
	return append([]ledger.Participant(nil), o.participants...)
}

// Run executes the whole benchmark. On failure the returned error is a
// *PhaseError and the run ends in Failed; rows already appended stay.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if err := o.transition(Initializing); err != nil {
		return o.summary(err), err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	o.started = time.Now()
	o.abort = cancel
	o.mu.Unlock()

	o.StartTickLoop(ctx, 200*time.Millisecond)

	err := o.run(ctx)
	if err != nil {
		o.fail(err)
	}
	o.sendUpdate()
	return o.summary(err), err
}

func (o *Orchestrator) run(ctx context.Context) error {
	readBatch := o.Cfg.ReadBatch()
	if err := o.sink.Initialize(record.Schemas(readBatch > 0)...); err != nil {
		return &PhaseError{Phase: Initializing, Kind: ErrSink, Err: err}
	}
	if o.Cfg.ReadBatchSize > o.Cfg.PoolSize {
		o.log.Warnf("read batch size %d exceeds pool size %d, reading %d participants",
			o.Cfg.ReadBatchSize, o.Cfg.PoolSize, readBatch)
	}

	var h ledger.Handle
	defer func() { o.retire(h) }()

	for it := 1; it <= o.Cfg.Iterations; it++ {
		atomic.StoreInt64(&o.iteration, int64(it))

		if h == nil || o.Cfg.Redeploy {
			if err := o.transition(Deploying); err != nil {
				return err
			}
			next, err := o.deploy(ctx, it)
			if err != nil {
				return err
			}
			o.retire(h)
			h = next
		}

		if err := o.transition(Writing); err != nil {
			return err
		}
		if err := o.runPhase(ctx, Writing, it, o.participants, func(ctx context.Context, p ledger.Participant) error {
			return o.writeBatch(ctx, h, it, p)
		}); err != nil {
			return err
		}

		if err := o.transition(Penalizing); err != nil {
			return err
		}
		if err := o.runPhase(ctx, Penalizing, it, o.participants, func(ctx context.Context, p ledger.Participant) error {
			return o.penalize(ctx, h, it, p)
		}); err != nil {
			return err
		}

		atomic.StoreInt64(&o.completed, int64(it))
		o.log.WithField("iteration", it).Info("iteration complete")
	}

	if readBatch > 0 {
		if err := o.transition(ReadingFinal); err != nil {
			return err
		}
		last := o.Cfg.Iterations
		if err := o.runPhase(ctx, ReadingFinal, last, o.participants[:readBatch], func(ctx context.Context, p ledger.Participant) error {
			return o.readState(ctx, h, last, p)
		}); err != nil {
			return err
		}
	}

	return o.transition(Completed)
}

// runPhase runs fn for every participant concurrently and waits for all of
// them. A failing participant does not interrupt its siblings; the first
// error is returned once the phase has drained.
func (o *Orchestrator) runPhase(ctx context.Context, phase State, it int, parts []ledger.Participant, fn func(context.Context, ledger.Participant) error) error {
	if err := ctx.Err(); err != nil {
		return &PhaseError{Phase: phase, Iteration: it, Err: err}
	}

	var g errgroup.Group
	g.SetLimit(o.Cfg.PoolSize)
	for _, p := range parts {
		g.Go(func() error { return fn(ctx, p) })
	}
	err := g.Wait()
	if cause := o.abortCause(); cause != nil {
		return cause
	}
	return err
}

func (o *Orchestrator) deploy(ctx context.Context, it int) (ledger.Handle, error) {
	start := time.Now()
	h, err := o.deployer.Acquire(ctx)
	if err != nil {
		kind := ErrDeployment
		if ctx.Err() != nil {
			kind = nil
		}
		return nil, &PhaseError{Phase: Deploying, Iteration: it, Kind: kind, Err: err}
	}
	atomic.AddInt64(&o.deployments, 1)
	o.log.WithFields(logrus.Fields{
		"iteration": it,
		"address":   h.Address(),
		"latency":   time.Since(start).Round(time.Millisecond),
	}).Info("service deployed")
	return h, nil
}

// retire closes a handle that is no longer used, if it supports closing.
func (o *Orchestrator) retire(h ledger.Handle) {
	if h == nil {
		return
	}
	if c, ok := h.(io.Closer); ok {
		if err := c.Close(); err != nil {
			o.log.WithError(err).WithField("address", h.Address()).Warn("failed to retire service handle")
		}
	}
}

func (o *Orchestrator) writeBatch(ctx context.Context, h ledger.Handle, it int, p ledger.Participant) error {
	k := o.Cfg.WritesPerParticipant
	seq := newSequencer()
	start := time.Now()

	for i := 1; i <= k; i++ {
		if err := ctx.Err(); err != nil {
			return &PhaseError{Phase: Writing, Iteration: it, Participant: p.Ordinal, Err: err}
		}
		op := record.Operation{
			Kind:        record.WriteEvent,
			Participant: p,
			Iteration:   it,
			Sequence:    i,
			Start:       start,
		}
		if err := seq.acquire(i); err != nil {
			return &PhaseError{Phase: Writing, Iteration: it, Participant: p.Ordinal, Err: err}
		}
		out, err := o.execute(ctx, h, op)
		seq.release()
		if err != nil {
			return o.failed(Writing, op, err)
		}
		if err := o.emit(Writing, out, len(o.participants)); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) penalize(ctx context.Context, h ledger.Handle, it int, p ledger.Participant) error {
	op := record.Operation{Kind: record.ComputePenalty, Participant: p, Iteration: it}
	out, err := o.execute(ctx, h, op)
	if err != nil {
		return o.failed(Penalizing, op, err)
	}
	return o.emit(Penalizing, out, len(o.participants))
}

func (o *Orchestrator) readState(ctx context.Context, h ledger.Handle, it int, p ledger.Participant) error {
	op := record.Operation{Kind: record.ReadState, Participant: p, Iteration: it}
	out, err := o.execute(ctx, h, op)
	if err != nil {
		return o.failed(ReadingFinal, op, err)
	}
	return o.emit(ReadingFinal, out, o.Cfg.ReadBatch())
}

func (o *Orchestrator) execute(ctx context.Context, h ledger.Handle, op record.Operation) (record.Outcome, error) {
	atomic.AddInt64(&o.inflight, 1)
	defer atomic.AddInt64(&o.inflight, -1)
	return o.exec.Execute(ctx, h, op)
}

// emit records an outcome and appends it to the sink. batch is the number
// of participants taking part in the phase.
func (o *Orchestrator) emit(phase State, out record.Outcome, batch int) error {
	op := out.Op
	row, err := record.Record(out, record.Context{Iteration: op.Iteration, Participant: op.Participant, BatchSize: batch})
	if err != nil {
		return o.abortRun(&PhaseError{Phase: phase, Iteration: op.Iteration, Participant: op.Participant.Ordinal, Kind: record.ErrMalformed, Err: err})
	}
	if err := o.sink.Append(row); err != nil {
		return o.abortRun(&PhaseError{Phase: phase, Iteration: op.Iteration, Participant: op.Participant.Ordinal, Kind: ErrSink, Err: err})
	}

	atomic.AddUint64(&o.rows[op.Kind], 1)
	o.Stats.Add(out)
	for _, obs := range o.observers {
		obs.OperationCompleted(out)
	}

	entry := o.log.WithFields(logrus.Fields{
		"phase":       phase.String(),
		"iteration":   op.Iteration,
		"participant": op.Participant.Ordinal,
		"latency":     out.Latency,
	})
	switch op.Kind {
	case record.WriteEvent:
		entry.WithFields(logrus.Fields{"seq": op.Sequence, "gas": out.Cost, "tx": out.TxHash}).Debug("event registered")
	case record.ComputePenalty:
		entry.WithFields(logrus.Fields{"gas": out.Cost, "penalty": out.StoredPenalty}).Debug("penalty computed")
	case record.ReadState:
		entry.WithFields(logrus.Fields{"events": out.EventCount, "penalty": out.Penalty}).Debug("state read")
	}
	return nil
}

func (o *Orchestrator) failed(phase State, op record.Operation, err error) error {
	o.Stats.AddFailure(op.Kind)
	for _, obs := range o.observers {
		obs.OperationFailed(op, err)
	}

	var kind error
	switch {
	case errors.Is(err, ErrTransaction):
		kind = ErrTransaction
	case errors.Is(err, ErrRead):
		kind = ErrRead
	}
	o.log.WithError(err).WithFields(logrus.Fields{
		"phase":       phase.String(),
		"iteration":   op.Iteration,
		"participant": op.Participant.Ordinal,
	}).Warn("operation failed")
	return &PhaseError{Phase: phase, Iteration: op.Iteration, Participant: op.Participant.Ordinal, Kind: kind, Err: err}
}

// abortRun stops every participant of the run. The first cause wins and is
// what the phase reports, not the cancellations it triggers.
func (o *Orchestrator) abortRun(cause error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cause == nil {
		o.cause = cause
	}
	if o.abort != nil {
		o.abort()
	}
	return cause
}

func (o *Orchestrator) abortCause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cause
}

func (o *Orchestrator) transition(to State) error {
	from, err := o.sm.move(to)
	if err != nil {
		return err
	}
	it := int(atomic.LoadInt64(&o.iteration))
	for _, obs := range o.observers {
		obs.StateChanged(from, to, it)
	}
	o.log.WithFields(logrus.Fields{"phase": to.String(), "iteration": it}).Info("state changed")
	return nil
}

func (o *Orchestrator) fail(cause error) {
	from, err := o.sm.move(Failed)
	if err != nil {
		return
	}
	it := int(atomic.LoadInt64(&o.iteration))
	for _, obs := range o.observers {
		obs.StateChanged(from, Failed, it)
	}
	o.log.WithError(cause).WithField("iteration", it).Error("benchmark failed")
}

func (o *Orchestrator) startedAt() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started
}

func (o *Orchestrator) summary(err error) Summary {
	s := Summary{
		RunID:       o.ID,
		Started:     o.startedAt(),
		Finished:    time.Now(),
		State:       o.sm.current(),
		Iterations:  int(atomic.LoadInt64(&o.completed)),
		Deployments: int(atomic.LoadInt64(&o.deployments)),
		Rows:        make(map[record.Kind]uint64, len(o.rows)),
	}
	for _, k := range record.Kinds() {
		s.Rows[k] = atomic.LoadUint64(&o.rows[k])
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}
