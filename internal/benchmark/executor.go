package benchmark

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"breachbench/internal/ledger"
	"breachbench/internal/record"
)

// Executor performs a single operation against a handle and measures it.
// It never retries.
type Executor struct {
	Magnitude   int64
	CallTimeout time.Duration

	limiter *rate.Limiter
	now     func() time.Time
}

func NewExecutor(cfg Config) *Executor {
	e := &Executor{
		Magnitude:   cfg.Magnitude,
		CallTimeout: cfg.CallTimeout,
		now:         time.Now,
	}
	if cfg.MaxSubmissionsPerSec > 0 {
		burst := int(cfg.MaxSubmissionsPerSec)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.MaxSubmissionsPerSec), burst)
	}
	return e
}

// Execute runs op. Mutating failures match ErrTransaction and read failures
// match ErrRead.
func (e *Executor) Execute(ctx context.Context, h ledger.Handle, op record.Operation) (record.Outcome, error) {
	if e.limiter != nil && op.Kind.Mutating() {
		if err := e.limiter.Wait(ctx); err != nil {
			return record.Outcome{Op: op}, errors.Wrap(err, "submission throttle")
		}
	}

	if e.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.CallTimeout)
		defer cancel()
	}

	switch op.Kind {
	case record.WriteEvent:
		return e.writeEvent(ctx, h, op)
	case record.ComputePenalty:
		return e.computePenalty(ctx, h, op)
	case record.ReadState:
		return e.readState(ctx, h, op)
	}
	return record.Outcome{Op: op}, errors.Errorf("unknown operation kind %d", op.Kind)
}

func (e *Executor) writeEvent(ctx context.Context, h ledger.Handle, op record.Operation) (record.Outcome, error) {
	out := record.Outcome{Op: op}
	start := op.Start
	if start.IsZero() {
		start = e.now()
	}

	rec, err := h.WriteEvent(ctx, op.Participant, e.Magnitude)
	if err := confirmed(rec, err); err != nil {
		return out, errors.Wrapf(err, "write %d", op.Sequence)
	}
	out.Cost, out.TxHash = rec.Cost, rec.TxHash
	out.Latency, err = e.since(start, ErrTransaction)
	return out, err
}

func (e *Executor) computePenalty(ctx context.Context, h ledger.Handle, op record.Operation) (record.Outcome, error) {
	out := record.Outcome{Op: op}
	start := e.now()

	rec, err := h.ComputePenalty(ctx, op.Participant)
	if err := confirmed(rec, err); err != nil {
		return out, errors.Wrap(err, "compute penalty")
	}
	out.Cost, out.TxHash = rec.Cost, rec.TxHash
	if out.Latency, err = e.since(start, ErrTransaction); err != nil {
		return out, err
	}

	stored, err := h.ReadPenalty(ctx, op.Participant)
	if err != nil {
		return out, errors.Wrap(markRead(err), "read back penalty")
	}
	out.StoredPenalty = stored
	return out, nil
}

func (e *Executor) readState(ctx context.Context, h ledger.Handle, op record.Operation) (record.Outcome, error) {
	out := record.Outcome{Op: op}
	start := e.now()

	events, err := h.ReadEventCount(ctx, op.Participant)
	if err != nil {
		return out, errors.Wrap(markRead(err), "read event count")
	}
	penalty, err := h.ReadPenalty(ctx, op.Participant)
	if err != nil {
		return out, errors.Wrap(markRead(err), "read penalty")
	}
	out.EventCount, out.Penalty = events, penalty
	out.Latency, err = e.since(start, ErrRead)
	return out, err
}

func (e *Executor) since(start time.Time, kind error) (time.Duration, error) {
	d := e.now().Sub(start)
	if d < 0 {
		return 0, errors.Wrapf(kind, "clock went backwards by %s", -d)
	}
	return d, nil
}

func confirmed(rec ledger.Receipt, err error) error {
	if err != nil {
		return &kindError{kind: ErrTransaction, err: err}
	}
	if !rec.Confirmed {
		return errors.Wrapf(ErrTransaction, "transaction %s not confirmed", rec.TxHash)
	}
	return nil
}

func markRead(err error) error {
	return &kindError{kind: ErrRead, err: err}
}

// kindError tags an adapter error with a failure kind while keeping the
// original cause reachable.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.err}
}
