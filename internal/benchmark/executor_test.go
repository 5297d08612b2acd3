package benchmark

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachbench/internal/ledger"
	"breachbench/internal/record"
)

// fakeClock advances by step on every reading.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

type stubHandle struct {
	receipt    ledger.Receipt
	writeErr   error
	readErr    error
	penalty    *big.Int
	events     *big.Int
	sawTimeout bool
}

func (s *stubHandle) Address() string { return "0xstub" }

func (s *stubHandle) WriteEvent(ctx context.Context, _ ledger.Participant, _ int64) (ledger.Receipt, error) {
	_, s.sawTimeout = ctx.Deadline()
	return s.receipt, s.writeErr
}

func (s *stubHandle) ComputePenalty(context.Context, ledger.Participant) (ledger.Receipt, error) {
	return s.receipt, s.writeErr
}

func (s *stubHandle) ReadPenalty(context.Context, ledger.Participant) (*big.Int, error) {
	return s.penalty, s.readErr
}

func (s *stubHandle) ReadEventCount(context.Context, ledger.Participant) (*big.Int, error) {
	return s.events, s.readErr
}

var bob = ledger.Participant{Ordinal: 2, Identity: "0xb0b"}

func newTestExecutor(cfg Config, clock *fakeClock) *Executor {
	e := NewExecutor(cfg)
	e.now = clock.now
	return e
}

func TestWriteLatencyFromBatchStart(t *testing.T) {
	base := time.Unix(1000, 0)
	clock := &fakeClock{t: base, step: 10 * time.Millisecond}
	e := newTestExecutor(DefaultConfig(), clock)
	h := &stubHandle{receipt: ledger.Receipt{Cost: 45000, TxHash: "0x1", Confirmed: true}}

	op := record.Operation{Kind: record.WriteEvent, Participant: bob, Iteration: 1, Sequence: 3, Start: base.Add(-time.Second)}
	out, err := e.Execute(context.Background(), h, op)
	require.NoError(t, err)

	assert.Equal(t, time.Second+10*time.Millisecond, out.Latency)
	assert.EqualValues(t, 45000, out.Cost)
	assert.Equal(t, "0x1", out.TxHash)
}

func TestPenaltyReadBackExcludedFromLatency(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 5 * time.Millisecond}
	e := newTestExecutor(DefaultConfig(), clock)
	h := &stubHandle{
		receipt: ledger.Receipt{Cost: 30000, Confirmed: true},
		penalty: big.NewInt(12),
	}

	out, err := e.Execute(context.Background(), h, record.Operation{Kind: record.ComputePenalty, Participant: bob, Iteration: 1})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Millisecond, out.Latency)
	assert.Equal(t, big.NewInt(12), out.StoredPenalty)
}

func TestReadState(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: time.Millisecond}
	e := newTestExecutor(DefaultConfig(), clock)
	h := &stubHandle{events: big.NewInt(4), penalty: big.NewInt(16)}

	out, err := e.Execute(context.Background(), h, record.Operation{Kind: record.ReadState, Participant: bob, Iteration: 2})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4), out.EventCount)
	assert.Equal(t, big.NewInt(16), out.Penalty)
	assert.Zero(t, out.Cost)
}

func TestExecutorErrorKinds(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		kind record.Kind
		h    *stubHandle
		want error
	}{
		{
			name: "write rejected",
			kind: record.WriteEvent,
			h:    &stubHandle{writeErr: cause},
			want: ErrTransaction,
		},
		{
			name: "write reverted",
			kind: record.WriteEvent,
			h:    &stubHandle{receipt: ledger.Receipt{TxHash: "0xdead"}},
			want: ErrTransaction,
		},
		{
			name: "penalty rejected",
			kind: record.ComputePenalty,
			h:    &stubHandle{writeErr: cause},
			want: ErrTransaction,
		},
		{
			name: "penalty read back",
			kind: record.ComputePenalty,
			h:    &stubHandle{receipt: ledger.Receipt{Confirmed: true}, readErr: cause},
			want: ErrRead,
		},
		{
			name: "state read",
			kind: record.ReadState,
			h:    &stubHandle{readErr: cause},
			want: ErrRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor(DefaultConfig())
			op := record.Operation{Kind: tt.kind, Participant: bob, Iteration: 1, Sequence: 1}
			_, err := e.Execute(context.Background(), tt.h, op)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestNegativeLatencyIsAnError(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0), step: -time.Second}
	e := newTestExecutor(DefaultConfig(), clock)
	h := &stubHandle{receipt: ledger.Receipt{Confirmed: true}}

	_, err := e.Execute(context.Background(), h, record.Operation{Kind: record.ComputePenalty, Participant: bob, Iteration: 1})
	assert.True(t, errors.Is(err, ErrTransaction))
}

func TestCallTimeout(t *testing.T) {
	cfg := DefaultConfig()
	e := NewExecutor(cfg)
	h := &stubHandle{receipt: ledger.Receipt{Confirmed: true}}
	op := record.Operation{Kind: record.WriteEvent, Participant: bob, Iteration: 1, Sequence: 1}

	_, err := e.Execute(context.Background(), h, op)
	require.NoError(t, err)
	assert.False(t, h.sawTimeout)

	cfg.CallTimeout = time.Second
	_, err = NewExecutor(cfg).Execute(context.Background(), h, op)
	require.NoError(t, err)
	assert.True(t, h.sawTimeout)
}

func TestSubmissionThrottle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSubmissionsPerSec = 20
	e := NewExecutor(cfg)
	h := &stubHandle{receipt: ledger.Receipt{Confirmed: true}}

	start := time.Now()
	for i := 1; i <= 30; i++ {
		op := record.Operation{Kind: record.WriteEvent, Participant: bob, Iteration: 1, Sequence: i}
		_, err := e.Execute(context.Background(), h, op)
		require.NoError(t, err)
	}
	// burst of 20, the remaining 10 at 20/s
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}
