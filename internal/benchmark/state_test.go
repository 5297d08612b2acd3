package benchmark

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachbench/internal/ledger"
)

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{Idle, Initializing, true},
		{Idle, Writing, false},
		{Initializing, Deploying, true},
		{Initializing, Writing, false},
		{Deploying, Writing, true},
		{Writing, Penalizing, true},
		{Writing, Deploying, false},
		{Penalizing, Deploying, true},
		{Penalizing, Writing, true},
		{Penalizing, ReadingFinal, true},
		{Penalizing, Completed, true},
		{ReadingFinal, Completed, true},
		{ReadingFinal, Writing, false},
		{Writing, Failed, true},
		{Idle, Failed, true},
		{Completed, Failed, false},
		{Failed, Idle, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, allowed(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStateMachineRejectsIllegalMove(t *testing.T) {
	var m stateMachine
	_, err := m.move(Writing)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, Idle, m.current())

	from, err := m.move(Initializing)
	require.NoError(t, err)
	assert.Equal(t, Idle, from)
}

func TestStateJSON(t *testing.T) {
	b, err := json.Marshal(Penalizing)
	require.NoError(t, err)
	assert.Equal(t, `"penalizing"`, string(b))

	var s State
	require.NoError(t, json.Unmarshal(b, &s))
	assert.Equal(t, Penalizing, s)
	assert.Error(t, json.Unmarshal([]byte(`"warp"`), &s))
}

func TestSequencer(t *testing.T) {
	s := newSequencer()

	require.NoError(t, s.acquire(1))
	assert.Error(t, s.acquire(2), "overlapping write")
	s.release()

	assert.Error(t, s.acquire(3), "skipped index")
	require.NoError(t, s.acquire(2))
	s.release()
}

func TestPhaseError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&PhaseError{Phase: Writing, Iteration: 2, Participant: 3, Kind: ErrTransaction, Err: cause})

	assert.True(t, errors.Is(err, ErrTransaction))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrRead))
	assert.Equal(t, "writing iteration 2 participant 3: transaction failure: boom", err.Error())

	dep := &PhaseError{Phase: Deploying, Iteration: 1, Kind: ErrDeployment, Err: errors.Wrap(ledger.ErrDeployment, "out of gas")}
	assert.Equal(t, "deploying iteration 1: out of gas: deployment failure", dep.Error())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.Iterations = 0 },
		func(c *Config) { c.PoolSize = 0 },
		func(c *Config) { c.WritesPerParticipant = 0 },
		func(c *Config) { c.ReadBatchSize = -1 },
		func(c *Config) { c.MaxSubmissionsPerSec = -1 },
	}
	for _, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		err := c.Validate()
		require.Error(t, err)
		var traced interface{ StackTrace() errors.StackTrace }
		assert.True(t, errors.As(err, &traced), "validation errors carry a stack trace")
	}

	c := DefaultConfig()
	c.ReadBatchSize = 7
	assert.Equal(t, c.PoolSize, c.ReadBatch())
}
