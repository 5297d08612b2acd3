package benchmark

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	Idle State = iota
	Initializing
	Deploying
	Writing
	Penalizing
	ReadingFinal
	Completed
	Failed
)

var stateNames = [...]string{
	"idle", "initializing", "deploying", "writing", "penalizing", "reading", "completed", "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return errors.Errorf("unknown state %q", name)
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// ErrIllegalTransition marks an orchestration defect.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	Idle:         {Initializing},
	Initializing: {Deploying},
	Deploying:    {Writing},
	Writing:      {Penalizing},
	Penalizing:   {Deploying, Writing, ReadingFinal, Completed},
	ReadingFinal: {Completed},
}

func allowed(from, to State) bool {
	if to == Failed {
		return !from.Terminal()
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type stateMachine struct {
	mu  sync.Mutex
	cur State
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// move returns the previous state.
func (m *stateMachine) move(to State) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.cur
	if !allowed(from, to) {
		return from, errors.Wrapf(ErrIllegalTransition, "%s -> %s", from, to)
	}
	m.cur = to
	return from, nil
}
