package benchmark

import (
	"sync"

	"github.com/pkg/errors"
)

var errOutOfOrder = errors.New("write submitted out of sequence")

// sequencer lets a participant's writes through one at a time, in sequence
// order. A write may only be submitted once the previous one has confirmed.
type sequencer struct {
	mu   sync.Mutex
	next int
	busy bool
}

func newSequencer() *sequencer {
	return &sequencer{next: 1}
}

func (s *sequencer) acquire(seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return errors.Wrapf(errOutOfOrder, "write %d while %d is in flight", seq, s.next)
	}
	if seq != s.next {
		return errors.Wrapf(errOutOfOrder, "got %d, want %d", seq, s.next)
	}
	s.busy = true
	return nil
}

// release marks the in-flight write done; the next sequence index becomes
// eligible.
func (s *sequencer) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.next++
}
