// Package record holds the measurement data model of a benchmark run:
// operations, their outcomes, and the schema-tagged rows written to sinks.
package record

import (
	"fmt"
	"math/big"
	"time"

	"breachbench/internal/ledger"
)

// Kind tags an operation and the destination its rows go to.
type Kind int

const (
	WriteEvent Kind = iota
	ComputePenalty
	ReadState
)

var kindNames = [...]string{"write", "penalty", "read"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown operation kind %q", b)
}

// Mutating reports whether the kind submits a transaction.
func (k Kind) Mutating() bool {
	return k == WriteEvent || k == ComputePenalty
}

// Kinds lists every kind in schema order.
func Kinds() []Kind {
	return []Kind{WriteEvent, ComputePenalty, ReadState}
}

// Operation describes one call against a service handle.
type Operation struct {
	Kind        Kind
	Participant ledger.Participant
	Iteration   int
	Sequence    int       // WriteEvent only, 1-based
	Start       time.Time // latency reference; zero means "at submission"
}

// Outcome is the result of executing an Operation.
type Outcome struct {
	Op      Operation
	Cost    uint64
	Latency time.Duration
	TxHash  string

	// StoredPenalty is read back after ComputePenalty confirms.
	StoredPenalty *big.Int

	// EventCount and Penalty are the values observed by ReadState.
	EventCount *big.Int
	Penalty    *big.Int
}
