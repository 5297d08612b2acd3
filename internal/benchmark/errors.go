package benchmark

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"breachbench/internal/ledger"
)

var (
	ErrDeployment  = ledger.ErrDeployment
	ErrTransaction = errors.New("transaction failure")
	ErrRead        = errors.New("read failure")
	ErrSink        = errors.New("sink failure")
)

// PhaseError is what Run returns when a run ends in Failed.
type PhaseError struct {
	Phase       State
	Iteration   int
	Participant int // ordinal, 0 when not participant scoped
	Kind        error
	Err         error
}

func (e *PhaseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Phase.String())
	if e.Iteration > 0 {
		fmt.Fprintf(&b, " iteration %d", e.Iteration)
	}
	if e.Participant > 0 {
		fmt.Fprintf(&b, " participant %d", e.Participant)
	}
	b.WriteString(": ")
	if e.Kind != nil && !errors.Is(e.Err, e.Kind) {
		b.WriteString(e.Kind.Error())
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *PhaseError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}
