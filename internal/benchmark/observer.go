package benchmark

import (
	"breachbench/internal/record"
)

// Observer is notified of lifecycle and per-call events. OperationCompleted
// and OperationFailed are called concurrently from participant goroutines.
type Observer interface {
	StateChanged(from, to State, iteration int)
	OperationCompleted(o record.Outcome)
	OperationFailed(op record.Operation, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnState     func(from, to State, iteration int)
	OnCompleted func(o record.Outcome)
	OnFailed    func(op record.Operation, err error)
}

func (f ObserverFuncs) StateChanged(from, to State, iteration int) {
	if f.OnState != nil {
		f.OnState(from, to, iteration)
	}
}

func (f ObserverFuncs) OperationCompleted(o record.Outcome) {
	if f.OnCompleted != nil {
		f.OnCompleted(o)
	}
}

func (f ObserverFuncs) OperationFailed(op record.Operation, err error) {
	if f.OnFailed != nil {
		f.OnFailed(op, err)
	}
}
