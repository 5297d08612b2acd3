// Package ledger defines the call contract of the remote ledger service the
// benchmark drives: deploying an instance, the two mutating operations and
// the two state reads.
package ledger

import (
	"context"
	"errors"
	"math/big"
)

// ErrDeployment is returned by Deployer.Acquire when an instance could not be
// created.
var ErrDeployment = errors.New("deployment failure")

// Participant is one account driven through the benchmark.
type Participant struct {
	Ordinal  int    // 1-based, stable for the run
	Identity string // account address
}

// Receipt is the confirmation of a mutating call.
type Receipt struct {
	Cost      uint64
	TxHash    string
	Confirmed bool
}

// Handle is one deployed instance of the service. Implementations must be
// safe for concurrent use by many participants.
type Handle interface {
	Address() string
	WriteEvent(ctx context.Context, p Participant, magnitude int64) (Receipt, error)
	ComputePenalty(ctx context.Context, p Participant) (Receipt, error)
	ReadPenalty(ctx context.Context, p Participant) (*big.Int, error)
	ReadEventCount(ctx context.Context, p Participant) (*big.Int, error)
}

// Deployer creates service instances.
type Deployer interface {
	Acquire(ctx context.Context) (Handle, error)
}

// AccountProvider hands out the participant pool.
type AccountProvider interface {
	Participants(ctx context.Context, n int) ([]Participant, error)
}

// Backend bundles everything a run needs from the ledger side.
type Backend interface {
	Deployer
	AccountProvider
	Close() error
}
