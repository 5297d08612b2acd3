package dummy

import (
	"context"
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"breachbench/internal/ledger"
)

// Gas schedule, loosely after SSTORE pricing: a slot set from zero is
// expensive, an update is cheaper.
const (
	txBaseGas      = 21000
	callOverhead   = 2300
	slotCreateGas  = 20000
	slotUpdateGas  = 2900
	calldataByte   = 16
	penaltyMathGas = 800
)

type account struct {
	events       int64
	magnitudeSum int64
	penalty      *big.Int
}

// Instance is one simulated contract deployment.
type Instance struct {
	ledger  *Ledger
	address string

	mu       sync.Mutex
	accounts map[string]*account
	closed   bool
}

func (in *Instance) Address() string {
	return in.address
}

// Close retires the instance; later calls fail.
func (in *Instance) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	return nil
}

// Closed reports whether Close was called.
func (in *Instance) Closed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed
}

func (in *Instance) WriteEvent(ctx context.Context, p ledger.Participant, magnitude int64) (ledger.Receipt, error) {
	k, fail := in.ledger.beginWrite(p.Identity)
	defer in.ledger.endWrite(p.Identity)

	if err := in.ledger.wait(ctx); err != nil {
		return ledger.Receipt{}, err
	}
	if fail {
		return ledger.Receipt{}, errors.Wrapf(ErrRejected, "write %d for %s", k, p.Identity)
	}
	if err := in.usable(); err != nil {
		return ledger.Receipt{}, err
	}

	switch in.ledger.roll() {
	case faultRejected:
		return ledger.Receipt{}, errors.Wrap(ErrRejected, "nonce too low")
	case faultReverted:
		return ledger.Receipt{Cost: txBaseGas, TxHash: in.ledger.nextTxHash()}, nil
	}

	in.mu.Lock()
	acct := in.account(p.Identity)
	gas := uint64(txBaseGas + callOverhead + calldataCost(magnitude))
	if acct.events == 0 {
		gas += 2 * slotCreateGas
	} else {
		gas += 2 * slotUpdateGas
	}
	acct.events++
	acct.magnitudeSum += magnitude
	in.mu.Unlock()

	return ledger.Receipt{Cost: gas, TxHash: in.ledger.nextTxHash(), Confirmed: true}, nil
}

func (in *Instance) ComputePenalty(ctx context.Context, p ledger.Participant) (ledger.Receipt, error) {
	if err := in.ledger.wait(ctx); err != nil {
		return ledger.Receipt{}, err
	}
	if err := in.usable(); err != nil {
		return ledger.Receipt{}, err
	}

	switch in.ledger.roll() {
	case faultRejected:
		return ledger.Receipt{}, errors.Wrap(ErrRejected, "replacement transaction underpriced")
	case faultReverted:
		return ledger.Receipt{Cost: txBaseGas, TxHash: in.ledger.nextTxHash()}, nil
	}

	in.mu.Lock()
	acct := in.account(p.Identity)
	next := new(big.Int).Mul(big.NewInt(acct.events), big.NewInt(acct.magnitudeSum))
	gas := uint64(txBaseGas + callOverhead + penaltyMathGas + 20*calldataByte)
	if acct.penalty.Sign() == 0 && next.Sign() != 0 {
		gas += slotCreateGas
	} else {
		gas += slotUpdateGas
	}
	acct.penalty = next
	in.mu.Unlock()

	return ledger.Receipt{Cost: gas, TxHash: in.ledger.nextTxHash(), Confirmed: true}, nil
}

func (in *Instance) ReadPenalty(ctx context.Context, p ledger.Participant) (*big.Int, error) {
	if err := in.beforeRead(ctx, p); err != nil {
		return nil, err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return new(big.Int).Set(in.account(p.Identity).penalty), nil
}

func (in *Instance) ReadEventCount(ctx context.Context, p ledger.Participant) (*big.Int, error) {
	if err := in.beforeRead(ctx, p); err != nil {
		return nil, err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return big.NewInt(in.account(p.Identity).events), nil
}

func (in *Instance) beforeRead(ctx context.Context, p ledger.Participant) error {
	if err := in.ledger.wait(ctx); err != nil {
		return err
	}
	if in.ledger.readFails(p.Identity) {
		return errors.Wrapf(ErrRejected, "read for %s", p.Identity)
	}
	return in.usable()
}

func (in *Instance) usable() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return errors.Errorf("instance %s was retired", in.address)
	}
	return nil
}

// account must be called with in.mu held.
func (in *Instance) account(identity string) *account {
	a, ok := in.accounts[identity]
	if !ok {
		a = &account{penalty: new(big.Int)}
		in.accounts[identity] = a
	}
	return a
}

// calldataCost charges the 32-byte argument word: non-zero bytes cost more.
func calldataCost(v int64) int {
	nonZero := 0
	for u := uint64(v); u != 0; u >>= 8 {
		if u&0xff != 0 {
			nonZero++
		}
	}
	return nonZero*calldataByte + (32-nonZero)*4
}
