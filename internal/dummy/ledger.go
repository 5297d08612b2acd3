// Package dummy is an in-process stand-in for the remote ledger. It keeps
// per-instance contract state in memory, charges a deterministic gas figure
// per call and can inject latency and faults, so runs can be dry-run and
// orchestration can be tested without a node.
package dummy

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"breachbench/internal/ledger"
)

var (
	// ErrRejected is returned for calls the simulated node refuses.
	ErrRejected = errors.New("simulated rejection")
)

// Options configures a Ledger.
type Options struct {
	Profile Profile
	Seed    int64
}

// Ledger simulates a node that can deploy instances and hands out accounts.
type Ledger struct {
	profile Profile

	rngMu sync.Mutex
	rng   *rand.Rand

	mu          sync.Mutex
	deployments int
	txCounter   int64
	failDeploy  map[int]bool
	failWrite   map[string]int
	failRead    map[string]bool
	writes      map[string]int
	inflight    map[string]int
	violations  []string
	instances   []*Instance
}

func New(opts Options) *Ledger {
	if opts.Profile == "" {
		opts.Profile = ProfileNone
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Ledger{
		profile:    opts.Profile,
		rng:        rand.New(rand.NewSource(seed)),
		failDeploy: map[int]bool{},
		failWrite:  map[string]int{},
		failRead:   map[string]bool{},
		writes:     map[string]int{},
		inflight:   map[string]int{},
	}
}

// FailDeploy makes the n-th deployment (1-based) fail.
func (l *Ledger) FailDeploy(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failDeploy[n] = true
}

// FailWrite makes the k-th write (1-based, counted over the whole run) of
// identity fail.
func (l *Ledger) FailWrite(identity string, k int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failWrite[identity] = k
}

// FailRead makes every state read for identity fail.
func (l *Ledger) FailRead(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failRead[identity] = true
}

// Deployments returns how many instances were requested so far.
func (l *Ledger) Deployments() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deployments
}

// Writes returns how many writes identity submitted so far.
func (l *Ledger) Writes(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes[identity]
}

// Violations lists every overlapping write observed for one identity.
func (l *Ledger) Violations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.violations...)
}

// Instances returns every deployed instance in deployment order.
func (l *Ledger) Instances() []*Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Instance(nil), l.instances...)
}

func (l *Ledger) Acquire(ctx context.Context) (ledger.Handle, error) {
	l.mu.Lock()
	l.deployments++
	n := l.deployments
	fail := l.failDeploy[n]
	l.mu.Unlock()

	if err := l.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "deploy")
	}
	if fail {
		return nil, errors.Wrapf(ledger.ErrDeployment, "deployment %d rejected", n)
	}

	inst := &Instance{
		ledger:   l,
		address:  common.BigToAddress(big.NewInt(int64(0xc0de0000 + n))).Hex(),
		accounts: map[string]*account{},
	}
	l.mu.Lock()
	l.instances = append(l.instances, inst)
	l.mu.Unlock()
	return inst, nil
}

// Participants returns n deterministic accounts.
func (l *Ledger) Participants(_ context.Context, n int) ([]ledger.Participant, error) {
	if n < 1 {
		return nil, errors.Errorf("participant count must be positive, got %d", n)
	}
	out := make([]ledger.Participant, n)
	for i := range out {
		out[i] = ledger.Participant{
			Ordinal:  i + 1,
			Identity: common.BigToAddress(big.NewInt(int64(0xacc00000 + i + 1))).Hex(),
		}
	}
	return out, nil
}

func (l *Ledger) Close() error {
	return nil
}

func (l *Ledger) wait(ctx context.Context) error {
	l.rngMu.Lock()
	d := l.profile.delay(l.rng)
	l.rngMu.Unlock()
	if d == 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Ledger) roll() fault {
	l.rngMu.Lock()
	defer l.rngMu.Unlock()
	return l.profile.fault(l.rng)
}

func (l *Ledger) nextTxHash() string {
	l.mu.Lock()
	l.txCounter++
	n := l.txCounter
	l.mu.Unlock()
	return common.BigToHash(big.NewInt(n)).Hex()
}

// beginWrite registers an in-flight write and reports whether it must fail.
func (l *Ledger) beginWrite(identity string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight[identity] > 0 {
		l.violations = append(l.violations, fmt.Sprintf("overlapping writes for %s", identity))
	}
	l.inflight[identity]++
	l.writes[identity]++
	k := l.writes[identity]
	return k, l.failWrite[identity] == k
}

func (l *Ledger) endWrite(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight[identity]--
}

func (l *Ledger) readFails(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failRead[identity]
}
