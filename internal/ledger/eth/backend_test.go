package eth

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachbench/internal/ledger"
)

// testdata/PenaltyLedger.json keeps one event counter and one magnitude sum
// per sender. registerBreach(0) reverts, and calculatePenalty stores
// count * sum.

// simulatedBackend returns a backend on an in-process chain that funds the
// two development accounts.
func simulatedBackend(t *testing.T, opts Options) *Backend {
	t.Helper()
	keys, err := ParseKeys([]string{devKey0, devKey1})
	require.NoError(t, err)
	artifact, err := LoadArtifact(filepath.Join("testdata", "PenaltyLedger.json"))
	require.NoError(t, err)

	funds := new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))
	alloc := types.GenesisAlloc{}
	for i := 1; i <= keys.Len(); i++ {
		addr, err := keys.Address(i)
		require.NoError(t, err)
		alloc[addr] = types.Account{Balance: funds}
	}
	sim := simulated.NewBackend(alloc)
	t.Cleanup(func() { sim.Close() })

	// the simulated chain only seals a block on Commit
	ctx, cancel := context.WithCancel(context.Background())
	sealed := make(chan struct{})
	go func() {
		defer close(sealed)
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				sim.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-sealed
	})

	b, err := newBackend(artifact, keys, opts)
	require.NoError(t, err)
	require.NoError(t, b.attach(context.Background(), sim.Client()))
	return b
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)
	return ctx
}

func TestBackendOnSimulatedChain(t *testing.T) {
	b := simulatedBackend(t, Options{})
	ctx := testContext(t)

	h, err := b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(h.Address()))
	assert.NotEqual(t, common.Address{}.Hex(), h.Address())

	parts, err := b.Participants(ctx, 2)
	require.NoError(t, err)
	alice, bob := parts[0], parts[1]

	for _, m := range []int64{5, 7} {
		r, err := h.WriteEvent(ctx, alice, m)
		require.NoError(t, err)
		assert.True(t, r.Confirmed)
		assert.Greater(t, r.Cost, uint64(21000))
		assert.Len(t, r.TxHash, 66)
	}
	r, err := h.WriteEvent(ctx, bob, 3)
	require.NoError(t, err)
	assert.True(t, r.Confirmed)

	count, err := h.ReadEventCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count.Int64())
	count, err = h.ReadEventCount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Int64())

	penalty, err := h.ReadPenalty(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, penalty.Sign(), "no penalty before it is computed")

	r, err = h.ComputePenalty(ctx, alice)
	require.NoError(t, err)
	assert.True(t, r.Confirmed)
	assert.Greater(t, r.Cost, uint64(21000))

	penalty, err = h.ReadPenalty(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2*(5+7)), penalty.Int64())
}

func TestBackendAcquireDeploysFreshInstance(t *testing.T) {
	b := simulatedBackend(t, Options{})
	ctx := testContext(t)
	parts, err := b.Participants(ctx, 1)
	require.NoError(t, err)

	first, err := b.Acquire(ctx)
	require.NoError(t, err)
	_, err = first.WriteEvent(ctx, parts[0], 4)
	require.NoError(t, err)

	second, err := b.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Address(), second.Address())

	count, err := second.ReadEventCount(ctx, parts[0])
	require.NoError(t, err)
	assert.Zero(t, count.Sign())
}

func TestBackendRevertedWriteIsUnconfirmed(t *testing.T) {
	// a fixed gas limit skips estimation, so the reverting call is mined
	b := simulatedBackend(t, Options{GasLimit: 300_000})
	ctx := testContext(t)

	h, err := b.Acquire(ctx)
	require.NoError(t, err)
	parts, err := b.Participants(ctx, 1)
	require.NoError(t, err)

	r, err := h.WriteEvent(ctx, parts[0], 0)
	require.NoError(t, err)
	assert.False(t, r.Confirmed)
	assert.Positive(t, r.Cost)
	assert.NotEmpty(t, r.TxHash)

	count, err := h.ReadEventCount(ctx, parts[0])
	require.NoError(t, err)
	assert.Zero(t, count.Sign())
}

func TestBackendRejectedSubmission(t *testing.T) {
	b := simulatedBackend(t, Options{})
	ctx := testContext(t)

	h, err := b.Acquire(ctx)
	require.NoError(t, err)
	parts, err := b.Participants(ctx, 1)
	require.NoError(t, err)

	// gas estimation sees the revert before anything is sent
	_, err = h.WriteEvent(ctx, parts[0], 0)
	assert.ErrorContains(t, err, "submit registerBreach")

	_, err = h.WriteEvent(ctx, ledger.Participant{Ordinal: 9, Identity: parts[0].Identity}, 1)
	assert.Error(t, err)
}

func TestBackendAcquireCanceled(t *testing.T) {
	b := simulatedBackend(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Acquire(ctx)
	assert.ErrorIs(t, err, ledger.ErrDeployment)
	assert.NoError(t, b.Close())
}
