package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathanchw/kipu-bank/internal/storage/memory"
	"github.com/jonathanchw/kipu-bank/internal/vault"
)

type transferFunc func(ctx context.Context, principal string, amount *uint256.Int) error

func (f transferFunc) Transfer(ctx context.Context, principal string, amount *uint256.Int) error {
	return f(ctx, principal, amount)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) error { return nil }

func u(n uint64) *uint256.Int { return uint256.NewInt(n) }

func newTestRuntime(globalCap, limit uint64, agent transferFunc) (*Runtime, *memory.JournalStore) {
	store := memory.NewJournalStore()
	v := vault.New(u(globalCap), u(limit), agent, nopPublisher{})
	return New(v, store, zerolog.Nop()), store
}

func acceptAll(context.Context, string, *uint256.Int) error { return nil }

func TestWithdrawRollsBackOnTransferFailure(t *testing.T) {
	rt, store := newTestRuntime(100, 10, func(context.Context, string, *uint256.Int) error {
		return errors.New("settlement endpoint unreachable")
	})
	ctx := context.Background()
	require.NoError(t, rt.Deposit(ctx, "alice", u(10), ""))

	err := rt.Withdraw(ctx, "alice", u(5), "")

	var transferErr *vault.TransferFailedError
	require.ErrorAs(t, err, &transferErr)

	// Whole-operation rollback: the debit the vault applied is reversed.
	assert.Equal(t, u(10), rt.Balance("alice"))

	// Only the deposit reached the journal.
	entries, err := store.GetEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(10)))
}

func TestDepositReplayIsNoOp(t *testing.T) {
	rt, _ := newTestRuntime(100, 10, acceptAll)
	ctx := context.Background()

	require.NoError(t, rt.Deposit(ctx, "alice", u(10), "op-1"))
	require.NoError(t, rt.Deposit(ctx, "alice", u(10), "op-1"))

	assert.Equal(t, u(10), rt.Balance("alice"))
}

func TestWithdrawReplayIsNoOp(t *testing.T) {
	rt, _ := newTestRuntime(100, 10, acceptAll)
	ctx := context.Background()
	require.NoError(t, rt.Deposit(ctx, "alice", u(10), ""))

	require.NoError(t, rt.Withdraw(ctx, "alice", u(5), "op-2"))
	require.NoError(t, rt.Withdraw(ctx, "alice", u(5), "op-2"))

	assert.Equal(t, u(5), rt.Balance("alice"))
}

func TestJournalRecordsSignedDeltas(t *testing.T) {
	rt, store := newTestRuntime(100, 10, acceptAll)
	ctx := context.Background()

	require.NoError(t, rt.Deposit(ctx, "alice", u(10), ""))
	require.NoError(t, rt.Withdraw(ctx, "alice", u(4), ""))

	entries, err := store.GetEntriesByPrincipal("alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(10)))
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(-4)))

	// The journal's running sum matches the live balance.
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	assert.True(t, sum.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, u(6), rt.Balance("alice"))
}

func TestDispatchRoutesOnSelector(t *testing.T) {
	rt, _ := newTestRuntime(100, 10, acceptAll)
	ctx := context.Background()

	require.NoError(t, rt.Dispatch(ctx, Call{Selector: SelectorDeposit, Principal: "alice", Amount: u(10)}))
	assert.Equal(t, u(10), rt.Balance("alice"))

	require.NoError(t, rt.Dispatch(ctx, Call{Selector: SelectorWithdraw, Principal: "alice", Amount: u(3)}))
	assert.Equal(t, u(7), rt.Balance("alice"))

	// Empty selector is a plain arrival with the deposit contract.
	require.ErrorIs(t, rt.Dispatch(ctx, Call{Principal: "bob", Amount: u(0)}), vault.ErrZeroAmount)
	require.NoError(t, rt.Dispatch(ctx, Call{Principal: "bob", Amount: u(5)}))
	assert.Equal(t, u(5), rt.Balance("bob"))
}

func TestDispatchUnknownSelectorFallsBack(t *testing.T) {
	rt, store := newTestRuntime(100, 10, acceptAll)
	ctx := context.Background()

	// Zero-value arrival on an unknown selector is a silent no-op.
	require.NoError(t, rt.Dispatch(ctx, Call{Selector: "mint", Principal: "alice", Amount: u(0)}))
	assert.Equal(t, u(0), rt.Balance("alice"))
	entries, err := store.GetEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A non-zero arrival credits like a deposit.
	require.NoError(t, rt.Dispatch(ctx, Call{Selector: "mint", Principal: "alice", Amount: u(8)}))
	assert.Equal(t, u(8), rt.Balance("alice"))
	entries, err = store.GetEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
