package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathanchw/kipu-bank/internal/models"
)

func entry(id, principal string, amount int64) models.JournalEntry {
	return models.JournalEntry{
		ID:        id,
		Principal: principal,
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: time.Now().UTC(),
	}
}

func TestSaveAndGetEntries(t *testing.T) {
	store := NewJournalStore()
	ctx := context.Background()

	require.NoError(t, store.SaveEntry(ctx, entry("e1", "alice", 10)))
	require.NoError(t, store.SaveEntry(ctx, entry("e2", "bob", 20)))
	require.NoError(t, store.SaveEntry(ctx, entry("e3", "alice", -5)))

	all, err := store.GetEntries()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	alice, err := store.GetEntriesByPrincipal("alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "e1", alice[0].ID)
	assert.Equal(t, "e3", alice[1].ID)
}

func TestGetEntriesReturnsCopy(t *testing.T) {
	store := NewJournalStore()
	require.NoError(t, store.SaveEntry(context.Background(), entry("e1", "alice", 10)))

	all, err := store.GetEntries()
	require.NoError(t, err)
	all[0].Principal = "mallory"

	again, err := store.GetEntries()
	require.NoError(t, err)
	assert.Equal(t, "alice", again[0].Principal)
}

func TestOperationIdempotencyLookup(t *testing.T) {
	store := NewJournalStore()

	exists, err := store.OperationExists("op-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.SaveOperation(models.Operation{
		ID:             "id-1",
		IdempotencyKey: "op-1",
		Kind:           "deposit",
		Principal:      "alice",
		Amount:         decimal.NewFromInt(10),
		CreatedAt:      time.Now().UTC(),
	}))

	exists, err = store.OperationExists("op-1")
	require.NoError(t, err)
	assert.True(t, exists)
}
