package interfaces

import (
	"context"

	"github.com/jonathanchw/kipu-bank/internal/models"
)

// JournalStore persists the audit journal of successful vault operations.
// The journal is informational only: the vault never reads it back for
// correctness decisions.
type JournalStore interface {
	SaveEntry(ctx context.Context, entry models.JournalEntry) error
	GetEntriesByPrincipal(principal string) ([]models.JournalEntry, error)
	GetEntries() ([]models.JournalEntry, error)
	SaveOperation(op models.Operation) error
	OperationExists(idempotencyKey string) (bool, error)
}
