package memory

import (
	"context"
	"sync"

	"github.com/jonathanchw/kipu-bank/internal/interfaces"
	"github.com/jonathanchw/kipu-bank/internal/models"
)

// JournalStore is an in-memory implementation of interfaces.JournalStore.
// It is thread-safe and suitable for tests and single-process deployments.
type JournalStore struct {
	mu         sync.Mutex
	entries    []models.JournalEntry
	operations map[string]models.Operation // keyed by idempotency key
}

func NewJournalStore() *JournalStore {
	return &JournalStore{
		entries:    make([]models.JournalEntry, 0),
		operations: make(map[string]models.Operation),
	}
}

func (m *JournalStore) SaveEntry(ctx context.Context, entry models.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	return nil
}

// GetEntries returns a copy of all journal entries so callers cannot mutate
// internal state.
func (m *JournalStore) GetEntries() ([]models.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.JournalEntry, len(m.entries))
	copy(copied, m.entries)
	return copied, nil
}

func (m *JournalStore) GetEntriesByPrincipal(principal string) ([]models.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.JournalEntry
	for _, e := range m.entries {
		if e.Principal == principal {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *JournalStore) SaveOperation(op models.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operations[op.IdempotencyKey] = op
	return nil
}

func (m *JournalStore) OperationExists(idempotencyKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.operations[idempotencyKey]
	return exists, nil
}

var _ interfaces.JournalStore = (*JournalStore)(nil)
