package postgres

import (
	"context"
	"database/sql"

	"github.com/jonathanchw/kipu-bank/internal/interfaces"
	"github.com/jonathanchw/kipu-bank/internal/models"
)

// JournalStore persists journal entries and completed operations in
// postgres. Schema:
//
//	CREATE TABLE journal_entries (
//	    id         TEXT PRIMARY KEY,
//	    principal  TEXT NOT NULL,
//	    amount     NUMERIC NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE operations (
//	    id              TEXT PRIMARY KEY,
//	    idempotency_key TEXT UNIQUE NOT NULL,
//	    kind            TEXT NOT NULL,
//	    principal       TEXT NOT NULL,
//	    amount          NUMERIC NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL
//	);
type JournalStore struct {
	db *sql.DB
}

func NewJournalStore(db *sql.DB) *JournalStore {
	return &JournalStore{
		db: db,
	}
}

func (p *JournalStore) SaveEntry(ctx context.Context, entry models.JournalEntry) error {
	const query = `INSERT INTO journal_entries (id, principal, amount, created_at)
	VALUES ($1,$2,$3,$4)`

	_, err := p.db.ExecContext(ctx, query, entry.ID, entry.Principal, entry.Amount, entry.CreatedAt)
	return err
}

func (p *JournalStore) GetEntries() ([]models.JournalEntry, error) {
	const query = `SELECT id, principal, amount, created_at FROM journal_entries`

	rows, err := p.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.JournalEntry
	for rows.Next() {
		var entry models.JournalEntry
		if err := rows.Scan(&entry.ID, &entry.Principal, &entry.Amount, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *JournalStore) GetEntriesByPrincipal(principal string) ([]models.JournalEntry, error) {
	const query = `SELECT id, principal, amount, created_at FROM journal_entries
	WHERE principal = $1`

	rows, err := p.db.Query(query, principal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.JournalEntry
	for rows.Next() {
		var entry models.JournalEntry
		if err := rows.Scan(&entry.ID, &entry.Principal, &entry.Amount, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *JournalStore) SaveOperation(op models.Operation) error {
	const query = `INSERT INTO operations (id, idempotency_key, kind, principal, amount, created_at)
	VALUES ($1,$2,$3,$4,$5,$6)`

	_, err := p.db.Exec(query, op.ID, op.IdempotencyKey, op.Kind, op.Principal, op.Amount, op.CreatedAt)
	return err
}

func (p *JournalStore) OperationExists(idempotencyKey string) (bool, error) {
	const query = `SELECT 1 FROM operations WHERE idempotency_key = $1 LIMIT 1`

	var exists int
	err := p.db.QueryRow(query, idempotencyKey).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

var _ interfaces.JournalStore = (*JournalStore)(nil)
