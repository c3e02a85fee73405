package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is a single audit record for a principal's balance change.
// Deposits are recorded positive, withdrawals negative.
type JournalEntry struct {
	ID        string          // unique identifier
	Principal string          // which principal this entry belongs to
	Amount    decimal.Decimal // signed balance delta
	CreatedAt time.Time       // timestamp
}

// Operation records a completed top-level call for idempotent replay
// detection. Operations with an empty idempotency key are not recorded.
type Operation struct {
	ID             string
	IdempotencyKey string
	Kind           string // "deposit", "withdraw", "receive" or "fallback"
	Principal      string
	Amount         decimal.Decimal
	CreatedAt      time.Time
}
