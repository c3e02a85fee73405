// Package runtime is the ledger environment around the vault: it serializes
// top-level operations, dispatches calls on an operation selector, journals
// successful operations, and guarantees whole-operation rollback when a
// withdrawal's outbound transfer fails.
package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jonathanchw/kipu-bank/internal/interfaces"
	"github.com/jonathanchw/kipu-bank/internal/models"
	"github.com/jonathanchw/kipu-bank/internal/vault"
)

// Operation selectors understood by Dispatch. An empty selector is a plain
// value arrival; anything else unrecognized routes to the fallback path.
const (
	SelectorDeposit  = "deposit"
	SelectorWithdraw = "withdraw"
	SelectorBalance  = "balance"
)

// Call is a dispatched operation as the transport layer hands it over.
type Call struct {
	Selector       string
	Principal      string
	Amount         *uint256.Int
	IdempotencyKey string
}

// Runtime owns the serialization the vault itself assumes: no two top-level
// operations run concurrently against the same vault. Reentrant callbacks
// from a transfer agent bypass the runtime and hit the vault directly, where
// the withdrawal guard rejects them.
type Runtime struct {
	mu      sync.Mutex
	vault   *vault.Vault
	journal interfaces.JournalStore
	log     zerolog.Logger
}

func New(v *vault.Vault, journal interfaces.JournalStore, log zerolog.Logger) *Runtime {
	return &Runtime{
		vault:   v,
		journal: journal,
		log:     log,
	}
}

// Dispatch routes a call on its selector. Value arrivals with an empty
// selector take the plain-receive path; unknown selectors take the fallback
// path, where a zero amount is a silent no-op.
func (r *Runtime) Dispatch(ctx context.Context, call Call) error {
	switch call.Selector {
	case SelectorDeposit:
		return r.Deposit(ctx, call.Principal, call.Amount, call.IdempotencyKey)
	case SelectorWithdraw:
		return r.Withdraw(ctx, call.Principal, call.Amount, call.IdempotencyKey)
	case "":
		return r.Receive(ctx, call.Principal, call.Amount)
	default:
		return r.Fallback(ctx, call.Principal, call.Amount)
	}
}

// Deposit credits the principal. A replayed idempotency key is a successful
// no-op, mirroring the first execution's outcome.
func (r *Runtime) Deposit(ctx context.Context, principal string, amount *uint256.Int, idempotencyKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	replayed, err := r.alreadyApplied(idempotencyKey)
	if err != nil {
		return err
	}
	if replayed {
		r.log.Debug().Str("idempotency_key", idempotencyKey).Msg("deposit replayed, skipping")
		return nil
	}

	if err := r.vault.Deposit(principal, amount); err != nil {
		return err
	}

	r.record(ctx, "deposit", principal, amount, idempotencyKey, false)
	r.log.Info().Str("principal", principal).Str("amount", amount.Dec()).Msg("deposit accepted")
	return nil
}

// Withdraw debits the principal and pushes value out. When the outbound
// transfer fails the vault leaves the debit in place; the runtime owns the
// transactional boundary and reverses it here before propagating the
// failure, so no partial mutation survives.
func (r *Runtime) Withdraw(ctx context.Context, principal string, amount *uint256.Int, idempotencyKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	replayed, err := r.alreadyApplied(idempotencyKey)
	if err != nil {
		return err
	}
	if replayed {
		r.log.Debug().Str("idempotency_key", idempotencyKey).Msg("withdrawal replayed, skipping")
		return nil
	}

	err = r.vault.Withdraw(ctx, principal, amount)

	var transferErr *vault.TransferFailedError
	if errors.As(err, &transferErr) {
		r.vault.ReverseDebit(principal, amount)
		r.log.Error().Err(err).Str("principal", principal).Str("amount", amount.Dec()).
			Msg("outbound transfer failed, withdrawal rolled back")
		return err
	}
	if err != nil {
		return err
	}

	r.record(ctx, "withdraw", principal, amount, idempotencyKey, true)
	r.log.Info().Str("principal", principal).Str("amount", amount.Dec()).Msg("withdrawal completed")
	return nil
}

// Receive is the plain value-arrival path: same contract as Deposit, but
// arrivals carry no idempotency key.
func (r *Runtime) Receive(ctx context.Context, principal string, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.vault.Receive(principal, amount); err != nil {
		return err
	}

	r.record(ctx, "receive", principal, amount, "", false)
	r.log.Info().Str("principal", principal).Str("amount", amount.Dec()).Msg("plain arrival credited")
	return nil
}

// Fallback is the unknown-selector arrival path. A zero amount is accepted
// as a no-op and leaves no journal trace.
func (r *Runtime) Fallback(ctx context.Context, principal string, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.vault.Fallback(principal, amount); err != nil {
		return err
	}
	if amount.IsZero() {
		// Silent no-op: nothing happened, so nothing is journaled or logged.
		return nil
	}

	r.record(ctx, "fallback", principal, amount, "", false)
	r.log.Info().Str("principal", principal).Str("amount", amount.Dec()).Msg("fallback arrival credited")
	return nil
}

// Balance is a pure read of the principal's current balance.
func (r *Runtime) Balance(principal string) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.vault.Balance(principal)
}

// Entries exposes the audit journal for the transport layer.
func (r *Runtime) Entries() ([]models.JournalEntry, error) {
	return r.journal.GetEntries()
}

func (r *Runtime) alreadyApplied(idempotencyKey string) (bool, error) {
	if idempotencyKey == "" {
		return false, nil
	}
	return r.journal.OperationExists(idempotencyKey)
}

// record journals a successful operation. The journal is informational, so
// a storage failure is logged and does not fail the operation whose state
// change has already committed.
func (r *Runtime) record(ctx context.Context, kind, principal string, amount *uint256.Int, idempotencyKey string, debit bool) {
	delta := decimal.NewFromBigInt(amount.ToBig(), 0)
	if debit {
		delta = delta.Neg()
	}

	entry := models.JournalEntry{
		ID:        uuid.New().String(),
		Principal: principal,
		Amount:    delta,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.journal.SaveEntry(ctx, entry); err != nil {
		r.log.Warn().Err(err).Str("principal", principal).Msg("journal write failed")
	}

	if idempotencyKey == "" {
		return
	}
	op := models.Operation{
		ID:             uuid.New().String(),
		IdempotencyKey: idempotencyKey,
		Kind:           kind,
		Principal:      principal,
		Amount:         delta,
		CreatedAt:      entry.CreatedAt,
	}
	if err := r.journal.SaveOperation(op); err != nil {
		r.log.Warn().Err(err).Str("idempotency_key", idempotencyKey).Msg("operation record failed")
	}
}
