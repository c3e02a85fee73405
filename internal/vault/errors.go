package vault

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// ErrZeroAmount is returned when a deposit-class call carries a transferred
// value of exactly zero. The fallback path treats a zero arrival as a silent
// no-op instead; see (*Vault).Fallback.
var ErrZeroAmount = errors.New("deposit amount must be greater than zero")

// ErrReentrancyBlocked is returned when a withdrawal is attempted while
// another withdrawal on the same vault is mid-flight.
var ErrReentrancyBlocked = errors.New("withdrawal already in flight")

// CapExceededError is returned when a deposit would push the aggregate of
// all balances above the vault's global cap.
type CapExceededError struct {
	Attempted *uint256.Int // amount that was being deposited
	Remaining *uint256.Int // headroom left under the cap before this deposit
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("deposit of %s exceeds global cap: %s remaining", e.Attempted.Dec(), e.Remaining.Dec())
}

// InsufficientBalanceError is returned when a withdrawal requests more than
// the caller currently holds.
type InsufficientBalanceError struct {
	Balance   *uint256.Int
	Requested *uint256.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, requested %s", e.Balance.Dec(), e.Requested.Dec())
}

// LimitExceededError is returned when a withdrawal requests more than the
// per-operation withdraw limit. The balance check runs first, so this error
// implies the caller could otherwise afford the withdrawal.
type LimitExceededError struct {
	Requested *uint256.Int
	Limit     *uint256.Int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("withdrawal of %s exceeds per-operation limit of %s", e.Requested.Dec(), e.Limit.Dec())
}

// TransferFailedError is returned when the outbound value transfer reported
// failure. The debit applied before the transfer is NOT rolled back here;
// the runtime owns whole-operation rollback (see runtime.Runtime.Withdraw).
type TransferFailedError struct {
	Caller     string
	Amount     *uint256.Int
	Diagnostic error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("outbound transfer of %s to %q failed: %v", e.Amount.Dec(), e.Caller, e.Diagnostic)
}

func (e *TransferFailedError) Unwrap() error { return e.Diagnostic }
