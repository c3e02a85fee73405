package vault

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"github.com/jonathanchw/kipu-bank/internal/interfaces"
	"github.com/jonathanchw/kipu-bank/internal/models/events"
)

// Event topics consumed by external observers (indexing, UI).
const (
	TopicDeposited = "vault.deposited"
	TopicWithdrawn = "vault.withdrawn"
)

// Vault is the custodial ledger: per-principal balances bounded by a fixed
// global cap, withdrawals bounded by a fixed per-operation limit.
//
// The environment is assumed to serialize top-level operations, so the only
// concurrency hazard handled here is reentrancy: while the outbound transfer
// of a withdrawal is outstanding, control may be handed back into the vault
// before the outer call completes. The locked flag is the sole defense.
type Vault struct {
	globalCap     *uint256.Int // immutable after construction
	withdrawLimit *uint256.Int // immutable after construction

	totalDeposited *uint256.Int            // always equals the sum of balances
	balances       map[string]*uint256.Int // absent key means balance zero
	depositCount   uint64                  // informational; wraparound is fine
	withdrawCount  uint64                  // informational; wraparound is fine
	locked         bool                    // true only while a withdrawal's transfer is in flight

	transfer interfaces.TransferAgent
	events   interfaces.EventPublisher
}

// New creates a vault with the two creation-time caps. The caps are copied
// and never change for the vault's lifetime. The transfer agent delivers
// outbound value; the publisher receives Deposited/Withdrawn notifications.
func New(globalCap, withdrawLimit *uint256.Int, transfer interfaces.TransferAgent, publisher interfaces.EventPublisher) *Vault {
	return &Vault{
		globalCap:      globalCap.Clone(),
		withdrawLimit:  withdrawLimit.Clone(),
		totalDeposited: uint256.NewInt(0),
		balances:       make(map[string]*uint256.Int),
		transfer:       transfer,
		events:         publisher,
	}
}

// Deposit credits amount to caller's balance. It fails with ErrZeroAmount
// for a zero value and with *CapExceededError when the aggregate of all
// balances would exceed the global cap.
func (v *Vault) Deposit(caller string, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	return v.credit(caller, amount)
}

// Receive handles a plain value arrival carrying no operation selector.
// Its contract is identical to Deposit, zero-amount failure included.
func (v *Vault) Receive(caller string, amount *uint256.Int) error {
	return v.Deposit(caller, amount)
}

// Fallback handles a value arrival with an unrecognized payload or unknown
// operation selector. It credits like Deposit, except that a zero-value
// arrival is a silent no-op: no failure, no state change, no notification.
// The asymmetry with Deposit is deliberate and must be preserved.
func (v *Vault) Fallback(caller string, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return v.credit(caller, amount)
}

// credit applies the cap check and the deposit effects shared by Deposit,
// Receive and Fallback. amount is known to be non-zero here.
func (v *Vault) credit(caller string, amount *uint256.Int) error {
	total, overflow := new(uint256.Int).AddOverflow(v.totalDeposited, amount)
	// An overflowing sum is necessarily above any representable cap.
	if overflow || total.Gt(v.globalCap) {
		return &CapExceededError{
			Attempted: amount.Clone(),
			Remaining: new(uint256.Int).Sub(v.globalCap, v.totalDeposited),
		}
	}

	v.balances[caller] = new(uint256.Int).Add(v.balanceOf(caller), amount)
	v.totalDeposited = total
	v.depositCount++

	v.emit(TopicDeposited, events.Deposited{
		Principal:  caller,
		Amount:     amount.Dec(),
		OccurredAt: time.Now().UTC(),
	})

	return nil
}

// Withdraw debits amount from caller's balance and pushes it out through the
// transfer agent. The phases are ordered checks-effects-interactions:
//
//  1. guard acquire — a reentrant call fails with ErrReentrancyBlocked
//  2. validate and debit — balance check before limit check; the debit lands
//     before the external transfer, so a reentrant call observes the
//     already-reduced balance
//  3. external transfer — failure surfaces as *TransferFailedError; the
//     debit stands and the enclosing runtime rolls the operation back
//
// The guard is released on every exit path, so a failed call never leaves
// the vault permanently locked.
func (v *Vault) Withdraw(ctx context.Context, caller string, amount *uint256.Int) error {
	if v.locked {
		return ErrReentrancyBlocked
	}
	v.locked = true
	defer func() { v.locked = false }()

	bal := v.balanceOf(caller)
	if amount.Gt(bal) {
		return &InsufficientBalanceError{Balance: bal.Clone(), Requested: amount.Clone()}
	}
	if amount.Gt(v.withdrawLimit) {
		return &LimitExceededError{Requested: amount.Clone(), Limit: v.withdrawLimit.Clone()}
	}

	v.balances[caller] = new(uint256.Int).Sub(bal, amount)
	v.totalDeposited = new(uint256.Int).Sub(v.totalDeposited, amount)
	v.withdrawCount++

	if err := v.transfer.Transfer(ctx, caller, amount); err != nil {
		return &TransferFailedError{Caller: caller, Amount: amount.Clone(), Diagnostic: err}
	}

	v.emit(TopicWithdrawn, events.Withdrawn{
		Principal:  caller,
		Amount:     amount.Dec(),
		OccurredAt: time.Now().UTC(),
	})

	return nil
}

// ReverseDebit restores the debit of a withdrawal whose outbound transfer
// failed. It exists solely for the runtime's rollback path and must be
// called with the exact caller and amount of the failed withdrawal; the
// counters are informational and are intentionally not rewound.
func (v *Vault) ReverseDebit(caller string, amount *uint256.Int) {
	v.balances[caller] = new(uint256.Int).Add(v.balanceOf(caller), amount)
	v.totalDeposited = new(uint256.Int).Add(v.totalDeposited, amount)
}

// Balance returns the principal's current balance, zero if the principal
// has never deposited. It is a pure read and never fails.
func (v *Vault) Balance(principal string) *uint256.Int {
	return v.balanceOf(principal).Clone()
}

// TotalDeposited returns the aggregate of all balances.
func (v *Vault) TotalDeposited() *uint256.Int { return v.totalDeposited.Clone() }

// GlobalCap returns the creation-time cap on the aggregate of all balances.
func (v *Vault) GlobalCap() *uint256.Int { return v.globalCap.Clone() }

// WithdrawLimit returns the creation-time per-operation withdrawal ceiling.
func (v *Vault) WithdrawLimit() *uint256.Int { return v.withdrawLimit.Clone() }

// DepositCount returns how many deposit-class operations have succeeded.
func (v *Vault) DepositCount() uint64 { return v.depositCount }

// WithdrawCount returns how many withdrawals have been debited.
func (v *Vault) WithdrawCount() uint64 { return v.withdrawCount }

func (v *Vault) balanceOf(principal string) *uint256.Int {
	if bal, ok := v.balances[principal]; ok {
		return bal
	}
	return uint256.NewInt(0)
}

// emit publishes a notification. Delivery is an observability concern owned
// by the publisher; a publish failure does not undo the state change it
// describes.
func (v *Vault) emit(topic string, event any) {
	if v.events == nil {
		return
	}
	_ = v.events.Publish(topic, event)
}
