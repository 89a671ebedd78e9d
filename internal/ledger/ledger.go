package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/saldo-pay/saldo/internal/money"
)

var (
	// ErrInsufficientFunds occurs when the balance cannot cover a withdrawal.
	// The concrete error is *InsufficientFundsError.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateOrderID indicates the order id is already used by another transaction.
	ErrDuplicateOrderID = errors.New("duplicate order id")

	// ErrNotFound indicates no live transaction carries the order id.
	ErrNotFound = errors.New("transaction not found")

	// ErrAlreadySettled is returned when a notification targets a transaction
	// that has reached a terminal status. Nothing is changed.
	ErrAlreadySettled = errors.New("transaction already settled")

	// ErrAmountMismatch is returned when a notification reports a gross amount
	// other than the recorded one. Nothing is changed.
	ErrAmountMismatch = errors.New("gross amount mismatch")

	// ErrInvalidFilter wraps rejected history query parameters.
	ErrInvalidFilter = errors.New("invalid filter")
)

// InsufficientFundsError reports the balance that was available and the
// amount that was requested.
type InsufficientFundsError struct {
	Available money.Money
	Required  money.Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance. available: %s, required: %s", e.Available, e.Required)
}

// Is makes errors.Is(err, ErrInsufficientFunds) match.
func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

type filterError struct{ msg string }

func (e *filterError) Error() string        { return e.msg }
func (e *filterError) Is(target error) bool { return target == ErrInvalidFilter }

func invalidFilter(msg string) error { return &filterError{msg: msg} }

// BalanceStore owns the single running balance.
type BalanceStore interface {
	// Balance returns the current amount, zero when no balance row exists yet.
	Balance(ctx context.Context) (money.Money, error)
	// Credit adds amount, creating the balance row on first use, and returns the new balance.
	Credit(ctx context.Context, amount money.Money) (money.Money, error)
	// Debit subtracts amount after re-checking sufficiency and returns the new balance.
	Debit(ctx context.Context, amount money.Money) (money.Money, error)
}

// TransactionLog is the append-only store of transaction records.
type TransactionLog interface {
	Append(ctx context.Context, tx Transaction) error
	Exists(ctx context.Context, orderID string) (bool, error)
	// FindByOrderID locks the row for the rest of the enclosing atomic unit.
	FindByOrderID(ctx context.Context, orderID string) (Transaction, error)
	UpdateStatus(ctx context.Context, orderID string, status Status, paymentStatus string) error
	Query(ctx context.Context, f Filter) (Page, error)
}

// Unit groups the stores that take part in one atomic commit.
type Unit interface {
	Balances() BalanceStore
	Transactions() TransactionLog
}

// Store is the ledger persistence backend (e.g. Postgres). Operations invoked
// through the Unit passed to Atomically commit together or not at all.
type Store interface {
	Unit
	Atomically(ctx context.Context, fn func(u Unit) error) error
}
