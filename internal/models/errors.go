package models

import (
	"fmt"

	"github.com/williamsoaresdev/bip-core/internal/money"
)

// ValidationError reports caller-fixable input problems detected before any
// lock is taken: same-account transfer, non-positive amount, malformed name.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports a referenced account that does not exist, by id or
// by name depending on the lookup.
type NotFoundError struct {
	IDs  []int64
	Name string
}

func (e *NotFoundError) Error() string {
	switch {
	case len(e.IDs) == 1:
		return fmt.Sprintf("account %d not found", e.IDs[0])
	case len(e.IDs) > 1:
		return fmt.Sprintf("accounts %v not found", e.IDs)
	default:
		return fmt.Sprintf("account %q not found", e.Name)
	}
}

// InactiveAccountError reports an operation attempted on an inactive account.
type InactiveAccountError struct {
	AccountID int64
	Operation string
}

func (e *InactiveAccountError) Error() string {
	return fmt.Sprintf("cannot perform %s on inactive account %d", e.Operation, e.AccountID)
}

// InvalidStateError reports a rejected lifecycle transition, such as
// activating an account that is already active.
type InvalidStateError struct {
	AccountID int64
	Message   string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

// InsufficientBalanceError carries the current balance and the requested
// debit so callers can report both.
type InsufficientBalanceError struct {
	AccountID int64
	Balance   money.Amount
	Requested money.Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on account %d: balance %s, requested %s",
		e.AccountID, e.Balance, e.Requested)
}

// ConcurrencyConflictError reports a stale version token detected on save.
// The caller should retry the whole operation.
type ConcurrencyConflictError struct {
	AccountID int64
	Version   int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of account %d detected (stale version %d)",
		e.AccountID, e.Version)
}

// StorageError wraps an underlying database or transaction failure. The
// enclosing transaction has already been rolled back when this surfaces.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
