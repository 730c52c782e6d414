/*
errors.go - Centralized error types for the account engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store packages and the api layer wrap these errors with additional context.

ERROR CATEGORIES:
  1. Financial errors - Resolved at the account/coordinator boundary and
     returned inside a Failed Result, never past it.
  2. Infrastructure errors - Persistence failures that happen after an
     in-memory commit; these propagate to the caller but never roll back
     committed balances.
  3. Resolution errors - Unknown accounts or currencies, failing fast before
     any lock is taken.

USAGE:
  res, err := acc.WithdrawSynced(payment)
  if res.Failed() {
      // financial failure, no state change
  }
  if err != nil {
      // durability is at risk; balances are already committed
  }
*/
package account

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when a withdraw, set or refund would
	// drive a balance negative on an account without overdraft permission.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransactionAborted is returned when a sub-operation of an isolated
	// transaction failed; no participating account was mutated.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrPersistenceFailure is returned when a durability write failed after a
	// successful in-memory commit. The committed balances stand.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrUnknownAccount is returned when identity resolution fails while
	// building a transaction.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrUnknownCurrency is returned when a currency key resolves to nothing.
	ErrUnknownCurrency = errors.New("unknown currency")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	Account   string
	Currency  Currency
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on %s: available %s, requested %s %s",
		e.Account, e.Available, e.Requested, e.Currency.Key())
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// PersistenceError wraps a gateway failure with the account it concerned.
type PersistenceError struct {
	Account string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Account, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return ErrPersistenceFailure
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInsufficientFunds reports whether err is a funds shortage.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsNotFound reports whether err indicates a missing account or currency.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownAccount) ||
		errors.Is(err, ErrUnknownCurrency)
}
