/*
transaction.go - Immutable transaction records and results

PURPOSE:
  A Transaction records one completed currency movement against one target
  account. A Result aggregates the transactions of an operation, or carries a
  failure reason instead. Both are immutable after creation; corrections are
  made via refunds, never edits.

HISTORY PROJECTION:
  Entry is the per-account projection of a Transaction: the slice of it that
  matters to the account it targeted. Entries are what the append-only
  History stores (see history.go).
*/
package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION - One completed currency movement
// =============================================================================

type TransactionType string

const (
	TxDeposit     TransactionType = "deposit"
	TxWithdraw    TransactionType = "withdraw"
	TxSetOverride TransactionType = "set"     // administrative override; history records the delta as deposit/withdraw
	TxRefund      TransactionType = "refund"  // reversal of a prior transaction
)

// Transaction is an immutable record of a single currency movement.
// Source and Target are account identity keys; Target is the account whose
// ledger the amount was applied to. Source equals Target for single-account
// operations.
type Transaction struct {
	Type      TransactionType
	Source    string
	Target    string
	Currency  Currency
	Amount    decimal.Decimal
	Reason    string
	Timestamp time.Time
}

func newTransaction(kind TransactionType, source, target string, p Payment) Transaction {
	return Transaction{
		Type:      kind,
		Source:    source,
		Target:    target,
		Currency:  p.Currency,
		Amount:    p.Amount,
		Reason:    p.Reason,
		Timestamp: time.Now().UTC(),
	}
}

// =============================================================================
// RESULT - Outcome of an operation
// =============================================================================

// Result is the outcome of an account or isolated-transaction operation:
// either the transactions that committed, or a failure reason with no state
// change. Immutable.
type Result struct {
	Transactions  []Transaction
	FailureReason string
}

// Failed reports whether the operation left all balances untouched.
func (r Result) Failed() bool {
	return r.FailureReason != ""
}

// Success wraps one or more committed transactions in a Result.
func Success(txs ...Transaction) Result {
	return Result{Transactions: txs}
}

// Failure builds a failed Result. No balances were changed.
func Failure(reason string) Result {
	return Result{FailureReason: reason}
}

// merge concatenates results; the first failure wins and short-circuits.
func merge(results ...Result) Result {
	var txs []Transaction
	for _, r := range results {
		if r.Failed() {
			return r
		}
		txs = append(txs, r.Transactions...)
	}
	return Result{Transactions: txs}
}

// =============================================================================
// ENTRY - History projection of a transaction
// =============================================================================

// Entry is the per-account projection of a Transaction, scoped to the account
// that was the target.
type Entry struct {
	Type         TransactionType
	Amount       decimal.Decimal
	Currency     Currency
	Timestamp    time.Time
	Counterparty string
}

// entryFor projects tx onto the account identified by key. The counterparty is
// the other side of the movement, empty for self-movements.
func entryFor(key string, tx Transaction) Entry {
	counterparty := tx.Source
	if counterparty == key {
		counterparty = ""
	}
	return Entry{
		Type:         tx.Type,
		Amount:       tx.Amount,
		Currency:     tx.Currency,
		Timestamp:    tx.Timestamp,
		Counterparty: counterparty,
	}
}
