/*
ledger.go - Per-account balance ledger

PURPOSE:
  A Ledger maps Currency to the account's current balance in that currency.
  Each account owns exactly one Ledger; it is mutated only through account
  operations, never directly by callers.

CRITICAL INVARIANTS:
  1. Readers never observe a partial state: the ledger moves atomically from
     pre- to post-operation values.
  2. Balances never go negative unless the owning account allows overdraft;
     the funds check and the mutation happen under the same lock.
*/
package account

import (
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Currency -> balance map
// =============================================================================

type Ledger struct {
	mu       sync.RWMutex
	balances map[string]balance
}

type balance struct {
	currency Currency
	amount   decimal.Decimal
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]balance)}
}

// Balance returns the current amount held in c. Absent currencies read zero.
func (l *Ledger) Balance(c Currency) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[c.Key()].amount
}

// Balances returns a snapshot of all non-zero holdings.
func (l *Ledger) Balances() map[Currency]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[Currency]decimal.Decimal, len(l.balances))
	for _, b := range l.balances {
		out[b.currency] = b.amount
	}
	return out
}

// apply adds delta to the balance for c. Negative deltas subtract. The funds
// check belongs to the caller; apply itself never rejects.
func (l *Ledger) apply(c Currency, delta decimal.Decimal) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.balances[c.Key()].amount.Add(delta)
	l.balances[c.Key()] = balance{currency: c, amount: next}
	return next
}

// applyAll commits a batch of deltas as one atomic step. Used by the isolated
// transaction coordinator so that no reader sees a half-committed set.
func (l *Ledger) applyAll(deltas map[Currency]decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c, delta := range deltas {
		next := l.balances[c.Key()].amount.Add(delta)
		l.balances[c.Key()] = balance{currency: c, amount: next}
	}
}

// restore replaces the ledger contents wholesale. Used when loading an
// account from a persistence gateway.
func (l *Ledger) restore(balances map[Currency]decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[string]balance, len(balances))
	for c, amount := range balances {
		l.balances[c.Key()] = balance{currency: c, amount: amount}
	}
}
