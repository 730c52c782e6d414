/*
history.go - Append-only per-account transaction history

PURPOSE:
  Every account owns one History, created with the account and living as long
  as it does. Completed operations append entries; nothing ever removes or
  reorders them.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete.
  2. Entries appear in completion order, never reordered relative to the
     balance update they accompany.
  3. AddAll keeps only entries targeting the owning account: a multi-account
     result carries transactions for other accounts, and those are dropped
     here, not by the caller.
*/
package account

import "sync"

// =============================================================================
// HISTORY - Append-only transaction log
// =============================================================================

type History struct {
	mu      sync.RWMutex
	owner   string
	entries []Entry
}

func NewHistory(owner string) *History {
	return &History{owner: owner}
}

// AddAll projects and appends the transactions that target the owning
// account, in the given order. Transactions for other accounts are dropped.
func (h *History) AddAll(txs []Transaction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, tx := range txs {
		if tx.Target != h.owner {
			continue
		}
		h.entries = append(h.entries, entryFor(h.owner, tx))
	}
}

// Get returns the entry at index i, oldest first.
func (h *History) Get(i int) Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[i]
}

// Size returns the number of entries.
func (h *History) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Entries returns a copy of the full log, oldest first.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// restore replaces the log wholesale. Used when loading an account from a
// persistence gateway; never part of normal operation.
func (h *History) restore(entries []Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]Entry(nil), entries...)
}
