// Package store provides Gateway implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/EconToolBox/EconToolBox/account"
)

// =============================================================================
// MEMORY GATEWAY - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	snapshots map[string]account.Snapshot
	saves     map[string]int

	// FailNext makes the next Save return an error. Lets tests exercise the
	// persistence-failure path without a real gateway.
	failMu   sync.Mutex
	failNext error
}

func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[string]account.Snapshot),
		saves:     make(map[string]int),
	}
}

// Save stores a snapshot of the account's current state.
func (m *Memory) Save(_ context.Context, acc account.Account) error {
	m.failMu.Lock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		m.failMu.Unlock()
		return err
	}
	m.failMu.Unlock()

	snap := account.TakeSnapshot(acc)
	m.mu.Lock()
	m.snapshots[acc.Key()] = snap
	m.saves[acc.Key()]++
	m.mu.Unlock()
	return nil
}

// Load reconstructs the account stored under key. The loaded account is wired
// back to this gateway for subsequent saves.
func (m *Memory) Load(_ context.Context, key string) (account.Account, error) {
	m.mu.RLock()
	snap, ok := m.snapshots[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("load %q: %w", key, account.ErrUnknownAccount)
	}
	return account.FromSnapshot(snap, m, nil)
}

// SaveCount returns how many times the account was saved. Test hook.
func (m *Memory) SaveCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves[key]
}

// FailNextSave arranges for the next Save to return err.
func (m *Memory) FailNextSave(err error) {
	m.failMu.Lock()
	m.failNext = err
	m.failMu.Unlock()
}
