/*
registry.go - Process-wide account directory

PURPOSE:
  The Registry is the directory of every live account in the process. It is
  created explicitly and passed to whoever needs it; there is no hidden
  package-level singleton. Registration and deregistration are explicit calls
  guarded by a single RWMutex.

RESOLUTION:
  The Registry implements Resolver, the identity-resolution collaborator used
  when building isolated transactions against player/bank/named targets.
*/
package account

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Resolver maps opaque identity keys to live accounts.
type Resolver interface {
	Resolve(key string) (Account, bool)
}

// =============================================================================
// REGISTRY
// =============================================================================

type Registry struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewRegistry() *Registry {
	return &Registry{accounts: make(map[string]Account)}
}

// Register adds the account under its identity key, replacing any previous
// registration of the same key.
func (r *Registry) Register(acc Account) {
	r.mu.Lock()
	r.accounts[acc.Key()] = acc
	r.mu.Unlock()
}

// Deregister removes the account registered under key, if any. Used when
// named accounts are deleted.
func (r *Registry) Deregister(key string) {
	r.mu.Lock()
	delete(r.accounts, key)
	r.mu.Unlock()
}

// Resolve implements Resolver.
func (r *Registry) Resolve(key string) (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[key]
	return acc, ok
}

// Player returns the registered account for a player UUID.
func (r *Registry) Player(id uuid.UUID) (*PlayerAccount, bool) {
	acc, ok := r.Resolve(PlayerKey(id))
	if !ok {
		return nil, false
	}
	player, ok := acc.(*PlayerAccount)
	return player, ok
}

// Bank returns the registered bank account for a name and owner.
func (r *Registry) Bank(name string, owner uuid.UUID) (*BankAccount, bool) {
	acc, ok := r.Resolve(BankKey(name, owner))
	if !ok {
		return nil, false
	}
	bank, ok := acc.(*BankAccount)
	return bank, ok
}

// Named returns the registered named account.
func (r *Registry) Named(name string) (*NamedAccount, bool) {
	acc, ok := r.Resolve(NamedKey(name))
	if !ok {
		return nil, false
	}
	named, ok := acc.(*NamedAccount)
	return named, ok
}

// All returns every registered account, ordered by identity key.
func (r *Registry) All() []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Size returns the number of registered accounts.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}
