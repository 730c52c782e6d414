package account

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// =============================================================================
// BANK ACCOUNT - A named account owned by a player, shareable with others
// =============================================================================

// BankAccount is a shared account: the owner may grant other players access.
// Identity is the bank name plus the owner's UUID.
type BankAccount struct {
	*Base
	Name  string
	Owner uuid.UUID

	membersMu sync.RWMutex
	members   map[uuid.UUID]struct{}
}

// NewBankAccount creates a bank owned by the given player. The identity key
// is "bank:<owner uuid>:<name>".
func NewBankAccount(name string, owner uuid.UUID, gw Gateway, pool *Pool, opts ...Option) *BankAccount {
	a := &BankAccount{
		Base:    newBase(KindBank, BankKey(name, owner), gw, pool, opts...),
		Name:    name,
		Owner:   owner,
		members: make(map[uuid.UUID]struct{}),
	}
	a.self = a
	return a
}

// NewBankAccountFromStrings parses the owner UUID from its string form, as
// stored by persistence gateways.
func NewBankAccountFromStrings(name, owner string, gw Gateway, pool *Pool, opts ...Option) (*BankAccount, error) {
	parsed, err := uuid.Parse(owner)
	if err != nil {
		return nil, fmt.Errorf("bank owner uuid %q: %w", owner, err)
	}
	return NewBankAccount(name, parsed, gw, pool, opts...), nil
}

// BankKey returns the identity key for a bank account.
func BankKey(name string, owner uuid.UUID) string {
	return "bank:" + owner.String() + ":" + name
}

// AddMember grants a player access to the bank and persists the change.
func (a *BankAccount) AddMember(id uuid.UUID) error {
	a.membersMu.Lock()
	a.members[id] = struct{}{}
	a.membersMu.Unlock()

	a.opMu.Lock()
	defer a.opMu.Unlock()
	return a.saveLocked()
}

// RemoveMember revokes a player's access and persists the change.
func (a *BankAccount) RemoveMember(id uuid.UUID) error {
	a.membersMu.Lock()
	delete(a.members, id)
	a.membersMu.Unlock()

	a.opMu.Lock()
	defer a.opMu.Unlock()
	return a.saveLocked()
}

// HasAccess reports whether the player owns or was granted access to the bank.
func (a *BankAccount) HasAccess(id uuid.UUID) bool {
	if id == a.Owner {
		return true
	}
	a.membersMu.RLock()
	defer a.membersMu.RUnlock()
	_, ok := a.members[id]
	return ok
}

// Members returns all granted players, sorted, excluding the owner.
func (a *BankAccount) Members() []uuid.UUID {
	a.membersMu.RLock()
	defer a.membersMu.RUnlock()
	out := make([]uuid.UUID, 0, len(a.members))
	for id := range a.members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
