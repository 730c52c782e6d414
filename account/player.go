package account

import (
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// PLAYER ACCOUNT - Identified by the player's UUID
// =============================================================================

type PlayerAccount struct {
	*Base
	UUID uuid.UUID
}

// NewPlayerAccount creates the account for a player. The identity key is
// "player:<uuid>".
func NewPlayerAccount(id uuid.UUID, gw Gateway, pool *Pool, opts ...Option) *PlayerAccount {
	a := &PlayerAccount{
		Base: newBase(KindPlayer, PlayerKey(id), gw, pool, opts...),
		UUID: id,
	}
	a.self = a
	return a
}

// NewPlayerAccountFromString parses the UUID from its string form, as stored
// by persistence gateways.
func NewPlayerAccountFromString(id string, gw Gateway, pool *Pool, opts ...Option) (*PlayerAccount, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("player uuid %q: %w", id, err)
	}
	return NewPlayerAccount(parsed, gw, pool, opts...), nil
}

// PlayerKey returns the identity key used for a player's account.
func PlayerKey(id uuid.UUID) string {
	return "player:" + id.String()
}
