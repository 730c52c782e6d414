/*
gateway.go - Persistence gateway contract and serialization-neutral snapshots

PURPOSE:
  The engine does not know how accounts are stored. A Gateway durably stores
  the current state of an account and loads it back by identity key. The
  byte-level encoding is entirely the gateway's concern.

CONTRACT:
  - Save is invoked from pool threads after every committed state-changing
    operation; implementations must be safe for concurrent use.
  - Save failures never roll back committed balances: money already moved in
    memory, only durability is at risk.
  - Load returns ErrUnknownAccount (wrapped) when the identity is not stored.

SNAPSHOTS:
  Snapshot is the serialization-neutral projection of an account that all
  gateway implementations share: identity, balances, history. Gateways decide
  the encoding (YAML file, SQLite rows, ...).

SEE ALSO:
  - account/store/memory.go: in-memory gateway for tests and dev
  - store/yaml: one YAML file per account
  - store/sqlite: relational schema
*/
package account

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// GATEWAY - Durable persistence collaborator
// =============================================================================

type Gateway interface {
	// Save durably stores the account's current state.
	Save(ctx context.Context, acc Account) error

	// Load reconstructs the account stored under the identity key.
	// Returns an error wrapping ErrUnknownAccount when nothing is stored.
	Load(ctx context.Context, key string) (Account, error)
}

// NopGateway discards saves and knows no accounts. Useful for throwaway
// accounts and tests that do not care about persistence.
type NopGateway struct{}

func (NopGateway) Save(context.Context, Account) error { return nil }

func (NopGateway) Load(_ context.Context, key string) (Account, error) {
	return nil, fmt.Errorf("load %q: %w", key, ErrUnknownAccount)
}

// =============================================================================
// SNAPSHOT - Serialization-neutral account state
// =============================================================================

type Snapshot struct {
	Kind      Kind            `yaml:"kind"`
	Name      string          `yaml:"name,omitempty"`
	Owner     string          `yaml:"owner,omitempty"`
	UUID      string          `yaml:"uuid,omitempty"`
	Overdraft bool            `yaml:"overdraft,omitempty"`
	Members   []string        `yaml:"members,omitempty"`
	Balances  []BalanceRecord `yaml:"balances"`
	History   []HistoryRecord `yaml:"history"`
}

type BalanceRecord struct {
	Namespace string `yaml:"namespace"`
	Currency  string `yaml:"currency"`
	Symbol    string `yaml:"symbol,omitempty"`
	Amount    string `yaml:"amount"`
}

type HistoryRecord struct {
	Type         string    `yaml:"type"`
	Namespace    string    `yaml:"namespace"`
	Currency     string    `yaml:"currency"`
	Symbol       string    `yaml:"symbol,omitempty"`
	Amount       string    `yaml:"amount"`
	Timestamp    time.Time `yaml:"timestamp"`
	Counterparty string    `yaml:"counterparty,omitempty"`
}

// TakeSnapshot captures the account's current balances and history. The
// snapshot is internally consistent but, under concurrent operations, only a
// point-in-time view.
func TakeSnapshot(acc Account) Snapshot {
	s := Snapshot{
		Kind:      acc.Kind(),
		Overdraft: acc.AllowsOverdraft(),
	}
	switch a := acc.(type) {
	case *PlayerAccount:
		s.UUID = a.UUID.String()
	case *BankAccount:
		s.Name = a.Name
		s.Owner = a.Owner.String()
		for _, m := range a.Members() {
			s.Members = append(s.Members, m.String())
		}
	case *NamedAccount:
		s.Name = a.Name
	}

	balances := acc.Balances()
	for c, amount := range balances {
		s.Balances = append(s.Balances, BalanceRecord{
			Namespace: c.Namespace,
			Currency:  c.Name,
			Symbol:    c.Symbol,
			Amount:    amount.String(),
		})
	}
	sort.Slice(s.Balances, func(i, j int) bool {
		a, b := s.Balances[i], s.Balances[j]
		return a.Namespace+":"+a.Currency < b.Namespace+":"+b.Currency
	})

	for _, e := range acc.History().Entries() {
		s.History = append(s.History, HistoryRecord{
			Type:         string(e.Type),
			Namespace:    e.Currency.Namespace,
			Currency:     e.Currency.Name,
			Symbol:       e.Currency.Symbol,
			Amount:       e.Amount.String(),
			Timestamp:    e.Timestamp,
			Counterparty: e.Counterparty,
		})
	}
	return s
}

// FromSnapshot rebuilds an account from stored state. The account is wired to
// gw for subsequent saves and pool for asynchronous operations.
func FromSnapshot(s Snapshot, gw Gateway, pool *Pool) (Account, error) {
	var (
		acc Account
		err error
	)
	switch s.Kind {
	case KindPlayer:
		acc, err = NewPlayerAccountFromString(s.UUID, gw, pool)
	case KindBank:
		acc, err = NewBankAccountFromStrings(s.Name, s.Owner, gw, pool)
	case KindNamed:
		acc = NewNamedAccount(s.Name, gw, pool)
	default:
		err = fmt.Errorf("snapshot kind %q: %w", s.Kind, ErrUnknownAccount)
	}
	if err != nil {
		return nil, err
	}

	balances := make(map[Currency]decimal.Decimal, len(s.Balances))
	for _, b := range s.Balances {
		amount, perr := decimal.NewFromString(b.Amount)
		if perr != nil {
			return nil, fmt.Errorf("balance %s:%s: %w", b.Namespace, b.Currency, perr)
		}
		balances[NewCurrency(b.Namespace, b.Currency, b.Symbol)] = amount
	}

	entries := make([]Entry, 0, len(s.History))
	for _, r := range s.History {
		amount, perr := decimal.NewFromString(r.Amount)
		if perr != nil {
			return nil, fmt.Errorf("history %s:%s: %w", r.Namespace, r.Currency, perr)
		}
		entries = append(entries, Entry{
			Type:         TransactionType(r.Type),
			Amount:       amount,
			Currency:     NewCurrency(r.Namespace, r.Currency, r.Symbol),
			Timestamp:    r.Timestamp,
			Counterparty: r.Counterparty,
		})
	}

	base := acc.base()
	base.ledger.restore(balances)
	base.history.restore(entries)
	if s.Overdraft {
		base.overdraft = true
	}
	if bank, ok := acc.(*BankAccount); ok {
		for _, m := range s.Members {
			id, perr := uuid.Parse(m)
			if perr != nil {
				return nil, fmt.Errorf("bank member %q: %w", m, perr)
			}
			bank.members[id] = struct{}{}
		}
	}
	return acc, nil
}
