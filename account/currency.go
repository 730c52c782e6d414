/*
Package account provides the core monetary account and transaction engine.

PURPOSE:
  This package contains the types and algorithms for managing per-currency
  balances across player, bank and named accounts. Every balance change flows
  through an account operation, produces an immutable Transaction, and is
  recorded in an append-only per-account history before being persisted.

KEY CONCEPTS:
  - Currency: A unit of value registered by a namespace (currency.go)
  - Payment: An amount of a currency plus a reason (payment.go)
  - Ledger: Per-account Currency -> balance map (ledger.go)
  - Transaction/Result: Immutable records of completed movements (transaction.go)
  - History: Append-only per-account transaction log (history.go)
  - Account: Player/Bank/Named variants over a shared operation core (account.go)
  - Coordinator: Multi-account isolated transactions (isolated.go)
  - Gateway: Pluggable durable persistence (gateway.go)

DESIGN PRINCIPLES:
  1. Immutability: Transactions and history entries are never modified
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Atomicity: An isolated transaction commits everywhere or nowhere
  4. Durability: Every committed operation is followed by a persistence attempt

SEE ALSO:
  - store/yaml: YAML file persistence gateway
  - store/sqlite: SQLite persistence gateway
  - api: HTTP surface over the engine
*/
package account

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY - Unit of value
// =============================================================================

// Currency identifies a unit of value. Identity is (Name, Namespace); the
// symbol is display-only and takes no part in equality.
type Currency struct {
	Name      string
	Symbol    string
	Namespace string
}

func NewCurrency(namespace, name, symbol string) Currency {
	return Currency{Name: name, Symbol: symbol, Namespace: namespace}
}

// Key returns the stable identity key, "namespace:name".
func (c Currency) Key() string {
	return c.Namespace + ":" + c.Name
}

// Equals compares by identity, ignoring the symbol.
func (c Currency) Equals(o Currency) bool {
	return c.Name == o.Name && c.Namespace == o.Namespace
}

func (c Currency) String() string {
	return c.Key()
}

// Format renders an amount with the currency symbol, e.g. "$12.50".
func (c Currency) Format(amount decimal.Decimal) string {
	return fmt.Sprintf("%s%s", c.Symbol, amount.String())
}

// =============================================================================
// CURRENCY REGISTRY - Process-wide currency directory
// =============================================================================

// CurrencyRegistry holds every registered currency. Currencies are never
// removed once registered; ledgers and histories may reference them forever.
type CurrencyRegistry struct {
	mu         sync.RWMutex
	currencies map[string]Currency
	defaultKey string
}

func NewCurrencyRegistry() *CurrencyRegistry {
	return &CurrencyRegistry{currencies: make(map[string]Currency)}
}

// Register adds a currency. Registering the same identity twice updates the
// symbol but keeps the identity stable.
func (r *CurrencyRegistry) Register(c Currency) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currencies[c.Key()] = c
	if r.defaultKey == "" {
		r.defaultKey = c.Key()
	}
}

// Find looks up a currency by its identity key.
func (r *CurrencyRegistry) Find(key string) (Currency, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[key]
	return c, ok
}

// SetDefault marks a registered currency as the default for callers that do
// not name one.
func (r *CurrencyRegistry) SetDefault(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.currencies[key]; !ok {
		return fmt.Errorf("set default currency %q: %w", key, ErrUnknownCurrency)
	}
	r.defaultKey = key
	return nil
}

// Default returns the default currency, if any is registered.
func (r *CurrencyRegistry) Default() (Currency, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[r.defaultKey]
	return c, ok
}

// All returns every registered currency, ordered by key.
func (r *CurrencyRegistry) All() []Currency {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
