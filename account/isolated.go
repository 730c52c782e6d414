/*
isolated.go - Isolated views and the multi-account transaction coordinator

PURPOSE:
  An isolated transaction runs a caller-supplied function against a set of
  accounts and either commits every tentative movement or none of them.
  The Coordinator provides atomicity and isolation without a database
  transaction manager: it owns every participating account's operation mutex
  for the duration of the transaction.

PROTOCOL:
  1. Lock every participating account, ordered by identity key ascending.
     The global order prevents deadlock between coordinators with
     overlapping account sets.
  2. Build one IsolatedView per account. Views see committed balances plus
     their own pending deltas; nothing is written to a ledger yet.
  3. Run the caller's function; await every pending sub-result.
  4. All succeeded: apply each view's deltas atomically, append history
     entries per account, release the locks, persist every touched account.
     Any failed: discard all deltas, release the locks, resolve to a single
     failed Result. No account was mutated.

  A persistence failure after commit is reported to the caller but never
  unwinds the committed balances: partial rollback after commit is how money
  gets duplicated or lost.

STATE MACHINE:
  Pending -> Locked -> Executing -> {Committed | RolledBack} -> Released.
  No transition skips a state; Released is terminal.
*/
package account

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ISOLATED VIEW - Proxy over one account's balance
// =============================================================================

// IsolatedView permits reads and tentative writes against one account without
// committing them until the enclosing transaction resolves. Sub-operations
// validate against the projected balance (committed plus pending deltas) and
// resolve immediately; the ledger itself is only touched at commit.
type IsolatedView struct {
	acc *Base

	mu     sync.Mutex
	deltas map[string]viewDelta
	txs    []Transaction
}

type viewDelta struct {
	currency Currency
	delta    decimal.Decimal
}

func newIsolatedView(b *Base) *IsolatedView {
	return &IsolatedView{acc: b, deltas: make(map[string]viewDelta)}
}

// Key returns the identity key of the underlying account.
func (v *IsolatedView) Key() string { return v.acc.key }

// Balance returns the projected balance: committed plus pending deltas.
func (v *IsolatedView) Balance(c Currency) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.projectedLocked(c)
}

func (v *IsolatedView) projectedLocked(c Currency) decimal.Decimal {
	return v.acc.ledger.Balance(c).Add(v.deltas[c.Key()].delta)
}

func (v *IsolatedView) addLocked(c Currency, delta decimal.Decimal) {
	cur := v.deltas[c.Key()]
	v.deltas[c.Key()] = viewDelta{currency: c, delta: cur.delta.Add(delta)}
}

// Deposit tentatively adds p to the account. Deposits cannot fail on funds.
func (v *IsolatedView) Deposit(p Payment) *Pending {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.addLocked(p.Currency, p.Amount)
	tx := newTransaction(TxDeposit, v.acc.key, v.acc.key, p)
	v.txs = append(v.txs, tx)
	return ResolvedPending(Success(tx), nil)
}

// Withdraw tentatively subtracts p, enforcing the overdraft rule against the
// projected balance.
func (v *IsolatedView) Withdraw(p Payment) *Pending {
	v.mu.Lock()
	defer v.mu.Unlock()
	res := v.debitLocked(p, TxWithdraw, v.acc.key)
	return ResolvedPending(res, nil)
}

// Set tentatively overrides the balance to p.Amount, recorded as the delta
// withdraw or deposit, matching the single-account set semantics.
func (v *IsolatedView) Set(p Payment) *Pending {
	v.mu.Lock()
	defer v.mu.Unlock()
	current := v.projectedLocked(p.Currency)
	delta := p.Amount.Sub(current)
	switch {
	case delta.IsZero():
		return ResolvedPending(Success(), nil)
	case delta.IsNegative():
		debit := Payment{Currency: p.Currency, Amount: delta.Neg(), Reason: p.Reason}
		return ResolvedPending(v.debitLocked(debit, TxWithdraw, v.acc.key), nil)
	default:
		credit := Payment{Currency: p.Currency, Amount: delta, Reason: p.Reason}
		v.addLocked(p.Currency, delta)
		tx := newTransaction(TxDeposit, v.acc.key, v.acc.key, credit)
		v.txs = append(v.txs, tx)
		return ResolvedPending(Success(tx), nil)
	}
}

func (v *IsolatedView) debitLocked(p Payment, kind TransactionType, source string) Result {
	current := v.projectedLocked(p.Currency)
	if !v.acc.overdraft && current.LessThan(p.Amount) {
		ferr := &InsufficientFundsError{
			Account:   v.acc.key,
			Currency:  p.Currency,
			Available: current,
			Requested: p.Amount,
		}
		return Failure(ferr.Error())
	}
	v.addLocked(p.Currency, p.Amount.Neg())
	tx := newTransaction(kind, source, v.acc.key, p)
	v.txs = append(v.txs, tx)
	return Success(tx)
}

func (v *IsolatedView) creditLocked(p Payment, source string) Result {
	v.addLocked(p.Currency, p.Amount)
	tx := newTransaction(TxDeposit, source, v.acc.key, p)
	v.txs = append(v.txs, tx)
	return Success(tx)
}

// touched reports whether the view holds any tentative movement.
func (v *IsolatedView) touched() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.txs) > 0
}

// commitLocked applies the pending deltas to the account's ledger in one
// atomic step. The account's operation mutex must be held.
func (v *IsolatedView) commitLocked() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.deltas) == 0 {
		return
	}
	deltas := make(map[Currency]decimal.Decimal, len(v.deltas))
	for _, d := range v.deltas {
		deltas[d.currency] = d.delta
	}
	v.acc.ledger.applyAll(deltas)
}

// Transfer moves p between two isolated views as two linked movements: a
// withdraw targeting from and a deposit targeting to. Fails as a whole when
// the paying side lacks funds.
func Transfer(from, to *IsolatedView, p Payment) *Pending {
	from.mu.Lock()
	wres := from.debitLocked(p, TxWithdraw, to.acc.key)
	from.mu.Unlock()
	if wres.Failed() {
		return ResolvedPending(wres, nil)
	}

	to.mu.Lock()
	dres := to.creditLocked(p, from.acc.key)
	to.mu.Unlock()
	return ResolvedPending(merge(wres, dres), nil)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

type txState int

const (
	statePending txState = iota
	stateLocked
	stateExecuting
	stateCommitted
	stateRolledBack
	stateReleased
)

func (s txState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateLocked:
		return "locked"
	case stateExecuting:
		return "executing"
	case stateCommitted:
		return "committed"
	case stateRolledBack:
		return "rolled-back"
	case stateReleased:
		return "released"
	}
	return "unknown"
}

var txTransitions = map[txState][]txState{
	statePending:    {stateLocked},
	stateLocked:     {stateExecuting},
	stateExecuting:  {stateCommitted, stateRolledBack},
	stateCommitted:  {stateReleased},
	stateRolledBack: {stateReleased},
}

type isolatedTx struct {
	state txState
}

func (t *isolatedTx) advance(next txState) {
	for _, allowed := range txTransitions[t.state] {
		if next == allowed {
			t.state = next
			return
		}
	}
	panic(fmt.Sprintf("isolated transaction: illegal transition %s -> %s", t.state, next))
}

// =============================================================================
// COORDINATOR - Multi-account isolated transactions
// =============================================================================

type Coordinator struct {
	pool   *Pool
	logger *slog.Logger
}

func NewCoordinator(pool *Pool, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{pool: pool, logger: logger}
}

// Execute runs fn against isolated views of the given accounts, in the order
// they were passed. The returned Pending resolves to the aggregated Result:
// either every transaction that committed, or the first failure with no
// account mutated. The error reports persistence failures after commit.
func (c *Coordinator) Execute(fn func(views []*IsolatedView) []*Pending, accounts ...Account) *Pending {
	return run(c.pool, func() (Result, error) {
		return c.executeSync(fn, accounts)
	})
}

// ExecuteKeys resolves identity keys through r before anything else and fails
// fast with ErrUnknownAccount — no lock is acquired for a transaction that
// names a missing account.
func (c *Coordinator) ExecuteKeys(r Resolver, fn func(views []*IsolatedView) []*Pending, keys ...string) (*Pending, error) {
	accounts := make([]Account, 0, len(keys))
	for _, key := range keys {
		acc, ok := r.Resolve(key)
		if !ok {
			return nil, fmt.Errorf("resolve %q: %w", key, ErrUnknownAccount)
		}
		accounts = append(accounts, acc)
	}
	return c.Execute(fn, accounts...), nil
}

// TransferBetween moves p from one account to another as a single isolated
// transaction.
func (c *Coordinator) TransferBetween(from, to Account, p Payment) *Pending {
	return c.Execute(func(views []*IsolatedView) []*Pending {
		return []*Pending{Transfer(views[0], views[1], p)}
	}, from, to)
}

func (c *Coordinator) executeSync(fn func(views []*IsolatedView) []*Pending, accounts []Account) (Result, error) {
	// One base per unique key; a caller may pass the same account twice.
	unique := make([]*Base, 0, len(accounts))
	byKey := make(map[string]*IsolatedView, len(accounts))
	for _, acc := range accounts {
		b := acc.base()
		if _, seen := byKey[b.key]; seen {
			continue
		}
		byKey[b.key] = nil
		unique = append(unique, b)
	}

	// Lock in ascending key order so overlapping coordinators never deadlock.
	locked := append([]*Base(nil), unique...)
	sort.Slice(locked, func(i, j int) bool { return locked[i].key < locked[j].key })

	tx := &isolatedTx{state: statePending}
	for _, b := range locked {
		b.opMu.Lock()
	}
	tx.advance(stateLocked)

	views := make([]*IsolatedView, 0, len(accounts))
	for _, acc := range accounts {
		b := acc.base()
		if byKey[b.key] == nil {
			byKey[b.key] = newIsolatedView(b)
		}
		views = append(views, byKey[b.key])
	}

	tx.advance(stateExecuting)
	pendings := fn(views)

	// Await everything. A failure short-circuits the outcome but in-flight
	// sub-operations still complete; their effects are simply discarded.
	results := make([]Result, len(pendings))
	for i, p := range pendings {
		results[i], _ = p.Await()
	}

	res := merge(results...)
	if res.Failed() {
		tx.advance(stateRolledBack)
		unlock(locked)
		tx.advance(stateReleased)
		c.logger.Debug("isolated transaction rolled back",
			"accounts", len(unique), "reason", res.FailureReason)
		return Failure("transaction aborted: " + res.FailureReason), nil
	}

	for _, b := range unique {
		byKey[b.key].commitLocked()
		b.history.AddAll(res.Transactions)
	}
	tx.advance(stateCommitted)
	unlock(locked)
	tx.advance(stateReleased)

	// Persist after release: the commit already happened and a slow gateway
	// must not extend the critical section.
	var saveErr error
	for _, b := range unique {
		if !byKey[b.key].touched() || !b.Saving() {
			continue
		}
		b.opMu.Lock()
		err := b.saveLocked()
		b.opMu.Unlock()
		if err != nil {
			saveErr = errors.Join(saveErr, err)
		}
	}
	c.logger.Debug("isolated transaction committed",
		"accounts", len(unique), "transactions", len(res.Transactions))
	return res, saveErr
}

func unlock(bases []*Base) {
	for i := len(bases) - 1; i >= 0; i-- {
		bases[i].opMu.Unlock()
	}
}
