/*
account.go - Account interface and shared operation core

PURPOSE:
  An Account is a polymorphic entity (player, bank, named) exposing
  deposit/withdraw/set/refund operations over its own Ledger and History.
  The variants share one operation core, Base: a flat composition instead of
  the deep inheritance the problem is usually modelled with.

OPERATION SHAPE:
  Every operation comes in two forms:
    - Asynchronous: returns a *Pending immediately, completes on the pool.
    - Synced:       blocks until completion, including persistence.
  Both forms serialize on the account's operation mutex: exactly one in-flight
  mutation per account. Balance mutation and the matching history append
  happen inside that critical section, so history order always matches the
  order balances actually changed.

PERSISTENCE:
  Every committed (non-failed) operation is followed by exactly one save
  through the account's Gateway, unless saving is disabled. A save failure is
  returned as a PersistenceError; the in-memory commit stands.

SEE ALSO:
  - isolated.go: multi-account isolated transactions
  - player.go, bank.go, named.go: the concrete variants
*/
package account

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT - Polymorphic over player/bank/named variants
// =============================================================================

type Kind string

const (
	KindPlayer Kind = "player"
	KindBank   Kind = "bank"
	KindNamed  Kind = "named"
)

// Account is implemented by PlayerAccount, BankAccount and NamedAccount.
// The interface is sealed to this package: variants share the Base core.
type Account interface {
	// Key returns the stable unique identity key.
	Key() string
	Kind() Kind

	Balance(c Currency) decimal.Decimal
	Balances() map[Currency]decimal.Decimal
	History() *History
	AllowsOverdraft() bool

	// Saving reports whether state-changing operations persist on completion.
	Saving() bool
	SetSaving(saving bool)

	Deposit(p Payment) *Pending
	DepositSynced(p Payment) (Result, error)
	Withdraw(p Payment) *Pending
	WithdrawSynced(p Payment) (Result, error)
	Set(p Payment) *Pending
	SetSynced(p Payment) (Result, error)
	ForceSet(p Payment) *Pending
	ForceSetSynced(p Payment) (Result, error)
	Refund(tx Transaction) *Pending
	RefundSynced(tx Transaction) (Result, error)

	// MultipleTransaction executes sub-operations against this account as a
	// single saving unit: persistence happens exactly once at the end.
	MultipleTransaction(fns ...func(*IsolatedView) *Pending) *Pending

	base() *Base
}

// Option configures an account at construction time.
type Option func(*Base)

// WithOverdraft permits balances on the account to go negative.
func WithOverdraft() Option {
	return func(b *Base) { b.overdraft = true }
}

// =============================================================================
// BASE - Shared operation core embedded by every variant
// =============================================================================

type Base struct {
	key       string
	kind      Kind
	ledger    *Ledger
	history   *History
	overdraft bool
	gateway   Gateway
	pool      *Pool

	// self points back at the embedding variant so saves hand the gateway the
	// concrete account, not the core.
	self Account

	// opMu admits one in-flight mutation at a time. The isolated transaction
	// coordinator holds it for the duration of a multi-account transaction.
	opMu sync.Mutex

	savingMu sync.Mutex
	saving   bool
}

func newBase(kind Kind, key string, gw Gateway, pool *Pool, opts ...Option) *Base {
	if gw == nil {
		gw = NopGateway{}
	}
	b := &Base{
		key:     key,
		kind:    kind,
		ledger:  NewLedger(),
		history: NewHistory(key),
		gateway: gw,
		pool:    pool,
		saving:  true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Base) base() *Base { return b }

func (b *Base) Key() string { return b.key }
func (b *Base) Kind() Kind { return b.kind }

func (b *Base) Balance(c Currency) decimal.Decimal { return b.ledger.Balance(c) }

func (b *Base) Balances() map[Currency]decimal.Decimal { return b.ledger.Balances() }

func (b *Base) History() *History { return b.history }

func (b *Base) AllowsOverdraft() bool { return b.overdraft }

func (b *Base) Saving() bool {
	b.savingMu.Lock()
	defer b.savingMu.Unlock()
	return b.saving
}

func (b *Base) SetSaving(saving bool) {
	b.savingMu.Lock()
	b.saving = saving
	b.savingMu.Unlock()
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (b *Base) Deposit(p Payment) *Pending {
	return run(b.pool, func() (Result, error) { return b.DepositSynced(p) })
}

func (b *Base) DepositSynced(p Payment) (Result, error) {
	return b.execute(func() Result { return b.depositLocked(p) })
}

func (b *Base) Withdraw(p Payment) *Pending {
	return run(b.pool, func() (Result, error) { return b.WithdrawSynced(p) })
}

func (b *Base) WithdrawSynced(p Payment) (Result, error) {
	return b.execute(func() Result { return b.withdrawLocked(p) })
}

func (b *Base) Set(p Payment) *Pending {
	return run(b.pool, func() (Result, error) { return b.SetSynced(p) })
}

// SetSynced overrides the balance to exactly p.Amount, recorded in history as
// a withdraw or deposit of the delta. A negative delta runs the same funds
// check as a plain withdraw.
func (b *Base) SetSynced(p Payment) (Result, error) {
	return b.execute(func() Result { return b.setLocked(p, false) })
}

func (b *Base) ForceSet(p Payment) *Pending {
	return run(b.pool, func() (Result, error) { return b.ForceSetSynced(p) })
}

// ForceSetSynced is SetSynced without the funds check. Always succeeds.
func (b *Base) ForceSetSynced(p Payment) (Result, error) {
	return b.execute(func() Result { return b.setLocked(p, true) })
}

func (b *Base) Refund(tx Transaction) *Pending {
	return run(b.pool, func() (Result, error) { return b.RefundSynced(tx) })
}

func (b *Base) RefundSynced(tx Transaction) (Result, error) {
	return b.execute(func() Result { return b.refundLocked(tx) })
}

// MultipleTransaction runs each fn against an isolated view of this account,
// commits all tentative movements if every sub-result succeeded, and saves
// exactly once afterwards, success or failure. Sub-operations must go through
// the view: calling the account's own operations from fn would deadlock on
// the operation mutex.
func (b *Base) MultipleTransaction(fns ...func(*IsolatedView) *Pending) *Pending {
	return run(b.pool, func() (Result, error) {
		b.opMu.Lock()
		defer b.opMu.Unlock()

		view := newIsolatedView(b)
		var results []Result
		for _, fn := range fns {
			res, _ := fn(view).Await()
			results = append(results, res)
			if res.Failed() {
				break
			}
		}

		res := merge(results...)
		if !res.Failed() {
			view.commitLocked()
			b.history.AddAll(res.Transactions)
		}
		return res, b.saveLocked()
	})
}

// =============================================================================
// OPERATION INTERNALS - All run with opMu held
// =============================================================================

// execute runs op inside the critical section and follows a committed result
// with the single persistence attempt.
func (b *Base) execute(op func() Result) (Result, error) {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	res := op()
	if res.Failed() || len(res.Transactions) == 0 {
		return res, nil
	}
	b.history.AddAll(res.Transactions)
	return res, b.saveLocked()
}

func (b *Base) depositLocked(p Payment) Result {
	b.ledger.apply(p.Currency, p.Amount)
	return Success(newTransaction(TxDeposit, b.key, b.key, p))
}

func (b *Base) withdrawLocked(p Payment) Result {
	res, _ := b.debitLocked(p, TxWithdraw)
	return res
}

// debitLocked subtracts p.Amount, enforcing the overdraft rule. The bool
// reports whether the debit committed.
func (b *Base) debitLocked(p Payment, kind TransactionType) (Result, bool) {
	current := b.ledger.Balance(p.Currency)
	if !b.overdraft && current.LessThan(p.Amount) {
		ferr := &InsufficientFundsError{
			Account:   b.key,
			Currency:  p.Currency,
			Available: current,
			Requested: p.Amount,
		}
		return Failure(ferr.Error()), false
	}
	b.ledger.apply(p.Currency, p.Amount.Neg())
	return Success(newTransaction(kind, b.key, b.key, p)), true
}

// setLocked overrides the balance for p.Currency to p.Amount by applying the
// delta as a withdraw or deposit. No transaction is recorded when the balance
// already matches.
func (b *Base) setLocked(p Payment, force bool) Result {
	current := b.ledger.Balance(p.Currency)
	delta := p.Amount.Sub(current)
	switch {
	case delta.IsZero():
		return Success()
	case delta.IsNegative():
		debit := Payment{Currency: p.Currency, Amount: delta.Neg(), Reason: p.Reason}
		if force {
			b.ledger.apply(p.Currency, delta)
			return Success(newTransaction(TxWithdraw, b.key, b.key, debit))
		}
		res, _ := b.debitLocked(debit, TxWithdraw)
		return res
	default:
		credit := Payment{Currency: p.Currency, Amount: delta, Reason: p.Reason}
		return b.depositLocked(credit)
	}
}

// refundLocked applies the inverse movement of a previously recorded
// transaction: a deposit is paid back out, a withdraw is restored. The
// paying-side funds check still applies.
func (b *Base) refundLocked(tx Transaction) Result {
	p := Payment{Currency: tx.Currency, Amount: tx.Amount, Reason: "refund: " + tx.Reason}
	switch tx.Type {
	case TxDeposit:
		res, _ := b.debitLocked(p, TxRefund)
		return res
	case TxWithdraw:
		b.ledger.apply(p.Currency, p.Amount)
		return Success(newTransaction(TxRefund, b.key, b.key, p))
	default:
		return Failure("transaction type " + string(tx.Type) + " cannot be refunded")
	}
}

// saveLocked performs the post-commit persistence attempt, honoring the
// saving flag. Failures are reported, never rolled back.
func (b *Base) saveLocked() error {
	if !b.Saving() {
		return nil
	}
	if err := b.gateway.Save(context.Background(), b.self); err != nil {
		return &PersistenceError{Account: b.key, Err: err}
	}
	return nil
}
