/*
isolated_test.go - Behavior tests for multi-account isolated transactions

ORGANIZATION:
  1. Transfers - Both legs commit or neither does
  2. Atomicity - Partial work is discarded on any sub-failure
  3. History - Each account only records its own movements
  4. Concurrency - Overlapping coordinators make progress and lose nothing
  5. Resolution - ExecuteKeys fails fast on unknown accounts
*/
package account_test

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EconToolBox/EconToolBox/account"
	"github.com/EconToolBox/EconToolBox/account/store"
)

func newNamedWithGold(t *testing.T, name string, initial float64, gw account.Gateway) *account.NamedAccount {
	t.Helper()
	acc := account.NewNamedAccount(name, gw, nil)
	if initial != 0 {
		_, err := acc.DepositSynced(account.NewPaymentFromFloat(gold, initial))
		require.NoError(t, err)
	}
	return acc
}

// =============================================================================
// TRANSFERS
// =============================================================================

func TestTransferBetween_MovesFundsAtomically(t *testing.T) {
	// GIVEN: two accounts, one funded
	gw := store.NewMemory()
	alice := newNamedWithGold(t, "alice", 20, gw)
	bob := newNamedWithGold(t, "bob", 0, gw)
	coord := account.NewCoordinator(nil, nil)

	// WHEN: moving 8 gold from alice to bob
	res, err := coord.TransferBetween(alice, bob, gp(8)).Await()

	// THEN: both sides moved and the result carries both legs
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Len(t, res.Transactions, 2)
	requireBalance(t, alice, gold, 12)
	requireBalance(t, bob, gold, 8)
}

func TestTransferBetween_InsufficientFunds_NeitherSideMoves(t *testing.T) {
	// GIVEN: a payer that cannot cover the transfer
	gw := store.NewMemory()
	alice := newNamedWithGold(t, "alice", 5, gw)
	bob := newNamedWithGold(t, "bob", 3, gw)
	coord := account.NewCoordinator(nil, nil)

	// WHEN: moving 8 gold from alice to bob
	res, err := coord.TransferBetween(alice, bob, gp(8)).Await()

	// THEN: the whole transaction aborts, both balances untouched
	require.NoError(t, err)
	require.True(t, res.Failed())
	assert.Contains(t, res.FailureReason, "transaction aborted")
	requireBalance(t, alice, gold, 5)
	requireBalance(t, bob, gold, 3)
}

func TestTransferBetween_RecordsCounterparties(t *testing.T) {
	// GIVEN: a committed transfer from alice to bob
	gw := store.NewMemory()
	alice := newNamedWithGold(t, "alice", 20, gw)
	bob := newNamedWithGold(t, "bob", 0, gw)
	coord := account.NewCoordinator(nil, nil)

	res, err := coord.TransferBetween(alice, bob, gp(8)).Await()
	require.NoError(t, err)
	require.False(t, res.Failed())

	// THEN: each side holds exactly one new entry naming the other account
	require.Equal(t, 2, alice.History().Size()) // seed deposit + transfer
	sent := alice.History().Get(1)
	assert.Equal(t, account.TxWithdraw, sent.Type)
	assert.Equal(t, bob.Key(), sent.Counterparty)

	require.Equal(t, 1, bob.History().Size())
	received := bob.History().Get(0)
	assert.Equal(t, account.TxDeposit, received.Type)
	assert.Equal(t, alice.Key(), received.Counterparty)
}

// =============================================================================
// ATOMICITY
// =============================================================================

func TestExecute_FailedLeg_DiscardsSuccessfulLegs(t *testing.T) {
	// GIVEN: three accounts where one sub-operation will fail
	gw := store.NewMemory()
	a := newNamedWithGold(t, "a", 10, gw)
	b := newNamedWithGold(t, "b", 10, gw)
	c := newNamedWithGold(t, "c", 0, gw)
	coord := account.NewCoordinator(nil, nil)

	// WHEN: two deposits succeed against their views but a withdraw fails
	res, err := coord.Execute(func(views []*account.IsolatedView) []*account.Pending {
		return []*account.Pending{
			views[0].Deposit(gp(100)),
			views[1].Withdraw(gp(999)),
			views[2].Deposit(gp(1)),
		}
	}, a, b, c).Await()

	// THEN: no account changed
	require.NoError(t, err)
	require.True(t, res.Failed())
	requireBalance(t, a, gold, 10)
	requireBalance(t, b, gold, 10)
	requireBalance(t, c, gold, 0)
	assert.Equal(t, 0, c.History().Size())
}

func TestExecute_ViewBalanceReflectsUncommittedWork(t *testing.T) {
	// GIVEN: an account with 10 gold
	gw := store.NewMemory()
	a := newNamedWithGold(t, "a", 10, gw)
	coord := account.NewCoordinator(nil, nil)

	// WHEN: a deposit lands on the view and the view is read back
	var projected decimal.Decimal
	res, err := coord.Execute(func(views []*account.IsolatedView) []*account.Pending {
		p := views[0].Deposit(gp(5))
		projected = views[0].Balance(gold)
		return []*account.Pending{p}
	}, a).Await()

	// THEN: the view saw 15 before commit, and the account holds 15 after
	require.NoError(t, err)
	require.False(t, res.Failed())
	assert.True(t, projected.Equal(decimal.NewFromInt(15)), "projected = %s", projected)
	requireBalance(t, a, gold, 15)
}

func TestExecute_SetOnView_UsesDeltaAgainstProjection(t *testing.T) {
	// GIVEN: an account with 10 gold
	gw := store.NewMemory()
	a := newNamedWithGold(t, "a", 10, gw)
	coord := account.NewCoordinator(nil, nil)

	// WHEN: depositing 5 then setting the projected balance to 12
	res, err := coord.Execute(func(views []*account.IsolatedView) []*account.Pending {
		return []*account.Pending{
			views[0].Deposit(gp(5)),
			views[0].Set(gp(12)),
		}
	}, a).Await()

	// THEN: the set produced a withdraw of 3 against the projected 15
	require.NoError(t, err)
	require.False(t, res.Failed())
	requireBalance(t, a, gold, 12)

	last := a.History().Get(a.History().Size() - 1)
	assert.Equal(t, account.TxWithdraw, last.Type)
	assert.True(t, last.Amount.Equal(decimal.NewFromInt(3)), "delta = %s", last.Amount)
}

func TestExecute_SameAccountPassedTwice_SharesOneView(t *testing.T) {
	// GIVEN: the same account named twice in one transaction
	gw := store.NewMemory()
	a := newNamedWithGold(t, "a", 0, gw)
	coord := account.NewCoordinator(nil, nil)

	// WHEN: both positions deposit
	res, err := coord.Execute(func(views []*account.IsolatedView) []*account.Pending {
		return []*account.Pending{
			views[0].Deposit(gp(3)),
			views[1].Deposit(gp(4)),
		}
	}, a, a).Await()

	// THEN: both deposits landed on the single underlying account
	require.NoError(t, err)
	require.False(t, res.Failed())
	requireBalance(t, a, gold, 7)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestExecute_CommittedTransaction_SavesEachTouchedAccountOnce(t *testing.T) {
	// GIVEN: a transfer between two accounts
	gw := store.NewMemory()
	alice := newNamedWithGold(t, "alice", 20, gw)
	bob := newNamedWithGold(t, "bob", 0, gw)
	coord := account.NewCoordinator(nil, nil)
	aliceSaves := gw.SaveCount(alice.Key())
	bobSaves := gw.SaveCount(bob.Key())

	// WHEN: the transfer commits
	_, err := coord.TransferBetween(alice, bob, gp(8)).Await()
	require.NoError(t, err)

	// THEN: each side was saved exactly once more
	assert.Equal(t, aliceSaves+1, gw.SaveCount(alice.Key()))
	assert.Equal(t, bobSaves+1, gw.SaveCount(bob.Key()))
}

func TestExecute_SaveFailure_SurfacedWithoutRollback(t *testing.T) {
	// GIVEN: a gateway that fails the post-commit saves
	gw := store.NewMemory()
	alice := newNamedWithGold(t, "alice", 20, gw)
	bob := newNamedWithGold(t, "bob", 0, gw)
	coord := account.NewCoordinator(nil, nil)
	gw.FailNextSave(assert.AnError)

	// WHEN: a transfer commits but persistence fails
	res, err := coord.TransferBetween(alice, bob, gp(8)).Await()

	// THEN: the error surfaces while the committed balances stand
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrPersistenceFailure)
	require.False(t, res.Failed())
	requireBalance(t, alice, gold, 12)
	requireBalance(t, bob, gold, 8)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentTransfers_ConserveTotalFunds(t *testing.T) {
	// GIVEN: three accounts and coordinators shuffling money between them
	// in overlapping, opposing directions
	const rounds = 30
	gw := store.NewMemory()
	a := newNamedWithGold(t, "a", 300, gw)
	b := newNamedWithGold(t, "b", 300, gw)
	c := newNamedWithGold(t, "c", 300, gw)
	coord := account.NewCoordinator(nil, nil)

	var wg sync.WaitGroup
	wg.Add(3 * rounds)
	for i := 0; i < rounds; i++ {
		go func() {
			defer wg.Done()
			_, err := coord.TransferBetween(a, b, gp(1)).Await()
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := coord.TransferBetween(b, c, gp(1)).Await()
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := coord.TransferBetween(c, a, gp(1)).Await()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// THEN: no deadlock occurred and the total is conserved
	total := a.Balance(gold).Add(b.Balance(gold)).Add(c.Balance(gold))
	assert.True(t, total.Equal(decimal.NewFromInt(900)), "total = %s", total)
}

func TestConcurrentCoordinatorAndDirectOps_NoLostUpdates(t *testing.T) {
	// GIVEN: direct deposits racing with coordinator transactions on one account
	const n = 25
	gw := store.NewMemory()
	a := newNamedWithGold(t, "a", 0, gw)
	coord := account.NewCoordinator(nil, nil)

	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := a.DepositSynced(gp(2))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := coord.Execute(func(views []*account.IsolatedView) []*account.Pending {
				return []*account.Pending{views[0].Deposit(gp(2))}
			}, a).Await()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// THEN: every deposit is reflected in both balance and history
	requireBalance(t, a, gold, 2*2*n)
	assert.Equal(t, 2*n, a.History().Size())
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestExecuteKeys_UnknownAccount_FailsBeforeLocking(t *testing.T) {
	// GIVEN: a registry holding only alice
	gw := store.NewMemory()
	alice := newNamedWithGold(t, "alice", 10, gw)
	reg := account.NewRegistry()
	reg.Register(alice)
	coord := account.NewCoordinator(nil, nil)

	// WHEN: a transaction names a missing account
	pending, err := coord.ExecuteKeys(reg, func(views []*account.IsolatedView) []*account.Pending {
		return []*account.Pending{views[0].Deposit(gp(1))}
	}, alice.Key(), "named:ghost")

	// THEN: resolution fails fast and no pending is produced
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrUnknownAccount)
	assert.Nil(t, pending)
	requireBalance(t, alice, gold, 10)
}

func TestExecuteKeys_AllResolved_RunsTransaction(t *testing.T) {
	// GIVEN: a registry holding both parties
	gw := store.NewMemory()
	alice := newNamedWithGold(t, "alice", 10, gw)
	bob := newNamedWithGold(t, "bob", 0, gw)
	reg := account.NewRegistry()
	reg.Register(alice)
	reg.Register(bob)
	coord := account.NewCoordinator(nil, nil)

	// WHEN: transferring by key
	pending, err := coord.ExecuteKeys(reg, func(views []*account.IsolatedView) []*account.Pending {
		return []*account.Pending{account.Transfer(views[0], views[1], gp(4))}
	}, alice.Key(), bob.Key())
	require.NoError(t, err)

	res, err := pending.Await()
	require.NoError(t, err)
	require.False(t, res.Failed())
	requireBalance(t, alice, gold, 6)
	requireBalance(t, bob, gold, 4)
}
