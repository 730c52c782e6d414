package sqlite_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EconToolBox/EconToolBox/account"
	"github.com/EconToolBox/EconToolBox/store/sqlite"
)

var crowns = account.NewCurrency("eco", "crowns", "c")

func newGateway(t *testing.T) *sqlite.Gateway {
	t.Helper()
	gw, err := sqlite.New(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestGateway_SaveLoadRoundTrip(t *testing.T) {
	// GIVEN: a player account with balances and history
	gw := newGateway(t)
	player := account.NewPlayerAccount(uuid.New(), gw, nil)
	_, err := player.DepositSynced(account.NewPaymentFromFloat(crowns, 100))
	require.NoError(t, err)
	_, err = player.WithdrawSynced(account.NewPaymentFromFloat(crowns, 30))
	require.NoError(t, err)

	// WHEN: loading the account back
	loaded, err := gw.Load(context.Background(), player.Key())
	require.NoError(t, err)

	// THEN: balances and ordered history survive
	assert.Equal(t, player.Key(), loaded.Key())
	assert.True(t, loaded.Balance(crowns).Equal(decimal.NewFromInt(70)))
	require.Equal(t, 2, loaded.History().Size())
	assert.Equal(t, account.TxDeposit, loaded.History().Get(0).Type)
	assert.Equal(t, account.TxWithdraw, loaded.History().Get(1).Type)
}

func TestGateway_RepeatedSavesKeepHistoryIntact(t *testing.T) {
	// GIVEN: an account saved after each of several operations
	gw := newGateway(t)
	named := account.NewNamedAccount("treasury", gw, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := named.DepositSynced(account.NewPaymentFromFloat(crowns, 1))
		require.NoError(t, err)
	}

	// WHEN: loading it back
	loaded, err := gw.Load(ctx, named.Key())
	require.NoError(t, err)

	// THEN: exactly five entries exist, no duplicates from re-saving
	assert.Equal(t, 5, loaded.History().Size())
	assert.True(t, loaded.Balance(crowns).Equal(decimal.NewFromInt(5)))
}

func TestGateway_BankIdentityAndMembersSurvive(t *testing.T) {
	// GIVEN: a saved bank with an overdraft and a member
	gw := newGateway(t)
	owner := uuid.New()
	member := uuid.New()
	bank := account.NewBankAccount("vault", owner, gw, nil, account.WithOverdraft())
	require.NoError(t, bank.AddMember(member))

	// WHEN: loading it back
	loaded, err := gw.Load(context.Background(), bank.Key())
	require.NoError(t, err)

	// THEN: kind, owner, overdraft and membership are all restored
	loadedBank, ok := loaded.(*account.BankAccount)
	require.True(t, ok)
	assert.Equal(t, owner, loadedBank.Owner)
	assert.True(t, loadedBank.AllowsOverdraft())
	assert.True(t, loadedBank.HasAccess(member))
}

func TestGateway_LoadUnknownKey(t *testing.T) {
	gw := newGateway(t)

	_, err := gw.Load(context.Background(), "named:missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrUnknownAccount)
}

func TestGateway_LoadAllReturnsEveryAccount(t *testing.T) {
	// GIVEN: three stored accounts
	gw := newGateway(t)
	ctx := context.Background()
	for _, acc := range []account.Account{
		account.NewPlayerAccount(uuid.New(), gw, nil),
		account.NewBankAccount("vault", uuid.New(), gw, nil),
		account.NewNamedAccount("treasury", gw, nil),
	} {
		require.NoError(t, gw.Save(ctx, acc))
	}

	// WHEN: loading everything
	accounts, err := gw.LoadAll(ctx)

	// THEN: all three come back
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
}

func TestGateway_DeleteRemovesAccountAndDependents(t *testing.T) {
	// GIVEN: a stored account with balances and history
	gw := newGateway(t)
	ctx := context.Background()
	named := account.NewNamedAccount("tax", gw, nil)
	_, err := named.DepositSynced(account.NewPaymentFromFloat(crowns, 9))
	require.NoError(t, err)

	// WHEN: deleting it
	require.NoError(t, gw.Delete(ctx, named.Key()))

	// THEN: the account is gone and a fresh save starts clean
	_, err = gw.Load(ctx, named.Key())
	assert.ErrorIs(t, err, account.ErrUnknownAccount)

	require.NoError(t, gw.Save(ctx, named))
	loaded, err := gw.Load(ctx, named.Key())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.History().Size())
}
