package account_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EconToolBox/EconToolBox/account"
	"github.com/EconToolBox/EconToolBox/account/store"
)

func TestBankAccount_OwnerAlwaysHasAccess(t *testing.T) {
	owner := uuid.New()
	bank := account.NewBankAccount("vault", owner, nil, nil)

	assert.True(t, bank.HasAccess(owner))
	assert.False(t, bank.HasAccess(uuid.New()))
}

func TestBankAccount_MembershipGrantAndRevoke(t *testing.T) {
	// GIVEN: a bank with one granted member
	gw := store.NewMemory()
	owner := uuid.New()
	member := uuid.New()
	bank := account.NewBankAccount("vault", owner, gw, nil)

	// WHEN: access is granted
	require.NoError(t, bank.AddMember(member))

	// THEN: the member has access, appears in the roster, and the grant
	// was persisted
	assert.True(t, bank.HasAccess(member))
	assert.Equal(t, []uuid.UUID{member}, bank.Members())
	assert.Equal(t, 1, gw.SaveCount(bank.Key()))

	// AND WHEN: access is revoked
	require.NoError(t, bank.RemoveMember(member))
	assert.False(t, bank.HasAccess(member))
	assert.Empty(t, bank.Members())
	assert.Equal(t, 2, gw.SaveCount(bank.Key()))
}

func TestBankAccount_MembersExcludesOwner(t *testing.T) {
	owner := uuid.New()
	bank := account.NewBankAccount("vault", owner, nil, nil)
	require.NoError(t, bank.AddMember(uuid.New()))

	for _, id := range bank.Members() {
		assert.NotEqual(t, owner, id)
	}
}

func TestBankKey_EncodesOwnerAndName(t *testing.T) {
	owner := uuid.MustParse("6f9619ff-8b86-4d01-b42d-00c04fc964ff")
	key := account.BankKey("vault", owner)
	assert.Equal(t, "bank:6f9619ff-8b86-4d01-b42d-00c04fc964ff:vault", key)
}
