package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// ACCOUNT RESOLUTION
// =============================================================================

func TestRegistry_Resolve_CustomerAccount(t *testing.T) {
	// GIVEN: The overdraft account from the customer table
	// WHEN: Resolving it
	// THEN: The snapshot carries GL, class, kind inputs and the loan limit

	b := newTestBook(t)

	info, err := b.engine.Registry().Resolve(context.Background(), acctOverdraft)
	require.NoError(t, err)

	assert.True(t, info.IsCustomer)
	assert.Equal(t, "210201000", info.GLNum)
	assert.Equal(t, ledger.ClassAsset, info.Class)
	assert.Equal(t, ledger.AccountActive, info.Status)
	assertAmount(t, "50000.00", info.LoanLimit)
	assert.True(t, info.Active())
}

func TestRegistry_Resolve_OfficeAccount(t *testing.T) {
	b := newTestBook(t)

	info, err := b.engine.Registry().Resolve(context.Background(), acctCash)
	require.NoError(t, err)

	assert.False(t, info.IsCustomer)
	assert.Equal(t, "210101000", info.GLNum)
	assert.Equal(t, ledger.ClassAsset, info.Class)
	assert.Equal(t, "Teller Cash - Main Branch", info.AcctName)
	assert.True(t, info.LoanLimit.IsZero(), "office accounts carry no loan limit")
}

func TestRegistry_Resolve_Unknown(t *testing.T) {
	b := newTestBook(t)

	_, err := b.engine.Registry().Resolve(context.Background(), "0000000000000")

	assert.True(t, ledger.IsNotFound(err))
	assert.EqualError(t, err, "account 0000000000000 not found")
}

func TestRegistry_Exists(t *testing.T) {
	b := newTestBook(t)
	ctx := context.Background()
	registry := b.engine.Registry()

	ok, err := registry.Exists(ctx, acctSavings)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = registry.Exists(ctx, acctPayables)
	require.NoError(t, err)
	assert.True(t, ok, "office accounts resolve too")

	ok, err = registry.Exists(ctx, "0000000000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// OFFICE ACCOUNT NUMBERING
// =============================================================================

func TestRegistry_NextOfficeAccountNo_Format(t *testing.T) {
	// GIVEN: A leaf GL with no office accounts yet
	// WHEN: Minting two numbers
	// THEN: "9" + GL + zero-padded sequence, advancing per call

	b := newTestBook(t)
	ctx := context.Background()
	registry := b.engine.Registry()

	first, err := registry.NextOfficeAccountNo(ctx, "230101000")
	require.NoError(t, err)
	assert.Equal(t, "923010100001", first)
	assert.Len(t, first, 12)

	second, err := registry.NextOfficeAccountNo(ctx, "230101000")
	require.NoError(t, err)
	assert.Equal(t, "923010100002", second)
}
