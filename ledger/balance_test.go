package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seedBalanceAt writes a balance row at an arbitrary date, for exercising
// the opening-balance fallback tiers.
func seedBalanceAt(t *testing.T, b *testBook, account string, date time.Time, closing string) {
	t.Helper()
	bal := dec(closing)
	require.NoError(t, b.store.SaveAcctBalance(context.Background(), &ledger.AcctBalance{
		TranDate:         date,
		AccountNo:        account,
		OpeningBal:       bal,
		ClosingBal:       bal,
		CurrentBalance:   bal,
		AvailableBalance: bal,
		LastUpdated:      date,
	}))
}

func newBalanceQuery(b *testBook) *ledger.BalanceQuery {
	return ledger.NewBalanceQuery(b.store, b.engine.Registry())
}

// =============================================================================
// OPENING BALANCE FALLBACK
// =============================================================================

func TestBalanceQuery_OpeningBalance_YesterdayRowWins(t *testing.T) {
	// GIVEN: Balance rows at System_Date-1 and five days earlier
	// WHEN: Resolving the opening balance for the system date
	// THEN: Yesterday's closing wins over the stale row

	b := newTestBook(t)
	ctx := context.Background()
	seedBalanceAt(t, b, acctSavings, bookDate.AddDate(0, 0, -5), "100")
	seedBalanceAt(t, b, acctSavings, bookDate.AddDate(0, 0, -1), "700")

	opening, err := newBalanceQuery(b).OpeningBalance(ctx, acctSavings, bookDate)
	require.NoError(t, err)

	assertAmount(t, "700", opening)
}

func TestBalanceQuery_OpeningBalance_FallsBackToLatestBefore(t *testing.T) {
	// GIVEN: The account skipped several EOD cycles; the last row is old
	// WHEN: Resolving the opening balance
	// THEN: The most recent prior closing carries forward

	b := newTestBook(t)
	ctx := context.Background()
	seedBalanceAt(t, b, acctSavings, bookDate.AddDate(0, 0, -9), "150")
	seedBalanceAt(t, b, acctSavings, bookDate.AddDate(0, 0, -5), "300")

	opening, err := newBalanceQuery(b).OpeningBalance(ctx, acctSavings, bookDate)
	require.NoError(t, err)

	assertAmount(t, "300", opening)
}

func TestBalanceQuery_OpeningBalance_NewAccountIsZero(t *testing.T) {
	b := newTestBook(t)

	opening, err := newBalanceQuery(b).OpeningBalance(context.Background(), acctSavings, bookDate)
	require.NoError(t, err)

	assert.True(t, opening.IsZero(), "no prior rows means a fresh account")
}

func TestBalanceQuery_OpeningBalance_IgnoresTodayRow(t *testing.T) {
	// GIVEN: Only an intraday row at the system date itself
	// WHEN: Resolving the opening balance
	// THEN: The day's own row never feeds its opening

	b := newTestBook(t)
	seedBalanceAt(t, b, acctSavings, bookDate, "9999")

	opening, err := newBalanceQuery(b).OpeningBalance(context.Background(), acctSavings, bookDate)
	require.NoError(t, err)

	assert.True(t, opening.IsZero())
}

// =============================================================================
// AVAILABLE BALANCE
// =============================================================================

func TestBalanceQuery_Available_AddsLoanLimitForAssetAccounts(t *testing.T) {
	// GIVEN: An empty overdraft account with a 50000 limit
	// WHEN: Computing availability for it and for an empty savings account
	// THEN: Only the asset-class account sees its limit

	b := newTestBook(t)
	ctx := context.Background()
	q := newBalanceQuery(b)
	registry := b.engine.Registry()

	odInfo, err := registry.Resolve(ctx, acctOverdraft)
	require.NoError(t, err)
	available, err := q.Available(ctx, odInfo, bookDate)
	require.NoError(t, err)
	assertAmount(t, "50000.00", available)

	sbInfo, err := registry.Resolve(ctx, acctSavings)
	require.NoError(t, err)
	available, err = q.Available(ctx, sbInfo, bookDate)
	require.NoError(t, err)
	assertAmount(t, "0", available)
}

func TestBalanceQuery_Available_NetsTodaysLegs(t *testing.T) {
	// GIVEN: Opening 1000, then an intraday 200 debit still at Entry
	// WHEN: Computing availability
	// THEN: The unposted debit already reduces what can move

	b := newTestBook(t)
	ctx := context.Background()
	seedBalanceAt(t, b, acctSavings, bookDate.AddDate(0, 0, -1), "1000")

	_, err := b.engine.Create(ctx, transfer(acctSavings, acctCash, "200"))
	require.NoError(t, err)

	info, err := b.engine.Registry().Resolve(ctx, acctSavings)
	require.NoError(t, err)
	available, err := newBalanceQuery(b).Available(ctx, info, bookDate)
	require.NoError(t, err)

	assertAmount(t, "800", available)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func TestBalanceQuery_Snapshot_AssemblesAllFields(t *testing.T) {
	// GIVEN: Opening 1000, a 200 Entry debit, a Future credit, and an accrual row
	// WHEN: Taking the full snapshot
	// THEN: Sums count the Entry leg only; stored and accrued balances ride along

	b := newTestBook(t)
	ctx := context.Background()
	seedBalanceAt(t, b, acctSavings, bookDate.AddDate(0, 0, -1), "1000")
	require.NoError(t, b.store.SaveAccrualBalance(ctx, &ledger.AccrualBalance{
		TranDate:   bookDate.AddDate(0, 0, -1),
		AccountNo:  acctSavings,
		ClosingBal: dec("12.33"),
	}))

	_, err := b.engine.Create(ctx, transfer(acctSavings, acctCash, "200"))
	require.NoError(t, err)

	future := transfer(acctCash, acctSavings, "500")
	future.ValueDate = bookDate.AddDate(0, 0, 3)
	_, err = b.engine.Create(ctx, future)
	require.NoError(t, err)

	snap, err := newBalanceQuery(b).Snapshot(ctx, acctSavings, bookDate)
	require.NoError(t, err)

	assert.Equal(t, acctSavings, snap.AccountNo)
	assert.Equal(t, "Rahim Uddin - Savings", snap.AccountName)
	assertAmount(t, "1000", snap.OpeningBalance)
	assertAmount(t, "200", snap.TodayDebits)
	assertAmount(t, "0", snap.TodayCredits)
	assertAmount(t, "800", snap.ComputedBalance)
	assertAmount(t, "800", snap.AvailableBalance)
	assertAmount(t, "1000", snap.CurrentBalance)
	assertAmount(t, "12.33", snap.InterestAccrued)
}

func TestBalanceQuery_Snapshot_UnknownAccount(t *testing.T) {
	b := newTestBook(t)

	_, err := newBalanceQuery(b).Snapshot(context.Background(), "0000000000000", bookDate)

	assert.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}
