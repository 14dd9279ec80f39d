package eod_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
)

// futureDeposit books a cash deposit with a forward value date and returns
// the Future-status transaction.
func futureDeposit(t *testing.T, b *testBook, account, amount string, daysAhead int) *ledger.Transaction {
	t.Helper()
	req := transfer(acctCash, account, amount)
	req.ValueDate = bookDate.AddDate(0, 0, daysAhead)
	tx, err := b.engine.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusFuture, tx.Status)
	return tx
}

func TestBOD_Run_NoWork(t *testing.T) {
	// GIVEN: a future-dated transaction not yet due
	b := newTestBook(t)
	ctx := context.Background()
	futureDeposit(t, b, acctSavings, "5000.00", 2)

	// WHEN: BOD runs today
	result, err := b.bod.Run(ctx)
	require.NoError(t, err)

	// THEN: nothing is promoted and the pending count is untouched
	assert.Equal(t, "NO_WORK", result.Status)
	assert.Equal(t, "No future-dated transactions due for processing", result.Message)
	assert.Equal(t, int64(2), result.PendingCountBefore)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, int64(2), result.PendingCountAfter)
	assert.Equal(t, "2024-01-15", result.SystemDate)
}

func TestBOD_Run_PromotesDueLegs(t *testing.T) {
	// GIVEN: a transaction value-dated tomorrow, and the day has rolled over
	b := newTestBook(t)
	ctx := context.Background()
	tx := futureDeposit(t, b, acctSavings, "5000.00", 1)
	nextDay := bookDate.AddDate(0, 0, 1)
	require.NoError(t, b.clock.Set(ctx, nextDay, "test"))

	// WHEN: BOD runs
	result, err := b.bod.Run(ctx)
	require.NoError(t, err)

	// THEN: both legs are posted and nothing remains pending
	assert.Equal(t, "SUCCESS", result.Status)
	assert.Equal(t, "BOD processing completed successfully", result.Message)
	assert.Equal(t, int64(2), result.PendingCountBefore)
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, int64(0), result.PendingCountAfter)
	assert.Equal(t, "2024-01-16", result.SystemDate)

	// THEN: the legs are Posted but keep their booking date
	legs, err := b.store.LegsByBase(ctx, tx.TranID)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	for _, leg := range legs {
		assert.Equal(t, ledger.StatusPosted, leg.TranStatus)
		assert.True(t, ledger.SameDate(leg.TranDate, bookDate), "booking date must survive promotion")
		assert.True(t, ledger.SameDate(leg.ValueDate, nextDay))
	}

	// THEN: balances and the GL movement stream reflect the promotion day
	savings, err := b.store.LatestAcctBalance(ctx, acctSavings, nextDay)
	require.NoError(t, err)
	assertAmount(t, "5000.00", savings.CurrentBalance)
	moves, err := b.store.MovementsOnDate(ctx, nextDay)
	require.NoError(t, err)
	assert.Len(t, moves, 2)
}

func TestBOD_Run_PartialFailureKeepsGoodLegs(t *testing.T) {
	// GIVEN: two due transactions, where one credit account was frozen
	// after booking
	b := newTestBook(t)
	ctx := context.Background()
	tx1 := futureDeposit(t, b, acctSavings, "1000.00", 1)
	tx2 := futureDeposit(t, b, acctSavings2, "2000.00", 1)

	frozen, err := b.store.CustomerAccount(ctx, acctSavings2)
	require.NoError(t, err)
	frozen.AccountStatus = ledger.AccountInactive
	require.NoError(t, b.store.SaveCustomerAccount(ctx, frozen))

	require.NoError(t, b.clock.Set(ctx, bookDate.AddDate(0, 0, 1), "test"))

	// WHEN: BOD runs
	result, err := b.bod.Run(ctx)
	require.NoError(t, err)

	// THEN: the failed leg rolls back alone; the other three are posted
	assert.Equal(t, "PARTIAL", result.Status)
	assert.Contains(t, result.Message, "BOD processed 3 of 4 due leg(s)")
	assert.Contains(t, result.Message, "Inactive")
	assert.Equal(t, int64(4), result.PendingCountBefore)
	assert.Equal(t, 3, result.ProcessedCount)
	assert.Equal(t, int64(1), result.PendingCountAfter)

	legs1, err := b.store.LegsByBase(ctx, tx1.TranID)
	require.NoError(t, err)
	for _, leg := range legs1 {
		assert.Equal(t, ledger.StatusPosted, leg.TranStatus)
	}

	legs2, err := b.store.LegsByBase(ctx, tx2.TranID)
	require.NoError(t, err)
	require.Len(t, legs2, 2)
	assert.Equal(t, ledger.StatusPosted, legs2[0].TranStatus) // cash debit went through
	assert.Equal(t, ledger.StatusFuture, legs2[1].TranStatus) // frozen credit stays pending
}

func TestBOD_Run_RetryPromotesRemainingLeg(t *testing.T) {
	// GIVEN: a partial run left one leg pending on a frozen account
	b := newTestBook(t)
	ctx := context.Background()
	tx := futureDeposit(t, b, acctSavings2, "2000.00", 1)

	frozen, err := b.store.CustomerAccount(ctx, acctSavings2)
	require.NoError(t, err)
	frozen.AccountStatus = ledger.AccountInactive
	require.NoError(t, b.store.SaveCustomerAccount(ctx, frozen))
	require.NoError(t, b.clock.Set(ctx, bookDate.AddDate(0, 0, 1), "test"))

	result, err := b.bod.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "PARTIAL", result.Status)

	// WHEN: the account is reactivated and BOD runs again
	frozen.AccountStatus = ledger.AccountActive
	require.NoError(t, b.store.SaveCustomerAccount(ctx, frozen))
	retry, err := b.bod.Run(ctx)
	require.NoError(t, err)

	// THEN: only the stranded leg is left to promote, and it posts
	assert.Equal(t, "SUCCESS", retry.Status)
	assert.Equal(t, int64(1), retry.PendingCountBefore)
	assert.Equal(t, 1, retry.ProcessedCount)
	assert.Equal(t, int64(0), retry.PendingCountAfter)

	legs, err := b.store.LegsByBase(ctx, tx.TranID)
	require.NoError(t, err)
	for _, leg := range legs {
		assert.Equal(t, ledger.StatusPosted, leg.TranStatus)
	}
}

func TestBOD_Status_ReportsDueLegs(t *testing.T) {
	// GIVEN: one transaction due tomorrow
	b := newTestBook(t)
	ctx := context.Background()
	futureDeposit(t, b, acctSavings, "5000.00", 1)

	// WHEN / THEN: today nothing is due, but the legs count as pending
	status, err := b.bod.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", status.SystemDate)
	assert.Equal(t, int64(2), status.PendingCount)
	assert.Empty(t, status.DueLegs)

	// WHEN / THEN: after the rollover both legs show up as due
	require.NoError(t, b.clock.Set(ctx, bookDate.AddDate(0, 0, 1), "test"))
	status, err = b.bod.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.PendingCount)
	assert.Len(t, status.DueLegs, 2)
}

func TestBOD_Status_EmptyBook(t *testing.T) {
	b := newTestBook(t)

	status, err := b.bod.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.PendingCount)
	assert.NotNil(t, status.DueLegs)
	assert.Len(t, status.DueLegs, 0)
}
