package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/store/memstore"
)

// =============================================================================
// BUSINESS-DATE CLOCK
// =============================================================================

func TestClock_Now_UnsetParameter(t *testing.T) {
	// GIVEN: A store with no System_Date row
	// WHEN: Reading the clock
	// THEN: The sentinel surfaces as a Configuration error

	clock := ledger.NewClock(memstore.New())

	_, err := clock.Now(context.Background())

	assert.ErrorIs(t, err, ledger.ErrSystemDateNotSet)
	assert.True(t, ledger.IsConfiguration(err))
}

func TestClock_SetThenNow_RoundTrips(t *testing.T) {
	// GIVEN: A clock set to a date with a stray time-of-day component
	// WHEN: Reading it back
	// THEN: Now returns the UTC midnight of that date

	store := memstore.New()
	clock := ledger.NewClock(store)
	ctx := context.Background()

	noisy := time.Date(2024, time.March, 5, 17, 42, 9, 0, time.UTC)
	require.NoError(t, clock.Set(ctx, noisy, "admin"))

	got, err := clock.Now(ctx)
	require.NoError(t, err)

	assert.True(t, got.Equal(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)))

	ts, err := clock.NowTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, ts.Equal(got), "timestamps are the business date at start-of-day")
}

func TestClock_Now_GarbageParameter(t *testing.T) {
	// GIVEN: A System_Date row holding text no date layout accepts
	// WHEN: Reading the clock
	// THEN: A Configuration error names the offending value

	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.SetParameter(ctx, ledger.ParamSystemDate, "not-a-date", "admin", time.Now()))

	_, err := ledger.NewClock(store).Now(ctx)

	assert.Error(t, err)
	assert.True(t, ledger.IsConfiguration(err))
	assert.EqualError(t, err, `System_Date "not-a-date" is not a valid date`)
}

func TestClock_Set_StampsWriter(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	require.NoError(t, ledger.NewClock(store).Set(ctx, bookDate, "eod-pipeline"))

	p, err := store.Parameter(ctx, ledger.ParamSystemDate)
	require.NoError(t, err)
	assert.Equal(t, "eod-pipeline", p.UpdatedBy)
	assert.Equal(t, ledger.FormatDate(bookDate), p.ParameterValue)
}
