package eod_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/eod"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/store/memstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// bookDate is the System_Date every test book opens on.
var bookDate = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

const (
	acctSavings   = "1110101000001" // SB01 savings, GL 110101000
	acctSavings2  = "1110101000002" // second savings holder
	acctTerm      = "1110201000001" // TD06 six-month deal, GL 110201000
	acctOverdraft = "1210201000001" // OD01 overdraft, GL 210201000, limit 50000
	acctCash      = "921010100001"  // office cash, GL 210101000 (asset)
	acctPayables  = "913010100001"  // office payables control, GL 130101000 (liability)
)

type testBook struct {
	store      *memstore.Memory
	clock      *ledger.Clock
	engine     *ledger.Engine
	reporter   *eod.Reporter
	pipeline   *eod.Pipeline
	bod        *eod.BOD
	reportsDir string
}

func newTestBook(t *testing.T) *testBook {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	clock := ledger.NewClock(store)
	require.NoError(t, clock.Set(ctx, bookDate, "test"))

	leaves := []ledger.GLSetup{
		{GLNum: "110101000", GLName: "Savings Deposits - Regular", LayerID: 4, LayerGLNum: "110101000", ParentGLNum: "110100000"},
		{GLNum: "110201000", GLName: "Term Deposits - 6 Month", LayerID: 4, LayerGLNum: "110201000", ParentGLNum: "110200000"},
		{GLNum: "130101000", GLName: "Interest Payable on Deposits", LayerID: 4, LayerGLNum: "130101000", ParentGLNum: "130100000"},
		{GLNum: "140101000", GLName: "Interest Expenditure on Deposits", LayerID: 4, LayerGLNum: "140101000", ParentGLNum: "140100000"},
		{GLNum: "210101000", GLName: "Cash in Hand", LayerID: 4, LayerGLNum: "210101000", ParentGLNum: "210100000"},
		{GLNum: "210201000", GLName: "Overdraft Loans", LayerID: 4, LayerGLNum: "210201000", ParentGLNum: "210200000"},
		{GLNum: "230101000", GLName: "Interest Receivable on Loans", LayerID: 4, LayerGLNum: "230101000", ParentGLNum: "230100000"},
		{GLNum: "240101000", GLName: "Interest Income on Loans", LayerID: 4, LayerGLNum: "240101000", ParentGLNum: "240100000"},
	}
	for i := range leaves {
		require.NoError(t, store.SaveGL(ctx, &leaves[i]))
	}

	require.NoError(t, store.SaveProduct(ctx, &ledger.Product{ProdCode: "DEP", ProdName: "Deposits"}))
	require.NoError(t, store.SaveProduct(ctx, &ledger.Product{ProdCode: "LON", ProdName: "Loans"}))

	subProducts := []ledger.SubProduct{
		{
			SubProdCode: "SB01", ProdCode: "DEP", SubProdName: "Regular Savings",
			CumGLNum: "110101000", InttCode: "SB",
			InttGLNumIncomeExp: "140101000", InttGLNumRecvPay: "130101000",
		},
		{
			SubProdCode: "TD06", ProdCode: "DEP", SubProdName: "6 Month Term Deposit",
			CumGLNum: "110201000", InttCode: "TD", FixedInttRate: dec("8.50"),
			InttGLNumIncomeExp: "140101000", InttGLNumRecvPay: "130101000",
		},
		{
			SubProdCode: "OD01", ProdCode: "LON", SubProdName: "Secured Overdraft",
			CumGLNum: "210201000", InttCode: "OD", InttIncrement: dec("1.00"),
			InttGLNumIncomeExp: "240101000", InttGLNumRecvPay: "230101000",
		},
	}
	for i := range subProducts {
		require.NoError(t, store.SaveSubProduct(ctx, &subProducts[i]))
	}

	effective := bookDate.AddDate(-1, 0, 0)
	rates := []ledger.RateRow{
		{InttCode: "SB", InttEffctvDate: effective, InttRate: dec("4.50")},
		{InttCode: "TD", InttEffctvDate: effective, InttRate: dec("8.00")},
		{InttCode: "OD", InttEffctvDate: effective, InttRate: dec("12.00")},
	}
	for i := range rates {
		require.NoError(t, store.SaveRate(ctx, &rates[i]))
	}

	customer := ledger.Customer{CustName: "Rahim Uddin"}
	require.NoError(t, store.SaveCustomer(ctx, &customer))

	accounts := []ledger.CustomerAccount{
		{AccountNo: acctSavings, CustID: customer.CustID, SubProdCode: "SB01", GLNum: "110101000", AcctName: "Rahim Uddin - Savings", DateOpening: bookDate.AddDate(-1, 0, 0), BranchCode: "001", AccountStatus: ledger.AccountActive},
		{AccountNo: acctSavings2, CustID: customer.CustID, SubProdCode: "SB01", GLNum: "110101000", AcctName: "Salma Khatun - Savings", DateOpening: bookDate.AddDate(-1, 0, 0), BranchCode: "001", AccountStatus: ledger.AccountActive},
		{AccountNo: acctTerm, CustID: customer.CustID, SubProdCode: "TD06", GLNum: "110201000", AcctName: "Rahim Uddin - Term Deposit", DateOpening: bookDate.AddDate(0, -1, 0), Tenor: 180, BranchCode: "001", AccountStatus: ledger.AccountActive},
		{AccountNo: acctOverdraft, CustID: customer.CustID, SubProdCode: "OD01", GLNum: "210201000", AcctName: "Rahim Uddin - Overdraft", DateOpening: bookDate.AddDate(0, -1, 0), BranchCode: "001", AccountStatus: ledger.AccountActive, LoanLimit: dec("50000.00")},
	}
	for i := range accounts {
		require.NoError(t, store.SaveCustomerAccount(ctx, &accounts[i]))
	}

	offices := []ledger.OfficeAccount{
		{AccountNo: acctCash, GLNum: "210101000", AcctName: "Teller Cash - Main Branch", DateOpening: bookDate.AddDate(-1, 0, 0), BranchCode: "001", AccountStatus: ledger.AccountActive},
		{AccountNo: acctPayables, GLNum: "130101000", AcctName: "Interest Payable Control", DateOpening: bookDate.AddDate(-1, 0, 0), BranchCode: "001", AccountStatus: ledger.AccountActive},
	}
	for i := range offices {
		require.NoError(t, store.SaveOfficeAccount(ctx, &offices[i]))
	}

	engine := ledger.NewEngine(store, clock)
	reportsDir := t.TempDir()
	reporter := eod.NewReporter(store, reportsDir)
	return &testBook{
		store:      store,
		clock:      clock,
		engine:     engine,
		reporter:   reporter,
		pipeline:   eod.NewPipeline(store, clock, reporter),
		bod:        eod.NewBOD(store, clock, engine),
		reportsDir: reportsDir,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

// transfer builds the standard two-leg request: debit one account, credit
// the other, equal amounts.
func transfer(drAcct, crAcct, amount string) ledger.CreateRequest {
	return ledger.CreateRequest{
		Narration: "Transfer",
		Legs: []ledger.LegRequest{
			{AccountNo: drAcct, DrCrFlag: ledger.Debit, LcyAmt: dec(amount)},
			{AccountNo: crAcct, DrCrFlag: ledger.Credit, LcyAmt: dec(amount)},
		},
	}
}

// postedDeposit runs a cash deposit through the full Entry -> Posted ->
// Verified flow and returns the verified transaction.
func postedDeposit(t *testing.T, b *testBook, account, amount string) *ledger.Transaction {
	t.Helper()
	ctx := context.Background()

	tx, err := b.engine.Create(ctx, transfer(acctCash, account, amount))
	require.NoError(t, err)
	tx, err = b.engine.Post(ctx, tx.TranID)
	require.NoError(t, err)
	tx, err = b.engine.Verify(ctx, tx.TranID)
	require.NoError(t, err)
	return tx
}

// systemDateValue reads the raw System_Date parameter.
func systemDateValue(t *testing.T, b *testBook) string {
	t.Helper()
	p, err := b.store.Parameter(context.Background(), ledger.ParamSystemDate)
	require.NoError(t, err)
	return p.ParameterValue
}

// =============================================================================
// FULL RUN
// =============================================================================

func TestPipeline_RunAll_FullDay(t *testing.T) {
	// GIVEN: one verified cash deposit of 100,000 into a savings account
	b := newTestBook(t)
	ctx := context.Background()
	postedDeposit(t, b, acctSavings, "100000.00")

	// WHEN: the full pipeline runs
	result, err := b.pipeline.RunAll(ctx, "eod-operator")
	require.NoError(t, err)

	// THEN: every job succeeds and the counters reflect the day's work
	assert.True(t, result.Success)
	assert.Equal(t, "EOD completed successfully", result.Message)
	assert.Empty(t, result.FailedAtJob)
	assert.Equal(t, "2024-01-15", result.SystemDate)
	assert.Equal(t, 6, result.AccountsProcessed)         // 4 customer + 2 office
	assert.Equal(t, 2, result.InterestEntriesProcessed)  // one accruing account, two legs
	assert.Equal(t, 2, result.GLMovementsProcessed)      // accrual legs into movement stream
	assert.Equal(t, 2, result.GLMovementsUpdated)        // merged into GL_Movement
	assert.Equal(t, 4, result.GLBalancesUpdated)         // cash, savings, payable, expenditure
	assert.Equal(t, 1, result.AccrualBalancesUpdated)    // the savings account
	assert.Len(t, result.ReportPaths, 2)

	// THEN: the business day advanced and the audit parameters are stamped
	assert.Equal(t, "2024-01-16", systemDateValue(t, b))
	now, err := b.clock.Now(ctx)
	require.NoError(t, err)
	assert.True(t, ledger.SameDate(now, bookDate.AddDate(0, 0, 1)))

	lastDate, err := b.store.Parameter(ctx, ledger.ParamLastEODDate)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", lastDate.ParameterValue)
	lastUser, err := b.store.Parameter(ctx, ledger.ParamLastEODUser)
	require.NoError(t, err)
	assert.Equal(t, "eod-operator", lastUser.ParameterValue)
}

func TestPipeline_RunAll_FullDay_RebuildsBalances(t *testing.T) {
	// GIVEN: a verified deposit and a completed EOD run
	b := newTestBook(t)
	ctx := context.Background()
	postedDeposit(t, b, acctSavings, "100000.00")

	result, err := b.pipeline.RunAll(ctx, "eod-operator")
	require.NoError(t, err)
	require.True(t, result.Success)

	// THEN: the savings account balance row holds the day's credit
	savings, err := b.store.AcctBalanceAt(ctx, acctSavings, bookDate)
	require.NoError(t, err)
	assertAmount(t, "0.00", savings.OpeningBal)
	assertAmount(t, "100000.00", savings.CrSummation)
	assertAmount(t, "100000.00", savings.ClosingBal)
	assertAmount(t, "100000.00", savings.AvailableBalance)

	// THEN: the cash office account carries the mirror debit
	cash, err := b.store.AcctBalanceAt(ctx, acctCash, bookDate)
	require.NoError(t, err)
	assertAmount(t, "100000.00", cash.DrSummation)
	assertAmount(t, "-100000.00", cash.ClosingBal)

	// THEN: the overdraft account has headroom up to its loan limit
	od, err := b.store.AcctBalanceAt(ctx, acctOverdraft, bookDate)
	require.NoError(t, err)
	assertAmount(t, "0.00", od.ClosingBal)
	assertAmount(t, "50000.00", od.AvailableBalance)

	// THEN: the interest GLs carry the day's accrual of 12.33
	expGL, err := b.store.GLBalanceAt(ctx, "140101000", bookDate)
	require.NoError(t, err)
	assertAmount(t, "12.33", expGL.DrSummation)
	assertAmount(t, "-12.33", expGL.ClosingBal)
	payGL, err := b.store.GLBalanceAt(ctx, "130101000", bookDate)
	require.NoError(t, err)
	assertAmount(t, "12.33", payGL.CrSummation)
	assertAmount(t, "12.33", payGL.ClosingBal)

	// THEN: both accrual legs were minted, processed, and netted per account
	legs, err := b.store.AccrualLegsOnDate(ctx, bookDate)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	for _, leg := range legs {
		assert.Equal(t, ledger.AccrualProcessed, leg.Status)
		assert.Equal(t, acctSavings, leg.AccountNo)
		assertAmount(t, "12.33", leg.Amount)
	}
	assert.Equal(t, "S20240115000000001-1", legs[0].AccrTranID)
	assert.Equal(t, "S20240115000000001-2", legs[1].AccrTranID)

	accr, err := b.store.LatestAccrualBalance(ctx, acctSavings, bookDate)
	require.NoError(t, err)
	assertAmount(t, "12.33", accr.DrSummation)
	assertAmount(t, "12.33", accr.CrSummation)
	assertAmount(t, "0.00", accr.ClosingBal)
}

func TestPipeline_RunAll_FullDay_WritesAuditTrail(t *testing.T) {
	// GIVEN: a deposit and a completed run
	b := newTestBook(t)
	ctx := context.Background()
	postedDeposit(t, b, acctSavings, "100000.00")

	result, err := b.pipeline.RunAll(ctx, "eod-operator")
	require.NoError(t, err)
	require.True(t, result.Success)

	// THEN: each job logged a Running and a Success row, plus the summary row
	logs, err := b.pipeline.LogsFor(ctx, bookDate)
	require.NoError(t, err)
	assert.Len(t, logs, 17)

	var successes []string
	var complete *ledger.EODLog
	for i, row := range logs {
		assert.Equal(t, result.RunID, row.RunID)
		if row.Status == ledger.EODSuccess {
			successes = append(successes, row.JobName)
		}
		if row.JobName == "EOD Complete" {
			complete = &logs[i]
		}
	}
	assert.Equal(t, []string{
		"Account Balance Update",
		"Interest Accrual Transaction Update",
		"Interest Accrual GL Movement Update",
		"GL Movement Update",
		"GL Balance Update",
		"Interest Accrual Account Balance Update",
		"Financial Reports Generation",
		"System Date Increment",
		"EOD Complete",
	}, successes)

	require.NotNil(t, complete)
	assert.Equal(t, ledger.EODSuccess, complete.Status)
	assert.Equal(t, 17, complete.RecordsProcessed) // 6+2+2+2+4+1
	assert.NotNil(t, complete.EndTimestamp)
}

func TestPipeline_RunAll_EmptyDay(t *testing.T) {
	// GIVEN: a book with no transactions at all
	b := newTestBook(t)
	ctx := context.Background()

	// WHEN: the pipeline runs
	result, err := b.pipeline.RunAll(ctx, "eod-operator")
	require.NoError(t, err)

	// THEN: the day closes cleanly with zero-work counters
	assert.True(t, result.Success)
	assert.Equal(t, 6, result.AccountsProcessed) // balance rows still written
	assert.Equal(t, 0, result.InterestEntriesProcessed)
	assert.Equal(t, 0, result.GLMovementsProcessed)
	assert.Equal(t, 0, result.GLBalancesUpdated)
	assert.Equal(t, 0, result.AccrualBalancesUpdated)
	assert.Len(t, result.ReportPaths, 2)
	assert.Equal(t, "2024-01-16", systemDateValue(t, b))

	// THEN: both report files exist even for an empty day
	for _, path := range result.ReportPaths {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr)
	}
}

// =============================================================================
// PRE-EOD VALIDATION
// =============================================================================

func TestPipeline_RunAll_BlockedByEntryLegs(t *testing.T) {
	// GIVEN: a transaction still sitting at Entry status
	b := newTestBook(t)
	ctx := context.Background()
	_, err := b.engine.Create(ctx, transfer(acctCash, acctSavings, "5000.00"))
	require.NoError(t, err)

	// WHEN: the pipeline runs
	result, err := b.pipeline.RunAll(ctx, "eod-operator")
	require.NoError(t, err)

	// THEN: the run stops before any job and the day does not close
	assert.False(t, result.Success)
	assert.Equal(t, "Pre-EOD validations failed: 2 transaction leg(s) still at Entry status for 2024-01-15; post or reverse them before EOD", result.Message)
	assert.Empty(t, result.FailedAtJob)
	assert.Equal(t, "2024-01-15", systemDateValue(t, b))

	logs, err := b.pipeline.LogsFor(ctx, bookDate)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Pre-EOD Validation", logs[0].JobName)
	assert.Equal(t, ledger.EODFailed, logs[0].Status)
	assert.Equal(t, "Pre-validation", logs[0].FailedAtStep)
}

func TestPipeline_Validate_EntryLegsBlock(t *testing.T) {
	// GIVEN: one unposted transaction
	b := newTestBook(t)
	ctx := context.Background()
	_, err := b.engine.Create(ctx, transfer(acctCash, acctSavings, "5000.00"))
	require.NoError(t, err)

	// WHEN / THEN: validation names the leg count and the date
	check, err := b.pipeline.Validate(ctx)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, "2 transaction leg(s) still at Entry status for 2024-01-15; post or reverse them before EOD", check.Message)
}

func TestPipeline_Validate_DueFutureLegsBlock(t *testing.T) {
	// GIVEN: a future-dated transaction that has come due without BOD
	b := newTestBook(t)
	ctx := context.Background()

	req := transfer(acctCash, acctSavings, "5000.00")
	req.ValueDate = bookDate.AddDate(0, 0, 1)
	tx, err := b.engine.Create(ctx, req)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusFuture, tx.Status)

	require.NoError(t, b.clock.Set(ctx, bookDate.AddDate(0, 0, 1), "test"))

	// WHEN / THEN: validation points the operator at BOD
	check, err := b.pipeline.Validate(ctx)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, "2 future-dated leg(s) due on or before 2024-01-16 await BOD processing", check.Message)
}

func TestPipeline_Validate_CleanDayPasses(t *testing.T) {
	// GIVEN: a book with only verified work
	b := newTestBook(t)
	ctx := context.Background()
	postedDeposit(t, b, acctSavings, "1000.00")

	// WHEN / THEN
	check, err := b.pipeline.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.Equal(t, "Pre-EOD validations passed", check.Message)
	assert.Equal(t, "2024-01-15", check.SystemDate)
}

func TestPipeline_Validate_MissingSystemDate(t *testing.T) {
	// GIVEN: a store whose Parameter_Table was never initialized
	store := memstore.New()
	clock := ledger.NewClock(store)
	pipeline := eod.NewPipeline(store, clock, eod.NewReporter(store, t.TempDir()))

	// WHEN / THEN: validation fails instead of erroring
	check, err := pipeline.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Contains(t, check.Message, "System_Date is not configured")
}

// =============================================================================
// JOB GATING
// =============================================================================

func TestPipeline_RunJob_AlreadyExecuted(t *testing.T) {
	// GIVEN: job 1 has already succeeded today
	b := newTestBook(t)
	ctx := context.Background()
	count, err := b.pipeline.RunJob(ctx, 1, "eod-operator")
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	// WHEN: it is requested again for the same date
	_, err = b.pipeline.RunJob(ctx, 1, "eod-operator")

	// THEN: the second attempt is refused as a conflict
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrAlreadyExecuted))
	assert.True(t, ledger.IsConflict(err))
}

func TestPipeline_RunJob_PreviousJobPending(t *testing.T) {
	// GIVEN: a fresh day with no jobs run
	b := newTestBook(t)
	ctx := context.Background()

	// WHEN / THEN: jobs past the first are gated on their predecessor
	_, err := b.pipeline.RunJob(ctx, 3, "eod-operator")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrPreviousJobPending))

	_, err = b.pipeline.RunJob(ctx, 8, "eod-operator")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrPreviousJobPending))
}

func TestPipeline_RunJob_UnknownNumber(t *testing.T) {
	b := newTestBook(t)
	ctx := context.Background()

	_, err := b.pipeline.RunJob(ctx, 9, "eod-operator")
	require.Error(t, err)
	assert.True(t, ledger.IsBusinessRule(err))
	assert.Contains(t, err.Error(), "unknown batch job 9")

	_, err = b.pipeline.RunJob(ctx, 0, "eod-operator")
	require.Error(t, err)
	assert.True(t, ledger.IsBusinessRule(err))
}

func TestPipeline_RunJob_SequentialChain(t *testing.T) {
	// GIVEN: a verified deposit
	b := newTestBook(t)
	ctx := context.Background()
	postedDeposit(t, b, acctSavings, "100000.00")

	// WHEN: the jobs are driven one at a time, in order
	wantCounts := []int{6, 2, 2, 2, 4, 1, 2, 1}
	for job := 1; job <= 8; job++ {
		count, err := b.pipeline.RunJob(ctx, job, "eod-operator")
		require.NoError(t, err, "job %d (%s)", job, eod.JobName(job))
		assert.Equal(t, wantCounts[job-1], count, "job %d (%s)", job, eod.JobName(job))
	}

	// THEN: the chain closes the day exactly like RunAll would
	assert.Equal(t, "2024-01-16", systemDateValue(t, b))

	// THEN: the new date starts with a clean slate, so job 1 runs again
	count, err := b.pipeline.RunJob(ctx, 1, "eod-operator")
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestPipeline_RunAll_SkipsCompletedJobs(t *testing.T) {
	// GIVEN: job 1 was already run by hand
	b := newTestBook(t)
	ctx := context.Background()
	postedDeposit(t, b, acctSavings, "100000.00")
	_, err := b.pipeline.RunJob(ctx, 1, "eod-operator")
	require.NoError(t, err)

	// WHEN: the full pipeline runs afterwards
	result, err := b.pipeline.RunAll(ctx, "eod-operator")
	require.NoError(t, err)

	// THEN: the completed job is skipped and the rest still run
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.AccountsProcessed) // skipped, counter stays zero
	assert.Equal(t, 2, result.InterestEntriesProcessed)
	assert.Equal(t, "2024-01-16", systemDateValue(t, b))
}

// =============================================================================
// FAILURE HANDLING
// =============================================================================

func TestPipeline_RunAll_TrialBalanceImbalanceFailsReportJob(t *testing.T) {
	// GIVEN: a stray one-sided GL movement with no matching credit
	b := newTestBook(t)
	ctx := context.Background()
	require.NoError(t, b.store.SaveMovement(ctx, &ledger.GLMovement{
		TranID:    "T20240115999999421-1",
		GLNum:     "210101000",
		DrCrFlag:  ledger.Debit,
		TranDate:  bookDate,
		ValueDate: bookDate,
		Amount:    dec("500.00"),
	}))

	// WHEN: the pipeline runs
	result, err := b.pipeline.RunAll(ctx, "eod-operator")
	require.NoError(t, err)

	// THEN: the run stops at the reports job and the day stays open
	assert.False(t, result.Success)
	assert.Equal(t, "Financial Reports Generation", result.FailedAtJob)
	assert.Contains(t, result.Message, "EOD process failed:")
	assert.Contains(t, result.Message, "total DR 500.00 != total CR 0.00")
	assert.Equal(t, "2024-01-15", systemDateValue(t, b))

	// THEN: the six ledger jobs stay committed, only the report job failed
	for job := 1; job <= 6; job++ {
		done, gateErr := b.store.HasJobSuccess(ctx, bookDate, eod.JobName(job))
		require.NoError(t, gateErr)
		assert.True(t, done, "job %d should have succeeded", job)
	}
	done, gateErr := b.store.HasJobSuccess(ctx, bookDate, eod.JobName(7))
	require.NoError(t, gateErr)
	assert.False(t, done)

	// THEN: the trial balance file was still written for inspection
	tbPath := filepath.Join(b.reportsDir, "20240115", "TrialBalance_20240115.csv")
	_, statErr := os.Stat(tbPath)
	assert.NoError(t, statErr)

	// THEN: the failure is on the audit trail
	logs, logErr := b.pipeline.LogsFor(ctx, bookDate)
	require.NoError(t, logErr)
	var failed []string
	for _, row := range logs {
		if row.Status == ledger.EODFailed {
			failed = append(failed, row.JobName)
		}
	}
	assert.Equal(t, []string{"Financial Reports Generation", "EOD Failed"}, failed)
}
