package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seedClosingBalance writes a balance row for the book date so the accrual
// run sees a closing balance without replaying transactions.
func seedClosingBalance(t *testing.T, b *testBook, account, closing string) {
	t.Helper()
	bal := dec(closing)
	require.NoError(t, b.store.SaveAcctBalance(context.Background(), &ledger.AcctBalance{
		TranDate:         bookDate,
		AccountNo:        account,
		OpeningBal:       bal,
		ClosingBal:       bal,
		CurrentBalance:   bal,
		AvailableBalance: bal,
		LastUpdated:      bookDate,
	}))
}

// zeroRemainingBalances parks every fixture account not named at zero so it
// skips cleanly instead of failing with a missing balance row.
func zeroRemainingBalances(t *testing.T, b *testBook, except ...string) {
	t.Helper()
	skip := map[string]bool{}
	for _, a := range except {
		skip[a] = true
	}
	for _, a := range []string{acctSavings, acctSavings2, acctTerm, acctOverdraft} {
		if !skip[a] {
			seedClosingBalance(t, b, a, "0")
		}
	}
}

func runAccrual(t *testing.T, b *testBook) *ledger.AccrualResult {
	t.Helper()
	var result *ledger.AccrualResult
	err := b.store.WithTx(context.Background(), func(s ledger.Store) error {
		var err error
		result, err = ledger.NewAccrualEngine(b.store).RunDaily(context.Background(), s, bookDate)
		return err
	})
	require.NoError(t, err)
	return result
}

// =============================================================================
// DAILY ACCRUAL
// =============================================================================

func TestAccrualEngine_SavingsAccrual_BalancedLegs(t *testing.T) {
	// GIVEN: A savings account closing at 100000 with the SB rate at 4.50
	// WHEN: Running the daily accrual
	// THEN: Two Pending legs carry round(100000 * 4.50 / 36500, 2) = 12.33,
	//       debit expenditure GL, credit payable GL

	b := newTestBook(t)
	ctx := context.Background()
	seedClosingBalance(t, b, acctSavings, "100000")
	zeroRemainingBalances(t, b, acctSavings)

	result := runAccrual(t, b)

	assert.Equal(t, 1, result.AccountsProcessed)
	assert.Equal(t, 2, result.EntriesCreated)
	assert.Equal(t, 3, result.Skipped)
	assert.Empty(t, result.Errors)

	legs, err := b.store.PendingAccrualLegs(ctx, bookDate)
	require.NoError(t, err)
	require.Len(t, legs, 2)

	dr, cr := legs[0], legs[1]
	assert.Equal(t, "S20240115000000001-1", dr.AccrTranID)
	assert.Equal(t, "S20240115000000001-2", cr.AccrTranID)
	assert.Len(t, dr.AccrTranID, 20)

	assert.Equal(t, ledger.Debit, dr.DrCrFlag)
	assert.Equal(t, "140101000", dr.GLAccountNo, "liability accrual debits the expenditure GL")
	assert.Equal(t, "Interest Expenditure Accrual - "+acctSavings, dr.Narration)

	assert.Equal(t, ledger.Credit, cr.DrCrFlag)
	assert.Equal(t, "130101000", cr.GLAccountNo, "liability accrual credits the payable GL")
	assert.Equal(t, "Interest Payable Accrual - "+acctSavings, cr.Narration)

	for _, leg := range legs {
		assert.Equal(t, acctSavings, leg.AccountNo, "both legs reference the customer account")
		assertAmount(t, "12.33", leg.Amount)
		assertAmount(t, "4.50", leg.InttRate)
		assert.Equal(t, ledger.AccrualPending, leg.Status)
		assert.Equal(t, ledger.DefaultCurrency, leg.TranCcy)
	}
}

func TestAccrualEngine_OverdraftRate_AddsIncrement(t *testing.T) {
	// GIVEN: An overdraft drawn 20000 (arithmetic closing -20000) with the
	//        OD master rate 12.00 and a sub-product increment of 1.00
	// WHEN: Running the daily accrual
	// THEN: The rate resolves to 13.00, the amount keeps the balance's sign,
	//       and the asset GL pair is selected

	b := newTestBook(t)
	ctx := context.Background()
	seedClosingBalance(t, b, acctOverdraft, "-20000")
	zeroRemainingBalances(t, b, acctOverdraft)

	result := runAccrual(t, b)
	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.AccountsProcessed)

	legs, err := b.store.PendingAccrualLegs(ctx, bookDate)
	require.NoError(t, err)
	require.Len(t, legs, 2)

	dr := legs[0]
	assert.Equal(t, "230101000", dr.GLAccountNo, "asset accrual debits the receivable GL")
	assert.Equal(t, "Interest Receivable Accrual - "+acctOverdraft, dr.Narration)
	assert.Equal(t, "240101000", legs[1].GLAccountNo, "asset accrual credits the income GL")
	assert.Equal(t, "Interest Income Accrual - "+acctOverdraft, legs[1].Narration)

	assertAmount(t, "13.00", dr.InttRate)
	assertAmount(t, "-7.12", dr.Amount) // -20000 * 13 / 36500, rounded
}

func TestAccrualEngine_DealAccount_UsesFixedRate(t *testing.T) {
	// GIVEN: A liability deal account (GL 1102*) whose sub-product froze
	//        8.50 at opening while the TD master rate says 8.00
	// WHEN: Running the daily accrual
	// THEN: The frozen rate wins

	b := newTestBook(t)
	ctx := context.Background()
	seedClosingBalance(t, b, acctTerm, "50000")
	zeroRemainingBalances(t, b, acctTerm)

	result := runAccrual(t, b)
	require.Empty(t, result.Errors)

	legs, err := b.store.PendingAccrualLegs(ctx, bookDate)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assertAmount(t, "8.50", legs[0].InttRate)
	assertAmount(t, "11.64", legs[0].Amount) // 50000 * 8.50 / 36500
}

func TestAccrualEngine_MissingRate_CollectedNotFatal(t *testing.T) {
	// GIVEN: An account whose sub-product names an interest code with no
	//        Intt_Rate_Master row
	// WHEN: Running the daily accrual
	// THEN: The failure is collected per account and the batch finishes

	b := newTestBook(t)
	ctx := context.Background()

	require.NoError(t, b.store.SaveSubProduct(ctx, &ledger.SubProduct{
		SubProdCode: "SBX", ProdCode: "DEP", SubProdName: "Unwired Savings",
		CumGLNum: "110101000", InttCode: "XX",
		InttGLNumIncomeExp: "140101000", InttGLNumRecvPay: "130101000",
	}))
	require.NoError(t, b.store.SaveCustomerAccount(ctx, &ledger.CustomerAccount{
		AccountNo: "1110101000003", CustID: 1, SubProdCode: "SBX", GLNum: "110101000",
		AcctName: "Unwired Savings Holder", DateOpening: bookDate, BranchCode: "001",
		AccountStatus: ledger.AccountActive,
	}))
	seedClosingBalance(t, b, "1110101000003", "500")
	zeroRemainingBalances(t, b)

	result := runAccrual(t, b)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Account 1110101000003: no rate configured for code XX as of 2024-01-15", result.Errors[0])
	assert.Equal(t, 0, result.AccountsProcessed)
	assert.Equal(t, 4, result.Skipped, "the other accounts still ran")
}

func TestAccrualEngine_NoInterestCode_Skipped(t *testing.T) {
	// GIVEN: A sub-product with a blank interest code
	// WHEN: Running the daily accrual
	// THEN: The account is an ordinary skip, not an error

	b := newTestBook(t)
	ctx := context.Background()

	require.NoError(t, b.store.SaveSubProduct(ctx, &ledger.SubProduct{
		SubProdCode: "NI01", ProdCode: "DEP", SubProdName: "Non-Interest Current",
		CumGLNum: "110101000",
	}))
	require.NoError(t, b.store.SaveCustomerAccount(ctx, &ledger.CustomerAccount{
		AccountNo: "1110101000004", CustID: 1, SubProdCode: "NI01", GLNum: "110101000",
		AcctName: "Current Account Holder", DateOpening: bookDate, BranchCode: "001",
		AccountStatus: ledger.AccountActive,
	}))
	seedClosingBalance(t, b, "1110101000004", "75000")
	zeroRemainingBalances(t, b)

	result := runAccrual(t, b)

	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, result.AccountsProcessed)
	assert.Equal(t, 5, result.Skipped)
}

func TestAccrualEngine_GLFallback_SingleColumn(t *testing.T) {
	// GIVEN: A sub-product with only the receivable/payable GL wired
	// WHEN: Accruing a liability account on it
	// THEN: Both legs land on the one configured GL

	b := newTestBook(t)
	ctx := context.Background()

	require.NoError(t, b.store.SaveSubProduct(ctx, &ledger.SubProduct{
		SubProdCode: "SB02", ProdCode: "DEP", SubProdName: "Savings - Payable Only",
		CumGLNum: "110101000", InttCode: "SB",
		InttGLNumRecvPay: "130101000",
	}))
	require.NoError(t, b.store.SaveCustomerAccount(ctx, &ledger.CustomerAccount{
		AccountNo: "1110101000005", CustID: 1, SubProdCode: "SB02", GLNum: "110101000",
		AcctName: "Fallback Holder", DateOpening: bookDate, BranchCode: "001",
		AccountStatus: ledger.AccountActive,
	}))
	seedClosingBalance(t, b, "1110101000005", "10000")
	zeroRemainingBalances(t, b)

	result := runAccrual(t, b)
	require.Empty(t, result.Errors)

	legs, err := b.store.PendingAccrualLegs(ctx, bookDate)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, "130101000", legs[0].GLAccountNo)
	assert.Equal(t, "130101000", legs[1].GLAccountNo)
}

func TestAccrualEngine_SequenceAdvances_PerEligibleAccount(t *testing.T) {
	// GIVEN: Two interest-bearing balances and a prior accrual at sequence 41
	// WHEN: Running the daily accrual
	// THEN: Sequences continue at 42 and 43; zero-balance accounts consume none

	b := newTestBook(t)
	ctx := context.Background()
	seedClosingBalance(t, b, acctSavings, "100000")
	seedClosingBalance(t, b, acctTerm, "50000")
	zeroRemainingBalances(t, b, acctSavings, acctTerm)

	priorID, err := ledger.NewAccrTranID(bookDate, 41, 1)
	require.NoError(t, err)
	require.NoError(t, b.store.SaveAccrualLeg(ctx, &ledger.AccrualLeg{
		AccrTranID: priorID, AccountNo: acctSavings, AccrualDate: bookDate,
		Amount: dec("1.00"), DrCrFlag: ledger.Debit, GLAccountNo: "140101000",
		TranCcy: ledger.DefaultCurrency, Status: ledger.AccrualProcessed,
	}))

	result := runAccrual(t, b)
	require.Empty(t, result.Errors)
	assert.Equal(t, 2, result.AccountsProcessed)
	assert.Equal(t, 4, result.EntriesCreated)

	legs, err := b.store.PendingAccrualLegs(ctx, bookDate)
	require.NoError(t, err)
	require.Len(t, legs, 4)
	assert.Equal(t, "S20240115000000042-1", legs[0].AccrTranID)
	assert.Equal(t, "S20240115000000042-2", legs[1].AccrTranID)
	assert.Equal(t, "S20240115000000043-1", legs[2].AccrTranID)
	assert.Equal(t, "S20240115000000043-2", legs[3].AccrTranID)
}

// =============================================================================
// INTEREST ARITHMETIC
// =============================================================================

func TestDailyInterest_Rounding(t *testing.T) {
	cases := []struct {
		balance string
		rate    string
		want    string
	}{
		{"100000", "4.50", "12.33"}, // 12.3287... rounds up
		{"50000", "8.50", "11.64"},  // 11.6438... rounds down
		{"36500", "1", "1.00"},
		{"100", "4.50", "0.01"},
		{"1", "0.01", "0.00"},        // rounds to nothing
		{"-20000", "13.00", "-7.12"}, // sign follows the balance
	}

	for _, c := range cases {
		got := ledger.DailyInterest(dec(c.balance), dec(c.rate))
		assert.True(t, got.Equal(dec(c.want)), "DailyInterest(%s, %s) = %s, want %s",
			c.balance, c.rate, got, c.want)
	}
}
