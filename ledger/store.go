/*
store.go - Persistence interface between the domain and the database

PURPOSE:
  Declares what the ledger needs from storage, grouped by concern. The
  concrete implementation lives in store/sqlstore and is backed by a
  relational database; tests run it against in-memory SQLite.

TRANSACTIONAL CONTRACT:
  WithTx runs fn inside one unit of work. Mutating operations (posting,
  reversal, each EOD job's work) execute inside WithTx; the EOD log is
  deliberately written OUTSIDE any job transaction so the audit trail
  survives a rollback.

  Today* lookups take a row lock (SELECT ... FOR UPDATE where the driver
  supports it) and create the day's row when absent, carrying the opening
  balance forward from the latest prior row.

IMMUTABILITY:
  Tran_Table legs never change except for Tran_Status transitions.
  GL_Movement, GL_Movement_Accrual and Txn_Hist_Acct are append-only;
  corrections happen through reversal transactions.

SEE ALSO:
  - store/sqlstore: GORM implementation
  - engine.go, accrual.go, eod package: the callers
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PARAMETERS
// =============================================================================

type ParameterStore interface {
	// Parameter returns the named row or a NotFound error.
	Parameter(ctx context.Context, name string) (*Parameter, error)

	// SetParameter upserts the named row, stamping Updated_By/Last_Updated.
	SetParameter(ctx context.Context, name, value, updatedBy string, at time.Time) error
}

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

type GLStore interface {
	GL(ctx context.Context, glNum string) (*GLSetup, error)
	SaveGL(ctx context.Context, gl *GLSetup) error
	GLsByLayer(ctx context.Context, layerID int) ([]GLSetup, error)

	// InterestRecvPayLeafGLs returns layer-4 GLs whose prefix is 13 or 23.
	InterestRecvPayLeafGLs(ctx context.Context) ([]GLSetup, error)

	// InterestIncomeExpLeafGLs returns layer-4 GLs whose prefix is 14 or 24.
	InterestIncomeExpLeafGLs(ctx context.Context) ([]GLSetup, error)

	// ActiveGLNums returns every GL referenced by a sub-product that has at
	// least one open account, plus the interest GLs those sub-products
	// reference. Sorted ascending.
	ActiveGLNums(ctx context.Context) ([]string, error)

	// BalanceSheetGLNums narrows ActiveGLNums to balance-sheet GLs: main
	// GLs with prefix 1 or 2 (excluding the 14/24 interest prefixes), plus
	// the referenced interest GLs regardless of prefix.
	BalanceSheetGLNums(ctx context.Context) ([]string, error)
}

// =============================================================================
// ACCOUNTS & RATES
// =============================================================================

type AccountStore interface {
	CustomerAccount(ctx context.Context, accountNo string) (*CustomerAccount, error)
	OfficeAccount(ctx context.Context, accountNo string) (*OfficeAccount, error)
	SaveCustomer(ctx context.Context, c *Customer) error
	SaveProduct(ctx context.Context, p *Product) error
	SaveSubProduct(ctx context.Context, sp *SubProduct) error
	SaveCustomerAccount(ctx context.Context, a *CustomerAccount) error
	SaveOfficeAccount(ctx context.Context, a *OfficeAccount) error
	ActiveCustomerAccounts(ctx context.Context) ([]CustomerAccount, error)
	ActiveOfficeAccounts(ctx context.Context) ([]OfficeAccount, error)
	SubProduct(ctx context.Context, code string) (*SubProduct, error)

	// NextOfficeSeq increments and returns the per-GL office account
	// counter under a row lock. Fails BusinessRule past 99.
	NextOfficeSeq(ctx context.Context, glNum string) (int, error)

	// LatestRate returns the Intt_Rate_Master row with the greatest
	// effective date <= asOf for the code, or NotFound.
	LatestRate(ctx context.Context, inttCode string, asOf time.Time) (*RateRow, error)
	SaveRate(ctx context.Context, r *RateRow) error
}

// =============================================================================
// BALANCES
// =============================================================================

type BalanceStore interface {
	// AcctBalanceAt returns the exact (accountNo, date) row or NotFound.
	AcctBalanceAt(ctx context.Context, accountNo string, date time.Time) (*AcctBalance, error)

	// LatestAcctBalance returns the row with the greatest tranDate <= asOf.
	LatestAcctBalance(ctx context.Context, accountNo string, asOf time.Time) (*AcctBalance, error)

	// LatestAcctBalanceBefore returns the row with the greatest
	// tranDate < date (tier 2 of the opening-balance fallback).
	LatestAcctBalanceBefore(ctx context.Context, accountNo string, date time.Time) (*AcctBalance, error)

	// TodayAcctBalance returns the date's row under a row lock, creating it
	// with the opening balance carried forward when absent.
	TodayAcctBalance(ctx context.Context, accountNo string, date time.Time) (*AcctBalance, error)

	SaveAcctBalance(ctx context.Context, b *AcctBalance) error

	GLBalanceAt(ctx context.Context, glNum string, date time.Time) (*GLBalance, error)
	LatestGLBalanceBefore(ctx context.Context, glNum string, date time.Time) (*GLBalance, error)
	TodayGLBalance(ctx context.Context, glNum string, date time.Time) (*GLBalance, error)
	SaveGLBalance(ctx context.Context, b *GLBalance) error
	GLBalancesOn(ctx context.Context, date time.Time, glNums []string) ([]GLBalance, error)

	LatestAccrualBalance(ctx context.Context, accountNo string, asOf time.Time) (*AccrualBalance, error)
	LatestAccrualBalanceBefore(ctx context.Context, accountNo string, date time.Time) (*AccrualBalance, error)
	SaveAccrualBalance(ctx context.Context, b *AccrualBalance) error
}

// =============================================================================
// TRANSACTION LEGS, MOVEMENTS, HISTORY
// =============================================================================

type TranStore interface {
	SaveLegs(ctx context.Context, legs []TranLeg) error
	SaveLeg(ctx context.Context, leg *TranLeg) error

	// LegsByBase returns all legs whose ID starts "<baseID>-", ordered by
	// line number.
	LegsByBase(ctx context.Context, baseID string) ([]TranLeg, error)
	BaseExists(ctx context.Context, baseID string) (bool, error)
	CountLegsOnDate(ctx context.Context, date time.Time) (int64, error)
	LegsOnDate(ctx context.Context, date time.Time, statuses []TranStatus) ([]TranLeg, error)

	// SumLegs totals LCY amounts for one account, flag and date across the
	// given statuses.
	SumLegs(ctx context.Context, accountNo string, flag DrCrFlag, date time.Time, statuses []TranStatus) (decimal.Decimal, error)

	// ListLegs returns every leg ordered by tranDate descending then ID,
	// for grouped pagination.
	ListLegs(ctx context.Context) ([]TranLeg, error)

	// FutureLegsDue returns Future-status legs whose value date <= asOf.
	FutureLegsDue(ctx context.Context, asOf time.Time) ([]TranLeg, error)
	CountLegsByStatus(ctx context.Context, status TranStatus) (int64, error)

	SaveMovement(ctx context.Context, m *GLMovement) error
	MovementsOnDate(ctx context.Context, date time.Time) ([]GLMovement, error)
	MovementsByTran(ctx context.Context, baseID string) ([]GLMovement, error)

	// DeleteAccrualMovements removes the date's movements that were merged
	// from the accrual stream (IDs starting "S"), for Job 4 re-runs.
	DeleteAccrualMovements(ctx context.Context, date time.Time) error

	SaveHistory(ctx context.Context, rows []TxnHistory) error
	HistoryForAccount(ctx context.Context, accountNo string) ([]TxnHistory, error)
}

// =============================================================================
// INTEREST ACCRUAL
// =============================================================================

type AccrualStore interface {
	SaveAccrualLegs(ctx context.Context, legs []AccrualLeg) error
	SaveAccrualLeg(ctx context.Context, leg *AccrualLeg) error
	AccrualLegsOnDate(ctx context.Context, date time.Time) ([]AccrualLeg, error)
	PendingAccrualLegs(ctx context.Context, date time.Time) ([]AccrualLeg, error)

	// DeleteAccrualLegsOnDate clears the date's legs before a Job 2 re-run.
	DeleteAccrualLegsOnDate(ctx context.Context, date time.Time) error

	// MaxAccrualSeq extracts the greatest embedded sequence among
	// S<yyyymmdd>... IDs for the date; zero when none exist.
	MaxAccrualSeq(ctx context.Context, date time.Time) (int64, error)

	SaveAccrualMovement(ctx context.Context, m *GLMovementAccrual) error
	AccrualMovementsOnDate(ctx context.Context, date time.Time) ([]GLMovementAccrual, error)
}

// =============================================================================
// EOD LOG
// =============================================================================

type EODLogStore interface {
	// AppendEODLog writes one audit row in its own committed unit; callers
	// invoke it outside WithTx.
	AppendEODLog(ctx context.Context, row *EODLog) error
	HasJobSuccess(ctx context.Context, eodDate time.Time, jobName string) (bool, error)
	EODLogsOn(ctx context.Context, eodDate time.Time) ([]EODLog, error)
}

// =============================================================================
// COMPOSED STORE
// =============================================================================

// Store is everything the ledger persists through. WithTx yields a
// tx-scoped Store; nesting is not supported.
type Store interface {
	ParameterStore
	GLStore
	AccountStore
	BalanceStore
	TranStore
	AccrualStore
	EODLogStore

	WithTx(ctx context.Context, fn func(Store) error) error
}
