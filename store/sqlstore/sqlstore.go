/*
Package sqlstore provides the relational implementation of ledger.Store.

PURPOSE:
  Persists every ledger entity through GORM. SQLite is the default
  driver (file or ":memory:" for tests); MySQL and PostgreSQL are
  selected by DSN for production. The schema follows the bank's
  historical table names (Tran_Table, Acct_Bal, GL_Movement, ...),
  declared on the ledger structs themselves.

UNITS OF WORK:
  WithTx runs fn inside one database transaction at REPEATABLE READ.
  Deadlocks and lock timeouts retry up to maxTxRetries with a short
  backoff before surfacing as a Transient error. The EOD audit log is
  written through the root handle on purpose: its rows must survive a
  rollback of the job that produced them.

ROW LOCKING:
  Today's balance rows and the per-GL account sequence are read with
  SELECT ... FOR UPDATE on MySQL/PostgreSQL so concurrent postings
  serialize per account/GL. SQLite takes a database-level write lock
  instead, which subsumes the row lock; the locking clause is skipped
  there because SQLite does not parse FOR UPDATE.

APPEND-ONLY ENFORCEMENT:
  Tran_Table legs are updated only through SaveLeg, which touches
  nothing but Tran_Status. GL_Movement, GL_Movement_Accrual and
  Txn_Hist_Acct rows are inserted, never updated; corrections happen
  through reversal transactions.

MONEY:
  Amount columns are decimal(18,2) scanned into shopspring decimals.
  Summations happen in Go over the decimal values, never in SQL, so no
  driver's float coercion can touch an amount.

SEE ALSO:
  - ledger/store.go: the interface contract
  - store/memstore: the in-memory implementation tests lean on
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/warp/ledger-engine/ledger"
)

const (
	maxTxRetries   = 3
	txRetryBackoff = 50 * time.Millisecond
	maxOfficeSeq   = 99
)

// Store is the GORM-backed ledger.Store.
type Store struct {
	db      *gorm.DB
	dialect string
	log     *logrus.Entry
}

var _ ledger.Store = (*Store)(nil)

// Open connects to the database selected by driver (sqlite, mysql,
// postgres) and migrates the schema. For sqlite, dsn is a file path or
// ":memory:".
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		driver = "sqlite"
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, ledger.Configurationf("unsupported DB driver %q (want sqlite, mysql or postgres)", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// One connection: keeps ":memory:" databases coherent and makes
		// SQLite's single-writer model explicit instead of surfacing as
		// sporadic SQLITE_BUSY errors under the pool.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("accessing sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{
		db:      db,
		dialect: driver,
		log:     logrus.WithField("component", "sqlstore"),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&ledger.Customer{},
		&ledger.Product{},
		&ledger.SubProduct{},
		&ledger.GLSetup{},
		&ledger.CustomerAccount{},
		&ledger.OfficeAccount{},
		&ledger.AccountSeq{},
		&ledger.AcctBalance{},
		&ledger.GLBalance{},
		&ledger.AccrualBalance{},
		&ledger.TranLeg{},
		&ledger.GLMovement{},
		&ledger.TxnHistory{},
		&ledger.AccrualLeg{},
		&ledger.GLMovementAccrual{},
		&ledger.RateRow{},
		&ledger.Parameter{},
		&ledger.EODLog{},
	)
}

// =============================================================================
// UNITS OF WORK
// =============================================================================

// WithTx runs fn inside one REPEATABLE READ transaction, retrying
// bounded times on deadlock. The Store passed to fn shares the
// transaction handle; do not retain it past fn.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	if s.dialect == "sqlite" {
		// SQLite transactions are always serializable.
		opts = &sql.TxOptions{}
	}

	var err error
	for attempt := 1; attempt <= maxTxRetries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&Store{db: tx, dialect: s.dialect, log: s.log})
		}, opts)
		if err == nil || !isDeadlock(err) {
			return err
		}
		s.log.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Warn("unit of work deadlocked, retrying")
		time.Sleep(txRetryBackoff * time.Duration(attempt))
	}
	return ledger.Transientf(err, "unit of work failed after %d deadlock retries", maxTxRetries)
}

// isDeadlock matches the driver-specific deadlock and lock-wait errors
// that are safe to retry.
func isDeadlock(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "lock wait timeout") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// forUpdate adds SELECT ... FOR UPDATE on dialects that support it.
func (s *Store) forUpdate(tx *gorm.DB) *gorm.DB {
	if s.dialect == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.NotFoundf(format, args...)
	}
	return err
}

// =============================================================================
// PARAMETERS
// =============================================================================

func (s *Store) Parameter(ctx context.Context, name string) (*ledger.Parameter, error) {
	var p ledger.Parameter
	err := s.db.WithContext(ctx).First(&p, "Parameter_Name = ?", name).Error
	if err != nil {
		return nil, notFound(err, "parameter %s not found", name)
	}
	return &p, nil
}

func (s *Store) SetParameter(ctx context.Context, name, value, updatedBy string, at time.Time) error {
	row := ledger.Parameter{
		ParameterName:  name,
		ParameterValue: value,
		UpdatedBy:      updatedBy,
		LastUpdated:    at,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "Parameter_Name"}},
			DoUpdates: clause.AssignmentColumns([]string{"Parameter_Value", "Updated_By", "Last_Updated"}),
		}).
		Create(&row).Error
}

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

func (s *Store) GL(ctx context.Context, glNum string) (*ledger.GLSetup, error) {
	var gl ledger.GLSetup
	err := s.db.WithContext(ctx).First(&gl, "GL_Num = ?", glNum).Error
	if err != nil {
		return nil, notFound(err, "GL %s not found", glNum)
	}
	return &gl, nil
}

func (s *Store) SaveGL(ctx context.Context, gl *ledger.GLSetup) error {
	return s.db.WithContext(ctx).Save(gl).Error
}

func (s *Store) GLsByLayer(ctx context.Context, layerID int) ([]ledger.GLSetup, error) {
	var gls []ledger.GLSetup
	err := s.db.WithContext(ctx).
		Where("Layer_Id = ?", layerID).
		Order("GL_Num").
		Find(&gls).Error
	return gls, err
}

func (s *Store) InterestRecvPayLeafGLs(ctx context.Context) ([]ledger.GLSetup, error) {
	return s.leafGLsByPrefix(ctx, "13", "23")
}

func (s *Store) InterestIncomeExpLeafGLs(ctx context.Context) ([]ledger.GLSetup, error) {
	return s.leafGLsByPrefix(ctx, "14", "24")
}

func (s *Store) leafGLsByPrefix(ctx context.Context, a, b string) ([]ledger.GLSetup, error) {
	var gls []ledger.GLSetup
	err := s.db.WithContext(ctx).
		Where("Layer_Id = ? AND (GL_Num LIKE ? OR GL_Num LIKE ?)", 4, a+"%", b+"%").
		Order("GL_Num").
		Find(&gls).Error
	return gls, err
}

// ActiveGLNums resolves the Trial Balance GL set: the cumulative GL of
// every sub-product that has at least one open account, plus those
// sub-products' interest GLs. The relational closure is small (hundreds
// of sub-products at most), so the walk happens in Go.
func (s *Store) ActiveGLNums(ctx context.Context) ([]string, error) {
	subs, err := s.activeSubProducts(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	for _, sp := range subs {
		for _, gl := range []string{sp.CumGLNum, sp.InttGLNumIncomeExp, sp.InttGLNumRecvPay} {
			if strings.TrimSpace(gl) != "" {
				set[gl] = true
			}
		}
	}
	return sortedKeys(set), nil
}

// BalanceSheetGLNums narrows the active set per the report rules: main
// GLs with prefix 1 or 2 except the 14/24 interest leaves, plus the
// sub-products' interest GLs regardless of prefix.
func (s *Store) BalanceSheetGLNums(ctx context.Context) ([]string, error) {
	subs, err := s.activeSubProducts(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	for _, sp := range subs {
		cum := strings.TrimSpace(sp.CumGLNum)
		if cum != "" &&
			(strings.HasPrefix(cum, "1") || strings.HasPrefix(cum, "2")) &&
			!strings.HasPrefix(cum, "14") && !strings.HasPrefix(cum, "24") {
			set[cum] = true
		}
		for _, gl := range []string{sp.InttGLNumIncomeExp, sp.InttGLNumRecvPay} {
			if strings.TrimSpace(gl) != "" {
				set[gl] = true
			}
		}
	}
	return sortedKeys(set), nil
}

// activeSubProducts returns sub-products referenced by at least one
// not-Closed customer account.
func (s *Store) activeSubProducts(ctx context.Context) ([]ledger.SubProduct, error) {
	var subs []ledger.SubProduct
	err := s.db.WithContext(ctx).
		Where("Sub_Prod_Code IN (?)",
			s.db.WithContext(ctx).
				Model(&ledger.CustomerAccount{}).
				Distinct("Sub_Prod_Code").
				Where("Account_Status <> ?", ledger.AccountClosed)).
		Find(&subs).Error
	return subs, err
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// ACCOUNTS, SUB-PRODUCTS, RATES
// =============================================================================

func (s *Store) CustomerAccount(ctx context.Context, accountNo string) (*ledger.CustomerAccount, error) {
	var a ledger.CustomerAccount
	err := s.db.WithContext(ctx).First(&a, "Account_No = ?", accountNo).Error
	if err != nil {
		return nil, notFound(err, "customer account %s not found", accountNo)
	}
	return &a, nil
}

func (s *Store) OfficeAccount(ctx context.Context, accountNo string) (*ledger.OfficeAccount, error) {
	var a ledger.OfficeAccount
	err := s.db.WithContext(ctx).First(&a, "Account_No = ?", accountNo).Error
	if err != nil {
		return nil, notFound(err, "office account %s not found", accountNo)
	}
	return &a, nil
}

func (s *Store) SaveCustomer(ctx context.Context, c *ledger.Customer) error {
	return s.db.WithContext(ctx).Save(c).Error
}

func (s *Store) SaveProduct(ctx context.Context, p *ledger.Product) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *Store) SaveSubProduct(ctx context.Context, sp *ledger.SubProduct) error {
	return s.db.WithContext(ctx).Save(sp).Error
}

func (s *Store) SaveCustomerAccount(ctx context.Context, a *ledger.CustomerAccount) error {
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *Store) SaveOfficeAccount(ctx context.Context, a *ledger.OfficeAccount) error {
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *Store) ActiveCustomerAccounts(ctx context.Context) ([]ledger.CustomerAccount, error) {
	var accounts []ledger.CustomerAccount
	err := s.db.WithContext(ctx).
		Where("Account_Status = ?", ledger.AccountActive).
		Order("Account_No").
		Find(&accounts).Error
	return accounts, err
}

func (s *Store) ActiveOfficeAccounts(ctx context.Context) ([]ledger.OfficeAccount, error) {
	var accounts []ledger.OfficeAccount
	err := s.db.WithContext(ctx).
		Where("Account_Status = ?", ledger.AccountActive).
		Order("Account_No").
		Find(&accounts).Error
	return accounts, err
}

func (s *Store) SubProduct(ctx context.Context, code string) (*ledger.SubProduct, error) {
	var sp ledger.SubProduct
	err := s.db.WithContext(ctx).First(&sp, "Sub_Prod_Code = ?", code).Error
	if err != nil {
		return nil, notFound(err, "sub-product %s not found", code)
	}
	return &sp, nil
}

// NextOfficeSeq increments the per-GL office account counter under a row
// lock. Two digits only: the 100th request for one GL is refused.
func (s *Store) NextOfficeSeq(ctx context.Context, glNum string) (int, error) {
	var next int
	err := s.WithTx(ctx, func(txStore ledger.Store) error {
		tx := txStore.(*Store)

		var seq ledger.AccountSeq
		err := s.forUpdate(tx.db.WithContext(ctx)).First(&seq, "GL_Num = ?", glNum).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			seq = ledger.AccountSeq{GLNum: glNum, SeqNo: 0}
			if err := tx.db.WithContext(ctx).Create(&seq).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if seq.SeqNo >= maxOfficeSeq {
			return fmt.Errorf("%w: GL %s", ledger.ErrOfficeSeqExhausted, glNum)
		}
		seq.SeqNo++
		next = seq.SeqNo
		return tx.db.WithContext(ctx).Save(&seq).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) LatestRate(ctx context.Context, inttCode string, asOf time.Time) (*ledger.RateRow, error) {
	var r ledger.RateRow
	err := s.db.WithContext(ctx).
		Where("Intt_Code = ? AND Intt_Effctv_Date <= ?", inttCode, ledger.DateOnly(asOf)).
		Order("Intt_Effctv_Date DESC").
		First(&r).Error
	if err != nil {
		return nil, notFound(err, "no rate for code %s as of %s", inttCode, ledger.FormatDate(asOf))
	}
	return &r, nil
}

func (s *Store) SaveRate(ctx context.Context, r *ledger.RateRow) error {
	return s.db.WithContext(ctx).Save(r).Error
}

// =============================================================================
// ACCOUNT BALANCES
// =============================================================================

func (s *Store) AcctBalanceAt(ctx context.Context, accountNo string, date time.Time) (*ledger.AcctBalance, error) {
	var b ledger.AcctBalance
	err := s.db.WithContext(ctx).
		First(&b, "Account_No = ? AND Tran_Date = ?", accountNo, ledger.DateOnly(date)).Error
	if err != nil {
		return nil, notFound(err, "no balance row for %s on %s", accountNo, ledger.FormatDate(date))
	}
	return &b, nil
}

func (s *Store) LatestAcctBalance(ctx context.Context, accountNo string, asOf time.Time) (*ledger.AcctBalance, error) {
	var b ledger.AcctBalance
	err := s.db.WithContext(ctx).
		Where("Account_No = ? AND Tran_Date <= ?", accountNo, ledger.DateOnly(asOf)).
		Order("Tran_Date DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err, "no balance row for %s up to %s", accountNo, ledger.FormatDate(asOf))
	}
	return &b, nil
}

func (s *Store) LatestAcctBalanceBefore(ctx context.Context, accountNo string, date time.Time) (*ledger.AcctBalance, error) {
	var b ledger.AcctBalance
	err := s.db.WithContext(ctx).
		Where("Account_No = ? AND Tran_Date < ?", accountNo, ledger.DateOnly(date)).
		Order("Tran_Date DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err, "no balance row for %s before %s", accountNo, ledger.FormatDate(date))
	}
	return &b, nil
}

// TodayAcctBalance returns the date's row under a row lock, creating it
// with the opening balance carried forward when absent.
func (s *Store) TodayAcctBalance(ctx context.Context, accountNo string, date time.Time) (*ledger.AcctBalance, error) {
	date = ledger.DateOnly(date)

	var b ledger.AcctBalance
	err := s.forUpdate(s.db.WithContext(ctx)).
		First(&b, "Account_No = ? AND Tran_Date = ?", accountNo, date).Error
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	opening := ledger.Zero
	if prior, err := s.LatestAcctBalanceBefore(ctx, accountNo, date); err == nil {
		opening = prior.ClosingBal
	} else if !ledger.IsNotFound(err) {
		return nil, err
	}

	b = ledger.AcctBalance{
		TranDate:         date,
		AccountNo:        accountNo,
		OpeningBal:       opening,
		DrSummation:      decimal.Zero,
		CrSummation:      decimal.Zero,
		ClosingBal:       opening,
		CurrentBalance:   opening,
		AvailableBalance: opening,
		LastUpdated:      date,
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) SaveAcctBalance(ctx context.Context, b *ledger.AcctBalance) error {
	b.TranDate = ledger.DateOnly(b.TranDate)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "Tran_Date"}, {Name: "Account_No"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"Opening_Bal", "DR_Summation", "CR_Summation",
				"Closing_Bal", "Current_Balance", "Available_Balance", "Last_Updated",
			}),
		}).
		Create(b).Error
}

// =============================================================================
// GL BALANCES
// =============================================================================

func (s *Store) GLBalanceAt(ctx context.Context, glNum string, date time.Time) (*ledger.GLBalance, error) {
	var b ledger.GLBalance
	err := s.db.WithContext(ctx).
		First(&b, "GL_Num = ? AND Tran_Date = ?", glNum, ledger.DateOnly(date)).Error
	if err != nil {
		return nil, notFound(err, "no GL balance row for %s on %s", glNum, ledger.FormatDate(date))
	}
	return &b, nil
}

func (s *Store) LatestGLBalanceBefore(ctx context.Context, glNum string, date time.Time) (*ledger.GLBalance, error) {
	var b ledger.GLBalance
	err := s.db.WithContext(ctx).
		Where("GL_Num = ? AND Tran_Date < ?", glNum, ledger.DateOnly(date)).
		Order("Tran_Date DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err, "no GL balance row for %s before %s", glNum, ledger.FormatDate(date))
	}
	return &b, nil
}

func (s *Store) TodayGLBalance(ctx context.Context, glNum string, date time.Time) (*ledger.GLBalance, error) {
	date = ledger.DateOnly(date)

	var b ledger.GLBalance
	err := s.forUpdate(s.db.WithContext(ctx)).
		First(&b, "GL_Num = ? AND Tran_Date = ?", glNum, date).Error
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	opening := ledger.Zero
	if prior, err := s.LatestGLBalanceBefore(ctx, glNum, date); err == nil {
		opening = prior.ClosingBal
	} else if !ledger.IsNotFound(err) {
		return nil, err
	}

	b = ledger.GLBalance{
		GLNum:          glNum,
		TranDate:       date,
		OpeningBal:     opening,
		DrSummation:    decimal.Zero,
		CrSummation:    decimal.Zero,
		ClosingBal:     opening,
		CurrentBalance: opening,
		LastUpdated:    date,
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) SaveGLBalance(ctx context.Context, b *ledger.GLBalance) error {
	b.TranDate = ledger.DateOnly(b.TranDate)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "GL_Num"}, {Name: "Tran_Date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"Opening_Bal", "DR_Summation", "CR_Summation",
				"Closing_Bal", "Current_Balance", "Last_Updated",
			}),
		}).
		Create(b).Error
}

func (s *Store) GLBalancesOn(ctx context.Context, date time.Time, glNums []string) ([]ledger.GLBalance, error) {
	q := s.db.WithContext(ctx).Where("Tran_Date = ?", ledger.DateOnly(date))
	if len(glNums) > 0 {
		q = q.Where("GL_Num IN ?", glNums)
	}
	var balances []ledger.GLBalance
	err := q.Order("GL_Num").Find(&balances).Error
	return balances, err
}

// =============================================================================
// ACCRUAL BALANCES
// =============================================================================

func (s *Store) LatestAccrualBalance(ctx context.Context, accountNo string, asOf time.Time) (*ledger.AccrualBalance, error) {
	var b ledger.AccrualBalance
	err := s.db.WithContext(ctx).
		Where("Account_No = ? AND Tran_Date <= ?", accountNo, ledger.DateOnly(asOf)).
		Order("Tran_Date DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err, "no accrual balance row for %s up to %s", accountNo, ledger.FormatDate(asOf))
	}
	return &b, nil
}

func (s *Store) LatestAccrualBalanceBefore(ctx context.Context, accountNo string, date time.Time) (*ledger.AccrualBalance, error) {
	var b ledger.AccrualBalance
	err := s.db.WithContext(ctx).
		Where("Account_No = ? AND Tran_Date < ?", accountNo, ledger.DateOnly(date)).
		Order("Tran_Date DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err, "no accrual balance row for %s before %s", accountNo, ledger.FormatDate(date))
	}
	return &b, nil
}

func (s *Store) SaveAccrualBalance(ctx context.Context, b *ledger.AccrualBalance) error {
	b.TranDate = ledger.DateOnly(b.TranDate)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "Tran_Date"}, {Name: "Account_No"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"Opening_Bal", "DR_Summation", "CR_Summation", "Closing_Bal", "Last_Updated",
			}),
		}).
		Create(b).Error
}

// =============================================================================
// TRANSACTION LEGS
// =============================================================================

func (s *Store) SaveLegs(ctx context.Context, legs []ledger.TranLeg) error {
	if len(legs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&legs).Error
}

// SaveLeg persists a status transition. Legs are otherwise immutable, so
// only Tran_Status is written.
func (s *Store) SaveLeg(ctx context.Context, leg *ledger.TranLeg) error {
	return s.db.WithContext(ctx).
		Model(&ledger.TranLeg{}).
		Where("Tran_Id = ?", leg.TranID).
		Update("Tran_Status", leg.TranStatus).Error
}

func (s *Store) LegsByBase(ctx context.Context, baseID string) ([]ledger.TranLeg, error) {
	var legs []ledger.TranLeg
	err := s.db.WithContext(ctx).
		Where("Tran_Id LIKE ?", baseID+"-%").
		Order("Tran_Id").
		Find(&legs).Error
	return legs, err
}

func (s *Store) BaseExists(ctx context.Context, baseID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ledger.TranLeg{}).
		Where("Tran_Id LIKE ?", baseID+"-%").
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CountLegsOnDate(ctx context.Context, date time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ledger.TranLeg{}).
		Where("Tran_Date = ?", ledger.DateOnly(date)).
		Count(&count).Error
	return count, err
}

func (s *Store) LegsOnDate(ctx context.Context, date time.Time, statuses []ledger.TranStatus) ([]ledger.TranLeg, error) {
	q := s.db.WithContext(ctx).Where("Tran_Date = ?", ledger.DateOnly(date))
	if len(statuses) > 0 {
		q = q.Where("Tran_Status IN ?", statuses)
	}
	var legs []ledger.TranLeg
	err := q.Order("Tran_Id").Find(&legs).Error
	return legs, err
}

// SumLegs totals LCY amounts in Go over the decimal values; SQL SUM is
// avoided so SQLite cannot coerce amounts through floats.
func (s *Store) SumLegs(ctx context.Context, accountNo string, flag ledger.DrCrFlag, date time.Time, statuses []ledger.TranStatus) (decimal.Decimal, error) {
	q := s.db.WithContext(ctx).
		Where("Account_No = ? AND Dr_Cr_Flag = ? AND Tran_Date = ?", accountNo, flag, ledger.DateOnly(date))
	if len(statuses) > 0 {
		q = q.Where("Tran_Status IN ?", statuses)
	}
	var legs []ledger.TranLeg
	if err := q.Find(&legs).Error; err != nil {
		return ledger.Zero, err
	}

	sum := ledger.Zero
	for _, l := range legs {
		sum = sum.Add(l.LcyAmt)
	}
	return sum, nil
}

func (s *Store) ListLegs(ctx context.Context) ([]ledger.TranLeg, error) {
	var legs []ledger.TranLeg
	err := s.db.WithContext(ctx).
		Order("Tran_Date DESC, Tran_Id").
		Find(&legs).Error
	return legs, err
}

func (s *Store) FutureLegsDue(ctx context.Context, asOf time.Time) ([]ledger.TranLeg, error) {
	var legs []ledger.TranLeg
	err := s.db.WithContext(ctx).
		Where("Tran_Status = ? AND Value_Date <= ?", ledger.StatusFuture, ledger.DateOnly(asOf)).
		Order("Tran_Id").
		Find(&legs).Error
	return legs, err
}

func (s *Store) CountLegsByStatus(ctx context.Context, status ledger.TranStatus) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ledger.TranLeg{}).
		Where("Tran_Status = ?", status).
		Count(&count).Error
	return count, err
}

// =============================================================================
// GL MOVEMENTS & HISTORY
// =============================================================================

func (s *Store) SaveMovement(ctx context.Context, m *ledger.GLMovement) error {
	m.TranDate = ledger.DateOnly(m.TranDate)
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) MovementsOnDate(ctx context.Context, date time.Time) ([]ledger.GLMovement, error) {
	var moves []ledger.GLMovement
	err := s.db.WithContext(ctx).
		Where("Tran_Date = ?", ledger.DateOnly(date)).
		Order("Movement_Id").
		Find(&moves).Error
	return moves, err
}

func (s *Store) MovementsByTran(ctx context.Context, baseID string) ([]ledger.GLMovement, error) {
	var moves []ledger.GLMovement
	err := s.db.WithContext(ctx).
		Where("Tran_Id LIKE ?", baseID+"-%").
		Order("Movement_Id").
		Find(&moves).Error
	return moves, err
}

// DeleteAccrualMovements clears the date's rows that Job 4 copied from
// the accrual stream, identified by their S-prefixed IDs.
func (s *Store) DeleteAccrualMovements(ctx context.Context, date time.Time) error {
	return s.db.WithContext(ctx).
		Where("Tran_Date = ? AND Tran_Id LIKE ?", ledger.DateOnly(date), "S%").
		Delete(&ledger.GLMovement{}).Error
}

func (s *Store) SaveHistory(ctx context.Context, rows []ledger.TxnHistory) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

func (s *Store) HistoryForAccount(ctx context.Context, accountNo string) ([]ledger.TxnHistory, error) {
	var rows []ledger.TxnHistory
	err := s.db.WithContext(ctx).
		Where("Account_No = ?", accountNo).
		Order("Hist_Id DESC").
		Find(&rows).Error
	return rows, err
}

// =============================================================================
// INTEREST ACCRUAL
// =============================================================================

func (s *Store) SaveAccrualLegs(ctx context.Context, legs []ledger.AccrualLeg) error {
	if len(legs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&legs).Error
}

func (s *Store) SaveAccrualLeg(ctx context.Context, leg *ledger.AccrualLeg) error {
	return s.db.WithContext(ctx).Save(leg).Error
}

func (s *Store) AccrualLegsOnDate(ctx context.Context, date time.Time) ([]ledger.AccrualLeg, error) {
	var legs []ledger.AccrualLeg
	err := s.db.WithContext(ctx).
		Where("Accrual_Date = ?", ledger.DateOnly(date)).
		Order("Accr_Tran_Id").
		Find(&legs).Error
	return legs, err
}

func (s *Store) PendingAccrualLegs(ctx context.Context, date time.Time) ([]ledger.AccrualLeg, error) {
	var legs []ledger.AccrualLeg
	err := s.db.WithContext(ctx).
		Where("Accrual_Date = ? AND Status = ?", ledger.DateOnly(date), ledger.AccrualPending).
		Order("Accr_Tran_Id").
		Find(&legs).Error
	return legs, err
}

func (s *Store) DeleteAccrualLegsOnDate(ctx context.Context, date time.Time) error {
	return s.db.WithContext(ctx).
		Where("Accrual_Date = ?", ledger.DateOnly(date)).
		Delete(&ledger.AccrualLeg{}).Error
}

// MaxAccrualSeq scans the date's IDs and extracts the embedded sequence
// in Go: the format has fixed offsets and no delimiter, and substring
// syntax differs across the three dialects.
func (s *Store) MaxAccrualSeq(ctx context.Context, date time.Time) (int64, error) {
	prefix := "S" + ledger.FormatCompactDate(date)
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&ledger.AccrualLeg{}).
		Where("Accr_Tran_Id LIKE ?", prefix+"%").
		Pluck("Accr_Tran_Id", &ids).Error
	if err != nil {
		return 0, err
	}

	var max int64
	for _, id := range ids {
		_, seq, _, err := ledger.ParseAccrTranID(id)
		if err != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max, nil
}

func (s *Store) SaveAccrualMovement(ctx context.Context, m *ledger.GLMovementAccrual) error {
	m.TranDate = ledger.DateOnly(m.TranDate)
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) AccrualMovementsOnDate(ctx context.Context, date time.Time) ([]ledger.GLMovementAccrual, error) {
	var moves []ledger.GLMovementAccrual
	err := s.db.WithContext(ctx).
		Where("Tran_Date = ?", ledger.DateOnly(date)).
		Order("Movement_Id").
		Find(&moves).Error
	return moves, err
}

// =============================================================================
// EOD LOG
// =============================================================================

// AppendEODLog writes one audit row in its own committed unit through
// the root handle, so a rollback of the surrounding job cannot erase it.
func (s *Store) AppendEODLog(ctx context.Context, row *ledger.EODLog) error {
	row.EODDate = ledger.DateOnly(row.EODDate)
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *Store) HasJobSuccess(ctx context.Context, eodDate time.Time, jobName string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ledger.EODLog{}).
		Where("EOD_Date = ? AND Job_Name = ? AND Status = ?",
			ledger.DateOnly(eodDate), jobName, ledger.EODSuccess).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) EODLogsOn(ctx context.Context, eodDate time.Time) ([]ledger.EODLog, error) {
	var rows []ledger.EODLog
	err := s.db.WithContext(ctx).
		Where("EOD_Date = ?", ledger.DateOnly(eodDate)).
		Order("Log_Id").
		Find(&rows).Error
	return rows, err
}
