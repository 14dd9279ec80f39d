/*
types.go - Core entities of the banking ledger

PURPOSE:
  Defines every persistent entity the ledger operates on, plus the enums
  that drive the transaction state machine and GL classification. The
  structs carry their relational mapping (table and column names follow
  the bank's historical schema), so the store layer persists them as-is.

KEY ENTITIES:
  TranLeg:        One leg of a double-entry transaction (Tran_Table row)
  AcctBalance:    Per-account, per-day balance row (Acct_Bal)
  GLBalance:      Per-GL, per-day balance row (GL_Balance)
  GLMovement:     Append-only movement emitted when a leg posts
  AccrualLeg:     Daily interest accrual entry (Intt_Accr_Tran, 20-char ID)
  Parameter:      Key/value row; System_Date lives here
  EODLog:         Audit row per batch-job run

STATE MACHINE:
  Entry -> Posted -> Verified, with Future -> Posted via BOD.
  Reversals create an inverse transaction; originals are never mutated.

SEE ALSO:
  - engine.go: drives TranStatus transitions
  - chart.go: GL classification rules derived from GLNum prefixes
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

// DrCrFlag marks a leg as debit or credit.
type DrCrFlag string

const (
	Debit  DrCrFlag = "D"
	Credit DrCrFlag = "C"
)

// Opposite returns the flipped flag, used when building reversal legs.
func (f DrCrFlag) Opposite() DrCrFlag {
	if f == Debit {
		return Credit
	}
	return Debit
}

// TranStatus is the lifecycle state of a transaction leg.
// All legs of one transaction transition together.
type TranStatus string

const (
	StatusEntry    TranStatus = "Entry"
	StatusPosted   TranStatus = "Posted"
	StatusVerified TranStatus = "Verified"
	StatusFuture   TranStatus = "Future"
)

// AccountStatus is the lifecycle state of a customer or office account.
// Only Active accounts accept postings.
type AccountStatus string

const (
	AccountActive   AccountStatus = "Active"
	AccountInactive AccountStatus = "Inactive"
	AccountClosed   AccountStatus = "Closed"
	AccountDormant  AccountStatus = "Dormant"
)

// AccrualStatus tracks an interest accrual leg through the EOD pipeline:
// Job 2 writes Pending legs, Job 3 flips them to Processed.
type AccrualStatus string

const (
	AccrualPending   AccrualStatus = "Pending"
	AccrualProcessed AccrualStatus = "Processed"
)

// EODStatus is the outcome recorded for a batch-job run.
type EODStatus string

const (
	EODRunning EODStatus = "Running"
	EODSuccess EODStatus = "Success"
	EODFailed  EODStatus = "Failed"
)

// GLClass is the accounting class derived from a GL number prefix.
type GLClass string

const (
	ClassLiability   GLClass = "Liability"
	ClassAsset       GLClass = "Asset"
	ClassIncome      GLClass = "Income"
	ClassExpenditure GLClass = "Expenditure"
	ClassUnknown     GLClass = "Unknown"
)

// AccountKind distinguishes Deal (term) accounts from Running (everyday)
// accounts for rate resolution.
type AccountKind string

const (
	KindDeal    AccountKind = "Deal"
	KindRunning AccountKind = "Running"
)

// Parameter names recognized by the system clock and the EOD pipeline.
const (
	ParamSystemDate       = "System_Date"
	ParamLastEODDate      = "Last_EOD_Date"
	ParamLastEODTimestamp = "Last_EOD_Timestamp"
	ParamLastEODUser      = "Last_EOD_User"
)

// DefaultCurrency is the local currency; LCY_Amt is authoritative on every leg.
const DefaultCurrency = "BDT"

// =============================================================================
// MASTER DATA
// =============================================================================

// Customer is a minimal master row; accounts reference it by ID.
type Customer struct {
	CustID   uint   `gorm:"column:Cust_Id;primaryKey;autoIncrement"`
	CustName string `gorm:"column:Cust_Name;size:100"`
}

func (Customer) TableName() string { return "Cust_Master" }

// Product groups sub-products.
type Product struct {
	ProdCode string `gorm:"column:Prod_Code;primaryKey;size:10"`
	ProdName string `gorm:"column:Prod_Name;size:100"`
}

func (Product) TableName() string { return "Prod_Master" }

// SubProduct carries the GL wiring and interest configuration that the
// accrual engine reads: the cumulative leaf GL its accounts roll up to,
// the rate-master code, and the two interest GLs.
//
// For liability products InttGLNumIncomeExp holds the EXPENDITURE GL and
// InttGLNumRecvPay the PAYABLE GL; for asset products they hold the INCOME
// and RECEIVABLE GLs respectively.
type SubProduct struct {
	SubProdCode        string          `gorm:"column:Sub_Prod_Code;primaryKey;size:10"`
	ProdCode           string          `gorm:"column:Prod_Code;size:10"`
	SubProdName        string          `gorm:"column:Sub_Prod_Name;size:100"`
	CumGLNum           string          `gorm:"column:Cum_GL_Num;size:9"`
	InttCode           string          `gorm:"column:Intt_Code;size:10"`
	InttIncrement      decimal.Decimal `gorm:"column:Intt_Increment;type:decimal(10,4)"`
	FixedInttRate      decimal.Decimal `gorm:"column:Fixed_Intt_Rate;type:decimal(10,4)"`
	InttGLNumIncomeExp string          `gorm:"column:Intt_GL_Num_Income_Exp;size:9"`
	InttGLNumRecvPay   string          `gorm:"column:Intt_GL_Num_Recv_Pay;size:9"`
}

func (SubProduct) TableName() string { return "SubProd_Master" }

// GLSetup is one node of the chart of accounts. Layer 1 is the root,
// layer 4 the leaf; only leaf GLs may own accounts.
type GLSetup struct {
	GLNum       string `gorm:"column:GL_Num;primaryKey;size:9"`
	GLName      string `gorm:"column:GL_Name;size:100"`
	LayerID     int    `gorm:"column:Layer_Id"`
	LayerGLNum  string `gorm:"column:Layer_GL_Num;size:9"`
	ParentGLNum string `gorm:"column:Parent_GL_Num;size:9"`
}

func (GLSetup) TableName() string { return "GL_Setup" }

// CustomerAccount is a customer-owned account. AccountNo is at most 13
// characters; the owning GL must be a leaf.
type CustomerAccount struct {
	AccountNo     string          `gorm:"column:Account_No;primaryKey;size:13"`
	CustID        uint            `gorm:"column:Cust_Id"`
	SubProdCode   string          `gorm:"column:Sub_Prod_Code;size:10"`
	GLNum         string          `gorm:"column:GL_Num;size:9"`
	AcctName      string          `gorm:"column:Acct_Name;size:100"`
	DateOpening   time.Time       `gorm:"column:Date_Opening;type:date"`
	Tenor         int             `gorm:"column:Tenor"`
	DateMaturity  *time.Time      `gorm:"column:Date_Maturity;type:date"`
	DateClosure   *time.Time      `gorm:"column:Date_Closure;type:date"`
	BranchCode    string          `gorm:"column:Branch_Code;size:10"`
	AccountStatus AccountStatus   `gorm:"column:Account_Status;size:10"`
	LoanLimit     decimal.Decimal `gorm:"column:Loan_Limit;type:decimal(18,2)"`
}

func (CustomerAccount) TableName() string { return "Cust_Acct_Master" }

// OfficeAccount is a bank-internal account. Numbers are minted as
// "9" + GL + two-digit sequence, capped at 99 per GL.
type OfficeAccount struct {
	AccountNo     string        `gorm:"column:Account_No;primaryKey;size:13"`
	GLNum         string        `gorm:"column:GL_Num;size:9"`
	AcctName      string        `gorm:"column:Acct_Name;size:100"`
	DateOpening   time.Time     `gorm:"column:Date_Opening;type:date"`
	BranchCode    string        `gorm:"column:Branch_Code;size:10"`
	AccountStatus AccountStatus `gorm:"column:Account_Status;size:10"`
}

func (OfficeAccount) TableName() string { return "OF_Acct_Master" }

// AccountSeq is the per-GL counter behind office account numbering.
type AccountSeq struct {
	GLNum string `gorm:"column:GL_Num;primaryKey;size:9"`
	SeqNo int    `gorm:"column:Seq_No"`
}

func (AccountSeq) TableName() string { return "Account_Seq" }

// =============================================================================
// BALANCES
// =============================================================================

// AcctBalance is one account's balance row for one business day.
//
// DrSummation and CrSummation are non-negative magnitudes; ClosingBal is
// always OpeningBal + CR - DR, and callers interpret the sign per GL class
// (liability and income grow on credit, asset and expenditure on debit).
type AcctBalance struct {
	TranDate         time.Time       `gorm:"column:Tran_Date;type:date;primaryKey"`
	AccountNo        string          `gorm:"column:Account_No;primaryKey;size:13"`
	OpeningBal       decimal.Decimal `gorm:"column:Opening_Bal;type:decimal(18,2)"`
	DrSummation      decimal.Decimal `gorm:"column:DR_Summation;type:decimal(18,2)"`
	CrSummation      decimal.Decimal `gorm:"column:CR_Summation;type:decimal(18,2)"`
	ClosingBal       decimal.Decimal `gorm:"column:Closing_Bal;type:decimal(18,2)"`
	CurrentBalance   decimal.Decimal `gorm:"column:Current_Balance;type:decimal(18,2)"`
	AvailableBalance decimal.Decimal `gorm:"column:Available_Balance;type:decimal(18,2)"`
	LastUpdated      time.Time       `gorm:"column:Last_Updated"`
}

func (AcctBalance) TableName() string { return "Acct_Bal" }

// Recompute derives ClosingBal from the stored sums.
func (b *AcctBalance) Recompute() {
	b.ClosingBal = b.OpeningBal.Add(b.CrSummation).Sub(b.DrSummation)
}

// GLBalance mirrors AcctBalance at the GL level. Rows are written
// incrementally during posting and rebuilt authoritatively by EOD Job 5.
type GLBalance struct {
	GLNum          string          `gorm:"column:GL_Num;primaryKey;size:9"`
	TranDate       time.Time       `gorm:"column:Tran_Date;type:date;primaryKey"`
	OpeningBal     decimal.Decimal `gorm:"column:Opening_Bal;type:decimal(18,2)"`
	DrSummation    decimal.Decimal `gorm:"column:DR_Summation;type:decimal(18,2)"`
	CrSummation    decimal.Decimal `gorm:"column:CR_Summation;type:decimal(18,2)"`
	ClosingBal     decimal.Decimal `gorm:"column:Closing_Bal;type:decimal(18,2)"`
	CurrentBalance decimal.Decimal `gorm:"column:Current_Balance;type:decimal(18,2)"`
	LastUpdated    time.Time       `gorm:"column:Last_Updated"`
}

func (GLBalance) TableName() string { return "GL_Balance" }

// Recompute derives ClosingBal from the stored sums.
func (b *GLBalance) Recompute() {
	b.ClosingBal = b.OpeningBal.Add(b.CrSummation).Sub(b.DrSummation)
}

// AccrualBalance is the interest-accrual counterpart of AcctBalance,
// maintained by EOD Job 6 from the day's accrual legs.
type AccrualBalance struct {
	TranDate    time.Time       `gorm:"column:Tran_Date;type:date;primaryKey"`
	AccountNo   string          `gorm:"column:Account_No;primaryKey;size:13"`
	OpeningBal  decimal.Decimal `gorm:"column:Opening_Bal;type:decimal(18,2)"`
	DrSummation decimal.Decimal `gorm:"column:DR_Summation;type:decimal(18,2)"`
	CrSummation decimal.Decimal `gorm:"column:CR_Summation;type:decimal(18,2)"`
	ClosingBal  decimal.Decimal `gorm:"column:Closing_Bal;type:decimal(18,2)"`
	LastUpdated time.Time       `gorm:"column:Last_Updated"`
}

func (AccrualBalance) TableName() string { return "Acct_Bal_Accrual" }

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TranLeg is one row of Tran_Table: a single debit or credit against one
// account. Legs sharing the ID prefix before the final "-" form one
// transaction. LcyAmt is authoritative; FcyAmt and ExchangeRate are
// recorded for reference.
type TranLeg struct {
	TranID       string          `gorm:"column:Tran_Id;primaryKey;size:24"`
	TranDate     time.Time       `gorm:"column:Tran_Date;type:date;index"`
	ValueDate    time.Time       `gorm:"column:Value_Date;type:date"`
	AccountNo    string          `gorm:"column:Account_No;size:13;index"`
	DrCrFlag     DrCrFlag        `gorm:"column:Dr_Cr_Flag;size:1"`
	TranCcy      string          `gorm:"column:Tran_Ccy;size:3"`
	FcyAmt       decimal.Decimal `gorm:"column:FCY_Amt;type:decimal(18,2)"`
	ExchangeRate decimal.Decimal `gorm:"column:Exchange_Rate;type:decimal(12,6)"`
	LcyAmt       decimal.Decimal `gorm:"column:LCY_Amt;type:decimal(18,2)"`
	Narration    string          `gorm:"column:Narration;size:200"`
	TranStatus   TranStatus      `gorm:"column:Tran_Status;size:10;index"`
	PointingID   string          `gorm:"column:Pointing_Id;size:24"`
}

func (TranLeg) TableName() string { return "Tran_Table" }

// BaseID strips the line-number suffix, yielding the transaction ID the
// legs share.
func (l TranLeg) BaseID() string { return BaseTranID(l.TranID) }

// GLMovement is emitted once per posted leg and is append-only.
// BalanceAfter is the owning GL's running balance observed immediately
// after this leg applied.
type GLMovement struct {
	MovementID   uint            `gorm:"column:Movement_Id;primaryKey;autoIncrement"`
	TranID       string          `gorm:"column:Tran_Id;size:24;index"`
	GLNum        string          `gorm:"column:GL_Num;size:9;index"`
	DrCrFlag     DrCrFlag        `gorm:"column:Dr_Cr_Flag;size:1"`
	TranDate     time.Time       `gorm:"column:Tran_Date;type:date;index"`
	ValueDate    time.Time       `gorm:"column:Value_Date;type:date"`
	Amount       decimal.Decimal `gorm:"column:Amount;type:decimal(18,2)"`
	BalanceAfter decimal.Decimal `gorm:"column:Balance_After;type:decimal(18,2)"`
}

func (GLMovement) TableName() string { return "GL_Movement" }

// TxnHistory is the immutable per-leg statement row written at
// verification time.
type TxnHistory struct {
	HistID       uint            `gorm:"column:Hist_Id;primaryKey;autoIncrement"`
	TranID       string          `gorm:"column:Tran_Id;size:24;index"`
	AccountNo    string          `gorm:"column:Account_No;size:13;index"`
	TranDate     time.Time       `gorm:"column:Tran_Date;type:date"`
	ValueDate    time.Time       `gorm:"column:Value_Date;type:date"`
	DrCrFlag     DrCrFlag        `gorm:"column:Dr_Cr_Flag;size:1"`
	TranCcy      string          `gorm:"column:Tran_Ccy;size:3"`
	LcyAmt       decimal.Decimal `gorm:"column:LCY_Amt;type:decimal(18,2)"`
	Narration    string          `gorm:"column:Narration;size:200"`
	BalanceAfter decimal.Decimal `gorm:"column:Balance_After;type:decimal(18,2)"`
}

func (TxnHistory) TableName() string { return "Txn_Hist_Acct" }

// =============================================================================
// INTEREST ACCRUAL
// =============================================================================

// AccrualLeg is one Intt_Accr_Tran row. Each accrual produces exactly two
// legs with equal amounts: S<yyyymmdd><9-seq>-1 (Dr) and S...-2 (Cr),
// always 20 characters. GLAccountNo carries the interest GL selected from
// the sub-product; AccountNo stays the customer account.
type AccrualLeg struct {
	AccrTranID  string          `gorm:"column:Accr_Tran_Id;primaryKey;size:20"`
	AccountNo   string          `gorm:"column:Account_No;size:13;index"`
	AccrualDate time.Time       `gorm:"column:Accrual_Date;type:date;index"`
	InttRate    decimal.Decimal `gorm:"column:Intt_Rate;type:decimal(10,4)"`
	Amount      decimal.Decimal `gorm:"column:Amount;type:decimal(18,2)"`
	DrCrFlag    DrCrFlag        `gorm:"column:Dr_Cr_Flag;size:1"`
	GLAccountNo string          `gorm:"column:GL_Account_No;size:9"`
	TranCcy     string          `gorm:"column:Tran_Ccy;size:3"`
	Narration   string          `gorm:"column:Narration;size:200"`
	Status      AccrualStatus   `gorm:"column:Status;size:10;index"`
}

func (AccrualLeg) TableName() string { return "Intt_Accr_Tran" }

// GLMovementAccrual mirrors GLMovement for accrual legs; written by EOD
// Job 3 and merged into the unified movement stream by Job 4.
type GLMovementAccrual struct {
	MovementID   uint            `gorm:"column:Movement_Id;primaryKey;autoIncrement"`
	AccrTranID   string          `gorm:"column:Accr_Tran_Id;size:20;index"`
	GLNum        string          `gorm:"column:GL_Num;size:9;index"`
	DrCrFlag     DrCrFlag        `gorm:"column:Dr_Cr_Flag;size:1"`
	TranDate     time.Time       `gorm:"column:Tran_Date;type:date;index"`
	Amount       decimal.Decimal `gorm:"column:Amount;type:decimal(18,2)"`
	BalanceAfter decimal.Decimal `gorm:"column:Balance_After;type:decimal(18,2)"`
}

func (GLMovementAccrual) TableName() string { return "GL_Movement_Accrual" }

// RateRow is one Intt_Rate_Master entry: the rate for an interest code
// effective from a given date.
type RateRow struct {
	RateID         uint            `gorm:"column:Rate_Id;primaryKey;autoIncrement"`
	InttCode       string          `gorm:"column:Intt_Code;size:10;index:idx_rate_code_date"`
	InttEffctvDate time.Time       `gorm:"column:Intt_Effctv_Date;type:date;index:idx_rate_code_date"`
	InttRate       decimal.Decimal `gorm:"column:Intt_Rate;type:decimal(10,4)"`
}

func (RateRow) TableName() string { return "Intt_Rate_Master" }

// =============================================================================
// SYSTEM TABLES
// =============================================================================

// Parameter is a key/value row; System_Date and the Last_EOD_* markers
// live here.
type Parameter struct {
	ParameterName  string    `gorm:"column:Parameter_Name;primaryKey;size:50"`
	ParameterValue string    `gorm:"column:Parameter_Value;size:100"`
	UpdatedBy      string    `gorm:"column:Updated_By;size:50"`
	LastUpdated    time.Time `gorm:"column:Last_Updated"`
}

func (Parameter) TableName() string { return "Parameter_Table" }

// EODLog records one status row per batch-job event. Each run writes a
// Running row in its own committed unit and a Success/Failed row in
// another, so the audit trail survives rollback of the job's work.
// RunID correlates all rows of one pipeline invocation.
type EODLog struct {
	LogID            uint       `gorm:"column:Log_Id;primaryKey;autoIncrement"`
	RunID            string     `gorm:"column:Run_Id;size:36;index"`
	EODDate          time.Time  `gorm:"column:EOD_Date;type:date;index:idx_eod_date_job"`
	JobName          string     `gorm:"column:Job_Name;size:60;index:idx_eod_date_job"`
	SystemDate       time.Time  `gorm:"column:System_Date;type:date"`
	UserID           string     `gorm:"column:User_Id;size:50"`
	StartTimestamp   time.Time  `gorm:"column:Start_Timestamp"`
	EndTimestamp     *time.Time `gorm:"column:End_Timestamp"`
	RecordsProcessed int        `gorm:"column:Records_Processed"`
	Status           EODStatus  `gorm:"column:Status;size:10"`
	ErrorMessage     string     `gorm:"column:Error_Message;size:500"`
	FailedAtStep     string     `gorm:"column:Failed_At_Step;size:100"`
}

func (EODLog) TableName() string { return "EOD_Log_Table" }

// =============================================================================
// VALUE TYPES (not persisted)
// =============================================================================

// AccountInfo is the unified snapshot the registry returns for either
// account table. Callers never mutate the underlying record through it.
type AccountInfo struct {
	AccountNo  string
	AcctName   string
	GLNum      string
	IsCustomer bool
	Status     AccountStatus
	LoanLimit  decimal.Decimal
	Class      GLClass
}

// Active reports whether the account accepts postings.
func (a AccountInfo) Active() bool { return a.Status == AccountActive }
