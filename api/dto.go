/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  ledger's internal model from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Composite response wrappers

MONEY ON THE WIRE:
  Inbound amounts decode into decimal.Decimal (exact, no float pass).
  Outbound amounts render as JSON numbers via InexactFloat64; scale-2
  ledger values are exact well past any realistic balance.

VALIDATION:
  Inbound DTOs carry validator/v10 tags. Amount fields validate through
  a registered custom type func that exposes decimals to the numeric
  rules (gt, gte). Cross-field business rules (balanced legs, account
  existence) stay in the ledger engine.

SEE ALSO:
  - handlers.go: uses these types
  - ledger/engine.go: the domain types they map to
*/
package api

import (
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/eod"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// LegRequestDTO is one debit or credit line of a submission.
type LegRequestDTO struct {
	AccountNo    string          `json:"accountNo" validate:"required,min=12,max=13"`
	DrCrFlag     string          `json:"drCrFlag" validate:"required,oneof=D C"`
	TranCcy      string          `json:"tranCcy" validate:"omitempty,len=3"`
	FcyAmt       decimal.Decimal `json:"fcyAmt" validate:"omitempty,gte=0"`
	ExchangeRate decimal.Decimal `json:"exchangeRate" validate:"omitempty,gte=0"`
	LcyAmt       decimal.Decimal `json:"lcyAmt" validate:"required,gt=0"`
	Narration    string          `json:"narration" validate:"max=200"`
}

// CreateTransactionRequest is a full multi-leg submission.
type CreateTransactionRequest struct {
	ValueDate string          `json:"valueDate" validate:"omitempty,datetime=2006-01-02"`
	Narration string          `json:"narration" validate:"max=200"`
	Legs      []LegRequestDTO `json:"legs" validate:"required,min=2,dive"`
}

// ReverseTransactionRequest carries the optional reversal reason.
type ReverseTransactionRequest struct {
	Reason string `json:"reason" validate:"max=150"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LegDTO is one persisted transaction leg.
type LegDTO struct {
	TranID       string  `json:"tranId"`
	TranDate     string  `json:"tranDate"`
	ValueDate    string  `json:"valueDate"`
	AccountNo    string  `json:"accountNo"`
	DrCrFlag     string  `json:"drCrFlag"`
	TranCcy      string  `json:"tranCcy"`
	FcyAmt       float64 `json:"fcyAmt"`
	ExchangeRate float64 `json:"exchangeRate"`
	LcyAmt       float64 `json:"lcyAmt"`
	Narration    string  `json:"narration"`
	TranStatus   string  `json:"tranStatus"`
	PointingID   string  `json:"pointingId,omitempty"`
}

// TransactionDTO is the grouped view of one base tranId.
type TransactionDTO struct {
	TranID    string   `json:"tranId"`
	TranDate  string   `json:"tranDate"`
	ValueDate string   `json:"valueDate"`
	Status    string   `json:"status"`
	Legs      []LegDTO `json:"legs"`
}

// TransactionPageDTO is one page of grouped transactions.
type TransactionPageDTO struct {
	Transactions []TransactionDTO `json:"transactions"`
	Page         int              `json:"page"`
	Size         int              `json:"size"`
	TotalCount   int              `json:"totalCount"`
}

// BalanceDTO is the real-time balance inquiry response.
type BalanceDTO struct {
	AccountNo        string  `json:"accountNo"`
	AccountName      string  `json:"accountName"`
	AvailableBalance float64 `json:"availableBalance"`
	CurrentBalance   float64 `json:"currentBalance"`
	TodayDebits      float64 `json:"todayDebits"`
	TodayCredits     float64 `json:"todayCredits"`
	ComputedBalance  float64 `json:"computedBalance"`
	InterestAccrued  float64 `json:"interestAccrued"`
}

// HistoryRowDTO is one statement line from the history table.
type HistoryRowDTO struct {
	TranID       string  `json:"tranId"`
	TranDate     string  `json:"tranDate"`
	ValueDate    string  `json:"valueDate"`
	DrCrFlag     string  `json:"drCrFlag"`
	TranCcy      string  `json:"tranCcy"`
	LcyAmt       float64 `json:"lcyAmt"`
	Narration    string  `json:"narration"`
	BalanceAfter float64 `json:"balanceAfter"`
}

// GLSetupDTO is one chart-of-accounts row.
type GLSetupDTO struct {
	GLNum       string `json:"glNum"`
	GLName      string `json:"glName"`
	LayerID     int    `json:"layerId"`
	LayerGLNum  string `json:"layerGlNum"`
	ParentGLNum string `json:"parentGlNum"`
}

// EODStatusDTO reports the business clock against the wall clock.
type EODStatusDTO struct {
	SystemDate  string `json:"systemDate"`
	CurrentDate string `json:"currentDate"`
	Timestamp   string `json:"timestamp"`
}

// SetSystemDateResponse confirms an admin clock change.
type SetSystemDateResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	SystemDate string `json:"systemDate"`
	Timestamp  string `json:"timestamp"`
}

// BatchJobResponse is the single-job execution result.
type BatchJobResponse struct {
	Success          bool   `json:"success"`
	JobName          string `json:"jobName"`
	RecordsProcessed int    `json:"recordsProcessed"`
	Message          string `json:"message"`
	SystemDate       string `json:"systemDate"`
}

// ReportsResponse is the out-of-pipeline report regeneration result.
type ReportsResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	ReportDate           string `json:"reportDate"`
	TrialBalanceFileName string `json:"trialBalanceFileName"`
	BalanceSheetFileName string `json:"balanceSheetFileName"`
}

// EODRunResponse wraps the pipeline result with a wall-clock stamp.
type EODRunResponse struct {
	*eod.Result
	Timestamp string `json:"timestamp"`
}

// ValidationResponse wraps the pre-EOD validation outcome.
type ValidationResponse struct {
	Valid      bool   `json:"valid"`
	Message    string `json:"message"`
	SystemDate string `json:"systemDate"`
	Timestamp  string `json:"timestamp"`
}

// EODLogDTO is one audit row.
type EODLogDTO struct {
	LogID            uint   `json:"logId"`
	RunID            string `json:"runId"`
	EODDate          string `json:"eodDate"`
	JobName          string `json:"jobName"`
	RecordsProcessed int    `json:"recordsProcessed"`
	Status           string `json:"status"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	FailedAtStep     string `json:"failedAtStep,omitempty"`
}

// ErrorResponse is the operator error envelope.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ValidationErrorResponse is the request-validation envelope.
type ValidationErrorResponse struct {
	Error      string `json:"error"`
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLegDTO(l ledger.TranLeg) LegDTO {
	return LegDTO{
		TranID:       l.TranID,
		TranDate:     ledger.FormatDate(l.TranDate),
		ValueDate:    ledger.FormatDate(l.ValueDate),
		AccountNo:    l.AccountNo,
		DrCrFlag:     string(l.DrCrFlag),
		TranCcy:      l.TranCcy,
		FcyAmt:       l.FcyAmt.InexactFloat64(),
		ExchangeRate: l.ExchangeRate.InexactFloat64(),
		LcyAmt:       l.LcyAmt.InexactFloat64(),
		Narration:    l.Narration,
		TranStatus:   string(l.TranStatus),
		PointingID:   l.PointingID,
	}
}

func toTransactionDTO(tx *ledger.Transaction) TransactionDTO {
	legs := make([]LegDTO, len(tx.Legs))
	for i, l := range tx.Legs {
		legs[i] = toLegDTO(l)
	}
	return TransactionDTO{
		TranID:    tx.TranID,
		TranDate:  ledger.FormatDate(tx.TranDate),
		ValueDate: ledger.FormatDate(tx.ValueDate),
		Status:    string(tx.Status),
		Legs:      legs,
	}
}

func toBalanceDTO(s ledger.BalanceSnapshot) BalanceDTO {
	return BalanceDTO{
		AccountNo:        s.AccountNo,
		AccountName:      s.AccountName,
		AvailableBalance: s.AvailableBalance.InexactFloat64(),
		CurrentBalance:   s.CurrentBalance.InexactFloat64(),
		TodayDebits:      s.TodayDebits.InexactFloat64(),
		TodayCredits:     s.TodayCredits.InexactFloat64(),
		ComputedBalance:  s.ComputedBalance.InexactFloat64(),
		InterestAccrued:  s.InterestAccrued.InexactFloat64(),
	}
}

func toHistoryRowDTO(h ledger.TxnHistory) HistoryRowDTO {
	return HistoryRowDTO{
		TranID:       h.TranID,
		TranDate:     ledger.FormatDate(h.TranDate),
		ValueDate:    ledger.FormatDate(h.ValueDate),
		DrCrFlag:     string(h.DrCrFlag),
		TranCcy:      h.TranCcy,
		LcyAmt:       h.LcyAmt.InexactFloat64(),
		Narration:    h.Narration,
		BalanceAfter: h.BalanceAfter.InexactFloat64(),
	}
}

func toGLSetupDTO(gl ledger.GLSetup) GLSetupDTO {
	return GLSetupDTO{
		GLNum:       gl.GLNum,
		GLName:      gl.GLName,
		LayerID:     gl.LayerID,
		LayerGLNum:  gl.LayerGLNum,
		ParentGLNum: gl.ParentGLNum,
	}
}

func toGLSetupDTOs(gls []ledger.GLSetup) []GLSetupDTO {
	dtos := make([]GLSetupDTO, len(gls))
	for i, gl := range gls {
		dtos[i] = toGLSetupDTO(gl)
	}
	return dtos
}

func toEODLogDTO(row ledger.EODLog) EODLogDTO {
	return EODLogDTO{
		LogID:            row.LogID,
		RunID:            row.RunID,
		EODDate:          ledger.FormatDate(row.EODDate),
		JobName:          row.JobName,
		RecordsProcessed: row.RecordsProcessed,
		Status:           string(row.Status),
		ErrorMessage:     row.ErrorMessage,
		FailedAtStep:     row.FailedAtStep,
	}
}

func (r CreateTransactionRequest) toDomain() (ledger.CreateRequest, error) {
	req := ledger.CreateRequest{Narration: r.Narration}
	if r.ValueDate != "" {
		vd, err := ledger.ParseDate(r.ValueDate)
		if err != nil {
			return ledger.CreateRequest{}, err
		}
		req.ValueDate = vd
	}
	req.Legs = make([]ledger.LegRequest, len(r.Legs))
	for i, l := range r.Legs {
		req.Legs[i] = ledger.LegRequest{
			AccountNo:    l.AccountNo,
			DrCrFlag:     ledger.DrCrFlag(l.DrCrFlag),
			TranCcy:      l.TranCcy,
			FcyAmt:       l.FcyAmt,
			ExchangeRate: l.ExchangeRate,
			LcyAmt:       l.LcyAmt,
			Narration:    l.Narration,
		}
	}
	return req, nil
}

// newValidator builds the request validator with decimal fields exposed
// to the numeric rules (gt, gte).
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func nowStamp() string { return time.Now().Format(time.RFC3339) }
