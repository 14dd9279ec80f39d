/*
handlers.go - HTTP API handlers for the core banking ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Transactions:
    POST   /api/transactions/entry         Create Entry-status transaction
    POST   /api/transactions/{id}/post     Post an Entry transaction
    POST   /api/transactions/{id}/verify   Verify a Posted transaction
    POST   /api/transactions/{id}/reverse  Reverse a Verified transaction
    GET    /api/transactions/{id}          Get one transaction (all legs)
    GET    /api/transactions               Paginated list, newest first

  Accounts:
    GET    /api/accounts/{accountNo}/balance  Real-time balance snapshot
    GET    /api/accounts/{accountNo}/history  Statement rows, newest first

  GL setup:
    GET    /api/gl-setup/layer/{layerId}
    GET    /api/gl-setup/interest/payable-receivable/layer4
    GET    /api/gl-setup/interest/income-expenditure/layer4

  Admin:
    POST   /api/admin/run-eod                 Full 8-job EOD pipeline
    POST   /api/admin/eod/batch/{job}         One gated batch job
    POST   /api/admin/eod/validate            Pre-EOD checks only
    GET    /api/admin/eod/status              Business clock vs wall clock
    GET    /api/admin/eod/logs                Audit rows for a date
    POST   /api/admin/set-system-date         Manually move the clock
    POST   /api/admin/eod/batch-job-7/execute Regenerate reports, no gate
    GET    /api/admin/eod/batch-job-7/download/{kind}/{date}
    POST   /api/admin/run-bod                 Promote due future legs
    GET    /api/admin/bod/status              What BOD would pick up

ERROR HANDLING:
  Domain errors carry a ledger.Kind and map to HTTP status:
  - 400: BusinessRule, Configuration
  - 404: NotFound
  - 409: Conflict
  - 500: IO, InvariantViolation, everything unclassified
  Operator errors use the {success,message,timestamp} envelope; request
  validation failures use {error,field,constraint} with the first
  failing field.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - seed.go: Demo book loader
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/warp/ledger-engine/eod"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.Store
	Clock    *ledger.Clock
	Engine   *ledger.Engine
	Balances *ledger.BalanceQuery
	Chart    *ledger.Chart
	History  *ledger.History
	Pipeline *eod.Pipeline
	BOD      *eod.BOD
	Reporter *eod.Reporter

	validate *validator.Validate
	log      *logrus.Entry
}

// NewHandler wires the full domain stack on top of the given store.
// Reports are written under reportsDir.
func NewHandler(store ledger.Store, reportsDir string) *Handler {
	clock := ledger.NewClock(store)
	engine := ledger.NewEngine(store, clock)
	reporter := eod.NewReporter(store, reportsDir)
	return &Handler{
		Store:    store,
		Clock:    clock,
		Engine:   engine,
		Balances: ledger.NewBalanceQuery(store, engine.Registry()),
		Chart:    ledger.NewChart(store),
		History:  ledger.NewHistory(store),
		Pipeline: eod.NewPipeline(store, clock, reporter),
		BOD:      eod.NewBOD(store, clock, engine),
		Reporter: reporter,
		validate: newValidator(),
		log:      logrus.WithField("component", "api"),
	}
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction accepts a balanced multi-leg submission in Entry status.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	domainReq, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valueDate format (use YYYY-MM-DD)")
		return
	}

	tx, err := h.Engine.Create(r.Context(), domainReq)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// PostTransaction moves an Entry transaction to Posted, applying balance
// updates and per-leg validation.
func (h *Handler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Engine.Post(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// VerifyTransaction moves a Posted transaction to Verified.
func (h *Handler) VerifyTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Engine.Verify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// ReverseTransaction books the inverse transaction against a Verified one.
// The request body is optional; a missing reason defaults inside the engine.
func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	var req ReverseTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	tx, err := h.Engine.Reverse(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// GetTransaction returns one transaction with all its legs.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// ListTransactions returns one page of transactions grouped by base ID,
// newest transaction date first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", 20)
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}

	txs, total, err := h.Engine.List(r.Context(), page, size)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	writeJSON(w, http.StatusOK, TransactionPageDTO{
		Transactions: dtos,
		Page:         page,
		Size:         size,
		TotalCount:   total,
	})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// GetAccountBalance returns the real-time balance snapshot for the current
// System_Date: opening plus today's posted movements, availability, and
// accrued interest.
func (h *Handler) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date, err := h.Clock.Now(ctx)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	snap, err := h.Balances.Snapshot(ctx, chi.URLParam(r, "accountNo"), date)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(snap))
}

// GetAccountHistory returns the statement rows recorded at verification,
// newest first.
func (h *Handler) GetAccountHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.History.ForAccount(r.Context(), chi.URLParam(r, "accountNo"))
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	dtos := make([]HistoryRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toHistoryRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// GL SETUP HANDLERS
// =============================================================================

// ListGLsByLayer returns the chart-of-accounts rows at one layer.
func (h *Handler) ListGLsByLayer(w http.ResponseWriter, r *http.Request) {
	layerID, err := strconv.Atoi(chi.URLParam(r, "layerId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid layer id")
		return
	}

	gls, err := h.Chart.ByLayer(r.Context(), layerID)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGLSetupDTOs(gls))
}

// ListInterestRecvPayGLs returns the layer-4 interest payable (13*) and
// receivable (23*) leaves.
func (h *Handler) ListInterestRecvPayGLs(w http.ResponseWriter, r *http.Request) {
	gls, err := h.Chart.InterestRecvPayLeaves(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGLSetupDTOs(gls))
}

// ListInterestIncomeExpGLs returns the layer-4 interest expenditure (14*)
// and income (24*) leaves.
func (h *Handler) ListInterestIncomeExpGLs(w http.ResponseWriter, r *http.Request) {
	gls, err := h.Chart.InterestIncomeExpLeaves(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGLSetupDTOs(gls))
}

// =============================================================================
// ADMIN: EOD
// =============================================================================

// RunEOD executes the full eight-job pipeline for the current System_Date.
// A run that fails mid-pipeline still returns the result body so the
// operator sees which job stopped it.
func (h *Handler) RunEOD(w http.ResponseWriter, r *http.Request) {
	result, err := h.Pipeline.RunAll(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, EODRunResponse{Result: result, Timestamp: nowStamp()})
}

// RunBatchJob executes one EOD job by number, subject to both gates.
func (h *Handler) RunBatchJob(w http.ResponseWriter, r *http.Request) {
	jobNum, err := strconv.Atoi(chi.URLParam(r, "job"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid batch job number")
		return
	}

	ctx := r.Context()
	count, err := h.Pipeline.RunJob(ctx, jobNum, r.URL.Query().Get("userId"))
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	// Job 8 moves the clock, so read it after the run.
	systemDate, err := h.Clock.Now(ctx)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchJobResponse{
		Success:          true,
		JobName:          eod.JobName(jobNum),
		RecordsProcessed: count,
		Message:          fmt.Sprintf("%s completed successfully", eod.JobName(jobNum)),
		SystemDate:       ledger.FormatDate(systemDate),
	})
}

// ValidateEOD runs the pre-EOD checks without starting the pipeline.
// An invalid day answers 400 so scripted callers fail loudly.
func (h *Handler) ValidateEOD(w http.ResponseWriter, r *http.Request) {
	check, err := h.Pipeline.Validate(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	status := http.StatusOK
	if !check.Valid {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ValidationResponse{
		Valid:      check.Valid,
		Message:    check.Message,
		SystemDate: check.SystemDate,
		Timestamp:  nowStamp(),
	})
}

// GetEODStatus reports the business clock next to the wall clock.
func (h *Handler) GetEODStatus(w http.ResponseWriter, r *http.Request) {
	systemDate, err := h.Clock.Now(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EODStatusDTO{
		SystemDate:  ledger.FormatDate(systemDate),
		CurrentDate: time.Now().Format("2006-01-02"),
		Timestamp:   nowStamp(),
	})
}

// ListEODLogs returns the audit rows for one business date, defaulting to
// the current System_Date.
func (h *Handler) ListEODLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var date time.Time
	if q := r.URL.Query().Get("date"); q != "" {
		d, err := ledger.ParseDate(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)")
			return
		}
		date = d
	} else {
		d, err := h.Clock.Now(ctx)
		if err != nil {
			h.writeLedgerError(w, err)
			return
		}
		date = d
	}

	rows, err := h.Pipeline.LogsFor(ctx, date)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	dtos := make([]EODLogDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toEODLogDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetSystemDate moves the business clock to an arbitrary date. Intended
// for operations and testing; EOD Job 8 is the normal way the date moves.
func (h *Handler) SetSystemDate(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("systemDateStr")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "systemDateStr query parameter is required")
		return
	}
	date, err := ledger.ParseDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid systemDateStr format (use YYYY-MM-DD)")
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = "admin"
	}
	if err := h.Clock.Set(r.Context(), date, userID); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SetSystemDateResponse{
		Success:    true,
		Message:    "System date updated successfully",
		SystemDate: ledger.FormatDate(date),
		Timestamp:  nowStamp(),
	})
}

// =============================================================================
// ADMIN: REPORTS
// =============================================================================

// GenerateReports regenerates the trial balance and balance sheet for a
// date without touching the EOD gates. Defaults to the current System_Date.
func (h *Handler) GenerateReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var date time.Time
	if q := r.URL.Query().Get("date"); q != "" {
		d, err := ledger.ParseDate(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)")
			return
		}
		date = d
	} else {
		d, err := h.Clock.Now(ctx)
		if err != nil {
			h.writeLedgerError(w, err)
			return
		}
		date = d
	}

	paths, err := h.Reporter.Generate(ctx, date)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	resp := ReportsResponse{
		Success:    true,
		Message:    "Reports generated successfully",
		ReportDate: ledger.FormatCompactDate(date),
	}
	for _, p := range paths {
		name := filepath.Base(p)
		switch {
		case strings.HasPrefix(name, "TrialBalance_"):
			resp.TrialBalanceFileName = name
		case strings.HasPrefix(name, "BalanceSheet_"):
			resp.BalanceSheetFileName = name
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DownloadReport streams a generated report file. kind is "trial-balance"
// or "balance-sheet"; date is compact yyyymmdd.
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	path, contentType, err := h.Reporter.ReportFile(chi.URLParam(r, "kind"), chi.URLParam(r, "date"))
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// =============================================================================
// ADMIN: BOD
// =============================================================================

// RunBOD promotes future-dated legs due by the current System_Date.
func (h *Handler) RunBOD(w http.ResponseWriter, r *http.Request) {
	if user := r.URL.Query().Get("userId"); user != "" {
		h.log.WithField("user", user).Info("BOD run requested")
	}

	result, err := h.BOD.Run(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetBODStatus reports the future-dated legs a BOD run would promote.
func (h *Handler) GetBODStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.BOD.Status(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Success:   false,
		Message:   message,
		Timestamp: nowStamp(),
	})
}

// writeLedgerError maps a classified domain error onto the operator
// envelope. Server-side failures also land in the log.
func (h *Handler) writeLedgerError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	writeError(w, status, err.Error())
}

func statusForError(err error) int {
	switch ledger.KindOf(err) {
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindConflict:
		return http.StatusConflict
	case ledger.KindBusinessRule, ledger.KindConfiguration:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeValidationError reports the first failing field in the
// {error,field,constraint} envelope.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:      "Validation failed",
			Field:      fe.Field(),
			Constraint: fe.Tag(),
		})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
