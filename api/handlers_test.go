/*
handlers_test.go - HTTP round-trip tests for the API layer

PURPOSE:
  Exercises the chi router end to end against a seeded in-memory book:
  the transaction lifecycle endpoints, request validation envelopes,
  domain-error status mapping, GL setup queries and the admin clock.

SEE ALSO:
  - handlers.go: the handlers under test
  - seed.go: the demo book these tests post against
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/store/memstore"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var apiBookDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

const (
	apiAcctSavings = "1110101000001" // Rahim's savings, GL 110101000
	apiAcctCash    = "921010100001"  // first seeded office cash account
)

// newTestAPI seeds the demo book into a fresh in-memory store and wires
// the full handler stack with reports under a temp dir.
func newTestAPI(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	h := NewHandler(store, t.TempDir())
	require.NoError(t, h.Clock.Set(ctx, apiBookDate, "test"))
	require.NoError(t, Seed(ctx, store, apiBookDate))
	return h, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func depositRequest(amount string) CreateTransactionRequest {
	return CreateTransactionRequest{
		Narration: "Cash deposit",
		Legs: []LegRequestDTO{
			{AccountNo: apiAcctCash, DrCrFlag: "D", LcyAmt: dec(amount)},
			{AccountNo: apiAcctSavings, DrCrFlag: "C", LcyAmt: dec(amount)},
		},
	}
}

// =============================================================================
// TRANSACTION LIFECYCLE
// =============================================================================

func TestAPI_TransactionLifecycle(t *testing.T) {
	// GIVEN: a seeded book
	_, router := newTestAPI(t)

	// WHEN: a balanced deposit is submitted
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/entry", depositRequest("5000.00"))

	// THEN: it lands in Entry status with both legs numbered off one base ID
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[TransactionDTO](t, rec)
	assert.Equal(t, "Entry", created.Status)
	assert.Regexp(t, `^T20240115\d{9}$`, created.TranID)
	require.Len(t, created.Legs, 2)
	assert.Equal(t, created.TranID+"-1", created.Legs[0].TranID)
	assert.Equal(t, created.TranID+"-2", created.Legs[1].TranID)
	assert.Equal(t, "2024-01-15", created.TranDate)

	// WHEN / THEN: posting applies the balances
	rec = doJSON(t, router, http.MethodPost, "/api/transactions/"+created.TranID+"/post", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Posted", decodeBody[TransactionDTO](t, rec).Status)

	rec = doJSON(t, router, http.MethodGet, "/api/accounts/"+apiAcctSavings+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decodeBody[BalanceDTO](t, rec)
	assert.Equal(t, "Rahim Uddin - Savings", bal.AccountName)
	assert.InDelta(t, 5000.00, bal.CurrentBalance, 0.001)
	assert.InDelta(t, 5000.00, bal.AvailableBalance, 0.001)
	assert.InDelta(t, 5000.00, bal.TodayCredits, 0.001)

	// WHEN / THEN: verification finalizes and writes the statement row
	rec = doJSON(t, router, http.MethodPost, "/api/transactions/"+created.TranID+"/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Verified", decodeBody[TransactionDTO](t, rec).Status)

	rec = doJSON(t, router, http.MethodGet, "/api/accounts/"+apiAcctSavings+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]HistoryRowDTO](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "C", history[0].DrCrFlag)
	assert.InDelta(t, 5000.00, history[0].LcyAmt, 0.001)
	assert.InDelta(t, 5000.00, history[0].BalanceAfter, 0.001)

	// WHEN / THEN: the grouped view and the list both serve it back
	rec = doJSON(t, router, http.MethodGet, "/api/transactions/"+created.TranID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Verified", decodeBody[TransactionDTO](t, rec).Status)

	rec = doJSON(t, router, http.MethodGet, "/api/transactions?page=0&size=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[TransactionPageDTO](t, rec)
	assert.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, created.TranID, page.Transactions[0].TranID)
}

func TestAPI_ReverseTransaction(t *testing.T) {
	// GIVEN: a verified deposit
	_, router := newTestAPI(t)
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/entry", depositRequest("1000.00"))
	require.Equal(t, http.StatusCreated, rec.Code)
	tranID := decodeBody[TransactionDTO](t, rec).TranID
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/transactions/"+tranID+"/post", nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/transactions/"+tranID+"/verify", nil).Code)

	// WHEN: it is reversed with a reason
	rec = doJSON(t, router, http.MethodPost, "/api/transactions/"+tranID+"/reverse",
		ReverseTransactionRequest{Reason: "Teller error"})

	// THEN: the reversal books as a new verified transaction pointing back
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reversal := decodeBody[TransactionDTO](t, rec)
	assert.NotEqual(t, tranID, reversal.TranID)
	assert.Equal(t, "Verified", reversal.Status)
	require.Len(t, reversal.Legs, 2)
	for _, leg := range reversal.Legs {
		assert.Contains(t, leg.Narration, "REVERSAL: Teller error")
		assert.Contains(t, leg.Narration, "(Original: "+tranID+")")
	}

	// THEN: the savings balance is back to zero
	rec = doJSON(t, router, http.MethodGet, "/api/accounts/"+apiAcctSavings+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.00, decodeBody[BalanceDTO](t, rec).CurrentBalance, 0.001)
}

// =============================================================================
// VALIDATION AND ERROR MAPPING
// =============================================================================

func TestAPI_CreateTransaction_ValidationEnvelope(t *testing.T) {
	_, router := newTestAPI(t)

	// WHEN / THEN: a single-leg submission fails on the legs constraint
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/entry", CreateTransactionRequest{
		Legs: []LegRequestDTO{{AccountNo: apiAcctCash, DrCrFlag: "D", LcyAmt: dec("100.00")}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	verr := decodeBody[ValidationErrorResponse](t, rec)
	assert.Equal(t, "Validation failed", verr.Error)
	assert.Equal(t, "Legs", verr.Field)
	assert.Equal(t, "min", verr.Constraint)

	// WHEN / THEN: a non-positive amount names the failing leg field
	req := depositRequest("100.00")
	req.Legs[0].LcyAmt = dec("0.00")
	rec = doJSON(t, router, http.MethodPost, "/api/transactions/entry", req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	verr = decodeBody[ValidationErrorResponse](t, rec)
	assert.Equal(t, "LcyAmt", verr.Field)
	assert.Equal(t, "gt", verr.Constraint)

	// WHEN / THEN: a malformed body gets the operator envelope
	req2 := httptest.NewRequest(http.MethodPost, "/api/transactions/entry", bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusBadRequest, rec2.Code)
	assert.Equal(t, "Invalid request body", decodeBody[ErrorResponse](t, rec2).Message)
}

func TestAPI_DomainErrorStatusMapping(t *testing.T) {
	_, router := newTestAPI(t)

	// WHEN / THEN: an unbalanced submission is a 400 business-rule error
	req := depositRequest("100.00")
	req.Legs[1].LcyAmt = dec("90.00")
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/entry", req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "unbalanced: debits 100.00, credits 90.00")

	// WHEN / THEN: posting an unknown transaction is a 404
	rec = doJSON(t, router, http.MethodPost, "/api/transactions/T20240115000000000/post", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// WHEN / THEN: a balance inquiry on an unknown account is a 404
	rec = doJSON(t, router, http.MethodGet, "/api/accounts/1110101000999/balance", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// GL SETUP AND ADMIN
// =============================================================================

func TestAPI_GLSetupEndpoints(t *testing.T) {
	_, router := newTestAPI(t)

	// WHEN / THEN: layer 1 holds the two root GLs
	rec := doJSON(t, router, http.MethodGet, "/api/gl-setup/layer/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roots := decodeBody[[]GLSetupDTO](t, rec)
	require.Len(t, roots, 2)
	assert.Equal(t, "100000000", roots[0].GLNum)
	assert.Equal(t, "200000000", roots[1].GLNum)

	// WHEN / THEN: the interest leaf queries split by prefix family
	rec = doJSON(t, router, http.MethodGet, "/api/gl-setup/interest/payable-receivable/layer4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, gl := range decodeBody[[]GLSetupDTO](t, rec) {
		assert.Equal(t, byte('3'), gl.GLNum[1], "GL %s", gl.GLNum)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/gl-setup/interest/income-expenditure/layer4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, gl := range decodeBody[[]GLSetupDTO](t, rec) {
		assert.Equal(t, byte('4'), gl.GLNum[1], "GL %s", gl.GLNum)
	}
}

func TestAPI_AdminClock(t *testing.T) {
	_, router := newTestAPI(t)

	// WHEN / THEN: the EOD status reports the business clock
	rec := doJSON(t, router, http.MethodGet, "/api/admin/eod/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-01-15", decodeBody[EODStatusDTO](t, rec).SystemDate)

	// WHEN / THEN: the clock moves on request
	rec = doJSON(t, router, http.MethodPost, "/api/admin/set-system-date?systemDateStr=2024-01-16&userId=ops", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	moved := decodeBody[SetSystemDateResponse](t, rec)
	assert.True(t, moved.Success)
	assert.Equal(t, "2024-01-16", moved.SystemDate)

	rec = doJSON(t, router, http.MethodGet, "/api/admin/eod/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-01-16", decodeBody[EODStatusDTO](t, rec).SystemDate)

	// WHEN / THEN: a missing date parameter is rejected
	rec = doJSON(t, router, http.MethodPost, "/api/admin/set-system-date", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "systemDateStr query parameter is required",
		decodeBody[ErrorResponse](t, rec).Message)
}

func TestAPI_ValidateEOD_CleanDay(t *testing.T) {
	// GIVEN: a book with nothing pending
	_, router := newTestAPI(t)

	// WHEN / THEN: validation passes
	rec := doJSON(t, router, http.MethodPost, "/api/admin/eod/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	check := decodeBody[ValidationResponse](t, rec)
	assert.True(t, check.Valid)
	assert.Equal(t, "2024-01-15", check.SystemDate)
}

func TestAPI_ValidateEOD_EntryLegsBlock(t *testing.T) {
	// GIVEN: a submission still sitting in Entry status
	_, router := newTestAPI(t)
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/entry", depositRequest("500.00"))
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN / THEN: validation answers 400 and names the blocker
	rec = doJSON(t, router, http.MethodPost, "/api/admin/eod/validate", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	check := decodeBody[ValidationResponse](t, rec)
	assert.False(t, check.Valid)
	assert.Contains(t, check.Message, "Entry")
}

// =============================================================================
// SEED
// =============================================================================

func TestSeed_Idempotent(t *testing.T) {
	// GIVEN: a seeded store
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, Seed(ctx, store, apiBookDate))

	// WHEN: seeding runs again
	require.NoError(t, Seed(ctx, store, apiBookDate))

	// THEN: master data is not duplicated
	chart := ledger.NewChart(store)
	leaves, err := chart.ByLayer(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, leaves, 8)

	roots, err := chart.ByLayer(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}
