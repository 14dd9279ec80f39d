/*
errors.go - Error kinds for the ledger

PURPOSE:
  One error vocabulary for the whole module. Every failure is classified
  into a Kind; the API layer maps kinds to HTTP statuses and callers use
  the Is* predicates instead of string matching.

KINDS:
  NotFound:           account, transaction, GL, balance row missing
  BusinessRule:       unbalanced legs, insufficient balance, inactive account
  Conflict:           already verified, EOD job already executed, gate violations
  InvariantViolation: trial balance DR != CR, cross-check failures
  Transient:          deadlocks and lock timeouts; safe to retry
  Configuration:      System_Date not set, missing GL/rate wiring
  IO:                 report file read/write failures

USAGE:
  return ledger.BusinessRulef("insufficient balance. Available balance: %s, Debit amount: %s", avail, amt)
  ...
  if ledger.IsBusinessRule(err) { ... }

Wrapping preserves the kind: fmt.Errorf("post %s: %w", id, err) still
answers IsBusinessRule.
*/
package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindBusinessRule       Kind = "business_rule"
	KindConflict           Kind = "conflict"
	KindInvariantViolation Kind = "invariant_violation"
	KindTransient          Kind = "transient"
	KindConfiguration      Kind = "configuration"
	KindIO                 Kind = "io"
)

// Error is the module's error type. Msg is operator-facing and ends up in
// the HTTP error envelope verbatim.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func BusinessRulef(format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRule, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func Invariantf(format string, args ...any) *Error {
	return &Error{Kind: KindInvariantViolation, Msg: fmt.Sprintf(format, args...)}
}

func Transientf(err error, format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Configurationf(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

func IOErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindIO, Msg: fmt.Sprintf(format, args...)}
}

// =============================================================================
// SENTINELS - fixed conditions referenced across packages
// =============================================================================

var (
	// ErrSystemDateNotSet fires when neither the parameter row nor a
	// configured default exists.
	ErrSystemDateNotSet = &Error{Kind: KindConfiguration, Msg: "System_Date is not configured in Parameter_Table"}

	// ErrAlreadyExecuted gates EOD job re-runs on the same business day.
	ErrAlreadyExecuted = &Error{Kind: KindConflict, Msg: "job already executed successfully for this date"}

	// ErrPreviousJobPending blocks job N+1 until job N logged Success.
	ErrPreviousJobPending = &Error{Kind: KindConflict, Msg: "previous EOD job has not completed successfully for this date"}

	// ErrAlreadyVerified reports an idempotent verify on a fully verified
	// transaction.
	ErrAlreadyVerified = &Error{Kind: KindConflict, Msg: "Transaction is already verified."}

	// ErrTrialBalanceImbalanced fails report generation when total DR and
	// total CR diverge.
	ErrTrialBalanceImbalanced = &Error{Kind: KindInvariantViolation, Msg: "trial balance total DR does not equal total CR"}

	// ErrOfficeSeqExhausted fires when a GL's two-digit office account
	// sequence would pass 99.
	ErrOfficeSeqExhausted = &Error{Kind: KindBusinessRule, Msg: "office account sequence exhausted for GL (max 99)"}
)

// =============================================================================
// PREDICATES
// =============================================================================

// KindOf walks the wrap chain and returns the outermost classified kind,
// or "" when the error carries none.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

func IsNotFound(err error) bool           { return KindOf(err) == KindNotFound }
func IsBusinessRule(err error) bool       { return KindOf(err) == KindBusinessRule }
func IsConflict(err error) bool           { return KindOf(err) == KindConflict }
func IsInvariantViolation(err error) bool { return KindOf(err) == KindInvariantViolation }
func IsTransient(err error) bool          { return KindOf(err) == KindTransient }
func IsConfiguration(err error) bool      { return KindOf(err) == KindConfiguration }
func IsIO(err error) bool                 { return KindOf(err) == KindIO }
