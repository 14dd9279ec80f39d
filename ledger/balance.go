/*
balance.go - Real-time available balance

PURPOSE:
  Answers "how much can this account move right now?" without waiting for
  EOD. The computation is day-bounded:

    opening   = previous closing balance (3-tier fallback)
    computed  = opening + today's credits - today's debits
    available = computed + loanLimit      (asset accounts only)

  Opening-balance fallback order:
    1. the row at System_Date - 1
    2. the row at MAX(tranDate) < System_Date
    3. zero (new account)

  Only legs in Entry, Posted or Verified count toward the day's sums;
  Future legs are invisible until BOD promotes them, and reversals cancel
  through their own opposite legs.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// countedStatuses are the leg states that affect the real-time balance.
var countedStatuses = []TranStatus{StatusEntry, StatusPosted, StatusVerified}

// BalanceSnapshot is the full inquiry result for one account.
type BalanceSnapshot struct {
	AccountNo        string
	AccountName      string
	OpeningBalance   decimal.Decimal
	CurrentBalance   decimal.Decimal
	TodayDebits      decimal.Decimal
	TodayCredits     decimal.Decimal
	ComputedBalance  decimal.Decimal
	AvailableBalance decimal.Decimal
	InterestAccrued  decimal.Decimal
}

// BalanceQuery computes day-bounded balances from the balance rows and
// the transaction legs.
type BalanceQuery struct {
	store    Store
	registry *Registry
}

func NewBalanceQuery(store Store, registry *Registry) *BalanceQuery {
	return &BalanceQuery{store: store, registry: registry}
}

// OpeningBalance resolves the previous closing balance for date using the
// 3-tier fallback.
func (q *BalanceQuery) OpeningBalance(ctx context.Context, accountNo string, date time.Time) (decimal.Decimal, error) {
	date = DateOnly(date)

	row, err := q.store.AcctBalanceAt(ctx, accountNo, date.AddDate(0, 0, -1))
	if err == nil {
		return row.ClosingBal, nil
	}
	if !IsNotFound(err) {
		return Zero, err
	}

	row, err = q.store.LatestAcctBalanceBefore(ctx, accountNo, date)
	if err == nil {
		return row.ClosingBal, nil
	}
	if !IsNotFound(err) {
		return Zero, err
	}

	return Zero, nil
}

// Available computes the real-time available balance for a debit check
// or an inquiry.
func (q *BalanceQuery) Available(ctx context.Context, info AccountInfo, date time.Time) (decimal.Decimal, error) {
	computed, err := q.computed(ctx, info.AccountNo, date)
	if err != nil {
		return Zero, err
	}
	if info.Class == ClassAsset {
		return computed.Add(info.LoanLimit), nil
	}
	return computed, nil
}

func (q *BalanceQuery) computed(ctx context.Context, accountNo string, date time.Time) (decimal.Decimal, error) {
	opening, err := q.OpeningBalance(ctx, accountNo, date)
	if err != nil {
		return Zero, err
	}
	debits, err := q.store.SumLegs(ctx, accountNo, Debit, date, countedStatuses)
	if err != nil {
		return Zero, err
	}
	credits, err := q.store.SumLegs(ctx, accountNo, Credit, date, countedStatuses)
	if err != nil {
		return Zero, err
	}
	return opening.Add(credits).Sub(debits), nil
}

// Snapshot assembles the full balance inquiry for one account.
func (q *BalanceQuery) Snapshot(ctx context.Context, accountNo string, date time.Time) (BalanceSnapshot, error) {
	info, err := q.registry.Resolve(ctx, accountNo)
	if err != nil {
		return BalanceSnapshot{}, err
	}

	opening, err := q.OpeningBalance(ctx, accountNo, date)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	debits, err := q.store.SumLegs(ctx, accountNo, Debit, date, countedStatuses)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	credits, err := q.store.SumLegs(ctx, accountNo, Credit, date, countedStatuses)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	computed := opening.Add(credits).Sub(debits)

	available := computed
	if info.Class == ClassAsset {
		available = available.Add(info.LoanLimit)
	}

	snap := BalanceSnapshot{
		AccountNo:        accountNo,
		AccountName:      info.AcctName,
		OpeningBalance:   opening,
		TodayDebits:      debits,
		TodayCredits:     credits,
		ComputedBalance:  computed,
		AvailableBalance: available,
	}

	if row, err := q.store.LatestAcctBalance(ctx, accountNo, date); err == nil {
		snap.CurrentBalance = row.CurrentBalance
	} else if !IsNotFound(err) {
		return BalanceSnapshot{}, err
	}

	if acc, err := q.store.LatestAccrualBalance(ctx, accountNo, date); err == nil {
		snap.InterestAccrued = acc.ClosingBal
	} else if !IsNotFound(err) {
		return BalanceSnapshot{}, err
	}

	return snap, nil
}
