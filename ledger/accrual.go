/*
accrual.go - Daily interest accrual

PURPOSE:
  Computes simple daily interest for every Active customer account and
  writes two balanced Intt_Accr_Tran legs per eligible account:

    S<yyyymmdd><9-seq>-1  (Dr)
    S<yyyymmdd><9-seq>-2  (Cr)

  The sequence is per accrual date; both legs carry the same amount and
  reference the customer account, with the interest GL selected from the
  sub-product riding along in GL_Account_No.

RATE RESOLUTION:
  Liability Deal accounts (GL 1102*) use the fixed rate frozen on the
  sub-product at opening. Everything else resolves the latest
  Intt_Rate_Master row with effective date <= the accrual date and adds
  the sub-product's increment.

FAILURE MODEL:
  Per-account problems (no balance row, no rate row for a configured
  code, no interest GL) are collected and reported; the batch keeps
  going. Zero balances, zero rates and amounts rounding to zero are
  ordinary skips, not errors.

SEE ALSO:
  - money.go: the round(bal * rate / 36500, 2) arithmetic
  - idgen.go: the 20-character accrual ID format
  - eod package: Job 2 drives RunDaily, Job 3 consumes the Pending legs
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AccrualResult summarizes one accrual run.
type AccrualResult struct {
	Date              time.Time
	AccountsProcessed int
	EntriesCreated    int
	Skipped           int
	Errors            []string
}

// AccrualEngine writes the day's interest accrual legs.
type AccrualEngine struct {
	store Store
	log   *logrus.Entry
}

func NewAccrualEngine(store Store) *AccrualEngine {
	return &AccrualEngine{
		store: store,
		log:   logrus.WithField("component", "accrual"),
	}
}

// RunDaily processes every Active customer account for the date. Callers
// wrap it in a unit of work; per-account errors are collected in the
// result rather than aborting the batch.
func (a *AccrualEngine) RunDaily(ctx context.Context, s Store, date time.Time) (*AccrualResult, error) {
	accounts, err := s.ActiveCustomerAccounts(ctx)
	if err != nil {
		return nil, err
	}

	result := &AccrualResult{Date: date}
	if len(accounts) == 0 {
		a.log.WithField("date", FormatDate(date)).Info("no active accounts to accrue")
		return result, nil
	}

	maxSeq, err := s.MaxAccrualSeq(ctx, date)
	if err != nil {
		return nil, err
	}
	seq := maxSeq + 1

	for _, acct := range accounts {
		created, err := a.accrueAccount(ctx, s, &acct, date, seq)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Account %s: %v", acct.AccountNo, err))
			continue
		}
		if created == 0 {
			result.Skipped++
			continue
		}
		result.EntriesCreated += created
		result.AccountsProcessed++
		seq++
	}

	a.log.WithFields(logrus.Fields{
		"date":     FormatDate(date),
		"accounts": result.AccountsProcessed,
		"entries":  result.EntriesCreated,
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
	}).Info("interest accrual run complete")
	return result, nil
}

// accrueAccount writes the two legs for one account. Returns 0 when the
// account is skipped (no rate, zero balance, zero amount, non-1/2 GL).
func (a *AccrualEngine) accrueAccount(ctx context.Context, s Store, acct *CustomerAccount, date time.Time, seq int64) (int, error) {
	glNum := acct.GLNum
	class := Classify(glNum)
	if class != ClassLiability && class != ClassAsset {
		return 0, nil
	}

	sub, err := s.SubProduct(ctx, acct.SubProdCode)
	if err != nil {
		if IsNotFound(err) {
			return 0, fmt.Errorf("sub-product %s not configured", acct.SubProdCode)
		}
		return 0, err
	}

	rate, err := a.effectiveRate(ctx, s, sub, glNum, date)
	if err != nil {
		return 0, err
	}
	if rate.IsZero() {
		return 0, nil
	}

	bal, err := s.LatestAcctBalance(ctx, acct.AccountNo, date)
	if err != nil {
		if IsNotFound(err) {
			return 0, fmt.Errorf("no balance row found")
		}
		return 0, err
	}
	if bal.ClosingBal.IsZero() {
		return 0, nil
	}

	amount := DailyInterest(bal.ClosingBal, rate)
	if amount.IsZero() {
		return 0, nil
	}

	drGL, crGL, drNarr, crNarr, err := selectAccrualGLs(class, sub, acct.AccountNo)
	if err != nil {
		return 0, err
	}

	drID, err := NewAccrTranID(date, seq, 1)
	if err != nil {
		return 0, err
	}
	crID, err := NewAccrTranID(date, seq, 2)
	if err != nil {
		return 0, err
	}

	legs := []AccrualLeg{
		{
			AccrTranID:  drID,
			AccountNo:   acct.AccountNo,
			AccrualDate: date,
			InttRate:    rate,
			Amount:      amount,
			DrCrFlag:    Debit,
			GLAccountNo: drGL,
			TranCcy:     DefaultCurrency,
			Narration:   drNarr,
			Status:      AccrualPending,
		},
		{
			AccrTranID:  crID,
			AccountNo:   acct.AccountNo,
			AccrualDate: date,
			InttRate:    rate,
			Amount:      amount,
			DrCrFlag:    Credit,
			GLAccountNo: crGL,
			TranCcy:     DefaultCurrency,
			Narration:   crNarr,
			Status:      AccrualPending,
		},
	}
	if err := s.SaveAccrualLegs(ctx, legs); err != nil {
		return 0, err
	}

	a.log.WithFields(logrus.Fields{
		"account": acct.AccountNo,
		"amount":  amount.StringFixed(2),
		"rate":    rate.String(),
		"drGL":    drGL,
		"crGL":    crGL,
	}).Debug("accrual legs created")
	return len(legs), nil
}

// effectiveRate resolves the rate per account type. A sub-product with no
// interest code accrues nothing; a configured code with no rate row is an
// error.
func (a *AccrualEngine) effectiveRate(ctx context.Context, s Store, sub *SubProduct, glNum string, asOf time.Time) (decimal.Decimal, error) {
	if strings.TrimSpace(sub.InttCode) == "" {
		return Zero, nil
	}

	if AccountKindOf(glNum) == KindDeal && strings.HasPrefix(glNum, "1") && !sub.FixedInttRate.IsZero() {
		return sub.FixedInttRate, nil
	}

	rateRow, err := s.LatestRate(ctx, sub.InttCode, asOf)
	if err != nil {
		if IsNotFound(err) {
			return Zero, fmt.Errorf("no rate configured for code %s as of %s", sub.InttCode, FormatDate(asOf))
		}
		return Zero, err
	}
	return rateRow.InttRate.Add(sub.InttIncrement), nil
}

// selectAccrualGLs picks the debit and credit interest GLs from the
// sub-product. For liability accounts the income/expenditure column holds
// the EXPENDITURE GL and the receivable/payable column the PAYABLE GL;
// for assets they hold INCOME and RECEIVABLE. Either column falls back to
// the other; both empty is an error.
func selectAccrualGLs(class GLClass, sub *SubProduct, accountNo string) (drGL, crGL, drNarr, crNarr string, err error) {
	incomeExp := strings.TrimSpace(sub.InttGLNumIncomeExp)
	recvPay := strings.TrimSpace(sub.InttGLNumRecvPay)
	if incomeExp == "" && recvPay == "" {
		return "", "", "", "", fmt.Errorf("no interest GL configured on sub-product %s", sub.SubProdCode)
	}

	if class == ClassLiability {
		drGL, crGL = incomeExp, recvPay
		if drGL == "" {
			drGL = recvPay
		}
		if crGL == "" {
			crGL = incomeExp
		}
		return drGL, crGL,
			"Interest Expenditure Accrual - " + accountNo,
			"Interest Payable Accrual - " + accountNo, nil
	}

	drGL, crGL = recvPay, incomeExp
	if drGL == "" {
		drGL = incomeExp
	}
	if crGL == "" {
		crGL = recvPay
	}
	return drGL, crGL,
		"Interest Receivable Accrual - " + accountNo,
		"Interest Income Accrual - " + accountNo, nil
}
