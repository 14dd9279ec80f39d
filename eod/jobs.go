/*
jobs.go - EOD batch job bodies

Each body runs inside its own unit of work (Job 7 excepted: report files
are not transactional) and returns the number of records it wrote.
Re-run semantics: Jobs 1, 3, 5 and 6 overwrite the day's rows, Jobs 2 and
4 delete before reinserting, Job 7 rewrites the files, Job 8 moves the
clock forward exactly once thanks to the Success gate.
*/
package eod

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/ledger-engine/ledger"
)

// postedStatuses are the leg states whose amounts count toward the day's
// balance summations.
var postedStatuses = []ledger.TranStatus{ledger.StatusPosted, ledger.StatusVerified}

// =============================================================================
// JOB 1: ACCOUNT BALANCE UPDATE
// =============================================================================

// runAccountBalanceUpdate rebuilds today's Acct_Bal row for every Active
// account: opening carried forward from the latest prior row, DR/CR sums
// from the day's posted or verified legs.
func runAccountBalanceUpdate(ctx context.Context, p *Pipeline, date time.Time, _ string) (int, error) {
	count := 0
	err := p.store.WithTx(ctx, func(s ledger.Store) error {
		customers, err := s.ActiveCustomerAccounts(ctx)
		if err != nil {
			return err
		}
		offices, err := s.ActiveOfficeAccounts(ctx)
		if err != nil {
			return err
		}

		for _, acct := range customers {
			loanLimit := ledger.Zero
			if ledger.Classify(acct.GLNum) == ledger.ClassAsset {
				loanLimit = acct.LoanLimit
			}
			if err := rebuildAcctBalance(ctx, s, acct.AccountNo, date, loanLimit); err != nil {
				return err
			}
			count++
		}
		for _, acct := range offices {
			if err := rebuildAcctBalance(ctx, s, acct.AccountNo, date, ledger.Zero); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// rebuildAcctBalance writes one authoritative balance row for the date.
func rebuildAcctBalance(ctx context.Context, s ledger.Store, accountNo string, date time.Time, loanLimit decimal.Decimal) error {
	opening, err := openingBalance(ctx, s, accountNo, date)
	if err != nil {
		return err
	}
	dr, err := s.SumLegs(ctx, accountNo, ledger.Debit, date, postedStatuses)
	if err != nil {
		return err
	}
	cr, err := s.SumLegs(ctx, accountNo, ledger.Credit, date, postedStatuses)
	if err != nil {
		return err
	}

	row := &ledger.AcctBalance{
		TranDate:    date,
		AccountNo:   accountNo,
		OpeningBal:  opening,
		DrSummation: dr,
		CrSummation: cr,
		LastUpdated: date,
	}
	row.Recompute()
	row.CurrentBalance = row.ClosingBal
	row.AvailableBalance = row.ClosingBal.Add(loanLimit)
	return s.SaveAcctBalance(ctx, row)
}

// openingBalance resolves the day's opening: yesterday's closing, else
// the latest closing before the date, else zero.
func openingBalance(ctx context.Context, s ledger.Store, accountNo string, date time.Time) (decimal.Decimal, error) {
	prev, err := s.AcctBalanceAt(ctx, accountNo, date.AddDate(0, 0, -1))
	if err == nil {
		return prev.ClosingBal, nil
	}
	if !ledger.IsNotFound(err) {
		return ledger.Zero, err
	}
	latest, err := s.LatestAcctBalanceBefore(ctx, accountNo, date)
	if err == nil {
		return latest.ClosingBal, nil
	}
	if !ledger.IsNotFound(err) {
		return ledger.Zero, err
	}
	return ledger.Zero, nil
}

// =============================================================================
// JOB 2: INTEREST ACCRUAL TRANSACTIONS
// =============================================================================

// runInterestAccrual clears and rewrites the day's accrual legs. Per-account
// problems are reported by the accrual engine without failing the job.
func runInterestAccrual(ctx context.Context, p *Pipeline, date time.Time, _ string) (int, error) {
	var result *ledger.AccrualResult
	err := p.store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.DeleteAccrualLegsOnDate(ctx, date); err != nil {
			return err
		}
		var err error
		result, err = p.accruals.RunDaily(ctx, s, date)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(result.Errors) > 0 {
		p.log.WithField("errors", result.Errors).Warn("interest accrual completed with per-account errors")
	}
	return result.EntriesCreated, nil
}

// =============================================================================
// JOB 3: INTEREST ACCRUAL GL MOVEMENTS
// =============================================================================

// runAccrualGLMovements writes one GL_Movement_Accrual row per Pending
// accrual leg and flips the leg to Processed. BalanceAfter tracks a
// running per-GL balance in leg order.
func runAccrualGLMovements(ctx context.Context, p *Pipeline, date time.Time, _ string) (int, error) {
	count := 0
	err := p.store.WithTx(ctx, func(s ledger.Store) error {
		legs, err := s.PendingAccrualLegs(ctx, date)
		if err != nil {
			return err
		}

		running := make(map[string]decimal.Decimal)
		for i := range legs {
			leg := &legs[i]
			glNum := leg.GLAccountNo

			bal, seen := running[glNum]
			if !seen {
				bal, err = glOpeningBalance(ctx, s, glNum, date)
				if err != nil {
					return err
				}
			}
			if leg.DrCrFlag == ledger.Debit {
				bal = bal.Sub(leg.Amount)
			} else {
				bal = bal.Add(leg.Amount)
			}
			running[glNum] = bal

			if err := s.SaveAccrualMovement(ctx, &ledger.GLMovementAccrual{
				AccrTranID:   leg.AccrTranID,
				GLNum:        glNum,
				DrCrFlag:     leg.DrCrFlag,
				TranDate:     date,
				Amount:       leg.Amount,
				BalanceAfter: bal,
			}); err != nil {
				return err
			}

			leg.Status = ledger.AccrualProcessed
			if err := s.SaveAccrualLeg(ctx, leg); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// glOpeningBalance is the GL's balance entering the date's accrual stream:
// today's row if it exists, else the latest prior closing, else zero.
func glOpeningBalance(ctx context.Context, s ledger.Store, glNum string, date time.Time) (decimal.Decimal, error) {
	today, err := s.GLBalanceAt(ctx, glNum, date)
	if err == nil {
		return today.ClosingBal, nil
	}
	if !ledger.IsNotFound(err) {
		return ledger.Zero, err
	}
	prior, err := s.LatestGLBalanceBefore(ctx, glNum, date)
	if err == nil {
		return prior.ClosingBal, nil
	}
	if !ledger.IsNotFound(err) {
		return ledger.Zero, err
	}
	return ledger.Zero, nil
}

// =============================================================================
// JOB 4: GL MOVEMENT UPDATE
// =============================================================================

// runGLMovementUpdate merges the day's accrual movements into the unified
// GL_Movement stream. Rows copied on a previous attempt are deleted first;
// accrual movements keep their S-prefixed IDs in Tran_Id.
func runGLMovementUpdate(ctx context.Context, p *Pipeline, date time.Time, _ string) (int, error) {
	count := 0
	err := p.store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.DeleteAccrualMovements(ctx, date); err != nil {
			return err
		}
		moves, err := s.AccrualMovementsOnDate(ctx, date)
		if err != nil {
			return err
		}
		for _, m := range moves {
			if err := s.SaveMovement(ctx, &ledger.GLMovement{
				TranID:       m.AccrTranID,
				GLNum:        m.GLNum,
				DrCrFlag:     m.DrCrFlag,
				TranDate:     m.TranDate,
				ValueDate:    m.TranDate,
				Amount:       m.Amount,
				BalanceAfter: m.BalanceAfter,
			}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// =============================================================================
// JOB 5: GL BALANCE UPDATE
// =============================================================================

// runGLBalanceUpdate rebuilds the day's GL_Balance row for every GL that
// moved, from the unified movement stream. An empty day writes nothing.
func runGLBalanceUpdate(ctx context.Context, p *Pipeline, date time.Time, _ string) (int, error) {
	count := 0
	err := p.store.WithTx(ctx, func(s ledger.Store) error {
		moves, err := s.MovementsOnDate(ctx, date)
		if err != nil {
			return err
		}

		type sums struct{ dr, cr decimal.Decimal }
		byGL := make(map[string]*sums)
		for _, m := range moves {
			agg, ok := byGL[m.GLNum]
			if !ok {
				agg = &sums{dr: ledger.Zero, cr: ledger.Zero}
				byGL[m.GLNum] = agg
			}
			if m.DrCrFlag == ledger.Debit {
				agg.dr = agg.dr.Add(m.Amount)
			} else {
				agg.cr = agg.cr.Add(m.Amount)
			}
		}

		glNums := make([]string, 0, len(byGL))
		for glNum := range byGL {
			glNums = append(glNums, glNum)
		}
		sort.Strings(glNums)

		totalDr, totalCr := ledger.Zero, ledger.Zero
		for _, glNum := range glNums {
			agg := byGL[glNum]
			opening := ledger.Zero
			if prior, err := s.LatestGLBalanceBefore(ctx, glNum, date); err == nil {
				opening = prior.ClosingBal
			} else if !ledger.IsNotFound(err) {
				return err
			}

			row := &ledger.GLBalance{
				GLNum:       glNum,
				TranDate:    date,
				OpeningBal:  opening,
				DrSummation: agg.dr,
				CrSummation: agg.cr,
				LastUpdated: date,
			}
			row.Recompute()
			row.CurrentBalance = row.ClosingBal
			if err := s.SaveGLBalance(ctx, row); err != nil {
				return err
			}
			totalDr = totalDr.Add(agg.dr)
			totalCr = totalCr.Add(agg.cr)
			count++
		}

		if !totalDr.Equal(totalCr) {
			p.log.WithFields(logrus.Fields{
				"totalDr": totalDr.StringFixed(2),
				"totalCr": totalCr.StringFixed(2),
			}).Warn("GL balance update: day's debits and credits differ; trial balance will fail")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// =============================================================================
// JOB 6: INTEREST ACCRUAL ACCOUNT BALANCES
// =============================================================================

// runAccrualBalances rebuilds the day's Acct_Bal_Accrual row for every
// account that accrued interest.
func runAccrualBalances(ctx context.Context, p *Pipeline, date time.Time, _ string) (int, error) {
	count := 0
	err := p.store.WithTx(ctx, func(s ledger.Store) error {
		legs, err := s.AccrualLegsOnDate(ctx, date)
		if err != nil {
			return err
		}

		type sums struct{ dr, cr decimal.Decimal }
		byAccount := make(map[string]*sums)
		for _, leg := range legs {
			agg, ok := byAccount[leg.AccountNo]
			if !ok {
				agg = &sums{dr: ledger.Zero, cr: ledger.Zero}
				byAccount[leg.AccountNo] = agg
			}
			if leg.DrCrFlag == ledger.Debit {
				agg.dr = agg.dr.Add(leg.Amount)
			} else {
				agg.cr = agg.cr.Add(leg.Amount)
			}
		}

		accounts := make([]string, 0, len(byAccount))
		for no := range byAccount {
			accounts = append(accounts, no)
		}
		sort.Strings(accounts)

		for _, no := range accounts {
			agg := byAccount[no]
			opening := ledger.Zero
			if prior, err := s.LatestAccrualBalanceBefore(ctx, no, date); err == nil {
				opening = prior.ClosingBal
			} else if !ledger.IsNotFound(err) {
				return err
			}

			row := &ledger.AccrualBalance{
				TranDate:    date,
				AccountNo:   no,
				OpeningBal:  opening,
				DrSummation: agg.dr,
				CrSummation: agg.cr,
				ClosingBal:  opening.Add(agg.cr).Sub(agg.dr),
				LastUpdated: date,
			}
			if err := s.SaveAccrualBalance(ctx, row); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// =============================================================================
// JOB 7: FINANCIAL REPORTS
// =============================================================================

// runFinancialReports writes the trial balance and balance sheet. File
// output is not transactional; a re-run simply rewrites both files.
func runFinancialReports(ctx context.Context, p *Pipeline, date time.Time, _ string) (int, error) {
	paths, err := p.reporter.Generate(ctx, date)
	if err != nil {
		return 0, err
	}
	return len(paths), nil
}

// =============================================================================
// JOB 8: SYSTEM DATE INCREMENT
// =============================================================================

// runSystemDateIncrement advances System_Date one day and stamps the
// Last_EOD_* markers.
func runSystemDateIncrement(ctx context.Context, p *Pipeline, date time.Time, userID string) (int, error) {
	newDate := date.AddDate(0, 0, 1)
	err := p.store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.SetParameter(ctx, ledger.ParamSystemDate, ledger.FormatDate(newDate), userID, date); err != nil {
			return err
		}
		if err := s.SetParameter(ctx, ledger.ParamLastEODDate, ledger.FormatDate(date), userID, date); err != nil {
			return err
		}
		if err := s.SetParameter(ctx, ledger.ParamLastEODTimestamp, date.Format("2006-01-02 15:04:05"), userID, date); err != nil {
			return err
		}
		return s.SetParameter(ctx, ledger.ParamLastEODUser, userID, userID, date)
	})
	if err != nil {
		return 0, err
	}
	p.log.WithFields(logrus.Fields{
		"from": ledger.FormatDate(date), "to": ledger.FormatDate(newDate),
	}).Info("system date incremented")
	return 1, nil
}
