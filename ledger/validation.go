/*
validation.go - Per-leg transaction validation

PURPOSE:
  Decides whether one debit or credit may touch one account. The policy
  depends on who owns the account and which side of the book its GL is on:

    Customer, non-overdraft     debit <= available balance; credits free
    Customer, overdraft leaf    unrestricted both ways
    Office, asset GL (2*)       unrestricted both ways
    Office, liability GL (1*)   resulting balance must stay >= 0
    Office, anything else       conservative: resulting balance >= 0

  Inactive, Closed and Dormant accounts reject every leg outright.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LegValidator applies the account-kind policy matrix.
type LegValidator struct {
	store    Store
	balances *BalanceQuery
}

func NewLegValidator(store Store, balances *BalanceQuery) *LegValidator {
	return &LegValidator{store: store, balances: balances}
}

// Validate checks one (account, flag, amount) against current balances.
// The transaction is not yet committed; the check is against the
// hypothetical result.
func (v *LegValidator) Validate(ctx context.Context, info AccountInfo, flag DrCrFlag, amount decimal.Decimal, date time.Time) error {
	if !info.Active() {
		return BusinessRulef("account %s is %s and cannot transact", info.AccountNo, info.Status)
	}

	if info.IsCustomer {
		return v.validateCustomer(ctx, info, flag, amount, date)
	}
	return v.validateOffice(ctx, info, flag, amount, date)
}

// ValidateHeld re-checks a leg whose amount is already written into the
// day's sums: Entry legs being posted, and reversal legs saved ahead of
// their balance effects. The customer debit test becomes "the hold still
// clears" - available must not have gone negative - since the amount is
// counted once already. Office rules read balance rows, which this leg
// has not touched yet, so they run unchanged.
func (v *LegValidator) ValidateHeld(ctx context.Context, info AccountInfo, flag DrCrFlag, amount decimal.Decimal, date time.Time) error {
	if !info.Active() {
		return BusinessRulef("account %s is %s and cannot transact", info.AccountNo, info.Status)
	}

	if info.IsCustomer {
		if flag == Credit || IsOverdraftLeaf(info.GLNum) {
			return nil
		}
		available, err := v.balances.Available(ctx, info, date)
		if err != nil {
			return err
		}
		if available.IsNegative() {
			return BusinessRulef("Insufficient balance. Available balance: %s, Debit amount: %s",
				available.Add(amount).StringFixed(2), amount.StringFixed(2))
		}
		return nil
	}
	return v.validateOffice(ctx, info, flag, amount, date)
}

func (v *LegValidator) validateCustomer(ctx context.Context, info AccountInfo, flag DrCrFlag, amount decimal.Decimal, date time.Time) error {
	if flag == Credit {
		return nil
	}
	if IsOverdraftLeaf(info.GLNum) {
		return nil
	}

	available, err := v.balances.Available(ctx, info, date)
	if err != nil {
		return err
	}
	if amount.GreaterThan(available) {
		return BusinessRulef("Insufficient balance. Available balance: %s, Debit amount: %s",
			available.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

func (v *LegValidator) validateOffice(ctx context.Context, info AccountInfo, flag DrCrFlag, amount decimal.Decimal, date time.Time) error {
	// Asset office accounts post freely; negative balances are normal on
	// the debit side of the book.
	if info.Class == ClassAsset {
		return nil
	}

	current, err := v.currentBalance(ctx, info.AccountNo, date)
	if err != nil {
		return err
	}

	resulting := current.Add(amount)
	if flag == Debit {
		resulting = current.Sub(amount)
	}

	if info.Class == ClassLiability {
		if resulting.IsNegative() {
			return BusinessRulef("Insufficient balance for Office Liability Account %s (GL: %s). Available balance: %s, Required: %s. Liability accounts cannot have negative balances.",
				info.AccountNo, info.GLNum, current.StringFixed(2), amount.StringFixed(2))
		}
		return nil
	}

	// Unknown class: refuse anything that would go negative.
	if resulting.IsNegative() {
		return BusinessRulef("Insufficient balance for Office Account %s (GL: %s). Resulting balance would be negative: %s",
			info.AccountNo, info.GLNum, resulting.StringFixed(2))
	}
	return nil
}

func (v *LegValidator) currentBalance(ctx context.Context, accountNo string, date time.Time) (decimal.Decimal, error) {
	row, err := v.store.LatestAcctBalance(ctx, accountNo, date)
	if err != nil {
		if IsNotFound(err) {
			return Zero, nil
		}
		return Zero, err
	}
	return row.CurrentBalance, nil
}
