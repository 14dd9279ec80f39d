/*
registry.go - Unified account resolution

PURPOSE:
  One resolver over the two account tables. Callers get a value snapshot
  (AccountInfo) carrying the owning GL, kind, status and loan limit; the
  underlying record is never handed out for mutation.

NUMBERING:
  Customer: 13 chars - 8 customer-derived digits, product category digit,
            3 sequence digits.
  Office:   "9" + leaf GL + 2-digit per-GL sequence, capped at 99.
*/
package ledger

import (
	"context"
	"fmt"
)

// Registry resolves account numbers across customer and office accounts.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Resolve returns the unified snapshot for accountNo, customer table
// first. Fails NotFound when neither table has the number.
func (r *Registry) Resolve(ctx context.Context, accountNo string) (AccountInfo, error) {
	ca, err := r.store.CustomerAccount(ctx, accountNo)
	if err == nil {
		return AccountInfo{
			AccountNo:  ca.AccountNo,
			AcctName:   ca.AcctName,
			GLNum:      ca.GLNum,
			IsCustomer: true,
			Status:     ca.AccountStatus,
			LoanLimit:  ca.LoanLimit,
			Class:      Classify(ca.GLNum),
		}, nil
	}
	if !IsNotFound(err) {
		return AccountInfo{}, err
	}

	oa, err := r.store.OfficeAccount(ctx, accountNo)
	if err != nil {
		if IsNotFound(err) {
			return AccountInfo{}, NotFoundf("account %s not found", accountNo)
		}
		return AccountInfo{}, err
	}
	return AccountInfo{
		AccountNo:  oa.AccountNo,
		AcctName:   oa.AcctName,
		GLNum:      oa.GLNum,
		IsCustomer: false,
		Status:     oa.AccountStatus,
		Class:      Classify(oa.GLNum),
	}, nil
}

// Exists reports whether accountNo resolves in either table.
func (r *Registry) Exists(ctx context.Context, accountNo string) (bool, error) {
	_, err := r.Resolve(ctx, accountNo)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// NextOfficeAccountNo mints the next office account number for a leaf GL:
// "9" + GL + zero-padded two-digit sequence. The 100th request for one GL
// fails BusinessRule.
func (r *Registry) NextOfficeAccountNo(ctx context.Context, glNum string) (string, error) {
	seq, err := r.store.NextOfficeSeq(ctx, glNum)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("9%s%02d", glNum, seq), nil
}
