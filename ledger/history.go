// history.go - Statement rows written when legs reach Verified.
//
// Txn_Hist_Acct is append-only: one row per verified leg, stamped with the
// account balance observed at write time. Reversals write their own rows;
// nothing is ever amended.
package ledger

import (
	"context"
	"time"
)

// History appends statement rows for verified legs.
type History struct {
	store Store
}

func NewHistory(store Store) *History {
	return &History{store: store}
}

// Record writes one history row per leg through the supplied store, which
// is the tx-scoped store when called from the engine. BalanceAfter is the
// account's latest known balance as of the system date, zero when the
// account has no balance row yet.
func (h *History) Record(ctx context.Context, s Store, legs []TranLeg, systemDate time.Time) error {
	rows := make([]TxnHistory, 0, len(legs))
	for _, l := range legs {
		balanceAfter := Zero
		if bal, err := s.LatestAcctBalance(ctx, l.AccountNo, systemDate); err == nil {
			balanceAfter = bal.CurrentBalance
		} else if !IsNotFound(err) {
			return err
		}
		rows = append(rows, TxnHistory{
			TranID:       l.TranID,
			AccountNo:    l.AccountNo,
			TranDate:     l.TranDate,
			ValueDate:    l.ValueDate,
			DrCrFlag:     l.DrCrFlag,
			TranCcy:      l.TranCcy,
			LcyAmt:       l.LcyAmt,
			Narration:    l.Narration,
			BalanceAfter: balanceAfter,
		})
	}
	return s.SaveHistory(ctx, rows)
}

// ForAccount lists an account's statement rows, newest first.
func (h *History) ForAccount(ctx context.Context, accountNo string) ([]TxnHistory, error) {
	return h.store.HistoryForAccount(ctx, accountNo)
}
