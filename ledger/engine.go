/*
engine.go - Transaction engine

PURPOSE:
  Drives multi-leg double-entry transactions through their lifecycle:

    Create  -> legs persisted at Entry (or Future when value-dated ahead)
    Post    -> balances mutate, GL movements appended, status Posted
    Verify  -> history rows written, status Verified
    Reverse -> inverse transaction minted and auto-verified

  Posting is all-or-nothing: every leg's validation, balance update, GL
  update and movement happen inside one unit of work, and any failure
  rolls the whole transaction back. Originals are never mutated by a
  reversal; the inverse legs point back via Pointing_Id.

INVARIANTS:
  - sum of debit LCY amounts equals sum of credit LCY amounts, scale-2
  - at least two legs per transaction
  - legs are immutable except for Tran_Status transitions
  - GL movements carry the GL balance observed after each leg, in stable
    leg order

SEE ALSO:
  - validation.go: the per-leg policy matrix
  - history.go: statement rows written on verification
*/
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const maxIDAttempts = 5

// LegRequest is one requested debit or credit.
type LegRequest struct {
	AccountNo    string
	DrCrFlag     DrCrFlag
	TranCcy      string
	FcyAmt       decimal.Decimal
	ExchangeRate decimal.Decimal
	LcyAmt       decimal.Decimal
	Narration    string
}

// CreateRequest is a full transaction submission.
type CreateRequest struct {
	ValueDate time.Time
	Narration string
	Legs      []LegRequest
}

// Transaction is the grouped view of one base ID's legs.
type Transaction struct {
	TranID    string
	TranDate  time.Time
	ValueDate time.Time
	Status    TranStatus
	Legs      []TranLeg
}

// Engine creates, posts, verifies and reverses transactions.
type Engine struct {
	store     Store
	clock     *Clock
	registry  *Registry
	validator *LegValidator
	history   *History
	log       *logrus.Entry
}

func NewEngine(store Store, clock *Clock) *Engine {
	registry := NewRegistry(store)
	balances := NewBalanceQuery(store, registry)
	return &Engine{
		store:     store,
		clock:     clock,
		registry:  registry,
		validator: NewLegValidator(store, balances),
		history:   NewHistory(store),
		log:       logrus.WithField("component", "engine"),
	}
}

// Registry exposes the engine's account resolver for the API layer.
func (e *Engine) Registry() *Registry { return e.registry }

// =============================================================================
// CREATE
// =============================================================================

// Create validates and persists a new transaction at Entry status, or
// Future when the value date lies past the system date.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Transaction, error) {
	systemDate, err := e.clock.Now(ctx)
	if err != nil {
		return nil, err
	}

	if len(req.Legs) < 2 {
		return nil, BusinessRulef("transaction requires at least two legs, got %d", len(req.Legs))
	}

	infos := make([]AccountInfo, len(req.Legs))
	var sumD, sumC decimal.Decimal
	for i, lr := range req.Legs {
		amt := RoundMoney(lr.LcyAmt)
		if !amt.IsPositive() {
			return nil, BusinessRulef("leg %d: LCY amount must be positive, got %s", i+1, amt.StringFixed(2))
		}
		info, err := e.registry.Resolve(ctx, lr.AccountNo)
		if err != nil {
			return nil, err
		}
		infos[i] = info
		if lr.DrCrFlag == Debit {
			sumD = sumD.Add(amt)
		} else {
			sumC = sumC.Add(amt)
		}
	}
	if !sumD.Equal(sumC) {
		return nil, BusinessRulef("transaction is unbalanced: debits %s, credits %s",
			sumD.StringFixed(2), sumC.StringFixed(2))
	}

	for i, lr := range req.Legs {
		if err := e.validator.Validate(ctx, infos[i], lr.DrCrFlag, RoundMoney(lr.LcyAmt), systemDate); err != nil {
			return nil, err
		}
	}

	valueDate := DateOnly(req.ValueDate)
	if valueDate.IsZero() {
		valueDate = systemDate
	}
	status := StatusEntry
	if valueDate.After(systemDate) {
		status = StatusFuture
	}

	var tx *Transaction
	err = e.store.WithTx(ctx, func(s Store) error {
		baseID, err := e.mintBaseID(ctx, s, systemDate)
		if err != nil {
			return err
		}

		legs := make([]TranLeg, len(req.Legs))
		for i, lr := range req.Legs {
			legs[i] = e.buildLeg(baseID, i+1, systemDate, valueDate, status, req.Narration, lr)
		}
		if err := s.SaveLegs(ctx, legs); err != nil {
			return err
		}
		tx = groupLegs(legs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"tranId": tx.TranID, "legs": len(tx.Legs), "status": tx.Status,
	}).Info("transaction created")
	return tx, nil
}

func (e *Engine) buildLeg(baseID string, lineNo int, tranDate, valueDate time.Time, status TranStatus, fallbackNarration string, lr LegRequest) TranLeg {
	amt := RoundMoney(lr.LcyAmt)
	ccy := lr.TranCcy
	if ccy == "" {
		ccy = DefaultCurrency
	}
	rate := lr.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	fcy := lr.FcyAmt
	if fcy.IsZero() {
		fcy = amt
	}
	narration := lr.Narration
	if narration == "" {
		narration = fallbackNarration
	}
	return TranLeg{
		TranID:       LegTranID(baseID, lineNo),
		TranDate:     tranDate,
		ValueDate:    valueDate,
		AccountNo:    lr.AccountNo,
		DrCrFlag:     lr.DrCrFlag,
		TranCcy:      ccy,
		FcyAmt:       fcy,
		ExchangeRate: rate,
		LcyAmt:       amt,
		Narration:    narration,
		TranStatus:   status,
	}
}

func (e *Engine) mintBaseID(ctx context.Context, s Store, date time.Time) (string, error) {
	count, err := s.CountLegsOnDate(ctx, date)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		baseID := NewBaseTranID(date, count)
		exists, err := s.BaseExists(ctx, baseID)
		if err != nil {
			return "", err
		}
		if !exists {
			return baseID, nil
		}
	}
	return "", Conflictf("could not allocate a unique transaction id for %s", FormatDate(date))
}

// =============================================================================
// POST
// =============================================================================

// Post transitions a transaction's Entry legs to Posted, mutating account
// and GL balances and appending one movement per leg. Validation reruns
// against current balances inside the unit of work.
func (e *Engine) Post(ctx context.Context, baseID string) (*Transaction, error) {
	systemDate, err := e.clock.Now(ctx)
	if err != nil {
		return nil, err
	}

	var tx *Transaction
	err = e.store.WithTx(ctx, func(s Store) error {
		legs, err := s.LegsByBase(ctx, baseID)
		if err != nil {
			return err
		}
		if len(legs) == 0 {
			return NotFoundf("transaction %s not found", baseID)
		}

		var toPost []TranLeg
		for _, l := range legs {
			if l.TranStatus == StatusEntry {
				toPost = append(toPost, l)
			}
		}
		if len(toPost) == 0 {
			return Conflictf("transaction %s has no Entry legs to post", baseID)
		}

		var sumD, sumC decimal.Decimal
		for _, l := range toPost {
			if l.DrCrFlag == Debit {
				sumD = sumD.Add(l.LcyAmt)
			} else {
				sumC = sumC.Add(l.LcyAmt)
			}
		}
		if !sumD.Equal(sumC) {
			return BusinessRulef("transaction %s is unbalanced: debits %s, credits %s",
				baseID, sumD.StringFixed(2), sumC.StringFixed(2))
		}

		// Tx-scoped resolver and validator, so a later leg on the same
		// account observes the earlier legs' balance effects.
		reg := NewRegistry(s)
		val := NewLegValidator(s, NewBalanceQuery(s, reg))
		for i := range toPost {
			if err := postLeg(ctx, s, reg, val, &toPost[i], systemDate); err != nil {
				return err
			}
		}

		final, err := s.LegsByBase(ctx, baseID)
		if err != nil {
			return err
		}
		tx = groupLegs(final)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"tranId": baseID}).Info("transaction posted")
	return tx, nil
}

// postLeg applies one leg: validation, account row, GL row, movement.
// Caller supplies the unit of work.
func postLeg(ctx context.Context, s Store, reg *Registry, val *LegValidator, leg *TranLeg, systemDate time.Time) error {
	info, err := reg.Resolve(ctx, leg.AccountNo)
	if err != nil {
		return err
	}
	// Entry legs were saved by Create, so their amounts already sit in
	// the day's sums as holds; Future legs were invisible until now.
	if leg.TranStatus == StatusEntry {
		err = val.ValidateHeld(ctx, info, leg.DrCrFlag, leg.LcyAmt, systemDate)
	} else {
		err = val.Validate(ctx, info, leg.DrCrFlag, leg.LcyAmt, systemDate)
	}
	if err != nil {
		return err
	}

	leg.TranStatus = StatusPosted
	if err := s.SaveLeg(ctx, leg); err != nil {
		return err
	}

	if err := applyAccountPosting(ctx, s, info, leg.DrCrFlag, leg.LcyAmt, systemDate); err != nil {
		return err
	}

	glBal, err := applyGLPosting(ctx, s, info.GLNum, leg.DrCrFlag, leg.LcyAmt, systemDate)
	if err != nil {
		return err
	}

	return s.SaveMovement(ctx, &GLMovement{
		TranID:       leg.TranID,
		GLNum:        info.GLNum,
		DrCrFlag:     leg.DrCrFlag,
		TranDate:     systemDate,
		ValueDate:    leg.ValueDate,
		Amount:       leg.LcyAmt,
		BalanceAfter: glBal,
	})
}

// applyAccountPosting folds one leg into the day's account balance row.
func applyAccountPosting(ctx context.Context, s Store, info AccountInfo, flag DrCrFlag, amount decimal.Decimal, date time.Time) error {
	row, err := s.TodayAcctBalance(ctx, info.AccountNo, date)
	if err != nil {
		return err
	}
	if flag == Debit {
		row.DrSummation = row.DrSummation.Add(amount)
	} else {
		row.CrSummation = row.CrSummation.Add(amount)
	}
	row.Recompute()
	row.CurrentBalance = row.ClosingBal
	row.AvailableBalance = row.ClosingBal
	if info.Class == ClassAsset {
		row.AvailableBalance = row.AvailableBalance.Add(info.LoanLimit)
	}
	row.LastUpdated = date
	return s.SaveAcctBalance(ctx, row)
}

// applyGLPosting folds one leg into the day's GL balance row and returns
// the balance after this leg.
func applyGLPosting(ctx context.Context, s Store, glNum string, flag DrCrFlag, amount decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	row, err := s.TodayGLBalance(ctx, glNum, date)
	if err != nil {
		return Zero, err
	}
	if flag == Debit {
		row.DrSummation = row.DrSummation.Add(amount)
	} else {
		row.CrSummation = row.CrSummation.Add(amount)
	}
	row.Recompute()
	row.CurrentBalance = row.ClosingBal
	row.LastUpdated = date
	if err := s.SaveGLBalance(ctx, row); err != nil {
		return Zero, err
	}
	return row.ClosingBal, nil
}

// PromoteFuture posts one Future-status leg in its own unit of work. The
// BOD processor drives this per leg so one failure rolls back alone.
func (e *Engine) PromoteFuture(ctx context.Context, leg TranLeg) error {
	if leg.TranStatus != StatusFuture {
		return Conflictf("leg %s is %s, not Future", leg.TranID, leg.TranStatus)
	}
	systemDate, err := e.clock.Now(ctx)
	if err != nil {
		return err
	}
	return e.store.WithTx(ctx, func(s Store) error {
		reg := NewRegistry(s)
		val := NewLegValidator(s, NewBalanceQuery(s, reg))
		l := leg
		return postLeg(ctx, s, reg, val, &l, systemDate)
	})
}

// =============================================================================
// VERIFY
// =============================================================================

// Verify marks all legs Verified and writes one history row per leg.
// Verifying an already verified transaction reports a Conflict.
func (e *Engine) Verify(ctx context.Context, baseID string) (*Transaction, error) {
	systemDate, err := e.clock.Now(ctx)
	if err != nil {
		return nil, err
	}

	var tx *Transaction
	err = e.store.WithTx(ctx, func(s Store) error {
		legs, err := s.LegsByBase(ctx, baseID)
		if err != nil {
			return err
		}
		if len(legs) == 0 {
			return NotFoundf("transaction %s not found", baseID)
		}

		var pending []TranLeg
		for _, l := range legs {
			if l.TranStatus != StatusVerified {
				pending = append(pending, l)
			}
		}
		if len(pending) == 0 {
			return ErrAlreadyVerified
		}

		for i := range pending {
			pending[i].TranStatus = StatusVerified
			if err := s.SaveLeg(ctx, &pending[i]); err != nil {
				return err
			}
		}
		if err := e.history.Record(ctx, s, pending, systemDate); err != nil {
			return err
		}

		final, err := s.LegsByBase(ctx, baseID)
		if err != nil {
			return err
		}
		tx = groupLegs(final)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"tranId": baseID}).Info("transaction verified")
	return tx, nil
}

// =============================================================================
// REVERSE
// =============================================================================

// Reverse mints an inverse transaction for baseID: flipped flags, equal
// amounts, Pointing_Id back to the original, auto-verified, with balance
// and GL effects applied immediately.
func (e *Engine) Reverse(ctx context.Context, baseID, reason string) (*Transaction, error) {
	systemDate, err := e.clock.Now(ctx)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "Reversal"
	}

	var tx *Transaction
	err = e.store.WithTx(ctx, func(s Store) error {
		originals, err := s.LegsByBase(ctx, baseID)
		if err != nil {
			return err
		}
		if len(originals) == 0 {
			return NotFoundf("original transaction %s not found", baseID)
		}

		reversalBase, err := e.mintBaseID(ctx, s, systemDate)
		if err != nil {
			return err
		}
		narration := "REVERSAL: " + reason + " (Original: " + baseID + ")"

		legs := make([]TranLeg, len(originals))
		for i, o := range originals {
			legs[i] = TranLeg{
				TranID:       LegTranID(reversalBase, i+1),
				TranDate:     systemDate,
				ValueDate:    o.ValueDate,
				AccountNo:    o.AccountNo,
				DrCrFlag:     o.DrCrFlag.Opposite(),
				TranCcy:      o.TranCcy,
				FcyAmt:       o.FcyAmt,
				ExchangeRate: o.ExchangeRate,
				LcyAmt:       o.LcyAmt,
				Narration:    narration,
				TranStatus:   StatusVerified,
				PointingID:   baseID,
			}
		}
		if err := s.SaveLegs(ctx, legs); err != nil {
			return err
		}

		reg := NewRegistry(s)
		val := NewLegValidator(s, NewBalanceQuery(s, reg))
		for i := range legs {
			info, err := reg.Resolve(ctx, legs[i].AccountNo)
			if err != nil {
				return err
			}
			// The inverse legs are saved above, so their amounts are
			// already held in the day's sums.
			if err := val.ValidateHeld(ctx, info, legs[i].DrCrFlag, legs[i].LcyAmt, systemDate); err != nil {
				return err
			}
			if err := applyAccountPosting(ctx, s, info, legs[i].DrCrFlag, legs[i].LcyAmt, systemDate); err != nil {
				return err
			}
			glBal, err := applyGLPosting(ctx, s, info.GLNum, legs[i].DrCrFlag, legs[i].LcyAmt, systemDate)
			if err != nil {
				return err
			}
			if err := s.SaveMovement(ctx, &GLMovement{
				TranID:       legs[i].TranID,
				GLNum:        info.GLNum,
				DrCrFlag:     legs[i].DrCrFlag,
				TranDate:     systemDate,
				ValueDate:    legs[i].ValueDate,
				Amount:       legs[i].LcyAmt,
				BalanceAfter: glBal,
			}); err != nil {
				return err
			}
		}

		if err := e.history.Record(ctx, s, legs, systemDate); err != nil {
			return err
		}

		tx = groupLegs(legs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"tranId": tx.TranID, "original": baseID}).Info("transaction reversed")
	return tx, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns the grouped transaction for baseID.
func (e *Engine) Get(ctx context.Context, baseID string) (*Transaction, error) {
	legs, err := e.store.LegsByBase(ctx, baseID)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, NotFoundf("transaction %s not found", baseID)
	}
	return groupLegs(legs), nil
}

// List groups all legs by base ID, orders groups by date descending, and
// returns the requested zero-based page plus the total group count.
func (e *Engine) List(ctx context.Context, page, size int) ([]Transaction, int, error) {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}

	legs, err := e.store.ListLegs(ctx)
	if err != nil {
		return nil, 0, err
	}

	grouped := make(map[string][]TranLeg)
	var order []string
	for _, l := range legs {
		base := l.BaseID()
		if _, seen := grouped[base]; !seen {
			order = append(order, base)
		}
		grouped[base] = append(grouped[base], l)
	}

	total := len(order)
	start := page * size
	if start >= total {
		return []Transaction{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}

	out := make([]Transaction, 0, end-start)
	for _, base := range order[start:end] {
		out = append(out, *groupLegs(grouped[base]))
	}
	return out, total, nil
}

// groupLegs folds legs sharing a base ID into one Transaction. Legs are
// ordered by line number; the first leg's status stands for the group.
func groupLegs(legs []TranLeg) *Transaction {
	sorted := make([]TranLeg, len(legs))
	copy(sorted, legs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TranID < sorted[j].TranID })

	first := sorted[0]
	return &Transaction{
		TranID:    first.BaseID(),
		TranDate:  first.TranDate,
		ValueDate: first.ValueDate,
		Status:    first.TranStatus,
		Legs:      sorted,
	}
}
