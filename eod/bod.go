/*
bod.go - Beginning-of-day processing

PURPOSE:
  Promotes future-dated transactions whose value date has arrived. Each
  due leg is posted with the full posting semantics (validation, balance
  rows, GL movement) in its own unit of work: a failed leg rolls back
  alone and the run continues, so earlier promotions stay committed.

  BOD is an on-demand admin operation, optionally driven by the API
  scheduler; it runs before business traffic for the day and before EOD
  will accept the day for closing.
*/
package eod

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/warp/ledger-engine/ledger"
)

// BODResult summarizes one BOD run. Pending counts cover all Future legs,
// due or not.
type BODResult struct {
	SystemDate         string `json:"systemDate"`
	PendingCountBefore int64  `json:"pendingCountBefore"`
	ProcessedCount     int    `json:"processedCount"`
	PendingCountAfter  int64  `json:"pendingCountAfter"`
	Status             string `json:"status"`
	Message            string `json:"message"`
}

// BODStatus is the read-only view of what BOD would pick up.
type BODStatus struct {
	SystemDate   string           `json:"systemDate"`
	PendingCount int64            `json:"pendingFutureDatedCount"`
	DueLegs      []ledger.TranLeg `json:"dueLegs"`
}

// BOD promotes due future-dated legs to Posted.
type BOD struct {
	store  ledger.Store
	clock  *ledger.Clock
	engine *ledger.Engine
	log    *logrus.Entry
}

func NewBOD(store ledger.Store, clock *ledger.Clock, engine *ledger.Engine) *BOD {
	return &BOD{
		store:  store,
		clock:  clock,
		engine: engine,
		log:    logrus.WithField("component", "bod"),
	}
}

// Run scans Future legs due by the current System_Date and posts each in
// its own unit of work. Failures are collected; the run itself only
// errors when the scan cannot start.
func (b *BOD) Run(ctx context.Context) (*BODResult, error) {
	systemDate, err := b.clock.Now(ctx)
	if err != nil {
		return nil, err
	}
	result := &BODResult{SystemDate: ledger.FormatDate(systemDate)}

	before, err := b.store.CountLegsByStatus(ctx, ledger.StatusFuture)
	if err != nil {
		return nil, err
	}
	result.PendingCountBefore = before

	due, err := b.store.FutureLegsDue(ctx, systemDate)
	if err != nil {
		return nil, err
	}
	b.log.WithFields(logrus.Fields{
		"systemDate": result.SystemDate, "pending": before, "due": len(due),
	}).Info("BOD processing starting")

	var failures []string
	for _, leg := range due {
		if err := b.engine.PromoteFuture(ctx, leg); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", leg.TranID, err))
			b.log.WithFields(logrus.Fields{"leg": leg.TranID, "error": err}).Error("future leg promotion failed")
			continue
		}
		result.ProcessedCount++
	}

	after, err := b.store.CountLegsByStatus(ctx, ledger.StatusFuture)
	if err != nil {
		return nil, err
	}
	result.PendingCountAfter = after

	switch {
	case len(due) == 0:
		result.Status = "NO_WORK"
		result.Message = "No future-dated transactions due for processing"
	case len(failures) > 0:
		result.Status = "PARTIAL"
		result.Message = fmt.Sprintf("BOD processed %d of %d due leg(s); failures: %s",
			result.ProcessedCount, len(due), strings.Join(failures, "; "))
	default:
		result.Status = "SUCCESS"
		result.Message = "BOD processing completed successfully"
	}

	b.log.WithFields(logrus.Fields{
		"processed": result.ProcessedCount, "failed": len(failures), "stillPending": after,
	}).Info("BOD processing complete")
	return result, nil
}

// Status reports the legs a BOD run would promote right now.
func (b *BOD) Status(ctx context.Context) (*BODStatus, error) {
	systemDate, err := b.clock.Now(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := b.store.CountLegsByStatus(ctx, ledger.StatusFuture)
	if err != nil {
		return nil, err
	}
	due, err := b.store.FutureLegsDue(ctx, systemDate)
	if err != nil {
		return nil, err
	}
	if due == nil {
		due = []ledger.TranLeg{}
	}
	return &BODStatus{
		SystemDate:   ledger.FormatDate(systemDate),
		PendingCount: pending,
		DueLegs:      due,
	}, nil
}
