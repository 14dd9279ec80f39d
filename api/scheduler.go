/*
scheduler.go - Automated beginning-of-day scheduler

PURPOSE:
  Periodically runs BOD processing so future-dated transactions post as
  soon as their value date arrives, without an operator call.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick runs a full BOD pass; due legs post, the rest stay Future
  - BOD skips legs that already left Future status, so overlapping with
    a manual run is safe

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether scheduler is active (default: false; operations
    normally drive BOD explicitly before the day opens)

USAGE:
  scheduler := NewBODScheduler(handler.BOD)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunBOD endpoint (manual trigger)
  - eod/bod.go: the promotion pass itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/ledger-engine/eod"
)

// BODScheduler drives BOD processing on a timer.
type BODScheduler struct {
	BOD           *eod.BOD
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
	log    *logrus.Entry
}

// NewBODScheduler creates a new scheduler. Disabled by default.
func NewBODScheduler(bod *eod.BOD) *BODScheduler {
	return &BODScheduler{
		BOD:           bod,
		CheckInterval: 1 * time.Minute,
		Enabled:       false,
		stop:          make(chan bool),
		log:           logrus.WithField("component", "bod-scheduler"),
	}
}

// Start begins the scheduler.
func (bs *BODScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		bs.log.Info("disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	bs.log.WithField("interval", bs.CheckInterval).Info("started")
}

// Stop stops the scheduler.
func (bs *BODScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.log.Info("stopped")
	}
}

func (bs *BODScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.checkAndProcess()

	for {
		select {
		case <-bs.ticker.C:
			bs.checkAndProcess()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BODScheduler) checkAndProcess() {
	ctx := context.Background()

	result, err := bs.BOD.Run(ctx)
	if err != nil {
		bs.log.WithError(err).Error("BOD pass failed")
		return
	}
	if result.Status == "NO_WORK" {
		return
	}

	bs.log.WithFields(logrus.Fields{
		"status":    result.Status,
		"processed": result.ProcessedCount,
		"pending":   result.PendingCountAfter,
	}).Info("BOD pass complete")
}

// RunNow triggers an immediate pass (for testing/admin).
func (bs *BODScheduler) RunNow() {
	bs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (bs *BODScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(bs.CheckInterval)
}
