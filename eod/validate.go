// validate.go - Pre-EOD checks run before the pipeline starts.
//
// The day may not close while work is unfinished: legs still at Entry
// status, or future-dated legs already due that BOD has not promoted.
// The reports directory must also accept writes, or Job 7 would fail
// after six jobs' worth of committed ledger work.
package eod

import (
	"context"
	"fmt"

	"github.com/warp/ledger-engine/ledger"
)

// ValidationResult reports whether EOD may proceed.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	Message    string `json:"message"`
	SystemDate string `json:"systemDate"`
}

// Validate runs the pre-EOD checks for the current System_Date.
func (p *Pipeline) Validate(ctx context.Context) (*ValidationResult, error) {
	systemDate, err := p.clock.Now(ctx)
	if err != nil {
		if ledger.IsConfiguration(err) {
			return &ValidationResult{Valid: false, Message: err.Error()}, nil
		}
		return nil, err
	}
	result := &ValidationResult{SystemDate: ledger.FormatDate(systemDate)}

	entryLegs, err := p.store.LegsOnDate(ctx, systemDate, []ledger.TranStatus{ledger.StatusEntry})
	if err != nil {
		return nil, err
	}
	if len(entryLegs) > 0 {
		result.Message = fmt.Sprintf("%d transaction leg(s) still at Entry status for %s; post or reverse them before EOD",
			len(entryLegs), result.SystemDate)
		return result, nil
	}

	dueLegs, err := p.store.FutureLegsDue(ctx, systemDate)
	if err != nil {
		return nil, err
	}
	if len(dueLegs) > 0 {
		result.Message = fmt.Sprintf("%d future-dated leg(s) due on or before %s await BOD processing",
			len(dueLegs), result.SystemDate)
		return result, nil
	}

	if err := p.reporter.ProbeWritable(); err != nil {
		result.Message = err.Error()
		return result, nil
	}

	result.Valid = true
	result.Message = "Pre-EOD validations passed"
	return result, nil
}
