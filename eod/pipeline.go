/*
pipeline.go - End-of-day batch orchestration

PURPOSE:
  Runs the eight EOD batch jobs in order, each gated and audited:

    1  Account Balance Update
    2  Interest Accrual Transaction Update
    3  Interest Accrual GL Movement Update
    4  GL Movement Update
    5  GL Balance Update
    6  Interest Accrual Account Balance Update
    7  Financial Reports Generation
    8  System Date Increment

  Every job writes a Running row when it starts and a Success or Failed
  row when it ends. Log rows commit in their own units of work, outside
  the job's transaction, so the audit trail survives a rollback of the
  job's work.

GATING:
  A job that already has a Success row for the current System_Date is a
  no-op reporting AlreadyExecuted. Job N+1 refuses to start until job N
  has a Success row for the same date. A full-pipeline re-run therefore
  skips finished jobs and resumes at the first unfinished one.

SEE ALSO:
  - jobs.go: the job bodies
  - reports.go: Job 7's trial balance and balance sheet
  - validate.go: the pre-EOD checks RunAll performs first
*/
package eod

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/ledger-engine/ledger"
)

// jobSpec binds a job number to its name and body. Bodies return the
// number of records processed.
type jobSpec struct {
	Num  int
	Name string
	Run  func(ctx context.Context, p *Pipeline, date time.Time, userID string) (int, error)
}

var jobTable = []jobSpec{
	{1, "Account Balance Update", runAccountBalanceUpdate},
	{2, "Interest Accrual Transaction Update", runInterestAccrual},
	{3, "Interest Accrual GL Movement Update", runAccrualGLMovements},
	{4, "GL Movement Update", runGLMovementUpdate},
	{5, "GL Balance Update", runGLBalanceUpdate},
	{6, "Interest Accrual Account Balance Update", runAccrualBalances},
	{7, "Financial Reports Generation", runFinancialReports},
	{8, "System Date Increment", runSystemDateIncrement},
}

// JobName returns the audit name for a job number, or "" when out of range.
func JobName(num int) string {
	if num < 1 || num > len(jobTable) {
		return ""
	}
	return jobTable[num-1].Name
}

// Result is the outcome of one full pipeline run.
type Result struct {
	RunID                    string   `json:"runId"`
	SystemDate               string   `json:"systemDate"`
	Success                  bool     `json:"success"`
	Message                  string   `json:"message"`
	FailedAtJob              string   `json:"failedAtJob,omitempty"`
	AccountsProcessed        int      `json:"accountsProcessed"`
	InterestEntriesProcessed int      `json:"interestEntriesProcessed"`
	GLMovementsProcessed     int      `json:"glMovementsProcessed"`
	GLMovementsUpdated       int      `json:"glMovementsUpdated"`
	GLBalancesUpdated        int      `json:"glBalancesUpdated"`
	AccrualBalancesUpdated   int      `json:"accrualBalancesUpdated"`
	ReportPaths              []string `json:"reportPaths,omitempty"`
}

// Pipeline wires the EOD jobs to the store and the business clock.
type Pipeline struct {
	store    ledger.Store
	clock    *ledger.Clock
	accruals *ledger.AccrualEngine
	reporter *Reporter
	log      *logrus.Entry
}

func NewPipeline(store ledger.Store, clock *ledger.Clock, reporter *Reporter) *Pipeline {
	return &Pipeline{
		store:    store,
		clock:    clock,
		accruals: ledger.NewAccrualEngine(store),
		reporter: reporter,
		log:      logrus.WithField("component", "eod"),
	}
}

// RunAll executes the pre-EOD validation and then all eight jobs for the
// current System_Date. Jobs that already succeeded are skipped; the first
// failure stops the run.
func (p *Pipeline) RunAll(ctx context.Context, userID string) (*Result, error) {
	systemDate, err := p.clock.Now(ctx)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	result := &Result{RunID: runID, SystemDate: ledger.FormatDate(systemDate)}

	p.log.WithFields(logrus.Fields{
		"runId": runID, "systemDate": result.SystemDate, "user": userID,
	}).Info("EOD run starting")

	check, err := p.Validate(ctx)
	if err != nil {
		return nil, err
	}
	if !check.Valid {
		p.appendLog(ctx, runID, systemDate, "Pre-EOD Validation", userID, 0,
			ledger.EODFailed, check.Message, "Pre-validation")
		result.Message = "Pre-EOD validations failed: " + check.Message
		return result, nil
	}

	counters := make([]int, len(jobTable))
	for i, spec := range jobTable {
		count, err := p.runGated(ctx, runID, spec, systemDate, userID)
		switch {
		case errors.Is(err, ledger.ErrAlreadyExecuted):
			p.log.WithField("job", spec.Name).Info("job already executed, skipping")
			continue
		case err != nil:
			p.appendLog(ctx, runID, systemDate, "EOD Failed", userID, 0,
				ledger.EODFailed, err.Error(), spec.Name)
			result.Message = "EOD process failed: " + err.Error()
			result.FailedAtJob = spec.Name
			return result, nil
		}
		counters[i] = count
	}

	result.Success = true
	result.Message = "EOD completed successfully"
	result.AccountsProcessed = counters[0]
	result.InterestEntriesProcessed = counters[1]
	result.GLMovementsProcessed = counters[2]
	result.GLMovementsUpdated = counters[3]
	result.GLBalancesUpdated = counters[4]
	result.AccrualBalancesUpdated = counters[5]
	result.ReportPaths = p.reporter.LastPaths()

	total := 0
	for _, c := range counters[:6] {
		total += c
	}
	p.appendLog(ctx, runID, systemDate, "EOD Complete", userID, total,
		ledger.EODSuccess, "", "All jobs completed")

	p.log.WithFields(logrus.Fields{"runId": runID, "records": total}).Info("EOD run complete")
	return result, nil
}

// RunJob executes a single job for the current System_Date, honoring the
// AlreadyExecuted and previous-job gates.
func (p *Pipeline) RunJob(ctx context.Context, jobNum int, userID string) (int, error) {
	if jobNum < 1 || jobNum > len(jobTable) {
		return 0, ledger.BusinessRulef("unknown batch job %d", jobNum)
	}
	systemDate, err := p.clock.Now(ctx)
	if err != nil {
		return 0, err
	}
	return p.runGated(ctx, uuid.NewString(), jobTable[jobNum-1], systemDate, userID)
}

// runGated enforces both gates, brackets the job body with log rows, and
// returns the records processed.
func (p *Pipeline) runGated(ctx context.Context, runID string, spec jobSpec, systemDate time.Time, userID string) (int, error) {
	done, err := p.store.HasJobSuccess(ctx, systemDate, spec.Name)
	if err != nil {
		return 0, err
	}
	if done {
		return 0, ledger.ErrAlreadyExecuted
	}
	if spec.Num > 1 {
		prevDone, err := p.store.HasJobSuccess(ctx, systemDate, jobTable[spec.Num-2].Name)
		if err != nil {
			return 0, err
		}
		if !prevDone {
			return 0, ledger.ErrPreviousJobPending
		}
	}

	p.log.WithFields(logrus.Fields{"job": spec.Name, "date": ledger.FormatDate(systemDate)}).Info("batch job starting")
	p.appendLog(ctx, runID, systemDate, spec.Name, userID, 0, ledger.EODRunning, "", "")

	count, err := spec.Run(ctx, p, systemDate, userID)
	if err != nil {
		p.appendLog(ctx, runID, systemDate, spec.Name, userID, 0, ledger.EODFailed, err.Error(), spec.Name)
		p.log.WithFields(logrus.Fields{"job": spec.Name, "error": err}).Error("batch job failed")
		return 0, err
	}

	p.appendLog(ctx, runID, systemDate, spec.Name, userID, count, ledger.EODSuccess, "", "")
	p.log.WithFields(logrus.Fields{"job": spec.Name, "records": count}).Info("batch job complete")
	return count, nil
}

// appendLog writes one audit row in its own committed unit. Failures to
// log are reported but never fail the job itself.
func (p *Pipeline) appendLog(ctx context.Context, runID string, systemDate time.Time, jobName, userID string,
	records int, status ledger.EODStatus, errMsg, failedAt string) {

	row := &ledger.EODLog{
		RunID:            runID,
		EODDate:          systemDate,
		JobName:          jobName,
		SystemDate:       systemDate,
		UserID:           userID,
		StartTimestamp:   systemDate,
		RecordsProcessed: records,
		Status:           status,
		ErrorMessage:     errMsg,
		FailedAtStep:     failedAt,
	}
	if status != ledger.EODRunning {
		end := systemDate
		row.EndTimestamp = &end
	}
	if err := p.store.AppendEODLog(ctx, row); err != nil {
		p.log.WithFields(logrus.Fields{"job": jobName, "error": err}).Error("failed to append EOD log row")
	}
}

// LogsFor lists the audit rows for one EOD date.
func (p *Pipeline) LogsFor(ctx context.Context, date time.Time) ([]ledger.EODLog, error) {
	return p.store.EODLogsOn(ctx, date)
}
