/*
clock.go - The business-date clock

PURPOSE:
  System_Date in Parameter_Table is the only clock the ledger reads.
  Every dated record and every timestamp flows through this service; the
  OS clock is never consulted for business data.

  Now() returns the open business day. NowTimestamp() returns that date
  at start-of-day, which is what Last_Updated style columns record.
*/
package ledger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Clock reads and writes the authoritative business date.
type Clock struct {
	store ParameterStore
	log   *logrus.Entry
}

func NewClock(store ParameterStore) *Clock {
	return &Clock{store: store, log: logrus.WithField("component", "clock")}
}

// Now returns the current System_Date. Fails with a Configuration error
// when the parameter row is absent or unparseable.
func (c *Clock) Now(ctx context.Context) (time.Time, error) {
	p, err := c.store.Parameter(ctx, ParamSystemDate)
	if err != nil {
		if IsNotFound(err) {
			return time.Time{}, ErrSystemDateNotSet
		}
		return time.Time{}, err
	}
	d, err := ParseDate(p.ParameterValue)
	if err != nil {
		return time.Time{}, Configurationf("System_Date %q is not a valid date", p.ParameterValue)
	}
	return d, nil
}

// NowTimestamp returns System_Date at start-of-day.
func (c *Clock) NowTimestamp(ctx context.Context) (time.Time, error) {
	return c.Now(ctx)
}

// Set persists a new System_Date and stamps the writer.
func (c *Clock) Set(ctx context.Context, date time.Time, userID string) error {
	date = DateOnly(date)
	if err := c.store.SetParameter(ctx, ParamSystemDate, FormatDate(date), userID, date); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"systemDate": FormatDate(date), "user": userID}).Info("system date updated")
	return nil
}
