/*
idgen.go - Generated identifiers

PURPOSE:
  Two ID families, both embedding the business date:

  Transaction: T<yyyymmdd><6-digit seq><3-digit random>, legs suffixed
  "-1", "-2", ... The sequence derives from the count of legs already on
  the date; the random tail disambiguates concurrent creators, and the
  engine re-rolls it on the rare base-ID collision.

  Accrual: S<yyyymmdd><9-digit seq>-<1|2>, exactly 20 characters. There is
  no delimiter between date and sequence, so parsing uses fixed offsets:
  positions 1-8 after the prefix hold the date, the next 9 the sequence.
*/
package ledger

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// MaxAccrualSeqValue bounds the 9-digit accrual sequence.
const MaxAccrualSeqValue = 999_999_999

// NewBaseTranID builds the shared transaction prefix for a date: sequence
// is the count of legs already recorded on that date plus one.
func NewBaseTranID(date time.Time, legCount int64) string {
	return fmt.Sprintf("T%s%06d%03d", FormatCompactDate(date), legCount+1, rand.Intn(1000))
}

// LegTranID appends the 1-based line number to a base ID.
func LegTranID(baseID string, lineNo int) string {
	return fmt.Sprintf("%s-%d", baseID, lineNo)
}

// BaseTranID strips the line-number suffix from a leg ID. IDs without a
// suffix come back unchanged.
func BaseTranID(legID string) string {
	i := strings.LastIndex(legID, "-")
	if i < 0 {
		return legID
	}
	return legID[:i]
}

// NewAccrTranID builds one accrual leg ID. seq must be in
// [1, MaxAccrualSeqValue] and row in {1, 2}; the result is always 20
// characters.
func NewAccrTranID(date time.Time, seq int64, row int) (string, error) {
	if seq < 1 || seq > MaxAccrualSeqValue {
		return "", Invariantf("accrual sequence %d out of range [1, %d]", seq, MaxAccrualSeqValue)
	}
	if row != 1 && row != 2 {
		return "", Invariantf("accrual row %d must be 1 or 2", row)
	}
	id := fmt.Sprintf("S%s%09d-%d", FormatCompactDate(date), seq, row)
	if len(id) != 20 {
		return "", Invariantf("accrual id %q is %d chars, want 20", id, len(id))
	}
	return id, nil
}

// ParseAccrTranID splits an accrual ID at its fixed offsets.
func ParseAccrTranID(id string) (date time.Time, seq int64, row int, err error) {
	if len(id) != 20 || id[0] != 'S' || id[18] != '-' {
		return time.Time{}, 0, 0, Invariantf("malformed accrual id %q", id)
	}
	date, derr := ParseCompactDate(id[1:9])
	if derr != nil {
		return time.Time{}, 0, 0, Invariantf("accrual id %q: bad date", id)
	}
	seq, serr := strconv.ParseInt(id[9:18], 10, 64)
	if serr != nil {
		return time.Time{}, 0, 0, Invariantf("accrual id %q: bad sequence", id)
	}
	row, rerr := strconv.Atoi(id[19:])
	if rerr != nil || (row != 1 && row != 2) {
		return time.Time{}, 0, 0, Invariantf("accrual id %q: bad row", id)
	}
	return date, seq, row, nil
}
