package ledger

import "time"

// Business dates are calendar dates with no time zone; every stored date
// is normalized to UTC midnight so equality and ordering behave across
// drivers.

const (
	dateLayout    = "2006-01-02"
	compactLayout = "20060102"
)

// DateOnly truncates t to its calendar date at UTC midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date builds a normalized business date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads the ISO form "2006-01-02".
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// ParseCompactDate reads the eight-digit form "20060102" used in report
// paths and generated IDs.
func ParseCompactDate(s string) (time.Time, error) {
	t, err := time.Parse(compactLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// FormatDate renders "2006-01-02".
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// FormatCompactDate renders "20060102".
func FormatCompactDate(t time.Time) string { return t.Format(compactLayout) }

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
