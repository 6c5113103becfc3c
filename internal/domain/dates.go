package domain

import "time"

// Date layouts used on the wire.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04"
	CareDateLayout = "02/01/2006"
)

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfMonthDay returns the last day-of-month of t's month.
func EndOfMonthDay(t time.Time) int {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// MonthRange returns [first instant of month, first instant of next month).
func MonthRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// ParseDate parses a YYYY-MM-DD date in loc. Empty input yields nil.
func ParseDate(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
