package domain

import "time"

// DateLayout is the canonical calendar-date format used in storage and on the wire.
const DateLayout = "2006-01-02"

// Date returns midnight UTC of the given calendar day. Out-of-range values are
// normalized the way time.Date normalizes them.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOnly truncates t to its calendar day in t's own location and returns it as
// midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// AddDays shifts a calendar date by n days (n may be negative).
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d+n)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// DaysIn returns the number of days in the given month of year.
func DaysIn(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
