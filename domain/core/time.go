package core

import (
	"fmt"
	"time"
)

// DateLayout is the canonical day format used for keys and storage
const DateLayout = "2006-01-02"

// Day is the length of one calendar day in the analysis grid
const Day = 24 * time.Hour

// DateOf normalizes a time to midnight UTC of the same UTC calendar day.
// Every per-day entity is keyed on this value.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey returns the canonical "2006-01-02" key for a time
func DateKey(t time.Time) string {
	return DateOf(t).Format(DateLayout)
}

// ParseDate parses a "2006-01-02" date into a normalized UTC date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// DaysBetween returns the whole number of calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)) / Day)
}

// AddDays shifts a date by n calendar days
func AddDays(t time.Time, n int) time.Time {
	return DateOf(t).AddDate(0, 0, n)
}

// Clock abstracts wall-clock time so runs can be pinned to a date
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant
type FixedClock struct{ At time.Time }

// Now returns the fixed instant
func (c FixedClock) Now() time.Time { return c.At }
