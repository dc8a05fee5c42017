package core

import (
	"testing"
	"time"
)

func TestDateOfNormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	in := time.Date(2026, 3, 10, 1, 30, 0, 0, loc) // 2026-03-09T16:30Z

	got := DateOf(in)
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOf = %v, want %v", got, want)
	}
	if DateKey(in) != "2026-03-09" {
		t.Errorf("DateKey = %s", DateKey(in))
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 15, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 14 {
		t.Errorf("DaysBetween = %d, want 14", got)
	}
	if got := DaysBetween(b, a); got != -14 {
		t.Errorf("DaysBetween reversed = %d, want -14", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if DateKey(d) != "2026-02-28" {
		t.Errorf("round trip = %s", DateKey(d))
	}
	if _, err := ParseDate("28/02/2026"); err == nil {
		t.Error("expected error for non ISO date")
	}
}
