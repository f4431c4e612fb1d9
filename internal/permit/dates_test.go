package permit

import (
	"testing"
	"time"
)

func TestParseValidityFullLayout(t *testing.T) {
	got, err := ParseValidity("Dec 30, 2025: 14:30")
	if err != nil {
		t.Fatalf("ParseValidity() error = %v", err)
	}
	want := time.Date(2025, time.December, 30, 14, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("ParseValidity() = %v, want %v", got, want)
	}
}

func TestParseValidityDateOnlyFallback(t *testing.T) {
	got, err := ParseValidity("Dec 30, 2025")
	if err != nil {
		t.Fatalf("ParseValidity() error = %v", err)
	}
	want := time.Date(2025, time.December, 30, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("ParseValidity() = %v, want %v", got, want)
	}
}

func TestParseValidityGarbage(t *testing.T) {
	if _, err := ParseValidity("soon"); err == nil {
		t.Error("ParseValidity(\"soon\") should error")
	}
}

func TestFormatDateRange(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want string
	}{
		{
			"full layout",
			"Dec 30, 2025: 00:00", "Jan 05, 2026: 23:59",
			"Dec 30, 2025 - Jan 05, 2026",
		},
		{
			"date only",
			"Dec 30, 2025", "Jan 05, 2026",
			"Dec 30, 2025 - Jan 05, 2026",
		},
		{
			"unparseable falls back to cleaned input",
			"sometime: 00:00", "later: 23:59",
			"sometime: 00 - later: 23",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDateRange(tt.from, tt.to); got != tt.want {
				t.Errorf("FormatDateRange() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSameCalendarDay(t *testing.T) {
	a := time.Date(2025, time.December, 30, 1, 0, 0, 0, time.Local)
	b := time.Date(2025, time.December, 30, 23, 59, 0, 0, time.Local)
	c := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.Local)

	if !SameCalendarDay(a, b) {
		t.Error("SameCalendarDay() = false for same date")
	}
	if SameCalendarDay(b, c) {
		t.Error("SameCalendarDay() = true across midnight")
	}
}
