package permit

import (
	"strings"
	"time"
)

// Validity timestamps arrive as composite "date: time" strings, e.g.
// "Dec 30, 2025: 00:00". Some sources omit the time component.
const (
	layoutFull     = "Jan 02, 2006: 15:04"
	layoutDateOnly = "Jan 02, 2006"
)

// ParseValidity parses a validFrom/validTo string, trying the full layout
// first and falling back to the date-only layout.
func ParseValidity(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(layoutFull, s, time.Local); err == nil {
		return t, nil
	}
	// Date-only fallback: everything before the first colon is the date
	// part, whether or not a time component follows.
	datePart := s
	if i := strings.Index(s, ":"); i > 0 {
		datePart = s[:i]
	}
	return time.ParseInLocation(layoutDateOnly, strings.TrimSpace(datePart), time.Local)
}

// FormatDateRange renders "Dec 30, 2025 - Jan 05, 2026" from the two
// validity strings. Unparseable inputs are returned cleaned up rather than
// rejected, so a malformed permit still renders something.
func FormatDateRange(from, to string) string {
	f, errF := ParseValidity(from)
	t, errT := ParseValidity(to)
	if errF == nil && errT == nil {
		return f.Format(layoutDateOnly) + " - " + t.Format(layoutDateOnly)
	}
	return cleanValidity(from) + " - " + cleanValidity(to)
}

// cleanValidity drops the trailing time component from a raw validity
// string without parsing it.
func cleanValidity(s string) string {
	if i := strings.LastIndex(s, ":"); i > 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// SameCalendarDay reports whether a and b fall on the same local date.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
