// Package status derives what to present from stored permit state: which
// permit is effectively current, whether a successor is already scheduled,
// and how close the current one is to expiry. Everything here is pure; no
// function mutates the store.
package status

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/visproj/permitsync/internal/permit"
)

// Badge classifies the current permit against the clock.
type Badge string

const (
	BadgeExpired       Badge = "Expired"
	BadgeExpiringToday Badge = "Expiring Today"
	BadgeExpiring      Badge = "Expiring"
	BadgeCurrent       Badge = "Current"
)

// Current picks the permit to present. While the display is out of sync
// the physically displayed permit is still the old one, so the display
// permit wins over the aspirational remote value.
func Current(remote, display *permit.Permit, outOfSync bool) *permit.Permit {
	if outOfSync && display.IsValid() {
		return display
	}
	return remote
}

// Scheduled returns the upcoming permit, if any. A remote permit with a
// different number than the current one is already scheduled. Failing
// that, when the current permit expires today or within two days, a
// placeholder "Pending" permit covering the following seven-day window is
// synthesized with an approximate price. hasDisplay suppresses the
// placeholder before any display delivery has happened (the remote permit
// is already being shown as current then).
func Scheduled(now time.Time, current, remote *permit.Permit, hasDisplay bool) *permit.Permit {
	if !current.IsValid() {
		return nil
	}
	if remote.IsValid() && remote.PermitNumber != current.PermitNumber {
		return remote
	}
	if !hasDisplay {
		return nil
	}

	to, err := permit.ParseValidity(current.ValidTo)
	if err != nil {
		return nil
	}
	daysRemaining := int(to.Sub(now).Hours() / 24)
	if !permit.SameCalendarDay(to, now) && daysRemaining > 2 {
		return nil
	}

	nextStart := to.AddDate(0, 0, 1)
	nextEnd := to.AddDate(0, 0, 7)
	pending := &permit.Permit{
		PermitNumber: "Pending",
		PlateNumber:  current.PlateNumber,
		VehicleName:  current.VehicleName,
		ValidFrom:    nextStart.Format("Jan 02, 2006"),
		ValidTo:      nextEnd.Format("Jan 02, 2006"),
	}
	if current.Price != "" {
		pending.Price = "~" + current.Price
	}
	return pending
}

// Classify maps the permit's validTo against now. Unparseable dates fail
// open as Current rather than alarming on bad data.
func Classify(now time.Time, p *permit.Permit) Badge {
	if !p.IsValid() {
		return BadgeCurrent
	}
	to, err := permit.ParseValidity(p.ValidTo)
	if err != nil {
		return BadgeCurrent
	}

	switch {
	case now.After(to):
		return BadgeExpired
	case permit.SameCalendarDay(to, now):
		return BadgeExpiringToday
	case int(to.Sub(now).Hours()/24) <= 1:
		return BadgeExpiring
	default:
		return BadgeCurrent
	}
}

// PriceDelta describes the price change between two permits, e.g.
// "+$5.00". Empty when either price is missing or unparseable, or when
// nothing changed.
func PriceDelta(previous, current *permit.Permit) string {
	if previous == nil || current == nil {
		return ""
	}
	prev, okPrev := parsePrice(previous.Price)
	cur, okCur := parsePrice(current.Price)
	if !okPrev || !okCur || prev == cur {
		return ""
	}
	delta := cur - prev
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return fmt.Sprintf("%s$%.2f", sign, delta)
}

// parsePrice extracts a numeric amount from a free-form currency string.
func parsePrice(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RelativeTime renders an age like "5 min ago". The zero time reads
// "Never".
func RelativeTime(now, t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	diff := now.Sub(t)
	if diff < 0 {
		return "Just now"
	}

	seconds := int64(diff.Seconds())
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case seconds < 5:
		return "Just now"
	case seconds < 60:
		return fmt.Sprintf("%d sec ago", seconds)
	case minutes < 60:
		if minutes == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d min ago", minutes)
	case hours < 24:
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case days < 7:
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		weeks := days / 7
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	}
}

// Snapshot is the store state a Report derives from.
type Snapshot struct {
	Remote          *permit.Permit
	Display         *permit.Permit
	Previous        *permit.Permit
	OutOfSync       bool
	LastSync        time.Time
	LastDisplaySync time.Time
}

// Report is the assembled reconciliation view.
type Report struct {
	Current        *permit.Permit
	Badge          Badge
	Scheduled      *permit.Permit
	OutOfSync      bool
	SyncAge        string
	DisplaySyncAge string
	PriceDelta     string
}

// BuildReport derives the full reconciliation view from a snapshot.
func BuildReport(now time.Time, s Snapshot) Report {
	current := Current(s.Remote, s.Display, s.OutOfSync)
	return Report{
		Current:        current,
		Badge:          Classify(now, current),
		Scheduled:      Scheduled(now, current, s.Remote, s.Display.IsValid()),
		OutOfSync:      s.OutOfSync,
		SyncAge:        RelativeTime(now, s.LastSync),
		DisplaySyncAge: RelativeTime(now, s.LastDisplaySync),
		PriceDelta:     PriceDelta(s.Previous, current),
	}
}
