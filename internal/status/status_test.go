package status

import (
	"testing"
	"time"

	"github.com/visproj/permitsync/internal/permit"
)

// fixedNow keeps the badge math away from real midnight boundaries.
var fixedNow = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.Local)

func permitExpiring(number string, validTo time.Time) *permit.Permit {
	return &permit.Permit{
		PermitNumber: number,
		PlateNumber:  "ABC123",
		ValidFrom:    "Jan 01, 2026: 00:00",
		ValidTo:      validTo.Format("Jan 02, 2006: 15:04"),
		BarcodeValue: "123",
		BarcodeLabel: number,
		Price:        "$25.00",
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		validTo time.Time
		want    Badge
	}{
		{"yesterday", fixedNow.AddDate(0, 0, -1), BadgeExpired},
		{"later today", fixedNow.Add(6 * time.Hour), BadgeExpiringToday},
		{"tomorrow", fixedNow.AddDate(0, 0, 1), BadgeExpiring},
		{"five days out", fixedNow.AddDate(0, 0, 5), BadgeCurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := permitExpiring("P-1", tt.validTo)
			if got := Classify(fixedNow, p); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyUnparseableFailsOpen(t *testing.T) {
	p := &permit.Permit{PermitNumber: "P-1", ValidTo: "whenever"}
	if got := Classify(fixedNow, p); got != BadgeCurrent {
		t.Errorf("Classify() on garbage date = %q, want Current", got)
	}
}

func TestCurrentPrefersDisplayWhileOutOfSync(t *testing.T) {
	remote := permitExpiring("NEW", fixedNow.AddDate(0, 0, 10))
	display := permitExpiring("OLD", fixedNow.AddDate(0, 0, 2))

	if got := Current(remote, display, true); got.PermitNumber != "OLD" {
		t.Errorf("Current() out of sync = %q, want OLD (ground truth)", got.PermitNumber)
	}
	if got := Current(remote, display, false); got.PermitNumber != "NEW" {
		t.Errorf("Current() in sync = %q, want NEW", got.PermitNumber)
	}
	// Out of sync but nothing ever delivered: remote wins.
	if got := Current(remote, nil, true); got.PermitNumber != "NEW" {
		t.Errorf("Current() with nil display = %q, want NEW", got.PermitNumber)
	}
}

func TestScheduledRemoteSuccessor(t *testing.T) {
	current := permitExpiring("OLD", fixedNow.AddDate(0, 0, 2))
	remote := permitExpiring("NEW", fixedNow.AddDate(0, 0, 9))

	got := Scheduled(fixedNow, current, remote, true)
	if got == nil || got.PermitNumber != "NEW" {
		t.Fatalf("Scheduled() = %+v, want the NEW remote permit", got)
	}
}

func TestScheduledSynthesizesPending(t *testing.T) {
	expiry := fixedNow.AddDate(0, 0, 1)
	current := permitExpiring("P-1", expiry)

	got := Scheduled(fixedNow, current, current, true)
	if got == nil {
		t.Fatal("Scheduled() = nil, want synthesized Pending permit")
	}
	if got.PermitNumber != "Pending" {
		t.Errorf("PermitNumber = %q, want Pending", got.PermitNumber)
	}
	if got.Price != "~$25.00" {
		t.Errorf("Price = %q, want ~$25.00", got.Price)
	}
	wantFrom := expiry.AddDate(0, 0, 1).Format("Jan 02, 2006")
	if got.ValidFrom != wantFrom {
		t.Errorf("ValidFrom = %q, want %q", got.ValidFrom, wantFrom)
	}
	wantTo := expiry.AddDate(0, 0, 7).Format("Jan 02, 2006")
	if got.ValidTo != wantTo {
		t.Errorf("ValidTo = %q, want %q", got.ValidTo, wantTo)
	}
}

func TestScheduledNotExpiringSoon(t *testing.T) {
	current := permitExpiring("P-1", fixedNow.AddDate(0, 0, 6))
	if got := Scheduled(fixedNow, current, current, true); got != nil {
		t.Errorf("Scheduled() = %+v, want nil for a permit six days out", got)
	}
}

func TestScheduledNoDisplayPermitSuppressesPending(t *testing.T) {
	current := permitExpiring("P-1", fixedNow.AddDate(0, 0, 1))
	if got := Scheduled(fixedNow, current, current, false); got != nil {
		t.Errorf("Scheduled() = %+v, want nil before any display delivery", got)
	}
}

func TestPriceDelta(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		current  string
		want     string
	}{
		{"increase", "$25.00", "$30.00", "+$5.00"},
		{"decrease", "$30.00", "$27.50", "-$2.50"},
		{"unchanged", "$25.00", "$25.00", ""},
		{"missing previous", "", "$25.00", ""},
		{"free-form junk", "call us", "$25.00", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := &permit.Permit{PermitNumber: "A", Price: tt.previous}
			cur := &permit.Permit{PermitNumber: "B", Price: tt.current}
			if got := PriceDelta(prev, cur); got != tt.want {
				t.Errorf("PriceDelta() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"never", time.Time{}, "Never"},
		{"just now", fixedNow.Add(-2 * time.Second), "Just now"},
		{"seconds", fixedNow.Add(-30 * time.Second), "30 sec ago"},
		{"one minute", fixedNow.Add(-90 * time.Second), "1 min ago"},
		{"minutes", fixedNow.Add(-10 * time.Minute), "10 min ago"},
		{"one hour", fixedNow.Add(-90 * time.Minute), "1 hour ago"},
		{"days", fixedNow.Add(-49 * time.Hour), "2 days ago"},
		{"weeks", fixedNow.Add(-15 * 24 * time.Hour), "2 weeks ago"},
		{"future clock skew", fixedNow.Add(time.Minute), "Just now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTime(fixedNow, tt.t); got != tt.want {
				t.Errorf("RelativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildReport(t *testing.T) {
	remote := permitExpiring("NEW", fixedNow.AddDate(0, 0, 10))
	display := permitExpiring("OLD", fixedNow.AddDate(0, 0, 3))
	previous := permitExpiring("ANCIENT", fixedNow.AddDate(0, 0, -7))
	previous.Price = "$20.00"

	rep := BuildReport(fixedNow, Snapshot{
		Remote:          remote,
		Display:         display,
		Previous:        previous,
		OutOfSync:       true,
		LastSync:        fixedNow.Add(-5 * time.Minute),
		LastDisplaySync: fixedNow.Add(-2 * 24 * time.Hour),
	})

	if rep.Current.PermitNumber != "OLD" {
		t.Errorf("Current = %q, want OLD", rep.Current.PermitNumber)
	}
	if rep.Scheduled == nil || rep.Scheduled.PermitNumber != "NEW" {
		t.Errorf("Scheduled = %+v, want NEW", rep.Scheduled)
	}
	if !rep.OutOfSync {
		t.Error("OutOfSync = false")
	}
	if rep.SyncAge != "5 min ago" {
		t.Errorf("SyncAge = %q", rep.SyncAge)
	}
	if rep.PriceDelta != "+$5.00" {
		t.Errorf("PriceDelta = %q, want +$5.00", rep.PriceDelta)
	}
}
