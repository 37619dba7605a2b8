package usecase

import (
	"testing"
	"time"

	"github.com/kirillkom/docscan/internal/core/domain"
)

func TestCapturePolicyShouldTrigger(t *testing.T) {
	p := DefaultCapturePolicy()
	now := time.Date(2025, 3, 14, 9, 0, 10, 0, time.UTC)
	old := now.Add(-2 * time.Second)
	fresh := now.Add(-time.Second)

	cases := []struct {
		name      string
		items     []domain.RecognizedItem
		lastPhoto time.Time
		want      bool
	}{
		{"empty capture", nil, old, false},
		{"settled", []domain.RecognizedItem{{RecognizedAt: old}}, old, true},
		{"recent item", []domain.RecognizedItem{{RecognizedAt: old}, {RecognizedAt: fresh}}, old, false},
		{"recent photo", []domain.RecognizedItem{{RecognizedAt: old}}, fresh, false},
		{"exactly at quiet window", []domain.RecognizedItem{{RecognizedAt: old}}, now.Add(-p.QuietWindow), false},
	}
	for _, tc := range cases {
		if got := p.ShouldTrigger(tc.items, tc.lastPhoto, now); got != tc.want {
			t.Fatalf("%s: ShouldTrigger = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCapturePolicySplitRecent(t *testing.T) {
	p := DefaultCapturePolicy()
	now := time.Date(2025, 3, 14, 9, 0, 10, 0, time.UTC)
	items := []domain.RecognizedItem{
		{ID: "a", RecognizedAt: now.Add(-5 * time.Second)},
		{ID: "b", RecognizedAt: now.Add(-2 * time.Second)},
		{ID: "c", RecognizedAt: now.Add(-4 * time.Second)},
		{ID: "d", RecognizedAt: now.Add(-100 * time.Millisecond)},
	}

	older, recent := p.SplitRecent(items, now)
	if len(older) != 2 || older[0].ID != "a" || older[1].ID != "c" {
		t.Fatalf("unexpected older items: %+v", older)
	}
	if len(recent) != 2 || recent[0].ID != "b" || recent[1].ID != "d" {
		t.Fatalf("unexpected recent items: %+v", recent)
	}
}

func TestCapturePolicyDefaultsFillGaps(t *testing.T) {
	p := CapturePolicy{QuietWindow: time.Second}.withDefaults()
	def := DefaultCapturePolicy()
	if p.QuietWindow != time.Second || p.AutoPhotoDelay != def.AutoPhotoDelay || p.PhotoCooldown != def.PhotoCooldown {
		t.Fatalf("unexpected policy: %+v", p)
	}
	if p.CarryForwardWindow() != time.Second+def.AutoPhotoDelay {
		t.Fatalf("unexpected carry-forward window: %v", p.CarryForwardWindow())
	}
}

func TestDuplicateFilterKindsAreSeparate(t *testing.T) {
	f := NewDuplicateFilter(0)
	existing := []domain.RecognizedItem{
		{Transcript: "4006381333931", IsBarcode: true},
		{Transcript: "Opening hours Monday to Friday"},
	}

	if f.IsDuplicate(existing, domain.Observation{Kind: domain.ObservationText, Text: "4006381333931"}) {
		t.Fatalf("text must not be compared against barcodes")
	}
	if !f.IsDuplicate(existing, domain.Observation{Kind: domain.ObservationBarcode, Text: "4006381333931"}) {
		t.Fatalf("same barcode payload must be a duplicate")
	}
	if f.IsDuplicate(existing, domain.Observation{Kind: domain.ObservationBarcode, Text: "4006381333932"}) {
		t.Fatalf("barcodes require an exact payload match")
	}
	if !f.IsDuplicate(existing, domain.Observation{Kind: domain.ObservationText, Text: "Opening hours Monday to Fridav"}) {
		t.Fatalf("near-identical text must be a duplicate")
	}
	if f.IsDuplicate(nil, domain.Observation{Kind: domain.ObservationText, Text: "x"}) {
		t.Fatalf("nothing is a duplicate of an empty capture")
	}
}
