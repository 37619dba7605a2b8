package usecase

import (
	"time"

	"github.com/kirillkom/docscan/internal/core/domain"
)

// CapturePolicy holds the timings that decide when a live session closes the
// active capture and asks for a new photo.
type CapturePolicy struct {
	// QuietWindow is how long the capture must go without new items, and how
	// long since the last photo, before an advance is considered.
	QuietWindow time.Duration
	// AutoPhotoDelay is the wait between deciding to advance and doing it.
	AutoPhotoDelay time.Duration
	// PhotoCooldown is the minimum gap between two automatic photos.
	PhotoCooldown time.Duration
	// InitialPhotoDelay lets the camera settle after a session starts.
	InitialPhotoDelay time.Duration
}

func DefaultCapturePolicy() CapturePolicy {
	return CapturePolicy{
		QuietWindow:       1500 * time.Millisecond,
		AutoPhotoDelay:    1500 * time.Millisecond,
		PhotoCooldown:     2 * time.Second,
		InitialPhotoDelay: 200 * time.Millisecond,
	}
}

func (p CapturePolicy) withDefaults() CapturePolicy {
	def := DefaultCapturePolicy()
	if p.QuietWindow <= 0 {
		p.QuietWindow = def.QuietWindow
	}
	if p.AutoPhotoDelay <= 0 {
		p.AutoPhotoDelay = def.AutoPhotoDelay
	}
	if p.PhotoCooldown <= 0 {
		p.PhotoCooldown = def.PhotoCooldown
	}
	if p.InitialPhotoDelay < 0 {
		p.InitialPhotoDelay = def.InitialPhotoDelay
	}
	return p
}

// CarryForwardWindow is the age below which items move to the next capture
// when the session advances.
func (p CapturePolicy) CarryForwardWindow() time.Duration {
	return p.QuietWindow + p.AutoPhotoDelay
}

// ShouldTrigger reports whether the capture has settled: it holds at least
// one item, none of them is younger than the quiet window and the last photo
// is older than the quiet window.
func (p CapturePolicy) ShouldTrigger(items []domain.RecognizedItem, lastPhotoAt, now time.Time) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.RecognizedAt.Add(p.QuietWindow).After(now) {
			return false
		}
	}
	return lastPhotoAt.Add(p.QuietWindow).Before(now)
}

func (p CapturePolicy) CooldownElapsed(lastPhotoAt, now time.Time) bool {
	return lastPhotoAt.Add(p.PhotoCooldown).Before(now)
}

// SplitRecent separates items recognized within the carry-forward window from
// older ones. Relative order is preserved in both slices.
func (p CapturePolicy) SplitRecent(items []domain.RecognizedItem, now time.Time) (older, recent []domain.RecognizedItem) {
	window := p.CarryForwardWindow()
	for _, item := range items {
		if item.RecognizedAt.Add(window).After(now) {
			recent = append(recent, item)
		} else {
			older = append(older, item)
		}
	}
	return older, recent
}
