package usecase

import (
	"time"

	"github.com/kirillkom/docscan/internal/core/ports"
)

// SystemClock is the production ports.Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}
