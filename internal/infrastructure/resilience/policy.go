package resilience

import (
	"strings"
	"time"
)

// Dependencies the service guards. Operation names are "<dependency>.<call>",
// e.g. "s3.put" or "ocr.recognize".
const (
	DependencyNATS = "nats"
	DependencyS3   = "s3"
	DependencyOCR  = "ocr"
)

// Config tunes retries and circuit breaking for calls to external
// dependencies. Zero fields take DefaultConfig values. Overrides are applied
// per dependency on top of the base values; a nil map means
// DefaultOverrides, an empty one disables them.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	Overrides map[string]Override
}

// Override replaces base Config values for one dependency. Zero fields keep
// the base value.
type Override struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerMinRequests  uint32
	BreakerOpenTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// DefaultOverrides reflects how each dependency fails. Photo-request
// publishes sit on the live capture path and the NATS client reconnects on
// its own, so they retry fast and give up early. Full-size image uploads fail
// slowly and are worth a longer wait. A failed tesseract run is nearly always
// the image, so it is tried once and the breaker only reacts to a broken
// engine.
func DefaultOverrides() map[string]Override {
	return map[string]Override{
		DependencyNATS: {
			RetryInitialBackoff: 25 * time.Millisecond,
			RetryMaxBackoff:     200 * time.Millisecond,
			BreakerMinRequests:  20,
			BreakerOpenTimeout:  10 * time.Second,
		},
		DependencyS3: {
			RetryInitialBackoff: 200 * time.Millisecond,
			RetryMaxBackoff:     2 * time.Second,
			BreakerOpenTimeout:  time.Minute,
		},
		DependencyOCR: {
			RetryMaxAttempts:   1,
			BreakerMinRequests: 5,
			BreakerOpenTimeout: 2 * time.Minute,
		},
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	if out.Overrides == nil {
		out.Overrides = DefaultOverrides()
	}

	return out
}

// forOperation is the normalized config with the override of the
// operation's dependency applied.
func (c Config) forOperation(operation string) Config {
	override, ok := c.Overrides[dependencyOf(operation)]
	if !ok {
		return c
	}
	out := c
	if override.RetryMaxAttempts > 0 {
		out.RetryMaxAttempts = override.RetryMaxAttempts
	}
	if override.RetryInitialBackoff > 0 {
		out.RetryInitialBackoff = override.RetryInitialBackoff
	}
	if override.RetryMaxBackoff > 0 {
		out.RetryMaxBackoff = override.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if override.BreakerMinRequests > 0 {
		out.BreakerMinRequests = override.BreakerMinRequests
	}
	if override.BreakerOpenTimeout > 0 {
		out.BreakerOpenTimeout = override.BreakerOpenTimeout
	}
	return out
}

func dependencyOf(operation string) string {
	dep, _, _ := strings.Cut(operation, ".")
	return dep
}

// backoff is the wait after the given failed attempt, starting at 1.
func (c Config) backoff(attempt int) time.Duration {
	wait := c.RetryInitialBackoff
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * c.RetryMultiplier)
		if wait >= c.RetryMaxBackoff {
			return c.RetryMaxBackoff
		}
	}
	return min(wait, c.RetryMaxBackoff)
}
