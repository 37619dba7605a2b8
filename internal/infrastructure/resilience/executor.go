package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// StateObserver is told about circuit breaker transitions, e.g. to export
// them as metrics.
type StateObserver func(operation, from, to string)

// Executor retries calls to external dependencies (NATS, S3, tesseract) with
// capped exponential backoff and guards each named operation with its own
// circuit breaker. Limits come from the operation's dependency override.
type Executor struct {
	cfg      Config
	observer StateObserver

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// WithStateObserver installs observer and returns e. Breakers created earlier
// keep the previous observer.
func (e *Executor) WithStateObserver(observer StateObserver) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = observer
	return e
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	_, err := Call(ctx, e, operation, func(ctx context.Context) (struct{}, error) {
		if fn == nil {
			return struct{}{}, fmt.Errorf("resilience: operation callback is nil")
		}
		return struct{}{}, fn(ctx)
	}, classifier)
	return err
}

// Call is Execute for operations that produce a value. A nil executor runs
// fn once.
func Call[T any](
	ctx context.Context,
	e *Executor,
	operation string,
	fn func(context.Context) (T, error),
	classifier ErrorClassifier,
) (T, error) {
	if e == nil {
		return fn(ctx)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	cfg := e.cfg.forOperation(op)
	var out T
	attempt := func() error {
		return e.retry(ctx, cfg, op, classifier, func(ctx context.Context) error {
			v, err := fn(ctx)
			if err == nil {
				out = v
			}
			return err
		})
	}

	if !e.cfg.BreakerEnabled {
		return out, attempt()
	}
	_, err := e.circuitBreaker(op, cfg, classifier).Execute(func() (any, error) {
		return nil, attempt()
	})
	return out, err
}

func (e *Executor) retry(
	ctx context.Context,
	cfg Config,
	operation string,
	classifier ErrorClassifier,
	fn func(context.Context) error,
) error {
	var err error
	for attempt := 1; attempt <= cfg.RetryMaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !classifier(err).Retryable || attempt == cfg.RetryMaxAttempts {
			return err
		}

		wait := cfg.backoff(attempt)
		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", cfg.RetryMaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func (e *Executor) circuitBreaker(operation string, cfg Config, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	observer := e.observer
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if observer != nil {
				observer(name, from.String(), to.String())
			}
		},
	})
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// ClassifyContext handles the cases every classifier shares: cancellation is
// neither retried nor counted, an open circuit is retried. ok is false when
// err needs dependency-specific classification.
func ClassifyContext(err error) (ErrorClassification, bool) {
	switch {
	case err == nil:
		return ErrorClassification{}, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{}, true
	case IsCircuitOpen(err):
		return ErrorClassification{Retryable: true, RecordFailure: true}, true
	}
	return ErrorClassification{}, false
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
