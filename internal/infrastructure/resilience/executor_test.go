package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestCallReturnsValueAfterRetry(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		BreakerEnabled:      false,
	})

	attempts := 0
	got, err := Call(context.Background(), exec, "ocr.recognize", func(context.Context) ([]string, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("busy")
		}
		return []string{"line"}, nil
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err != nil || len(got) != 1 || attempts != 2 {
		t.Fatalf("unexpected result: %v %v attempts=%d", got, err, attempts)
	}
}

func TestCallWithNilExecutorRunsOnce(t *testing.T) {
	calls := 0
	_, err := Call(context.Background(), nil, "op", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	}, nil)
	if err == nil || calls != 1 {
		t.Fatalf("expected single failing call, got %d %v", calls, err)
	}
}

func TestStateObserverSeesBreakerOpen(t *testing.T) {
	var transitions []string
	exec := NewExecutor(Config{
		RetryMaxAttempts:   1,
		BreakerEnabled:     true,
		BreakerMinRequests: 1,
	}).WithStateObserver(func(op, from, to string) {
		transitions = append(transitions, op+":"+from+"->"+to)
	})

	_ = exec.Execute(context.Background(), "s3.put", func(context.Context) error {
		return errors.New("down")
	}, nil)
	if len(transitions) != 1 || transitions[0] != "s3.put:closed->open" {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

func TestConfigBackoffIsCapped(t *testing.T) {
	cfg := Config{
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     250 * time.Millisecond,
		RetryMultiplier:     2,
	}.normalize()
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond}
	for i, w := range want {
		if got := cfg.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestClassifyContext(t *testing.T) {
	if class, ok := ClassifyContext(context.Canceled); !ok || class.RecordFailure || class.Retryable {
		t.Fatalf("cancellation must be neither retried nor recorded: %+v", class)
	}
	if class, ok := ClassifyContext(gobreaker.ErrOpenState); !ok || !class.Retryable {
		t.Fatalf("open circuit must be retryable: %+v", class)
	}
	if _, ok := ClassifyContext(errors.New("other")); ok {
		t.Fatalf("unknown errors need dependency-specific classification")
	}
}

func TestDependencyOverrides(t *testing.T) {
	cfg := Config{RetryMaxAttempts: 4}.normalize()

	ocr := cfg.forOperation("ocr.recognize")
	if ocr.RetryMaxAttempts != 1 || ocr.BreakerMinRequests != 5 {
		t.Fatalf("unexpected ocr config: %+v", ocr)
	}
	nats := cfg.forOperation("nats.publish")
	if nats.RetryMaxAttempts != 4 || nats.RetryInitialBackoff != 25*time.Millisecond || nats.BreakerOpenTimeout != 10*time.Second {
		t.Fatalf("unexpected nats config: %+v", nats)
	}
	if other := cfg.forOperation("postgres.query"); other.RetryInitialBackoff != cfg.RetryInitialBackoff {
		t.Fatalf("unknown dependency must keep the base config: %+v", other)
	}

	bare := Config{Overrides: map[string]Override{}}.normalize()
	if got := bare.forOperation("ocr.recognize"); got.RetryMaxAttempts != DefaultConfig().RetryMaxAttempts {
		t.Fatalf("empty overrides must disable the defaults: %+v", got)
	}
}

func TestExecuteTriesOCROnce(t *testing.T) {
	exec := NewExecutor(Config{RetryMaxAttempts: 3, BreakerEnabled: false})

	attempts := 0
	err := exec.Execute(context.Background(), "ocr.recognize", func(context.Context) error {
		attempts++
		return errors.New("engine crashed")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err == nil || attempts != 1 {
		t.Fatalf("expected a single failed attempt, got %d (%v)", attempts, err)
	}
}
