package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/infrastructure/resilience"
)

const (
	photoRequestedSuffix     = "photo.requested"
	captureImageStoredSuffix = "capture.image_stored"
	ocrWorkerGroup           = "ocr-workers"
)

// Queue publishes live-session photo requests and capture image events, and
// feeds the OCR worker.
type Queue struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subjectPrefix string) (*Queue, error) {
	return NewWithOptions(url, subjectPrefix, Options{})
}

func NewWithOptions(url, subjectPrefix string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("docscan"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		prefix:   normalizePrefix(subjectPrefix),
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PhotoRequestedSubject() string {
	return subject(q.prefix, photoRequestedSuffix)
}

func (q *Queue) CaptureImageStoredSubject() string {
	return subject(q.prefix, captureImageStoredSuffix)
}

func (q *Queue) PublishPhotoRequested(ctx context.Context, request domain.PhotoRequest) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal photo request: %w", err)
	}
	return q.publish(ctx, q.PhotoRequestedSubject(), payload)
}

func (q *Queue) PublishCaptureImageStored(ctx context.Context, captureID string) error {
	return q.publish(ctx, q.CaptureImageStoredSubject(), []byte(captureID))
}

// SubscribeCaptureImageStored blocks until ctx is done, then drains the
// subscription so in-flight OCR passes finish.
func (q *Queue) SubscribeCaptureImageStored(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.CaptureImageStoredSubject(), ocrWorkerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		captureID := strings.TrimSpace(string(msg.Data))
		if captureID == "" {
			slog.Warn("capture_image_event_empty", "subject", msg.Subject)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, captureID); err != nil {
			slog.Error("ocr_handler_failed", "capture_id", captureID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) publish(ctx context.Context, subj string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subj, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subj, err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return "scan"
	}
	return prefix
}

func subject(prefix, suffix string) string {
	return prefix + "." + suffix
}
