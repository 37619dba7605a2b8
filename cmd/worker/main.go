package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/docscan/internal/bootstrap"
	"github.com/kirillkom/docscan/internal/config"
	"github.com/kirillkom/docscan/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/docscan/internal/observability/logging"
	"github.com/kirillkom/docscan/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Registerer: workerMetrics.Registry(),
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	recognizer := tesseract.NewRecognizer(cfg.OCRLanguages, cfg.OCRMaxConcurrent, app.Executor)
	recognizeUC := app.RecognizeUseCase(recognizer)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", app.Queue.CaptureImageStoredSubject(), "languages", cfg.OCRLanguages)
	err = app.Queue.SubscribeCaptureImageStored(ctx, func(handlerCtx context.Context, captureID string) error {
		passCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()

		workerMetrics.StartPass()
		started := time.Now()
		added, err := recognizeUC.RecognizeCapture(passCtx, captureID)
		workerMetrics.FinishPass(serviceName, time.Since(started), added, err)
		if err == nil {
			slog.Info("ocr_pass_completed", "capture_id", captureID, "items_added", added)
		}
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
