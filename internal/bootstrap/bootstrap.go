package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/docscan/internal/config"
	"github.com/kirillkom/docscan/internal/core/ports"
	"github.com/kirillkom/docscan/internal/core/usecase"
	"github.com/kirillkom/docscan/internal/infrastructure/chunking"
	"github.com/kirillkom/docscan/internal/infrastructure/export/xlsx"
	pdfextractor "github.com/kirillkom/docscan/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/docscan/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/docscan/internal/infrastructure/imaging"
	"github.com/kirillkom/docscan/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docscan/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docscan/internal/infrastructure/resilience"
	"github.com/kirillkom/docscan/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docscan/internal/infrastructure/storage/s3"
	"github.com/kirillkom/docscan/internal/observability/metrics"
)

// Options selects the metrics registry collectors of this process go to.
// A nil Registerer disables session and breaker metrics.
type Options struct {
	Service    string
	Registerer prometheus.Registerer
}

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Repo     ports.ScanRepository
	Storage  ports.ObjectStorage
	Executor *resilience.Executor

	Library  *usecase.ScanLibraryUseCase
	Sessions *usecase.LiveSessionManager
	Images   *usecase.CaptureImageUseCase
	Importer *usecase.ImportDocumentUseCase
	Exporter *usecase.ExportUseCase

	filter  usecase.DuplicateFilter
	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		BreakerEnabled:   cfg.BreakerEnabled,
	})
	var sessionRecorder usecase.SessionRecorder
	if opts.Registerer != nil {
		executor.WithStateObserver(metrics.NewBreakerMetrics(opts.Service, opts.Registerer).Observe)
		sessionRecorder = metrics.NewSessionMetrics(opts.Service, opts.Registerer)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewScanRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := newObjectStorage(ctx, cfg, executor)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	filter := usecase.NewDuplicateFilter(cfg.SimilarityThreshold)
	sessionOpts := []usecase.LiveSessionOption{
		usecase.WithDuplicateFilter(filter),
		usecase.WithCapturePolicy(usecase.CapturePolicy{
			QuietWindow:       cfg.SessionQuietWindow,
			AutoPhotoDelay:    cfg.SessionAutoPhotoDelay,
			PhotoCooldown:     cfg.SessionPhotoCooldown,
			InitialPhotoDelay: cfg.SessionInitialPhotoDelay,
		}),
	}
	if sessionRecorder != nil {
		sessionOpts = append(sessionOpts, usecase.WithSessionRecorder(sessionRecorder))
	}

	splitter := chunking.NewSplitter(cfg.FragmentMaxRunes)
	extractors := map[string]ports.PageExtractor{
		usecase.DocumentKindPDF:  pdfextractor.NewExtractor(cfg.PDFMaxPages),
		usecase.DocumentKindText: plaintext.NewExtractor(),
	}
	processor := imaging.NewProcessor(cfg.ImageFullWidth, cfg.ImageThumbnailWidth, cfg.ImageJPEGQuality)

	return &App{
		Config: cfg,

		Queue:    queue,
		Repo:     repo,
		Storage:  storage,
		Executor: executor,

		Library:  usecase.NewScanLibraryUseCase(repo, storage),
		Sessions: usecase.NewLiveSessionManager(repo, queue, sessionOpts...),
		Images:   usecase.NewCaptureImageUseCase(repo, storage, processor, queue),
		Importer: usecase.NewImportDocumentUseCase(repo, extractors, splitter, filter, cfg.ImportMaxBytes),
		Exporter: usecase.NewExportUseCase(repo, xlsx.NewWriter()),

		filter: filter,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// RecognizeUseCase builds the OCR pass around recognizer. Only the worker
// links an OCR engine, so the recognizer is supplied by the caller.
func (a *App) RecognizeUseCase(recognizer ports.TextRecognizer) *usecase.RecognizeCaptureUseCase {
	return usecase.NewRecognizeCaptureUseCase(a.Repo, a.Storage, recognizer, a.filter)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newObjectStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "", "localfs":
		return localfs.New(cfg.StoragePath)
	case "s3":
		slog.Info("object_storage_s3", "bucket", cfg.S3Bucket, "endpoint", cfg.S3Endpoint)
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			KeyPrefix:       cfg.S3KeyPrefix,
		}, executor)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
