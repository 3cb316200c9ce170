// Package bootstrap wires configuration, infrastructure, and use cases into
// a runnable application. Both binaries (api and worker) share it so they
// always agree on schema, queue subject, and storage layout.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bidworks/ingest-pipeline/internal/config"
	"github.com/bidworks/ingest-pipeline/internal/core/ports"
	"github.com/bidworks/ingest-pipeline/internal/core/usecase"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/extraction"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/parser/workbook"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/parser/xmlsched"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/queue/nats"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/repository/postgres"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/resilience"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/storage/localfs"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/storage/s3"
	"github.com/bidworks/ingest-pipeline/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue

	IngestUC     ports.DocumentIngestor
	ProcessUC    ports.DocumentProcessor
	ReaderUC     ports.DocumentReader
	CategorizeUC ports.ProjectCategorizer
	PackagesUC   ports.PackageGenerator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	docs := postgres.NewDocumentRepository(db)
	items := postgres.NewLineItemRepository(db)
	catalog := postgres.NewCatalogRepository(db)
	packages := postgres.NewWorkPackageRepository(db)
	projects := postgres.NewProjectRepository(db)

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	extractionClient := extraction.NewClient(extraction.ClientConfig{
		BaseURL:          cfg.ExtractionURL,
		Model:            cfg.ExtractionModel,
		Timeout:          time.Duration(cfg.ExtractionTimeoutSeconds) * time.Second,
		RequestsPerMin:   cfg.ExtractionRequestsPerMin,
		PayloadLimit:     cfg.ExtractionPayloadLimitMB << 20,
		ResilienceConfig: resilience.ExtractionDefaults(),
	})
	extractor := extraction.NewAdapter(extractionClient, logger)

	xmlParser, err := xmlsched.New()
	if err != nil {
		return nil, fmt.Errorf("init xml parser: %w", err)
	}
	wbParser, err := workbook.New()
	if err != nil {
		return nil, fmt.Errorf("init workbook parser: %w", err)
	}

	ingestUC := usecase.NewIngestDocumentUseCase(docs, projects, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(docs, items, projects, storage, xmlParser, wbParser, extractor, extractor, logger)
	readerUC := usecase.NewDocumentReaderUseCase(docs, queue)
	categorizeUC := usecase.NewCategorizeItemsUseCase(items, catalog, extractor, logger, cfg.AICategorizerEnabled)
	categorizeUC.SetTuning(cfg.CategorizeBatchSize, cfg.CatalogSampleSize)
	packagesUC := usecase.NewGeneratePackagesUseCase(items, packages, extractor, logger, cfg.AIGroupingEnabled, cfg.AIGroupingMinItems)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue: queue,

		IngestUC:     ingestUC,
		ProcessUC:    processUC,
		ReaderUC:     readerUC,
		CategorizeUC: categorizeUC,
		PackagesUC:   packagesUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "s3":
		return s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "local", "":
		return localfs.New(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
