package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
	"github.com/anime-shed/pixelcheck-go/internal/config"
	"github.com/anime-shed/pixelcheck-go/internal/factory"
	"github.com/anime-shed/pixelcheck-go/internal/logger"
	"github.com/anime-shed/pixelcheck-go/internal/observer"
	"github.com/anime-shed/pixelcheck-go/internal/remote"
	"github.com/anime-shed/pixelcheck-go/internal/repository"
	"github.com/anime-shed/pixelcheck-go/internal/service"
	"github.com/anime-shed/pixelcheck-go/internal/storage"
	"github.com/anime-shed/pixelcheck-go/internal/transport"
	"github.com/anime-shed/pixelcheck-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	imageAnalyzer   analyzer.ImageAnalyzer
	blobStore       storage.BlobStore
	analyses        repository.AnalysisRepository
	analysisService service.ImageAnalysisService
	remoteService   service.RemoteService
	metrics         *observer.MetricsObserver
	handler         http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	// Build dependency graph
	imageAnalyzer, err := components.AnalyzerFactory.CreateAnalyzer()
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	blobStore, err := components.StorageFactory.CreateBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}
	analyses, err := repository.NewSQLiteRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis store: %w", err)
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	uploads := validation.NewUploadValidatorWithLimits(validation.UploadLimits{
		MaxBytes:      cfg.MaxRequestBodySize,
		MaxNameLength: validation.DefaultUploadLimits().MaxNameLength,
		AllowedTypes:  validation.DefaultUploadLimits().AllowedTypes,
	})
	entitlements := service.NewStaticEntitlements(cfg.PremiumUsers)

	imageRepository := repository.NewHTTPImageRepository(components.StorageFactory.CreateImageFetcher())
	analysisService := service.NewImageAnalysisService(service.Dependencies{
		Analyzer:     imageAnalyzer,
		Images:       imageRepository,
		Records:      analyses,
		Blobs:        blobStore,
		Uploads:      uploads,
		Entitlements: entitlements,
		Events:       events,
		BatchWorkers: cfg.BatchWorkers,
	})

	remoteClient := remote.NewClient(cfg.RemoteAPIURL, remote.WithPolling(cfg.RemotePollAttempts, cfg.RemotePollInterval))
	remoteService := service.NewRemoteService(remoteClient, uploads, entitlements, events)

	handler := transport.NewHandler(analysisService, remoteService, metrics, cfg)

	return &Container{
		config:          cfg,
		imageAnalyzer:   imageAnalyzer,
		blobStore:       blobStore,
		analyses:        analyses,
		analysisService: analysisService,
		remoteService:   remoteService,
		metrics:         metrics,
		handler:         handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases the worker pool, the engine and the database
func (c *Container) Close() error {
	var firstErr error
	for _, closer := range []func() error{c.analysisService.Close, c.imageAnalyzer.Close, c.analyses.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
