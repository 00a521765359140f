package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fredcli/internal/config"
	"fredcli/internal/exporter"
	"fredcli/internal/fetcher"
	"fredcli/internal/infrastructure"
	"fredcli/internal/operations"
	"fredcli/internal/storage"
)

// Runtime holds the components shared by fredpull and fredweb
type Runtime struct {
	Config    *config.Config
	Paths     *config.Paths
	Registry  *config.SeriesRegistry
	Providers *infrastructure.OTelProviders
	Metrics   *infrastructure.PipelineMetrics
	Manager   *operations.Manager
	// Store is nil unless the archive is enabled
	Store  *storage.SQLiteStore
	Logger *slog.Logger
}

// NewRuntime wires telemetry, the series registry and the pipeline from cfg
func NewRuntime(cfg *config.Config, serviceName string, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to build series registry: %w", err)
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFromTelemetry(serviceName, cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	rt := &Runtime{
		Config:    cfg,
		Paths:     config.NewPaths(cfg.Paths),
		Registry:  registry,
		Providers: providers,
		Metrics:   metrics,
		Logger:    logger,
	}

	deps := operations.Dependencies{
		Fetcher: fetcher.NewClient(cfg.Fetch,
			fetcher.WithMetrics(metrics),
			fetcher.WithLogger(logger),
		),
		Writer:        exporter.NewCSVWriter(rt.Paths),
		PreviewLength: cfg.Pipeline.PreviewLength,
	}
	if cfg.Pipeline.Workbook {
		deps.Workbook = exporter.NewWorkbookWriter(rt.Paths)
	}
	if cfg.Archive.Enabled {
		store, err := storage.NewSQLite(cfg.Archive.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open archive %s: %w", cfg.Archive.Path, err)
		}
		rt.Store = store
		deps.Archive = store
		logger.Info("Observation archive enabled", slog.String("path", cfg.Archive.Path))
	}

	rt.Manager, err = operations.NewPipeline(deps,
		operations.WithConcurrency(cfg.Pipeline.Concurrency),
		operations.WithPipelineMetrics(metrics),
	)
	if err != nil {
		rt.Close(context.Background())
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return rt, nil
}

// Close releases the archive and flushes telemetry
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Store != nil {
		if err := rt.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}
	if rt.Providers != nil {
		if err := rt.Providers.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
