package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"fredcli/internal/config"
	"fredcli/internal/validation"
	"fredcli/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	paths     *config.Paths
	registry  *config.SeriesRegistry
	archive   RunArchive
	validator *validation.FileValidator
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents the health of one dependency
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service. archive may be nil.
func NewHealthService(paths *config.Paths, registry *config.SeriesRegistry, archive RunArchive, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		paths:     paths,
		registry:  registry,
		archive:   archive,
		validator: validation.NewFileValidator(logger),
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck reports the server and its output locations. Status is
// "ok" when every dependency is ready and "degraded" otherwise.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"series":         len(hs.registry.Names()),
		},
		Services: map[string]ServiceHealth{
			"output":  hs.checkOutput(),
			"archive": hs.checkArchive(ctx),
		},
	}

	for _, s := range status.Services {
		if s.Status == "error" {
			status.Status = "degraded"
		}
	}

	hs.logger.DebugContext(ctx, "Health check completed", slog.String("status", status.Status))
	return status
}

func (hs *HealthService) checkOutput() ServiceHealth {
	if err := hs.validator.ValidateOutputDirectory(hs.paths.OutputDir); err != nil {
		return ServiceHealth{Status: "error", Message: err.Error()}
	}
	count, err := hs.validator.CountFiles(hs.paths.OutputDir, "*.csv")
	if err != nil {
		return ServiceHealth{Status: "error", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready", Message: fmt.Sprintf("csv files: %d", count)}
}

func (hs *HealthService) checkArchive(ctx context.Context) ServiceHealth {
	if hs.archive == nil {
		return ServiceHealth{Status: "disabled"}
	}
	// Any query proves the database is readable
	if _, err := hs.archive.ListRuns(ctx, "", 1); err != nil {
		return ServiceHealth{Status: "error", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready"}
}
