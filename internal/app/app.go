package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"fredcli/internal/config"
	apierrors "fredcli/internal/errors"
	"fredcli/internal/infrastructure"
	"fredcli/internal/middleware"
	"fredcli/internal/services"
	handlers "fredcli/internal/transport/http"
	"fredcli/pkg/contracts"
)

// ServiceName identifies the status server in logs and telemetry
const ServiceName = "fredweb"

// Application represents the status server container
type Application struct {
	Config        *config.Config
	Runtime       *Runtime
	Router        *chi.Mux
	Server        *http.Server
	SeriesService *services.SeriesService
	HealthService *services.HealthService
	Logger        *slog.Logger
}

// NewApplication creates a new application instance with dependency injection
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", ServiceName),
		slog.String("version", contracts.Version))

	rt, err := NewRuntime(cfg, ServiceName, logger)
	if err != nil {
		return nil, err
	}

	if err := rt.Paths.EnsureDirectories(); err != nil {
		rt.Close(context.Background())
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	a := &Application{
		Config:  cfg,
		Runtime: rt,
		Logger:  logger,
	}
	a.initializeServices()
	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() {
	// a nil *SQLiteStore must not become a non-nil interface
	var archive services.RunArchive
	if a.Runtime.Store != nil {
		archive = a.Runtime.Store
	}

	a.SeriesService = services.NewSeriesService(a.Runtime.Registry, a.Runtime.Manager, archive, a.Logger)
	a.HealthService = services.NewHealthService(a.Runtime.Paths, a.Runtime.Registry, archive, a.Logger)
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Telemetry.Environment == "development")

	// RequestID → RealIP → OTel → Logger → Recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.NewOTelMiddleware(a.Runtime.Providers, a.Runtime.Metrics).Handler)
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(errorHandler))
	r.Use(middleware.SecurityHeaders)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if a.Config.Server.RateLimitRPS > 0 {
			r.Use(middleware.NewRateLimiter(
				a.Config.Server.RateLimitRPS,
				a.Config.Server.RateLimitBurst,
				a.Logger,
			).Handler)
		}

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)

		seriesHandler := handlers.NewSeriesHandler(a.SeriesService, a.Logger, errorHandler)
		r.Mount("/series", seriesHandler.Routes())
	})

	if a.Runtime.Providers.PrometheusHTTP != nil {
		r.Handle("/metrics", a.Runtime.Providers.PrometheusHTTP)
	}

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Start starts serving in the background. A listener failure cancels the application context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", ServiceName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("output_dir", a.Runtime.Paths.OutputDir),
		slog.Any("series", a.Runtime.Registry.Names()))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := a.Runtime.Close(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error releasing resources", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	// the application context may already be cancelled
	return a.Stop(context.WithoutCancel(ctx))
}
