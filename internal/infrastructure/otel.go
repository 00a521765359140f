package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"fredcli/internal/config"
	"fredcli/pkg/contracts"
)

const (
	ServiceName = "fredpull"
	MeterName   = "fredcli"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	SampleRatio    float64
	// TraceWriter receives stdout spans; defaults to stderr
	TraceWriter io.Writer
}

// OTelConfigFromTelemetry maps the telemetry section of the configuration
func OTelConfigFromTelemetry(serviceName string, cfg config.TelemetryConfig) *OTelConfig {
	return &OTelConfig{
		ServiceName:    serviceName,
		ServiceVersion: contracts.Version,
		Environment:    cfg.Environment,
		TraceExporter:  cfg.Tracing,
		MetricExporter: cfg.Metrics,
		SampleRatio:    cfg.SampleRatio,
	}
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel installs the configured exporters as the global providers.
// With both exporters set to "none" the returned providers fall back to the no-op globals.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		return nil, errors.New("otel config is required")
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()
	res := createResource(cfg)
	providers := &OTelProviders{Logger: logger}

	if err := initializeTracing(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if providers.Tracer == nil {
		providers.Tracer = otel.Tracer(MeterName)
	}
	if providers.Meter == nil {
		providers.Meter = otel.Meter(MeterName)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.DebugContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("traces", cfg.TraceExporter),
		slog.String("metrics", cfg.MetricExporter))

	return providers, nil
}

func createResource(cfg *OTelConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)
}

func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		var w io.Writer = os.Stderr
		if cfg.TraceWriter != nil {
			w = cfg.TraceWriter
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.DebugContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))
	return nil
}

func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		// a private registry keeps repeated initialization (tests, reloads) free of duplicate registrations
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.DebugContext(ctx, "Metrics initialized", slog.String("exporter", cfg.MetricExporter))
	return nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PipelineMetrics holds the instruments recorded by fetches and series runs
type PipelineMetrics struct {
	FetchRequests     metric.Int64Counter
	FetchDuration     metric.Float64Histogram
	FetchBytes        metric.Int64Counter
	RunsTotal         metric.Int64Counter
	RunDuration       metric.Float64Histogram
	RowsRetained      metric.Int64Histogram
	ErrorsTotal       metric.Int64Counter
	HTTPRequestsTotal metric.Int64Counter
}

// CreatePipelineMetrics creates the pipeline instruments on meter
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	var err error

	if m.FetchRequests, err = meter.Int64Counter(
		"fred_fetch_requests_total",
		metric.WithDescription("Total number of FRED download attempts"),
	); err != nil {
		return nil, err
	}
	if m.FetchDuration, err = meter.Float64Histogram(
		"fred_fetch_duration_seconds",
		metric.WithDescription("FRED download duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.FetchBytes, err = meter.Int64Counter(
		"fred_fetch_bytes_total",
		metric.WithDescription("Total bytes downloaded from FRED"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.RunsTotal, err = meter.Int64Counter(
		"fred_pipeline_runs_total",
		metric.WithDescription("Total number of series runs"),
	); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram(
		"fred_pipeline_run_duration_seconds",
		metric.WithDescription("Series run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.RowsRetained, err = meter.Int64Histogram(
		"fred_pipeline_rows_retained",
		metric.WithDescription("Observations kept in the processed output"),
	); err != nil {
		return nil, err
	}
	if m.ErrorsTotal, err = meter.Int64Counter(
		"fred_pipeline_errors_total",
		metric.WithDescription("Total number of failed series runs by error type"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordFetch records one download attempt
func (m *PipelineMetrics) RecordFetch(ctx context.Context, series string, status int, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("series", series),
		attribute.Int("http.status_code", status),
	)
	m.FetchRequests.Add(ctx, 1, attrs)
	m.FetchDuration.Record(ctx, duration.Seconds(), attrs)
	if bytes > 0 {
		m.FetchBytes.Add(ctx, bytes, metric.WithAttributes(attribute.String("series", series)))
	}
}

// RecordRun records the outcome of a series run; errorType is empty on success
func (m *PipelineMetrics) RecordRun(ctx context.Context, series string, rows int, duration time.Duration, errorType string) {
	if m == nil {
		return
	}
	status := "success"
	if errorType != "" {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("series", series),
		attribute.String("status", status),
	)
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, duration.Seconds(), attrs)
	if errorType != "" {
		m.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("series", series),
			attribute.String("error.type", errorType),
		))
		return
	}
	m.RowsRetained.Record(ctx, int64(rows), metric.WithAttributes(attribute.String("series", series)))
}

// RecordHTTPRequest counts one served API request
func (m *PipelineMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	))
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
