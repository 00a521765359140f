package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"fredcli/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeOTelDisabled(t *testing.T) {
	cfg := OTelConfigFromTelemetry("fredpull", config.Default().Telemetry)

	providers, err := InitializeOTel(cfg, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Tracer, "no-op tracer should still be usable")
	assert.NotNil(t, providers.Meter)

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTelRejectsUnknownExporter(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{ServiceName: "x", TraceExporter: "jaeger"}, discardLogger())
	assert.Error(t, err)

	_, err = InitializeOTel(&OTelConfig{ServiceName: "x", MetricExporter: "statsd"}, discardLogger())
	assert.Error(t, err)

	_, err = InitializeOTel(nil, discardLogger())
	assert.Error(t, err)
}

func TestPrometheusEndpointExposesPipelineMetrics(t *testing.T) {
	var traces bytes.Buffer
	cfg := &OTelConfig{
		ServiceName:    "fredpull-test",
		ServiceVersion: "test",
		Environment:    "test",
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		SampleRatio:    1.0,
		TraceWriter:    &traces,
	}

	providers, err := InitializeOTel(cfg, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordFetch(ctx, "jtsjol", http.StatusOK, 1024, 150*time.Millisecond)
	metrics.RecordRun(ctx, "jtsjol", 12, time.Second, "")

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "fred_fetch_requests_total")
	assert.Contains(t, body, "fred_fetch_bytes_total")
	assert.Contains(t, body, "fred_pipeline_runs_total")
	assert.Contains(t, body, `series="jtsjol"`)

	spanCtx, span := providers.Tracer.Start(ctx, "test-span")
	RecordError(spanCtx, errors.New("boom"))
	span.End()
	require.NoError(t, providers.TracerProvider.ForceFlush(ctx))
	assert.Contains(t, traces.String(), "test-span")
}

func TestRecordRunCountsErrors(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := CreatePipelineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRun(ctx, "atlwage", 0, time.Second, "fetch")
	metrics.RecordRun(ctx, "atlwage", 0, time.Second, "fetch")
	metrics.RecordRun(ctx, "atlwage", 80, time.Second, "")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(3), sums["fred_pipeline_runs_total"])
	assert.Equal(t, int64(2), sums["fred_pipeline_errors_total"])
}

func TestNilPipelineMetricsIsSafe(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.RecordFetch(context.Background(), "x", 200, 1, time.Second)
		m.RecordRun(context.Background(), "x", 1, time.Second, "")
		m.RecordHTTPRequest(context.Background(), "GET", "/", 200)
	})
}
