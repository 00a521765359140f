package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fredcli/internal/config"
	apierrors "fredcli/internal/errors"
	"fredcli/internal/middleware"
	"fredcli/internal/shared/testutil"
)

// testConfig returns a configuration rooted in a temp dir whose built-in
// series point at fred
func testConfig(t *testing.T, fred *testutil.FREDServer) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(dir, "data")
	cfg.Archive.Path = filepath.Join(dir, "data", "observations.db")
	cfg.Fetch.Timeout = 2 * time.Second
	cfg.Fetch.RateLimit = 1000
	cfg.Fetch.Burst = 10
	cfg.Server.RateLimitRPS = 0

	for _, s := range config.BuiltinSeries() {
		s.URL = fred.SeriesURL(s.SeriesID)
		cfg.Series = append(cfg.Series, s)
	}
	return cfg
}

func newTestApplication(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	a, err := NewApplication(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Runtime.Close(context.Background()) })
	return a
}

func serve(a *Application, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestNewApplicationRoutes(t *testing.T) {
	fred := testutil.NewFREDServer(t)
	a := newTestApplication(t, testConfig(t, fred))

	assert.DirExists(t, a.Runtime.Paths.OutputDir)
	assert.Nil(t, a.Runtime.Store, "archive is opt-in")
	assert.Equal(t, ":8090", a.Server.Addr)

	rec := serve(a, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = serve(a, http.MethodGet, "/api/series", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 3, list.Count)

	rec = serve(a, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, apierrors.TypeNotFound, problem["type"])

	rec = serve(a, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are off by default")
}

func TestApplicationRunsSeriesAndExportsMetrics(t *testing.T) {
	fred := testutil.NewFREDServer(t)
	fred.Serve("FRBATLWGT3MMAUMHWGO", testutil.AtlantaWageCSV)

	cfg := testConfig(t, fred)
	cfg.Telemetry.Metrics = "prometheus"
	cfg.Archive.Enabled = true
	a := newTestApplication(t, cfg)
	require.NotNil(t, a.Runtime.Store)

	rec := serve(a, http.MethodPost, "/api/series/atlwage/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.FileExists(t, a.Runtime.Paths.ProcessedPath("atlwage"))

	rec = serve(a, http.MethodGet, "/api/series/atlwage/observations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	rec = serve(a, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fred_pipeline_runs_total")
	assert.Contains(t, string(body), "fred_fetch_requests_total")
}

func TestApplicationRateLimit(t *testing.T) {
	fred := testutil.NewFREDServer(t)
	cfg := testConfig(t, fred)
	cfg.Server.RateLimitRPS = 0.001
	cfg.Server.RateLimitBurst = 1
	a := newTestApplication(t, cfg)

	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/api/series", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(a, http.MethodGet, "/api/series", "").Code)
}

func TestApplicationRejectsInvalidSeriesConfig(t *testing.T) {
	fred := testutil.NewFREDServer(t)
	cfg := testConfig(t, fred)
	cfg.Series = append(cfg.Series, config.SeriesConfig{Name: "broken"})

	logger, _ := testutil.NewTestLogger(t)
	_, err := NewApplication(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "series registry")
}

func TestApplicationStartStop(t *testing.T) {
	fred := testutil.NewFREDServer(t)
	cfg := testConfig(t, fred)
	cfg.Server.Port = 0
	a := newTestApplication(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx, cancel))
	require.NoError(t, a.Stop(context.Background()))
}
