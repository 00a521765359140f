package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fredcli/internal/config"
	apierrors "fredcli/internal/errors"
	"fredcli/internal/exporter"
	"fredcli/internal/fetcher"
	"fredcli/internal/operations"
	"fredcli/internal/services"
	"fredcli/internal/shared/testutil"
	"fredcli/internal/storage"
	"fredcli/pkg/contracts"
	api "fredcli/pkg/contracts/api/v1"
)

type apiFixture struct {
	fred   *testutil.FREDServer
	paths  *config.Paths
	router http.Handler
}

func newAPIFixture(t *testing.T, withArchive bool) *apiFixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	fred := testutil.NewFREDServer(t)
	paths := config.NewPaths(config.PathsConfig{OutputDir: filepath.Join(t.TempDir(), "data")})
	require.NoError(t, paths.EnsureDirectories())

	var series []config.SeriesConfig
	for _, s := range config.BuiltinSeries() {
		s.URL = fred.SeriesURL(s.SeriesID)
		series = append(series, s)
	}
	registry := config.NewSeriesRegistry(series...)

	fetchCfg := config.Default().Fetch
	fetchCfg.Timeout = 2 * time.Second
	fetchCfg.RateLimit = 1000
	fetchCfg.Burst = 10

	deps := operations.Dependencies{
		Fetcher:       fetcher.NewClient(fetchCfg, fetcher.WithLogger(logger)),
		Writer:        exporter.NewCSVWriter(paths),
		PreviewLength: 200,
	}

	var archive services.RunArchive
	if withArchive {
		store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "observations.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		deps.Archive = store
		archive = store
	}

	manager, err := operations.NewPipeline(deps)
	require.NoError(t, err)

	errorHandler := apierrors.NewErrorHandler(logger, false)
	seriesHandler := NewSeriesHandler(services.NewSeriesService(registry, manager, archive, logger), logger, errorHandler)
	healthHandler := NewHealthHandler(services.NewHealthService(paths, registry, archive, logger), logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)
		r.Mount("/series", seriesHandler.Routes())
	})

	return &apiFixture{fred: fred, paths: paths, router: r}
}

func (f *apiFixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestListSeries(t *testing.T) {
	f := newAPIFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/api/series", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["count"])

	rec, body = f.do(t, http.MethodGet, "/api/series/atlwage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FRBATLWGT3MMAUMHWGO", body["series_id"])
	assert.NotContains(t, body, "last_run")
}

func TestGetUnknownSeries(t *testing.T) {
	f := newAPIFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/api/series/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SERIES_NOT_FOUND", body["error_code"])

	rec, _ = f.do(t, http.MethodPost, "/api/series/nope/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunSeries(t *testing.T) {
	f := newAPIFixture(t, false)
	f.fred.Serve("JTSJOL", testutil.JOLTSCSV)

	rec, body := f.do(t, http.MethodPost, "/api/series/jtsjol/run", "")
	require.Equal(t, http.StatusOK, rec.Code, body)

	report := body["report"].(map[string]interface{})
	assert.Equal(t, "completed", report["status"])
	assert.Equal(t, float64(3), report["rows"])
	assert.Equal(t, f.paths.ProcessedPath("jtsjol"), report["processed_path"])
	assert.Equal(t, false, body["shared"])

	var typed api.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &typed))
	require.NotNil(t, typed.Report)
	assert.Equal(t, "jtsjol", typed.Report.Series)

	// the run is remembered as the latest one
	_, summary := f.do(t, http.MethodGet, "/api/series/jtsjol", "")
	assert.Contains(t, summary, "last_run")
}

func TestRunSeriesWithCutoff(t *testing.T) {
	f := newAPIFixture(t, false)
	f.fred.Serve("JTSJOL", testutil.JOLTSCSV)

	rec, body := f.do(t, http.MethodPost, "/api/series/jtsjol/run", `{"cutoff":"2020-04-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, float64(1), body["report"].(map[string]interface{})["rows"])
}

func TestRunSeriesRejectsBadRequests(t *testing.T) {
	f := newAPIFixture(t, false)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad cutoff", `{"cutoff":"01/02/2020"}`, "VALIDATION_FAILED"},
		{"invalid json", `{"cutoff":`, "INVALID_JSON"},
		{"wrong shape", `["2020-01-01"]`, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, http.MethodPost, "/api/series/jtsjol/run", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, body["error_code"])
		})
	}
	assert.Equal(t, 0, f.fred.Hits("JTSJOL"))
}

func TestRunSeriesFailures(t *testing.T) {
	t.Run("upstream error is a bad gateway", func(t *testing.T) {
		f := newAPIFixture(t, false)
		f.fred.Fail("JTSJOL", http.StatusInternalServerError)

		rec, body := f.do(t, http.MethodPost, "/api/series/jtsjol/run", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, apierrors.TypeUpstream, body["type"])
		assert.NoFileExists(t, f.paths.RawPath("jtsjol"))
	})

	t.Run("unusable body is unprocessable", func(t *testing.T) {
		f := newAPIFixture(t, false)
		f.fred.Serve("JTSJOL", "<html>\n<body>maintenance</body>\n</html>\n")

		rec, body := f.do(t, http.MethodPost, "/api/series/jtsjol/run", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "TRANSFORM_FAILED", body["error_code"])
		assert.FileExists(t, f.paths.RawPath("jtsjol"))
		assert.NoFileExists(t, f.paths.ProcessedPath("jtsjol"))
	})
}

func TestArchiveEndpoints(t *testing.T) {
	f := newAPIFixture(t, true)
	f.fred.Serve("JTSJOL", testutil.JOLTSCSV)

	rec, _ := f.do(t, http.MethodGet, "/api/series/jtsjol/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/series/jtsjol/run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodGet, "/api/series/jtsjol/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["runs"], 1)

	rec, body = f.do(t, http.MethodGet, "/api/series/jtsjol/observations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["count"])

	rec, body = f.do(t, http.MethodGet, "/api/series/jtsjol/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.TypeValidation, body["type"])
}

func TestArchiveEndpointsDisabled(t *testing.T) {
	f := newAPIFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/api/series/jtsjol/observations", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ARCHIVE_DISABLED", body["error_code"])

	rec, _ = f.do(t, http.MethodGet, "/api/series/jtsjol/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t, true)

	rec, body := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	svcs := body["services"].(map[string]interface{})
	assert.Equal(t, "ready", svcs["archive"].(map[string]interface{})["status"])
	assert.Equal(t, "ready", svcs["output"].(map[string]interface{})["status"])
}

func TestVersion(t *testing.T) {
	f := newAPIFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contracts.Version, body["version"])
	assert.Equal(t, "v1", body["api_version"])
}
