package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "fredcli/internal/errors"
	"fredcli/internal/infrastructure"
	"fredcli/internal/shared/testutil"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func TestRequestIDGeneratesAndPropagates(t *testing.T) {
	var seenReqID, seenTraceID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenReqID = GetReqID(r.Context())
		seenTraceID = infrastructure.GetTraceID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/series", nil))

	require.NotEmpty(t, seenReqID)
	assert.Equal(t, seenReqID, seenTraceID)
	assert.Equal(t, seenReqID, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetReqID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestStructuredLogger(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := RequestID(StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/series/jtsjol/run", nil))

	record, ok := logs.FindMessage("request completed")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusBadGateway), record.Attrs["status"])
	assert.Equal(t, rec.Header().Get(RequestIDHeader), record.TraceID)
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.5, 1, logger)
	h := rl.Handler(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/series", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/series", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apierrors.TypeRateLimit, body["type"])
	assert.True(t, logs.ContainsMessage("rate limit exceeded"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestOTelMiddlewareRecordsRoute(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m := NewOTelMiddleware(&infrastructure.OTelProviders{Logger: logger}, nil)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/api/series/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/series/jtsjol", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", GetRealIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.1")
	assert.Equal(t, "192.0.2.1", GetRealIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", GetRealIP(req))
}

func TestGetRoutePatternFallsBackToPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/plain", nil)
	assert.Equal(t, "/plain", getRoutePattern(req))
}

func TestRealIPUsesForwardedHeader(t *testing.T) {
	var remote string
	h := RealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remote = r.RemoteAddr
	}))

	req := httptest.NewRequest(http.MethodGet, "/", strings.NewReader(""))
	req.Header.Set("X-Real-IP", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.9", remote)
}
