// Package fetcher downloads series CSV text from FRED.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"fredcli/internal/config"
	"fredcli/internal/infrastructure"
)

// ErrBodyTooLarge is returned when a response exceeds the configured size limit
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is returned for a non-2xx response
type StatusError struct {
	StatusCode  int
	Status      string
	BodyPreview string
}

func (e *StatusError) Error() string {
	if e.BodyPreview == "" {
		return fmt.Sprintf("unexpected HTTP status %s", e.Status)
	}
	return fmt.Sprintf("unexpected HTTP status %s: %s", e.Status, e.BodyPreview)
}

const statusPreviewLength = 200

// Client performs rate-limited GET requests
type Client struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	userAgent    string
	maxBodyBytes int64
	metrics      *infrastructure.PipelineMetrics
	logger       *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the instrumented default client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithMetrics records fetch metrics on m
func WithMetrics(m *infrastructure.PipelineMetrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a client from fetch configuration
func NewClient(cfg config.FetchConfig, opts ...Option) *Client {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       infrastructure.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads url and returns the body as text
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	return c.FetchSeries(ctx, "", url)
}

// FetchSeries is Fetch with the series name attached to logs and metrics
func (c *Client) FetchSeries(ctx context.Context, series, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/csv, */*")

	start := time.Now()
	c.logger.InfoContext(ctx, "Fetching series", slog.String("series", series), slog.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordFetch(ctx, series, 0, 0, time.Since(start))
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, readErr := c.readBody(resp.Body)
	c.metrics.RecordFetch(ctx, series, resp.StatusCode, int64(len(body)), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{
			StatusCode:  resp.StatusCode,
			Status:      resp.Status,
			BodyPreview: preview(body),
		}
	}
	if readErr != nil {
		return "", fmt.Errorf("read response from %s: %w", url, readErr)
	}

	c.logger.InfoContext(ctx, "Fetched series",
		slog.String("series", series),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	return string(body), nil
}

func (c *Client) readBody(r io.Reader) ([]byte, error) {
	if c.maxBodyBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, c.maxBodyBytes+1))
	if err != nil {
		return body, err
	}
	if int64(len(body)) > c.maxBodyBytes {
		return body[:c.maxBodyBytes], fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, c.maxBodyBytes)
	}
	return body, nil
}

func preview(body []byte) string {
	if len(body) > statusPreviewLength {
		body = body[:statusPreviewLength]
	}
	return string(body)
}
