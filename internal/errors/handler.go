package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/render"

	"fredcli/internal/config"
	"fredcli/internal/infrastructure"
	"fredcli/internal/operations"
	"fredcli/internal/services"
	"fredcli/internal/storage"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if traceID != "" {
		problem.WithExtension("trace_id", traceID)
	}
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ToAPIError maps domain errors to their API representation
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var opErr *operations.OperationError
	if errors.As(err, &opErr) {
		switch opErr.Type {
		case operations.ErrorTypeFetch:
			return UpstreamError(err)
		case operations.ErrorTypeTransform:
			if len(opErr.Context) == 0 {
				return TransformError(err, nil)
			}
			return TransformError(err, opErr.Context)
		default:
			return NewWithDetails(http.StatusInternalServerError, "RUN_FAILED",
				fmt.Sprintf("Series run failed at step %s", opErr.Step), err.Error())
		}
	}

	switch {
	case errors.Is(err, config.ErrUnknownSeries):
		return New(http.StatusNotFound, "SERIES_NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrNoRuns), errors.Is(err, storage.ErrNotFound):
		return New(http.StatusNotFound, "NO_RUNS", err.Error())
	case errors.Is(err, services.ErrInvalidCutoff):
		return ErrValidation("cutoff", err.Error())
	case errors.Is(err, services.ErrArchiveDisabled):
		return New(http.StatusServiceUnavailable, "ARCHIVE_DISABLED", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return New(http.StatusGatewayTimeout, "TIMEOUT", "The request took too long to process and was cancelled")
	}

	return ErrInternalServer
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	return ProblemFromAPIError(ToAPIError(err), r.URL.Path)
}

// ProblemFromAPIError converts APIError to ProblemDetails
func ProblemFromAPIError(apiErr *APIError, instance string) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST":
		problemType = TypeValidation
	case "NOT_FOUND", "SERIES_NOT_FOUND", "NO_RUNS":
		problemType = TypeNotFound
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE", "ARCHIVE_DISABLED":
		problemType = TypeServiceDown
	case "TIMEOUT":
		problemType = TypeTimeout
	case "UPSTREAM_FETCH_FAILED":
		problemType = TypeUpstream
	case "TRANSFORM_FAILED":
		problemType = TypeTransform
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		instance,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	traceID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", traceID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeInternal,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))

	render.Render(w, r, problem)
}

// RecoveryMiddleware provides panic recovery with proper error responses
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					handler.HandlePanic(w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// JSON helper for consistent JSON responses
func (h *ErrorHandler) JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
