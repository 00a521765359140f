package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "fredcli/internal/errors"
)

const defaultMaxBodySize = 64 * 1024

// ValidationMiddleware provides request validation using struct tags
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewValidationMiddleware creates a new validation middleware
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  defaultMaxBodySize,
	}
}

// ValidateRequest rejects oversized or malformed JSON bodies before they reach a handler
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > m.maxBodySize {
			m.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE",
				"Request body exceeds maximum allowed size",
				map[string]interface{}{
					"max_size": m.maxBodySize,
					"size":     r.ContentLength,
				},
			))
			return
		}

		if r.Body != nil && r.Body != http.NoBody {
			body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodySize+1))
			if err != nil {
				m.logger.ErrorContext(r.Context(), "failed to read request body",
					slog.String("error", err.Error()),
				)
				m.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
				return
			}
			if int64(len(body)) > m.maxBodySize {
				m.errorHandler.HandleError(w, r, apierrors.New(
					http.StatusRequestEntityTooLarge,
					"PAYLOAD_TOO_LARGE",
					"Request body exceeds maximum allowed size",
				))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))

			if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
				m.errorHandler.HandleError(w, r, apierrors.New(
					http.StatusBadRequest,
					"INVALID_JSON",
					"Request body contains invalid JSON",
				))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// DecodeAndValidate decodes an optional JSON body into dst and validates it.
// An empty body leaves dst untouched.
func (m *ValidationMiddleware) DecodeAndValidate(r *http.Request, dst interface{}) error {
	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodySize))
		if err != nil {
			return apierrors.InvalidRequestWithError(err)
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := render.DecodeJSON(bytes.NewReader(body), dst); err != nil {
				return apierrors.InvalidRequestWithError(err)
			}
		}
	}
	return m.ValidateStruct(dst)
}

// ValidateStruct validates a struct and returns validation errors
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	validationErrors := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: m.formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(validationErrors)
}

// formatValidationError formats validation error messages
func (m *ValidationMiddleware) formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s form", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// QueryParamValidator validates query parameters
type QueryParamValidator struct {
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{errorHandler: errorHandler}
}

// ValidateInt validates an integer query parameter, writing the error response when it fails
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max int, defaultValue int) (int, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param)))
		return 0, false
	}

	if intValue < min || intValue > max {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}

	return intValue, true
}
