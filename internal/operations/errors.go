package operations

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failed run
type ErrorType string

const (
	ErrorTypeFetch        ErrorType = "fetch"
	ErrorTypeTransform    ErrorType = "transform"
	ErrorTypePersist      ErrorType = "persist"
	ErrorTypeCancellation ErrorType = "cancelled"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeInternal     ErrorType = "internal"
)

// OperationError is the error returned by a failed step
type OperationError struct {
	Type    ErrorType              `json:"type"`
	Step    string                 `json:"step,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewFetchError reports a failed download
func NewFetchError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeFetch,
		Step:    step,
		Message: "download failed",
		Cause:   cause,
	}
}

// NewTransformError reports a download that could not be turned into the processed table
func NewTransformError(step string, cause error, context map[string]interface{}) *OperationError {
	return &OperationError{
		Type:    ErrorTypeTransform,
		Step:    step,
		Message: "transform failed",
		Cause:   cause,
		Context: context,
	}
}

// NewPersistError reports a file or archive write failure
func NewPersistError(step, target string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypePersist,
		Step:    step,
		Message: fmt.Sprintf("cannot write %s", target),
		Cause:   cause,
		Context: map[string]interface{}{"target": target},
	}
}

// NewCancellationError reports a run stopped by its context
func NewCancellationError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		Step:    step,
		Message: "operation was cancelled",
		Cause:   cause,
	}
}

// NewValidationError reports a series definition the pipeline cannot run
func NewValidationError(step, message string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeValidation,
		Step:    step,
		Message: message,
	}
}

// GetErrorType returns the type of the first OperationError in err's chain
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err carries an OperationError of type t
func IsType(err error, t ErrorType) bool {
	return err != nil && GetErrorType(err) == t
}

// ExitCode maps a run result to the process exit status: 0 on success, 1 on any failure
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
