// Package errors provides the structured error system for the genomics
// search core, with error codes, categories, and retryability hints.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a specific failure mode.
type ErrorCode string

const (
	// Request validation errors. These are raised before any I/O and
	// surfaced directly to the caller.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidFileType  ErrorCode = "INVALID_FILE_TYPE"
	ErrCodeInvalidLocation  ErrorCode = "INVALID_LOCATION"
	ErrCodeTooManyLocations ErrorCode = "TOO_MANY_LOCATIONS"
	ErrCodeInvalidToken     ErrorCode = "INVALID_TOKEN"

	// Location resolution errors. NO_USABLE_LOCATIONS is the only hard
	// failure the orchestrator reports after validation passes.
	ErrCodeNoUsableLocations ErrorCode = "NO_USABLE_LOCATIONS"

	// Backend errors. Always recovered locally: the failing backend
	// contributes zero results and a diagnostics note.
	ErrCodeBackendList    ErrorCode = "BACKEND_LIST"
	ErrCodeBackendTags    ErrorCode = "BACKEND_TAGS"
	ErrCodeBackendTimeout ErrorCode = "BACKEND_TIMEOUT"
	ErrCodeAccessDenied   ErrorCode = "ACCESS_DENIED"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeThrottled      ErrorCode = "THROTTLED"

	// Cache errors. Never user-visible.
	ErrCodeCacheFailure ErrorCode = "CACHE_FAILURE"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory is the general class of an error, mirroring the
// propagation policy: validation fails fast, resolution is the single
// orchestrator-level hard failure, backend and cache degrade.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryResolution ErrorCategory = "resolution"
	CategoryBackend    ErrorCategory = "backend"
	CategoryCache      ErrorCategory = "cache"
	CategoryInternal   ErrorCategory = "internal"
)

// SearchError is a structured error with code, category, and context.
type SearchError struct {
	Code      ErrorCode         `json:"code"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	Retryable bool `json:"retryable"`
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is matches on error code so callers can compare against sentinel
// SearchError values.
func (e *SearchError) Is(target error) bool {
	if se, ok := target.(*SearchError); ok {
		return e.Code == se.Code
	}
	return false
}

// String returns a detailed representation for logging.
func (e *SearchError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("SearchError{%s}", strings.Join(parts, ", "))
}

// New creates a SearchError with category and retryability derived from
// the code.
func New(code ErrorCode, message string) *SearchError {
	return &SearchError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Retryable: IsRetryableByDefault(code),
	}
}

// Newf creates a SearchError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *SearchError {
	return New(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category for an error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidFileType, ErrCodeInvalidLocation,
		ErrCodeTooManyLocations, ErrCodeInvalidToken:
		return CategoryValidation
	case ErrCodeNoUsableLocations:
		return CategoryResolution
	case ErrCodeBackendList, ErrCodeBackendTags, ErrCodeBackendTimeout,
		ErrCodeAccessDenied, ErrCodeNotFound, ErrCodeThrottled:
		return CategoryBackend
	case ErrCodeCacheFailure:
		return CategoryCache
	default:
		return CategoryInternal
	}
}

// GetCode extracts the error code from an error chain. Errors outside
// the taxonomy report as INTERNAL_ERROR.
func GetCode(err error) ErrorCode {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsRetryableByDefault reports whether a code represents a transient
// condition worth retrying inside a backend engine.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeThrottled:
		return true
	default:
		return false
	}
}

// WithContext adds contextual information.
func (e *SearchError) WithContext(key, value string) *SearchError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error.
func (e *SearchError) WithComponent(component string) *SearchError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *SearchError) WithOperation(operation string) *SearchError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause.
func (e *SearchError) WithCause(cause error) *SearchError {
	e.Cause = cause
	return e
}

// IsValidation reports whether err is a fail-fast validation error.
func IsValidation(err error) bool {
	return hasCategory(err, CategoryValidation)
}

// IsResolution reports whether err is the orchestrator-level hard
// failure (no usable locations).
func IsResolution(err error) bool {
	return hasCategory(err, CategoryResolution)
}

// IsBackend reports whether err is a recoverable backend failure.
func IsBackend(err error) bool {
	return hasCategory(err, CategoryBackend)
}

func hasCategory(err error, cat ErrorCategory) bool {
	se, ok := err.(*SearchError)
	return ok && se.Category == cat
}
