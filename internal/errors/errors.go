package errors

import (
	"errors"
	"fmt"
)

// VariomesError is the structured error type for variomes.
type VariomesError struct {
	// Code is the unique error code (e.g., "ERR_303_SEARCH_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *VariomesError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VariomesError) Unwrap() error {
	return e.Cause
}

// Is matches another VariomesError by code.
func (e *VariomesError) Is(target error) bool {
	if t, ok := target.(*VariomesError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *VariomesError) WithDetail(key, value string) *VariomesError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *VariomesError) WithSuggestion(suggestion string) *VariomesError {
	e.Suggestion = suggestion
	return e
}

// New creates a new VariomesError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *VariomesError {
	return &VariomesError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a VariomesError from an existing error.
func Wrap(code string, err error) *VariomesError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *VariomesError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NetworkError creates a retryable network error.
func NetworkError(message string, cause error) *VariomesError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *VariomesError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *VariomesError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err carries a retryable VariomesError.
func IsRetryable(err error) bool {
	var ve *VariomesError
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// IsFatal reports whether err carries a fatal VariomesError.
func IsFatal(err error) bool {
	var ve *VariomesError
	if errors.As(err, &ve) {
		return ve.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" for foreign errors.
func GetCode(err error) string {
	var ve *VariomesError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
