package errors

import (
	"errors"
	"fmt"
)

// ScryError is the structured error type for scry.
// It carries a stable code plus context for logging and CLI presentation.
type ScryError struct {
	// Code is the unique error code (e.g., "ERR_404_QUERY_EMPTY").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ScryError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScryError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, ErrQueryEmpty) works for any
// ScryError carrying that code.
func (e *ScryError) Is(target error) bool {
	if t, ok := target.(*ScryError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ScryError) WithDetail(key, value string) *ScryError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ScryError) WithSuggestion(suggestion string) *ScryError {
	e.Suggestion = suggestion
	return e
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	ErrQueryEmpty          = &ScryError{Code: ErrCodeQueryEmpty}
	ErrSourceUnavailable   = &ScryError{Code: ErrCodeSourceUnavailable}
	ErrEmbeddingFailed     = &ScryError{Code: ErrCodeEmbeddingFailed}
	ErrCorruptIndex        = &ScryError{Code: ErrCodeCorruptIndex}
	ErrGranularityMismatch = &ScryError{Code: ErrCodeGranularityMismatch}
	ErrStoreLocked         = &ScryError{Code: ErrCodeStoreLocked}
	ErrResultNotFound      = &ScryError{Code: ErrCodeResultNotFound}
)

// New creates a new ScryError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ScryError {
	return &ScryError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ScryError from an existing error.
func Wrap(code string, err error) *ScryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ScryError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ScryError {
	return New(ErrCodeInvalidInput, message, cause)
}

// SourceUnavailable reports that a ranking source cannot serve queries.
func SourceUnavailable(source string, cause error) *ScryError {
	return New(ErrCodeSourceUnavailable, fmt.Sprintf("source %s unavailable", source), cause).
		WithDetail("source", source)
}

// EmbeddingError reports a failed inference call inside a source.
func EmbeddingError(source string, cause error) *ScryError {
	return New(ErrCodeEmbeddingFailed, fmt.Sprintf("embedding failed in %s", source), cause).
		WithDetail("source", source)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ScryError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the first ScryError in the chain.
func as(err error) (*ScryError, bool) {
	var se *ScryError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if se, ok := as(err); ok {
		return se.Retryable
	}
	return false
}

// GetCode extracts the error code from the first ScryError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if se, ok := as(err); ok {
		return se.Code
	}
	return ""
}

// IsCode reports whether any ScryError in the chain carries code.
func IsCode(err error, code string) bool {
	return errors.Is(err, &ScryError{Code: code})
}

// GetCategory extracts the category from the first ScryError in the chain.
func GetCategory(err error) Category {
	if se, ok := as(err); ok {
		return se.Category
	}
	return ""
}

// IsSourceFailure reports whether err should omit a source from fusion
// rather than fail the query.
func IsSourceFailure(err error) bool {
	switch GetCode(err) {
	case ErrCodeSourceUnavailable, ErrCodeCorruptIndex, ErrCodeEmbeddingFailed,
		ErrCodeGranularityMismatch, ErrCodeStoreNotFound, ErrCodeStoreClosed:
		return true
	}
	return false
}
