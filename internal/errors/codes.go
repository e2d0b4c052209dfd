// Package errors provides structured error handling for scry.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store errors (index files, databases)
//   - 4XX: Query validation errors
//   - 5XX: Internal errors (inference, fusion)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates a backing store could not be read.
	CategoryStore Category = "STORE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityError indicates the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreNotFound       = "ERR_201_STORE_NOT_FOUND"
	ErrCodeStoreLocked         = "ERR_202_STORE_LOCKED"
	ErrCodeCorruptIndex        = "ERR_205_CORRUPT_INDEX"
	ErrCodeSourceUnavailable   = "ERR_206_SOURCE_UNAVAILABLE"
	ErrCodeStoreClosed         = "ERR_207_STORE_CLOSED"
	ErrCodeGranularityMismatch = "ERR_208_GRANULARITY_MISMATCH"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidMode       = "ERR_405_INVALID_MODE"
	ErrCodeInvalidRank       = "ERR_406_INVALID_RANK"
	ErrCodeResultNotFound    = "ERR_407_RESULT_NOT_FOUND"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Source-level failures degrade a query but never fail it.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSourceUnavailable, ErrCodeCorruptIndex, ErrCodeEmbeddingFailed,
		ErrCodeGranularityMismatch, ErrCodeStoreNotFound:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStoreLocked:
		return true
	default:
		return false
	}
}
