// Package errors provides structured error handling for variomes.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (cache, status files, document store)
//   - 3XX: Network and backend errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
//
// Pipeline problems that must not abort a request are collected as Reports
// instead of being returned as errors.
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the request.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the operation.
	SeverityError Severity = "ERROR"
	// SeverityWarning degrades the result but processing continues.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeMappingMissing = "ERR_103_MAPPING_MISSING"

	// IO errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCacheRead       = "ERR_202_CACHE_READ"
	ErrCodeCacheWrite      = "ERR_203_CACHE_WRITE"
	ErrCodeStatusWrite     = "ERR_204_STATUS_WRITE"
	ErrCodeStoreFailed     = "ERR_205_STORE_FAILED"
	ErrCodeDocumentMissing = "ERR_206_DOCUMENT_MISSING"

	// Network and backend errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeSearchFailed       = "ERR_303_SEARCH_FAILED"
	ErrCodeTerminologyFailed  = "ERR_304_TERMINOLOGY_FAILED"
	ErrCodeSynVarFailed       = "ERR_305_SYNVAR_FAILED"
	ErrCodeCTFailed           = "ERR_306_CT_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty        = "ERR_402_QUERY_EMPTY"
	ErrCodeUnknownCollection = "ERR_403_UNKNOWN_COLLECTION"
	ErrCodeVariantFile       = "ERR_404_VARIANT_FILE"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeStillProcessing = "ERR_502_STILL_PROCESSING"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "1" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigNotFound, ErrCodeConfigInvalid, ErrCodeVariantFile, ErrCodeStoreFailed:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	switch categoryFromCode(code) {
	case CategoryNetwork, CategoryIO:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeCacheRead, ErrCodeStillProcessing:
		return true
	default:
		return false
	}
}
