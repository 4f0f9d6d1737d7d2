// Package errors provides structured error handling for endnote-mcp.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Import and extraction errors
//   - 3XX: Lookup and availability errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIngest indicates import and extraction errors.
	CategoryIngest Category = "INGEST"
	// CategoryLookup indicates missing records or unavailable capabilities.
	CategoryLookup Category = "LOOKUP"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort the run.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigMissing = "ERR_101_CONFIG_MISSING"
	ErrCodeConfigInvalid = "ERR_102_CONFIG_INVALID"

	// Import and extraction errors (200-299)
	ErrCodeImportFailed     = "ERR_201_IMPORT_FAILED"
	ErrCodeExtractionFailed = "ERR_202_EXTRACTION_FAILED"
	ErrCodeCorruptIndex     = "ERR_203_CORRUPT_INDEX"

	// Lookup and availability errors (300-399)
	ErrCodeRecordNotFound      = "ERR_301_RECORD_NOT_FOUND"
	ErrCodeSemanticUnavailable = "ERR_302_SEMANTIC_UNAVAILABLE"
	ErrCodeAttachmentNotFound  = "ERR_303_ATTACHMENT_NOT_FOUND"

	// Validation errors (400-499)
	ErrCodeUnknownStyle   = "ERR_401_UNKNOWN_STYLE"
	ErrCodeInvalidQuery   = "ERR_402_INVALID_QUERY"
	ErrCodePageOutOfRange = "ERR_403_PAGE_OUT_OF_RANGE"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeStoreFailed     = "ERR_503_STORE_FAILED"
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
		return CategoryIngest
	case '3':
		return CategoryLookup
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigMissing, ErrCodeImportFailed, ErrCodeCorruptIndex:
		// These abort the whole run.
		return SeverityFatal
	case ErrCodeExtractionFailed:
		// Per-attachment, the record is retried on the next incremental run.
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeExtractionFailed, ErrCodeEmbeddingFailed:
		return true
	default:
		return false
	}
}
