package errors

import (
	"fmt"
)

// LibraryError is the structured error type for endnote-mcp.
// It carries the error code, category, and severity needed to decide
// whether an operation aborts the run or is retried next time.
type LibraryError struct {
	// Code is the unique error code (e.g., "ERR_301_RECORD_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Ingest, Lookup, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation will be retried on the next run.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *LibraryError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LibraryError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *LibraryError) Is(target error) bool {
	if t, ok := target.(*LibraryError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *LibraryError) WithDetail(key, value string) *LibraryError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *LibraryError) WithSuggestion(suggestion string) *LibraryError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LibraryError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *LibraryError {
	return &LibraryError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new LibraryError with a formatted message.
func Newf(code string, format string, args ...any) *LibraryError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a LibraryError from an existing error.
func Wrap(code string, err error) *LibraryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ImportFailed creates a fatal import error.
func ImportFailed(message string, cause error) *LibraryError {
	return New(ErrCodeImportFailed, message, cause)
}

// RecordNotFound creates an error for an unknown record number.
func RecordNotFound(recNumber int) *LibraryError {
	return Newf(ErrCodeRecordNotFound, "reference #%d not found", recNumber)
}

// SemanticUnavailable creates the typed "no semantic index built" error.
func SemanticUnavailable() *LibraryError {
	return New(ErrCodeSemanticUnavailable,
		"semantic search unavailable: no embeddings generated", nil).
		WithSuggestion("run 'endnote-mcp index' with embeddings enabled")
}

// UnknownStyle creates an error for an unrecognized citation style.
func UnknownStyle(style string) *LibraryError {
	return Newf(ErrCodeUnknownStyle, "unknown citation style %q", style)
}

// InvalidQuery creates an error for a malformed retrieval request.
func InvalidQuery(message string) *LibraryError {
	return New(ErrCodeInvalidQuery, message, nil)
}

// PageOutOfRange creates an error for a page request outside the document.
func PageOutOfRange(page, total int) *LibraryError {
	return Newf(ErrCodePageOutOfRange, "page %d out of range (document has %d pages)", page, total)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if le, ok := err.(*LibraryError); ok {
		return le.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if le, ok := err.(*LibraryError); ok {
		return le.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a LibraryError.
// Returns empty string if not a LibraryError.
func GetCode(err error) string {
	if le, ok := err.(*LibraryError); ok {
		return le.Code
	}
	return ""
}
