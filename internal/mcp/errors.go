// Package mcp exposes the library index to AI clients over the Model
// Context Protocol: search tools, citation formatting, attachment page
// reads, and index diagnostics.
package mcp

import (
	"context"
	"errors"
	"fmt"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexNotReady indicates the library has not been indexed.
	ErrCodeIndexNotReady = -32001

	// ErrCodeSemanticUnavailable indicates no embeddings exist.
	ErrCodeSemanticUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeNotFound indicates an unknown record or attachment.
	ErrCodeNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is a protocol-level error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error with a custom
// message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts internal errors to protocol errors. Validation
// failures become invalid-params; missing records and attachments get
// a dedicated not-found code so clients can tell them from crashes.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var le *enerr.LibraryError
	if errors.As(err, &le) {
		return mapLibraryError(le)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
}

func mapLibraryError(le *enerr.LibraryError) *MCPError {
	message := le.Message
	if le.Suggestion != "" {
		message = fmt.Sprintf("%s %s", le.Message, le.Suggestion)
	}

	switch le.Code {
	case enerr.ErrCodeRecordNotFound, enerr.ErrCodeAttachmentNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case enerr.ErrCodeSemanticUnavailable:
		return &MCPError{Code: ErrCodeSemanticUnavailable, Message: message}
	case enerr.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexNotReady, Message: message}
	}

	switch le.Category {
	case enerr.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case enerr.CategoryConfig:
		return &MCPError{Code: ErrCodeIndexNotReady, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
