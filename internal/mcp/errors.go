// Package mcp implements the Model Context Protocol (MCP) server that
// exposes the variomes ranking services as tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/variomes/internal/cache"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeBackendUnavailable indicates a search or terminology backend failed.
	ErrCodeBackendUnavailable = -32001

	// ErrCodeStillProcessing indicates a variant batch owned by another
	// process has not finished.
	ErrCodeStillProcessing = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a variant list does not exist.
	ErrCodeFileNotFound = -32004

	// ErrCodeRequestFailed indicates the service answered with a fatal report.
	ErrCodeRequestFailed = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrToolNotFound indicates the requested tool does not exist.
var ErrToolNotFound = errors.New("tool not found")

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case errors.Is(err, cache.ErrStillProcessing):
		return &MCPError{
			Code:    ErrCodeStillProcessing,
			Message: "The batch is still being processed. Check batch_status later.",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Tool not found.",
		}
	}

	var ve *verrors.VariomesError
	if errors.As(err, &ve) {
		return mapVariomesError(ve)
	}
	return &MCPError{
		Code:    ErrCodeInternalError,
		Message: "Internal server error.",
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewRequestFailedError reports a fatal service answer.
func NewRequestFailedError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeRequestFailed,
		Message: msg,
	}
}

func mapVariomesError(ve *verrors.VariomesError) *MCPError {
	message := ve.Message
	if ve.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ve.Message, ve.Suggestion)
	}

	switch ve.Category {
	case verrors.CategoryIO:
		if ve.Code == verrors.ErrCodeFileNotFound {
			return &MCPError{Code: ErrCodeFileNotFound, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	case verrors.CategoryNetwork:
		if ve.Code == verrors.ErrCodeNetworkTimeout {
			return &MCPError{Code: ErrCodeTimeout, Message: message}
		}
		return &MCPError{Code: ErrCodeBackendUnavailable, Message: message}
	case verrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
