// Package mcp exposes the query engine over the Model Context Protocol
// so AI clients (Claude Code, Cursor) can search the index directly.
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/codelens-dev/codelens/internal/errors"
)

// MCP error codes. The -320xx range is ours; the rest are standard
// JSON-RPC codes.
const (
	ErrCodeNotFound = -32001
	ErrCodeProvider = -32002
	ErrCodeTimeout  = -32003
	ErrCodeStorage  = -32004

	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError builds an invalid-params error with a custom
// message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts engine errors to MCP errors. Structured errors map
// by category; the wire code is kept in the message so clients can still
// see it.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var engineErr *errors.Error
	if stderrors.As(err, &engineErr) {
		code := ErrCodeInternalError
		switch engineErr.Category {
		case errors.CategoryValidation:
			code = ErrCodeInvalidParams
		case errors.CategoryNotFound:
			code = ErrCodeNotFound
		case errors.CategoryProvider:
			code = ErrCodeProvider
		case errors.CategoryStorage:
			code = ErrCodeStorage
		}
		return &MCPError{Code: code, Message: engineErr.Error()}
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case stderrors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}
