package message

import (
	"errors"

	"github.com/brianly1003/stockchat/internal/domain"
)

// Standard JSON-RPC 2.0 error codes.
const (
	// ParseError indicates invalid JSON was received.
	ParseError = -32700

	// InvalidRequest indicates the JSON is not a valid Request object.
	InvalidRequest = -32600

	// MethodNotFound indicates the method does not exist.
	MethodNotFound = -32601

	// InvalidParams indicates invalid method parameters.
	InvalidParams = -32602

	// InternalError indicates an internal JSON-RPC error.
	InternalError = -32603
)

// Hub error codes (-32001 to -32010).
const (
	MessageEmpty   = -32001
	MessageTooLong = -32002
	SendFailed     = -32003
)

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new JSON-RPC error.
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// ErrMethodNotFound creates a method not found error.
func ErrMethodNotFound(method string) *Error {
	return NewError(MethodNotFound, "method not found: "+method)
}

// ErrInvalidParams creates an invalid params error.
func ErrInvalidParams(detail string) *Error {
	return NewError(InvalidParams, "invalid params: "+detail)
}

// ErrParseError creates a parse error.
func ErrParseError() *Error {
	return NewError(ParseError, "parse error")
}

// FromClientError maps an error returned by a hub operation to a wire error.
// Only a *domain.ClientError message is shown to the client; anything else
// becomes the generic send failure.
func FromClientError(err error) *Error {
	var ce *domain.ClientError
	if !errors.As(err, &ce) {
		return NewError(SendFailed, domain.MsgSendFailed)
	}

	switch ce.Code {
	case domain.ErrCodeEmptyMessage:
		return NewError(MessageEmpty, ce.Message)
	case domain.ErrCodeTooLong:
		return NewError(MessageTooLong, ce.Message)
	default:
		return NewError(SendFailed, ce.Message)
	}
}
