// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrMessageTooLong      = errors.New("message exceeds maximum length")
	ErrDuplicateConnection = errors.New("connection already registered on channel")
	ErrUnknownConnection   = errors.New("connection is not registered on channel")
	ErrReceiveNotSupported = errors.New("channel does not accept client messages")
	ErrSubscriberClosed    = errors.New("subscriber is closed")
	ErrSubscriberSlow      = errors.New("subscriber send buffer is full")
	ErrAlreadyDisposed     = errors.New("publisher has been disposed")
	ErrPublisherStopping   = errors.New("publisher is still stopping")
)

// Error codes for client responses.
const (
	ErrCodeEmptyMessage = "EMPTY_MESSAGE"
	ErrCodeTooLong      = "MESSAGE_TOO_LONG"
	ErrCodeSendFailed   = "SEND_FAILED"
)

// Client-visible messages. Validation messages are shown verbatim in the chat UI.
const (
	MsgEmptyMessage = "Message cannot be empty."
	MsgSendFailed   = "Failed to send message. Please try again."
)

// ClientError is a recoverable error reported back to the client that caused it.
// The connection stays open. Err is kept for server-side logging only.
type ClientError struct {
	Code    string
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError.
func NewClientError(code, message string, err error) *ClientError {
	return &ClientError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// TooLongMessage returns the client-visible message for an oversized body.
func TooLongMessage(max int) string {
	return fmt.Sprintf("Message too long (max %d characters).", max)
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
