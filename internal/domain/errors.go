// Package domain defines the entities, request status values, and errors
// shared by the dbadmin client stores.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found, either on the server or
// in a client-side cache.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate table name).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// messager is implemented by transport errors that carry a server-provided
// human readable message.
type messager interface {
	UserMessage() string
}

// ErrorMessage returns the text stored in a failure RequestStatus for err.
// Errors that carry a server message (JSON-RPC errors, HTTP errors with a
// JSON body) contribute that message; everything else uses err.Error().
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var m messager
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}
