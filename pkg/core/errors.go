package core

import (
	"errors"
	"fmt"
)

// Error represents a drive-core error.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	SessionID string    `json:"session_id,omitempty"`
	Op        string    `json:"op,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session: %s)", e.Type, e.Message, e.SessionID)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrAlreadyExists is returned by Create when the session id is taken.
	ErrAlreadyExists ErrorType = "already_exists"
	// ErrNotFound is returned by Update when no record exists for the id.
	ErrNotFound ErrorType = "not_found"
	// ErrVersionConflict is returned when a compare-and-swap update loses
	// to a concurrent writer on the same session.
	ErrVersionConflict ErrorType = "version_conflict"
	// ErrValidation is returned for structurally invalid state values.
	ErrValidation ErrorType = "validation_error"
	// ErrStorage wraps transport or connectivity failures from the cache.
	ErrStorage ErrorType = "storage_error"
)

// NewAlreadyExistsError creates an already-exists error for a session.
func NewAlreadyExistsError(sessionID string) *Error {
	return &Error{
		Type:      ErrAlreadyExists,
		Message:   "session already exists",
		SessionID: sessionID,
	}
}

// NewNotFoundError creates a not-found error for a session.
func NewNotFoundError(sessionID string) *Error {
	return &Error{
		Type:      ErrNotFound,
		Message:   "session not found",
		SessionID: sessionID,
	}
}

// NewVersionConflictError creates a version-conflict error for a session.
func NewVersionConflictError(sessionID string) *Error {
	return &Error{
		Type:      ErrVersionConflict,
		Message:   "session modified by a concurrent writer",
		SessionID: sessionID,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
	}
}

// NewStorageError wraps an underlying cache failure.
func NewStorageError(op string, underlying error) *Error {
	return &Error{
		Type:    ErrStorage,
		Message: fmt.Sprintf("%s: %v", op, underlying),
		Op:      op,
		Cause:   underlying,
	}
}

// IsType reports whether err is a core Error of the given type.
func IsType(err error, t ErrorType) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}

// IsRetryable returns true if the error is retryable. Version conflicts
// are retryable by reloading the session and reapplying the transition.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrVersionConflict, ErrStorage:
		return true
	default:
		return false
	}
}
