package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected conditions callers check with errors.Is().
// Unexpected failures are wrapped in the service-specific error types below;
// the API layer maps both onto HTTP status codes.
var (
	// ErrInvalidStatusFilter indicates a queue inspection request named a
	// status outside the delivery state machine.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidStatusFilter = errors.New("invalid notification status filter")
)

// ActivityServiceError is a custom error type for activity recorder errors.
type ActivityServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ActivityServiceError.
func (e *ActivityServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("activity service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("activity service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ActivityServiceError) Unwrap() error {
	return e.Err
}

// NewActivityServiceError creates a new ActivityServiceError.
func NewActivityServiceError(operation, message string, err error) *ActivityServiceError {
	return &ActivityServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// NotificationServiceError is a custom error type for queue administration
// errors.
type NotificationServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for NotificationServiceError.
func (e *NotificationServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notification service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("notification service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *NotificationServiceError) Unwrap() error {
	return e.Err
}

// NewNotificationServiceError creates a new NotificationServiceError.
func NewNotificationServiceError(operation, message string, err error) *NotificationServiceError {
	return &NotificationServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
