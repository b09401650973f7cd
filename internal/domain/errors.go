package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidChannel is returned when a notification channel is not one of
	// the supported transports.
	ErrInvalidChannel = errors.New("invalid notification channel")

	// ErrInvalidNotificationStatus is returned when a notification status is
	// not part of the delivery state machine.
	ErrInvalidNotificationStatus = errors.New("invalid notification status")

	// ErrInvalidActivityAction is returned when an activity action code is
	// not recognized.
	ErrInvalidActivityAction = errors.New("invalid activity action")
)
