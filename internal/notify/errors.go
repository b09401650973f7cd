package notify

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a delivery failure. The kind only informs logging and
// operator diagnosis: the worker retries transient and permanent failures
// identically up to the retry ceiling, because the stored record carries no
// error taxonomy field.
type ErrorKind string

// Failure classifications reported by senders.
const (
	// KindTransient marks failures worth retrying: network errors, timeouts,
	// upstream overload.
	KindTransient ErrorKind = "transient"

	// KindPermanent marks failures a retry will not fix: bad destination,
	// rejected credentials, unconfigured transport.
	KindPermanent ErrorKind = "permanent"
)

// DeliveryError is the failure a sender reports for one delivery attempt.
type DeliveryError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface for DeliveryError.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery error: %v", e.Kind, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable delivery failure.
func Transient(err error) *DeliveryError {
	return &DeliveryError{Kind: KindTransient, Err: err}
}

// Permanent wraps err as a delivery failure no retry will fix.
func Permanent(err error) *DeliveryError {
	return &DeliveryError{Kind: KindPermanent, Err: err}
}

// Transientf wraps a formatted error as a retryable delivery failure.
func Transientf(format string, args ...interface{}) *DeliveryError {
	return Transient(fmt.Errorf(format, args...))
}

// Permanentf wraps a formatted error as a delivery failure no retry will fix.
func Permanentf(format string, args ...interface{}) *DeliveryError {
	return Permanent(fmt.Errorf(format, args...))
}

// KindOf extracts the classification from a delivery error. Errors that are
// not DeliveryErrors count as transient, which errs on the side of retrying.
func KindOf(err error) ErrorKind {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Kind
	}
	return KindTransient
}
