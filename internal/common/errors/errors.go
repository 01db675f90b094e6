// Package errors provides standardized error handling for the alert dispatch core.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidReport ErrorCode = "INVALID_REPORT"

	ErrCodeDirectoryUnavailable ErrorCode = "DIRECTORY_UNAVAILABLE"

	ErrCodeTransientDeliveryFailure ErrorCode = "TRANSIENT_DELIVERY_FAILURE"
	ErrCodePermanentDeliveryFailure ErrorCode = "PERMANENT_DELIVERY_FAILURE"

	ErrCodeDedupStoreFailed ErrorCode = "DEDUP_STORE_FAILED"
	ErrCodeStoreFailed      ErrorCode = "STORE_FAILED"
	ErrCodeAlertNotFound    ErrorCode = "ALERT_NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidReportError creates a non-retryable intake validation error.
func NewInvalidReportError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidReport,
		Message:   "Hazard report failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDirectoryUnavailableError creates a retryable subscriber directory error.
// The whole fan-out fails; the caller may retry the resolve step.
func NewDirectoryUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDirectoryUnavailable,
		Message:   "Subscriber directory lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTransientDeliveryError creates a retryable delivery error (network,
// timeout, provider throttling or 5xx).
func NewTransientDeliveryError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientDeliveryFailure,
		Message:   "Delivery attempt failed, will retry",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewPermanentDeliveryError creates a non-retryable delivery error (rejected
// or malformed destination). The target is exhausted immediately.
func NewPermanentDeliveryError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePermanentDeliveryFailure,
		Message:   "Delivery rejected permanently",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDedupStoreFailedError creates a retryable dedup backend error.
func NewDedupStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDedupStoreFailed,
		Message:   "Dedup store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStoreFailedError creates a retryable persistence error.
func NewStoreFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreFailed,
		Message:   "Store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAlertNotFoundError creates a non-retryable lookup error.
func NewAlertNotFoundError(alertID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlertNotFound,
		Message:   "Alert not found",
		Details:   fmt.Sprintf("alertId: %s", alertID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// CodeOf extracts the ErrorCode from an error chain, or empty string.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// IsPermanentDelivery reports whether a delivery error must exhaust the target
// without further attempts.
func IsPermanentDelivery(err error) bool {
	return CodeOf(err) == ErrCodePermanentDeliveryFailure
}

// IsInvalidReport reports whether an intake payload was rejected.
func IsInvalidReport(err error) bool {
	return CodeOf(err) == ErrCodeInvalidReport
}

// IsDirectoryUnavailable reports whether a fan-out failed on the directory lookup.
func IsDirectoryUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeDirectoryUnavailable
}
