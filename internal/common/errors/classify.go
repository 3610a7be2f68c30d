// internal/common/errors/classify.go
package errors

import (
	"context"
	stderrors "errors"
	"time"
)

// Classify normalizes an arbitrary error into a StandardError so that
// callers record failures uniformly. Already-standard errors pass
// through unchanged.
func Classify(err error) *StandardError {
	if err == nil {
		return nil
	}
	var std *StandardError
	if stderrors.As(err, &std) {
		return std
	}
	return &StandardError{
		Code:      ErrCodeAggregationFailed,
		Message:   "Unclassified pipeline error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports whether the error is worth retrying upstream.
func IsRetryable(err error) bool {
	var std *StandardError
	if stderrors.As(err, &std) {
		return std.Retryable
	}
	return false
}

// IsTimeout reports whether the error stems from a deadline expiry,
// either a context cancellation or an explicit producer timeout.
func IsTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var std *StandardError
	if stderrors.As(err, &std) {
		return std.Code == ErrCodeProducerTimeout
	}
	return false
}
