// Package errors provides standardized error handling for the
// intelligence pipeline.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeProducerTimeout ErrorCode = "PRODUCER_TIMEOUT"
	ErrCodeProducerFailed  ErrorCode = "PRODUCER_FAILED"

	ErrCodeCacheReadFailed  ErrorCode = "CACHE_READ_FAILED"
	ErrCodeCacheWriteFailed ErrorCode = "CACHE_WRITE_FAILED"

	ErrCodeEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"

	ErrCodeSnapshotBuildFailed   ErrorCode = "SNAPSHOT_BUILD_FAILED"
	ErrCodeSnapshotExpired       ErrorCode = "SNAPSHOT_EXPIRED"
	ErrCodeSnapshotOversized     ErrorCode = "SNAPSHOT_OVERSIZED"
	ErrCodeTenantMismatch        ErrorCode = "TENANT_MISMATCH"
	ErrCodeInvalidHandoffInput   ErrorCode = "INVALID_HANDOFF_INPUT"
	ErrCodeAggregationFailed     ErrorCode = "AGGREGATION_FAILED"
	ErrCodePreferenceStoreFailed ErrorCode = "PREFERENCE_STORE_FAILED"
	ErrCodeSearchQueryFailed     ErrorCode = "SEARCH_QUERY_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewProducerTimeoutError records a producer call exceeding its bound.
// Recovered locally by neutral substitution, so never retryable here.
func NewProducerTimeoutError(producer string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeProducerTimeout,
		Message:   "Producer call exceeded timeout",
		Details:   fmt.Sprintf("producer: %s, timeout: %s", producer, timeout),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProducerFailedError records a producer raising instead of returning.
func NewProducerFailedError(producer string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProducerFailed,
		Message:   "Producer call failed",
		Details:   fmt.Sprintf("producer: %s, error: %s", producer, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheReadFailedError creates a retryable cache read error.
func NewCacheReadFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheReadFailed,
		Message:   "Cache read error",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheWriteFailedError creates a retryable cache write error.
func NewCacheWriteFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheWriteFailed,
		Message:   "Cache write error",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEventPublishFailedError creates a swallowed event publish error.
func NewEventPublishFailedError(eventType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventPublishFailed,
		Message:   "Event publish failed",
		Details:   fmt.Sprintf("eventType: %s, error: %s", eventType, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSnapshotBuildFailedError creates a non-retryable snapshot construction error.
func NewSnapshotBuildFailedError(leadID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSnapshotBuildFailed,
		Message:   "Intelligence snapshot construction failed",
		Details:   fmt.Sprintf("leadId: %s, error: %s", leadID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTenantMismatchError records a cross-tenant retrieval attempt.
func NewTenantMismatchError(requested, stored string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTenantMismatch,
		Message:   "Location mismatch on retrieval",
		Details:   fmt.Sprintf("requested: %s, stored: %s", requested, stored),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidHandoffInputError creates a non-retryable payload validation error.
func NewInvalidHandoffInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidHandoffInput,
		Message:   "Handoff input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable listing search error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Listing search query error",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferenceStoreFailedError creates a retryable preference store error.
func NewPreferenceStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePreferenceStoreFailed,
		Message:   "Preference store query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
