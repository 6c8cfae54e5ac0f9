// Package errors provides standardized error handling for the oracle pipeline.
package errors

import (
	goerrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeAIUnavailable     ErrorCode = "AI_UNAVAILABLE"
	ErrCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrCodeLedgerRejected    ErrorCode = "LEDGER_REJECTED"
	ErrCodeLedgerUnavailable ErrorCode = "LEDGER_UNAVAILABLE"
	ErrCodeDeadlineExceeded  ErrorCode = "DEADLINE_EXCEEDED"
	ErrCodeStoreWriteFailed  ErrorCode = "STORE_WRITE_FAILED"
	ErrCodeStoreReadFailed   ErrorCode = "STORE_READ_FAILED"

	ErrCodeRequestNotFound  ErrorCode = "REQUEST_NOT_FOUND"
	ErrCodeProposalNotFound ErrorCode = "PROPOSAL_NOT_FOUND"
	ErrCodeAnalysisInFlight ErrorCode = "ANALYSIS_IN_FLIGHT"
	ErrCodeQueueFull        ErrorCode = "QUEUE_FULL"
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

// NewAIUnavailableError creates a retryable AI backend error. Callers
// normally mask this with the fallback analysis rather than surfacing it.
func NewAIUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAIUnavailable,
		Message:   "AI analysis backend unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLedgerRejectedError creates a non-retryable ledger rejection error.
func NewLedgerRejectedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerRejected,
		Message:   "Ledger rejected the attestation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLedgerUnavailableError creates a retryable ledger transport error.
func NewLedgerUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerUnavailable,
		Message:   "Ledger gateway unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeadlineExceededError creates an error for a confirmation wait that ran
// out. The submission may still land on the ledger after this fires.
func NewDeadlineExceededError(txHash string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeadlineExceeded,
		Message:   "Ledger confirmation deadline exceeded",
		Details:   fmt.Sprintf("transactionHash: %s", txHash),
		Retryable: false,
		Metadata:  map[string]interface{}{"transactionHash": txHash},
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreWriteFailedError creates a retryable store write error. The
// coordinator logs this and keeps the ledger result.
func NewStoreWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreWriteFailed,
		Message:   "Proposal store write-back failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreReadFailedError creates a retryable store read error.
func NewStoreReadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreReadFailed,
		Message:   "Proposal store read failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestNotFoundError creates a non-retryable lookup error.
func NewRequestNotFoundError(requestID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestNotFound,
		Message:   "Analysis request not found",
		Details:   fmt.Sprintf("requestId: %s", requestID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProposalNotFoundError creates a non-retryable lookup error.
func NewProposalNotFoundError(proposalID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeProposalNotFound,
		Message:   "Proposal not found",
		Details:   fmt.Sprintf("proposalId: %d", proposalID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisInFlightError creates a non-retryable duplicate request error.
func NewAnalysisInFlightError(proposalID int64, requestID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisInFlight,
		Message:   "Analysis already in flight for proposal",
		Details:   fmt.Sprintf("proposalId: %d, activeRequestId: %s", proposalID, requestID),
		Retryable: false,
		Metadata:  map[string]interface{}{"activeRequestId": requestID},
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueFullError creates a retryable backpressure error.
func NewQueueFullError() *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueFull,
		Message:   "Background analysis queue is full",
		Details:   "try again later",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf extracts the ErrorCode from an error chain, or "" if the chain
// carries no StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if goerrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if goerrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}
