// internal/common/errors/errors.go

// Package errors provides standardized error handling for the round
// application submission pipeline.
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

// Configuration / lookup errors (require a reload, never retried automatically)
const (
	ErrCodeRoundNotFound          ErrorCode = "ROUND_NOT_FOUND"
	ErrCodeRoundMetadataMissing   ErrorCode = "ROUND_METADATA_MISSING"
	ErrCodeProjectQuestionMissing ErrorCode = "PROJECT_QUESTION_MISSING"
	ErrCodeProjectMetadataMissing ErrorCode = "PROJECT_METADATA_MISSING"
	ErrCodeChainNotConnected      ErrorCode = "CHAIN_NOT_CONNECTED"

	ErrCodeEncryptionFailed     ErrorCode = "ENCRYPTION_FAILED"
	ErrCodeEncryptionAuthFailed ErrorCode = "ENCRYPTION_AUTH_FAILED"

	ErrCodeSignatureRejected ErrorCode = "SIGNATURE_REJECTED"

	ErrCodeMetadataUploadFailed ErrorCode = "METADATA_UPLOAD_FAILED"
	ErrCodeMetadataFetchFailed  ErrorCode = "METADATA_FETCH_FAILED"

	ErrCodeTransactionFailed       ErrorCode = "TRANSACTION_FAILED"
	ErrCodeTransactionReverted     ErrorCode = "TRANSACTION_REVERTED"
	ErrCodeAnchorResolutionFailed  ErrorCode = "ANCHOR_RESOLUTION_FAILED"
	ErrCodeIndexingTimeout         ErrorCode = "INDEXING_TIMEOUT"
	ErrCodeIndexerQueryFailed      ErrorCode = "INDEXER_QUERY_FAILED"
	ErrCodeSubmissionInFlight      ErrorCode = "SUBMISSION_IN_FLIGHT"
	ErrCodeAnswerValidationFailed  ErrorCode = "ANSWER_VALIDATION_FAILED"
	ErrCodeJournalWriteFailed      ErrorCode = "JOURNAL_WRITE_FAILED"
	ErrCodeNotificationSendFailed  ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeDuplicateApplication    ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeDatabaseConnectionError ErrorCode = "DATABASE_CONNECTION_FAILED"
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

// WithMetadata attaches contextual tags (round address, project id) to the
// error so the tracking collector can segment failures.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewRoundNotFoundError creates a non-retryable round lookup error.
func NewRoundNotFoundError(roundID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRoundNotFound,
		Message:   "Round not found in round store",
		Details:   fmt.Sprintf("roundId: %s", roundID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRoundMetadataMissingError creates a non-retryable schema error.
func NewRoundMetadataMissingError(roundID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRoundMetadataMissing,
		Message:   "Round has no application metadata",
		Details:   fmt.Sprintf("roundId: %s", roundID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProjectQuestionMissingError creates a non-retryable schema error.
func NewProjectQuestionMissingError(roundID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProjectQuestionMissing,
		Message:   "Application schema has no project question",
		Details:   fmt.Sprintf("roundId: %s", roundID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProjectMetadataMissingError creates a non-retryable project lookup error.
func NewProjectMetadataMissingError(projectID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProjectMetadataMissing,
		Message:   "Project metadata not loaded",
		Details:   fmt.Sprintf("projectId: %s", projectID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChainNotConnectedError creates a non-retryable wallet state error.
func NewChainNotConnectedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeChainNotConnected,
		Message:   "No active chain for the wallet session",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEncryptionFailedError creates a retryable encryption network error.
func NewEncryptionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEncryptionFailed,
		Message:   "Answer encryption failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEncryptionAuthFailedError creates a retryable encryption handshake error.
func NewEncryptionAuthFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEncryptionAuthFailed,
		Message:   "Encryption network authentication failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSignatureRejectedError creates a retryable signing error (the user can
// simply approve the prompt on retry).
func NewSignatureRejectedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSignatureRejected,
		Message:   "Wallet signature rejected or failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMetadataUploadFailedError creates a retryable pinning error.
func NewMetadataUploadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMetadataUploadFailed,
		Message:   "Metadata pinning failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMetadataFetchFailedError creates a retryable content fetch error.
func NewMetadataFetchFailedError(cid string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMetadataFetchFailed,
		Message:   "Metadata fetch failed",
		Details:   fmt.Sprintf("cid: %s, error: %s", cid, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransactionFailedError creates a retryable transaction submission error.
func NewTransactionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionFailed,
		Message:   "Transaction submission failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransactionRevertedError creates a retryable transaction status error.
func NewTransactionRevertedError(txHash string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionReverted,
		Message:   "Transaction reverted on chain",
		Details:   fmt.Sprintf("txHash: %s", txHash),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnchorResolutionFailedError creates a retryable anchor lookup error.
func NewAnchorResolutionFailedError(projectID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnchorResolutionFailed,
		Message:   "Project anchor could not be resolved",
		Details:   fmt.Sprintf("projectId: %s", projectID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexingTimeoutError creates a retryable indexer sync error. The
// underlying transaction may have succeeded on chain; callers must treat
// this as distinct from a transaction failure.
func NewIndexingTimeoutError(txHash string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexingTimeout,
		Message:   "Indexer did not observe the transaction in time",
		Details:   fmt.Sprintf("txHash: %s", txHash),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexerQueryFailedError creates a retryable indexer query error.
func NewIndexerQueryFailedError(query string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexerQueryFailed,
		Message:   "Indexer query failed",
		Details:   fmt.Sprintf("query: %s, error: %s", query, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionInFlightError creates a non-retryable concurrency guard error.
func NewSubmissionInFlightError(roundID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionInFlight,
		Message:   "A submission for this round is already in progress",
		Details:   fmt.Sprintf("roundId: %s", roundID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnswerValidationFailedError creates a non-retryable form error.
func NewAnswerValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnswerValidationFailed,
		Message:   "Form answers failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewJournalWriteFailedError creates a retryable journal error.
func NewJournalWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeJournalWriteFailed,
		Message:   "Submission journal write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateApplicationError creates a non-retryable duplicate error.
func NewDuplicateApplicationError(roundID, projectID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateApplication,
		Message:   "Project has already applied to this round",
		Details:   fmt.Sprintf("roundId: %s, projectId: %s", roundID, projectID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionError,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Tables
// ==========================

var retryCounts = map[ErrorCode]int{
	ErrCodeEncryptionFailed:        3,
	ErrCodeEncryptionAuthFailed:    2,
	ErrCodeMetadataUploadFailed:    3,
	ErrCodeMetadataFetchFailed:     3,
	ErrCodeTransactionFailed:       1,
	ErrCodeAnchorResolutionFailed:  3,
	ErrCodeIndexingTimeout:         2,
	ErrCodeIndexerQueryFailed:      3,
	ErrCodeJournalWriteFailed:      3,
	ErrCodeNotificationSendFailed:  2,
	ErrCodeDatabaseConnectionError: 3,
}

// GetRetryCount returns how many automatic retries a code warrants. Zero
// means the failure needs user action (reload, re-sign, fix the form).
func GetRetryCount(code ErrorCode) int {
	return retryCounts[code]
}

var categories = map[ErrorCode]string{
	ErrCodeRoundNotFound:           "configuration",
	ErrCodeRoundMetadataMissing:    "configuration",
	ErrCodeProjectQuestionMissing:  "configuration",
	ErrCodeProjectMetadataMissing:  "configuration",
	ErrCodeChainNotConnected:       "configuration",
	ErrCodeEncryptionFailed:        "build",
	ErrCodeEncryptionAuthFailed:    "build",
	ErrCodeSignatureRejected:       "build",
	ErrCodeAnswerValidationFailed:  "build",
	ErrCodeMetadataUploadFailed:    "transaction",
	ErrCodeMetadataFetchFailed:     "transaction",
	ErrCodeTransactionFailed:       "transaction",
	ErrCodeTransactionReverted:     "transaction",
	ErrCodeAnchorResolutionFailed:  "transaction",
	ErrCodeIndexingTimeout:         "indexing",
	ErrCodeIndexerQueryFailed:      "indexing",
	ErrCodeSubmissionInFlight:      "concurrency",
	ErrCodeDuplicateApplication:    "concurrency",
	ErrCodeJournalWriteFailed:      "infrastructure",
	ErrCodeNotificationSendFailed:  "infrastructure",
	ErrCodeDatabaseConnectionError: "infrastructure",
}

// GetErrorCategory buckets a code for dashboards and log queries.
func GetErrorCategory(code ErrorCode) string {
	if c, ok := categories[code]; ok {
		return c
	}
	return "internal"
}

// Normalize ensures any error is represented as a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
