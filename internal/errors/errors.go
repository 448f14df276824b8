// Package errors defines the categorized error type shared by the chain
// execution and sync components.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryChain represents errors surfaced by the RPC endpoint or the chain itself
	CategoryChain ErrorCategory = "chain"
	// CategorySubmission represents transaction submission failures
	CategorySubmission ErrorCategory = "submission"
	// CategorySync represents historical sync failures
	CategorySync ErrorCategory = "sync"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryConflict represents concurrency conflicts
	CategoryConflict ErrorCategory = "conflict"
	// CategoryConfig represents configuration/boot errors
	CategoryConfig ErrorCategory = "config"
)

// Error codes used across the service.
const (
	CodeRetriesExhausted = "TX_RETRIES_EXHAUSTED"
	CodeReverted         = "TX_REVERTED"
	CodeReceiptTimeout   = "TX_RECEIPT_TIMEOUT"
	CodeSyncInProgress   = "SYNC_IN_PROGRESS"
	CodeChainMismatch    = "CHAIN_MISMATCH"
	CodeConfigMissing    = "CONFIG_MISSING"
	CodeProviderError    = "PROVIDER_ERROR"
	CodeDatabaseError    = "DATABASE_ERROR"
)

// ChainError represents an error with category and a stable code
type ChainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error implements the error interface
func (e *ChainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *ChainError) Unwrap() error {
	return e.Cause
}

// NewRetriesExhaustedError is raised after the executor ran out of attempts.
// It carries the last attempt's failure so callers can see why the chain leg
// ultimately failed.
func NewRetriesExhaustedError(attempts int, cause error) *ChainError {
	return &ChainError{
		Category: CategorySubmission,
		Code:     CodeRetriesExhausted,
		Message:  fmt.Sprintf("transaction failed after %d attempts", attempts),
		Details:  map[string]interface{}{"attempts": attempts},
		Cause:    cause,
	}
}

// NewRevertedError indicates a mined transaction with a failed receipt status
func NewRevertedError(txHash string) *ChainError {
	return &ChainError{
		Category: CategorySubmission,
		Code:     CodeReverted,
		Message:  fmt.Sprintf("transaction %s reverted on-chain", txHash),
		Details:  map[string]interface{}{"txHash": txHash},
	}
}

// NewReceiptTimeoutError indicates no receipt was observed within the wait window
func NewReceiptTimeoutError(txHash string) *ChainError {
	return &ChainError{
		Category: CategorySubmission,
		Code:     CodeReceiptTimeout,
		Message:  fmt.Sprintf("timed out waiting for receipt of %s", txHash),
		Details:  map[string]interface{}{"txHash": txHash},
	}
}

// NewSyncInProgressError rejects a sync attempt while another one is running
func NewSyncInProgressError() *ChainError {
	return &ChainError{
		Category: CategoryConflict,
		Code:     CodeSyncInProgress,
		Message:  "a historical sync is already in progress",
	}
}

// NewChainMismatchError is fatal: the RPC endpoint reports a different
// network than the service was configured for.
func NewChainMismatchError(want, got int64) *ChainError {
	return &ChainError{
		Category: CategoryConfig,
		Code:     CodeChainMismatch,
		Message:  fmt.Sprintf("rpc endpoint reports chain id %d, configured for %d", got, want),
		Details:  map[string]interface{}{"want": want, "got": got},
	}
}

// NewConfigError creates a configuration/boot error
func NewConfigError(message string) *ChainError {
	return &ChainError{
		Category: CategoryConfig,
		Code:     CodeConfigMissing,
		Message:  message,
	}
}

// NewProviderError wraps an RPC-level failure
func NewProviderError(operation string, cause error) *ChainError {
	return &ChainError{
		Category: CategoryChain,
		Code:     CodeProviderError,
		Message:  fmt.Sprintf("rpc error during %s", operation),
		Details:  map[string]interface{}{"operation": operation},
		Cause:    cause,
	}
}

// NewDatabaseError wraps a database failure
func NewDatabaseError(operation string, cause error) *ChainError {
	return &ChainError{
		Category: CategoryDatabase,
		Code:     CodeDatabaseError,
		Message:  fmt.Sprintf("database error during %s", operation),
		Details:  map[string]interface{}{"operation": operation},
		Cause:    cause,
	}
}

// Is reports whether err is a ChainError with the given code
func Is(err error, code string) bool {
	var chainErr *ChainError
	if stderrors.As(err, &chainErr) {
		return chainErr.Code == code
	}
	return false
}

// IsRetryable determines if an error should re-enter the executor's retry
// loop. Reverts count as retryable: gas and nonce state may have moved
// between the estimate and inclusion, so a fresh attempt can still land.
func IsRetryable(err error) bool {
	var chainErr *ChainError
	if !stderrors.As(err, &chainErr) {
		// Unclassified errors (transport timeouts, broken pipes) are
		// assumed transient.
		return true
	}

	switch chainErr.Category {
	case CategoryChain, CategorySubmission:
		return chainErr.Code != CodeRetriesExhausted
	default:
		return false
	}
}
