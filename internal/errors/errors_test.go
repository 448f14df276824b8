package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewProviderError("get chain head", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "get chain head")
}

func TestIs(t *testing.T) {
	err := NewRevertedError("0xabc")

	assert.True(t, Is(err, CodeReverted))
	assert.False(t, Is(err, CodeReceiptTimeout))
	assert.False(t, Is(errors.New("plain"), CodeReverted))

	wrapped := fmt.Errorf("submit failed: %w", err)
	assert.True(t, Is(wrapped, CodeReverted))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"reverted receipt", NewRevertedError("0xabc"), true},
		{"receipt timeout", NewReceiptTimeoutError("0xabc"), true},
		{"provider error", NewProviderError("estimate gas", errors.New("rpc")), true},
		{"retries exhausted", NewRetriesExhaustedError(3, errors.New("last")), false},
		{"sync in progress", NewSyncInProgressError(), false},
		{"chain mismatch", NewChainMismatchError(1, 1337), false},
		{"config missing", NewConfigError("CHAIN_ID is required"), false},
		{"database error", NewDatabaseError("insert", errors.New("pg")), false},
		{"unclassified is assumed transient", errors.New("socket reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestRetriesExhausted_CarriesCause(t *testing.T) {
	last := NewRevertedError("0xabc")
	err := NewRetriesExhaustedError(3, last)

	assert.True(t, Is(err, CodeRetriesExhausted))
	assert.True(t, Is(err.Cause, CodeReverted))
	assert.ErrorIs(t, err, last)
}
