package api

import (
	"encoding/json"
	"errors"
	"net/http"

	chainerrors "github.com/stomatrade/chain-sync/internal/errors"
)

// ErrorBody is the JSON error envelope
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps an error body
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(ErrorResponse{ // nolint:errcheck // response already committed
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data) // nolint:errcheck // response already committed
	}
}

// parseJSONBody parses a JSON request body, rejecting unknown fields
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUpstreamError = "UPSTREAM_ERROR"
)

// respondServiceError maps a domain error to an HTTP response
func respondServiceError(w http.ResponseWriter, err error) {
	var chainErr *chainerrors.ChainError
	if errors.As(err, &chainErr) {
		switch chainErr.Code {
		case chainerrors.CodeSyncInProgress:
			respondError(w, http.StatusConflict, ErrCodeConflict, chainErr.Message, chainErr.Details)
			return
		case chainerrors.CodeProviderError, chainerrors.CodeReceiptTimeout:
			respondError(w, http.StatusBadGateway, ErrCodeUpstreamError, chainErr.Message, chainErr.Details)
			return
		case chainerrors.CodeConfigMissing:
			respondError(w, http.StatusInternalServerError, ErrCodeInternalError, chainErr.Message, chainErr.Details)
			return
		}
	}

	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
}
