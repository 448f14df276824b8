package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// syncRequest is the manual sync trigger payload. toBlock accepts either a
// block number or the string "latest"; absent means latest.
type syncRequest struct {
	FromBlock uint64          `json:"fromBlock"`
	ToBlock   json.RawMessage `json:"toBlock,omitempty"`
	BatchSize uint64          `json:"batchSize,omitempty"`
}

// parseToBlock resolves the toBlock field, zero meaning chain head
func parseToBlock(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == `"latest"` {
		return 0, nil
	}

	return strconv.ParseUint(trimmed, 10, 64)
}

// handleSync triggers a historical sync over an explicit block range
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	toBlock, err := parseToBlock(req.ToBlock)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, `toBlock must be a block number or "latest"`, nil)
		return
	}
	if toBlock != 0 && toBlock < req.FromBlock {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "toBlock must not be below fromBlock", nil)
		return
	}

	result, err := s.sync.Sync(r.Context(), req.FromBlock, toBlock, req.BatchSize)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleSyncLatest syncs from the durable cursor up to the chain head
func (s *Server) handleSyncLatest(w http.ResponseWriter, r *http.Request) {
	result, err := s.sync.SyncSinceCursor(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleSyncStatus reports how far behind the chain head the cursor is.
// The view is cached briefly; the numbers move every block anyway.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.cache != nil {
		if cached, err := s.cache.GetSyncStatus(ctx); err == nil && cached != nil {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	status, err := s.sync.Status(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.SetSyncStatus(ctx, status, s.config.StatusCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache sync status")
		}
	}

	respondJSON(w, http.StatusOK, status)
}
