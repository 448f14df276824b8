package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// recomputeRequest targets one user, or every user when userId is empty
type recomputeRequest struct {
	UserID string `json:"userId,omitempty"`
}

// handlePortfolioRecompute rebuilds portfolio snapshots on demand
func (s *Server) handlePortfolioRecompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if r.ContentLength > 0 {
		if err := parseJSONBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
			return
		}
	}

	if req.UserID != "" {
		snapshot, err := s.portfolio.Recompute(r.Context(), req.UserID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, snapshot)
		return
	}

	recomputed, err := s.portfolio.RecomputeAll(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"usersRecomputed": recomputed})
}

// handleGetPortfolio returns a user's stored snapshot
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "userId is required", nil)
		return
	}

	snapshot, err := s.portfolio.Snapshot(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}
