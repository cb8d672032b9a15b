package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// AddETFRequest is the body for POST /api/etfs
type AddETFRequest struct {
	Ticker string `json:"ticker"`
}

// handleAddETF starts tracking a new ticker
func (s *Server) handleAddETF(w http.ResponseWriter, r *http.Request) {
	var req AddETFRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Ticker) == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "ticker is required", nil)
		return
	}

	etf, err := s.trackerService.AddETF(r.Context(), req.Ticker)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, etf)
}

// handleListETFs returns the tracked universe
func (s *Server) handleListETFs(w http.ResponseWriter, r *http.Request) {
	etfs, err := s.trackerService.ListETFs(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"etfs":  etfs,
		"count": len(etfs),
	})
}

// handleRemoveETF stops tracking a ticker
func (s *Server) handleRemoveETF(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	if err := s.trackerService.RemoveETF(r.Context(), ticker); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"ticker": strings.ToUpper(ticker),
		"status": "removed",
	})
}

// handleRefreshETF re-fetches one ticker
func (s *Server) handleRefreshETF(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	result, err := s.trackerService.RefreshETF(r.Context(), ticker)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleRefreshAll re-fetches every active ticker
func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.trackerService.RefreshAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
