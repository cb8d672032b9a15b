package api

import (
	"net/http"
)

// UpdateSettingsRequest is the body for PUT /api/settings
type UpdateSettingsRequest struct {
	WarningCutoff *float64 `json:"warningCutoff"`
	SellCutoff    *float64 `json:"sellCutoff"`
}

// handleGetSettings returns the current thresholds
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settingsService.Get(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings replaces the thresholds and recomputes all flags
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}
	if req.WarningCutoff == nil || req.SellCutoff == nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "warningCutoff and sellCutoff are required", nil)
		return
	}

	settings, err := s.settingsService.Update(r.Context(), *req.WarningCutoff, *req.SellCutoff)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}
