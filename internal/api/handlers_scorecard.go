package api

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"
)

// handleScorecard returns the aggregated per-ticker health view
func (s *Server) handleScorecard(w http.ResponseWriter, r *http.Request) {
	card, err := s.scorecardService.Scorecard(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, card)
}

// handleETFDetail returns the stored record, snapshots, metrics and
// breakdown for one ticker
func (s *Server) handleETFDetail(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	detail, err := s.scorecardService.Detail(r.Context(), ticker)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// handleMetricsHistory returns the full metric series for one ticker
func (s *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	history, err := s.scorecardService.History(r.Context(), ticker)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// handleExport returns the scorecard as CSV. The CSV is built in memory
// first so a scorecard failure still gets a proper error response.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.scorecardService.ExportCSV(r.Context(), &buf); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="scorecard.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
