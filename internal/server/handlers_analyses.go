package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/trait-scorer/internal/db"
)

// handleListAnalyses lists recorded analyses, newest first.
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, ErrHistoryDisabled, nil)
		return
	}

	opts := db.ListAnalysesOptions{
		Profile: r.URL.Query().Get("profile"),
		Status:  r.URL.Query().Get("status"),
		Limit:   parseQueryInt(r, "limit", db.DefaultListLimit, db.MaxListLimit),
		Offset:  parseQueryInt(r, "offset", 0, 0),
	}

	analyses, total, err := s.store.ListAnalyses(r.Context(), opts)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if analyses == nil {
		analyses = []db.Analysis{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"analyses": analyses,
		"total":    total,
		"limit":    opts.Limit,
		"offset":   opts.Offset,
	})
}

// handleGetAnalysis retrieves one analysis by ID
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, ErrHistoryDisabled, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid analysis ID")
		return
	}

	a, err := s.store.GetAnalysis(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if a == nil {
		s.errorResponse(w, http.StatusNotFound, "Analysis not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, a)
}
