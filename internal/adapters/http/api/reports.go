package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustfabric/equilibrate/internal/adapters/repository"
	"github.com/trustfabric/equilibrate/pkg/logger"
)

// getReport handles GET /api/v1/reports/{entityId}: the anonymized
// report, safe to show to the rated entity itself.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, false)
}

// getFullReport handles GET /api/v1/reports/{entityId}/full: includes
// rater ids and appeals, intended for moderators.
func (s *Server) getFullReport(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, true)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request, full bool) {
	entityID := chi.URLParam(r, "entityId")
	if entityID == "" {
		writeError(w, http.StatusBadRequest, "missing entity id")
		return
	}

	report, err := s.service.Report(r.Context(), entityID, full)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown entity")
			return
		}
		s.log.Error(r.Context(), "report generation failed", logger.Error(err),
			logger.String("entityId", entityID))
		writeError(w, http.StatusServiceUnavailable, "report generation failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
