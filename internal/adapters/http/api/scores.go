package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustfabric/equilibrate/internal/adapters/repository"
	"github.com/trustfabric/equilibrate/pkg/logger"
)

// getScore handles GET /api/v1/scores/{entityId}.
func (s *Server) getScore(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityId")
	if entityID == "" {
		writeError(w, http.StatusBadRequest, "missing entity id")
		return
	}

	view, err := s.service.Score(r.Context(), entityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown entity")
			return
		}
		s.log.Error(r.Context(), "score lookup failed", logger.Error(err),
			logger.String("entityId", entityID))
		writeError(w, http.StatusServiceUnavailable, "score lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, view)
}
