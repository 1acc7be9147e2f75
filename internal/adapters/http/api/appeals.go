package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/trustfabric/equilibrate/internal/adapters/repository"
	"github.com/trustfabric/equilibrate/pkg/logger"
)

// AppealRequest is a user contesting their score.
type AppealRequest struct {
	EntityID string `json:"entityId"`
	Reason   string `json:"reason"`
}

// fileAppeal handles POST /api/v1/appeals.
func (s *Server) fileAppeal(w http.ResponseWriter, r *http.Request) {
	var req AppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.EntityID == "" || strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "entityId and reason are required")
		return
	}

	if err := s.service.FileAppeal(r.Context(), req.EntityID, req.Reason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown entity")
			return
		}
		s.log.Error(r.Context(), "appeal filing failed", logger.Error(err),
			logger.String("entityId", req.EntityID))
		writeError(w, http.StatusServiceUnavailable, "appeal filing failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "filed"})
}
