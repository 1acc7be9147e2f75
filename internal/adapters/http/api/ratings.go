package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/internal/engine"
	"github.com/trustfabric/equilibrate/pkg/logger"
)

// RatingRequest is one rating submission.
type RatingRequest struct {
	EventID     string     `json:"eventId,omitempty"`
	RaterID     string     `json:"raterId"`
	TargetID    string     `json:"targetId"`
	Stars       int        `json:"stars"`
	Comment     string     `json:"comment,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

// RatingResponse describes the terminal outcome of a submission.
type RatingResponse struct {
	EventID           string  `json:"eventId"`
	State             string  `json:"state"`
	Verdict           string  `json:"verdict,omitempty"`
	Delta             float64 `json:"delta"`
	NewScore          float64 `json:"newScore,omitempty"`
	Reason            string  `json:"reason,omitempty"`
	RetryAfterSeconds int64   `json:"retryAfterSeconds,omitempty"`
}

// BulkRequest carries a batch of ratings for asynchronous processing.
type BulkRequest struct {
	Events []RatingRequest `json:"events"`
}

// BulkResponse reports how many events the queue accepted.
type BulkResponse struct {
	Accepted int `json:"accepted"`
	Refused  int `json:"refused"`
}

func (req *RatingRequest) toEvent() model.RatingEvent {
	ev := model.RatingEvent{
		EventID:  req.EventID,
		RaterID:  req.RaterID,
		TargetID: req.TargetID,
		Stars:    req.Stars,
		Comment:  req.Comment,
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if req.SubmittedAt != nil {
		ev.SubmittedAt = *req.SubmittedAt
	} else {
		ev.SubmittedAt = time.Now()
	}
	return ev
}

// submitRating handles POST /api/v1/ratings synchronously.
func (s *Server) submitRating(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := s.service.Submit(r.Context(), req.toEvent())
	if err != nil {
		s.log.Error(r.Context(), "rating submission failed", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "temporarily unable to process rating")
		return
	}

	body := RatingResponse{
		EventID: res.Event.EventID,
		State:   string(res.Event.State),
		Verdict: string(res.Event.Verdict),
		Delta:   res.Event.Delta,
		Reason:  res.Reason,
	}

	switch res.Event.State {
	case model.StateApplied:
		body.NewScore = res.Record.Score
		writeJSON(w, http.StatusOK, body)
	case model.StateQuarantined:
		writeJSON(w, http.StatusAccepted, body)
	case model.StateRejected:
		status := http.StatusBadRequest
		switch res.Reason {
		case engine.ReasonDuplicate:
			status = http.StatusConflict
		case engine.ReasonCooldown:
			status = http.StatusTooManyRequests
			body.RetryAfterSeconds = int64(res.RetryAfter / time.Second)
			w.Header().Set("Retry-After", strconv.FormatInt(body.RetryAfterSeconds, 10))
		}
		writeJSON(w, status, body)
	default:
		writeJSON(w, http.StatusOK, body)
	}
}

// submitBulk handles POST /api/v1/ratings/bulk. Events are enqueued and
// scored asynchronously; callers poll the score endpoints for results.
func (s *Server) submitBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "no events in batch")
		return
	}

	resp := BulkResponse{}
	for i := range req.Events {
		ev := req.Events[i].toEvent()
		if s.service.Enqueue(r.Context(), ev) {
			resp.Accepted++
		} else {
			resp.Refused++
		}
	}

	status := http.StatusAccepted
	if resp.Accepted == 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
