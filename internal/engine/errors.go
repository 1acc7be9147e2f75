package engine

import "errors"

var (
	// ErrStoreFailure wraps transient storage failures; the caller may
	// retry the event with the same event id.
	ErrStoreFailure = errors.New("score commit failed")
	// ErrClosed is returned after the coordinator has been shut down.
	ErrClosed = errors.New("coordinator closed")
)

// Rejection reasons attached to rejected events.
const (
	ReasonInvalidStars = "invalid_stars"
	ReasonMissingField = "missing_field"
	ReasonSelfRating   = "self_rating"
	ReasonDuplicate    = "duplicate"
	ReasonCooldown     = "cooldown_active"
)
