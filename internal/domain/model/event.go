// Package model contains domain models passed between layers.
package model

import "time"

// Star rating bounds accepted on submission.
const (
	MinStars = 1
	MaxStars = 5
)

// Polarity is the sentiment signal derived from a comment.
type Polarity string

// Polarity values.
const (
	PolarityPositive Polarity = "positive"
	PolarityNeutral  Polarity = "neutral"
	PolarityNegative Polarity = "negative"
	PolarityUnknown  Polarity = "unknown"
)

// Verdict is the Sybil Guard's per-event assessment.
type Verdict string

// Verdict values.
const (
	VerdictClean       Verdict = "clean"
	VerdictSuspicious  Verdict = "suspicious"
	VerdictQuarantined Verdict = "quarantined"
)

// EventState tracks a rating event through the scoring pipeline.
// Transitions: Submitted -> Validating -> {Rejected | Quarantined | Applying} -> Applied.
type EventState string

// EventState values.
const (
	StateSubmitted   EventState = "submitted"
	StateValidating  EventState = "validating"
	StateApplying    EventState = "applying"
	StateApplied     EventState = "applied"
	StateRejected    EventState = "rejected"
	StateQuarantined EventState = "quarantined"
)

// RatingEvent is one rating submission. Immutable once it reaches a
// terminal state.
type RatingEvent struct {
	EventID     string    // unique id for idempotency
	RaterID     string    // submitting entity
	TargetID    string    // rated entity
	Stars       int       // raw stars, MinStars..MaxStars
	Comment     string    // optional free text
	SubmittedAt time.Time // client-supplied submission timestamp

	// Filled in during processing.
	Polarity   Polarity
	Confidence float64
	ClusterID  string // correlation cluster, empty when the feed is absent
	Verdict    Verdict
	State      EventState
	Delta      float64 // applied score delta, zero unless State == Applied
}

// SentimentResult is the classifier outcome for a comment.
type SentimentResult struct {
	Polarity   Polarity
	Confidence float64
}

// Contradicts reports whether the sentiment signal opposes the numeric
// star rating. Neutral and unknown polarities never contradict.
func (s SentimentResult) Contradicts(stars int) bool {
	mid := (MinStars + MaxStars) / 2
	switch s.Polarity {
	case PolarityPositive:
		return stars < mid
	case PolarityNegative:
		return stars > mid
	default:
		return false
	}
}

// TrustRecord is the authoritative per-entity score state.
type TrustRecord struct {
	EntityID      string
	Score         float64
	LastDecay     time.Time // timestamp the score was last settled to
	CreatedAt     time.Time
	Version       int64 // optimistic concurrency token
	EventCount    int
	PositiveCount int
	NegativeCount int
}

// HistoryEntry is one append-only event history row for a target.
type HistoryEntry struct {
	EventID   string
	RaterID   string
	TargetID  string
	Stars     int
	Polarity  Polarity
	Verdict   Verdict
	Delta     float64
	OldScore  float64
	NewScore  float64
	AppliedAt time.Time
}

// Appeal is a privacy-hook record: a user contesting a rating outcome.
// Appeals are stored for audit and never affect scores.
type Appeal struct {
	EntityID string
	Reason   string
	FiledAt  time.Time
}
