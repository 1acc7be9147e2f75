// Package engine runs the rating transaction pipeline: validation,
// sentiment and correlation enrichment, Sybil assessment, delta
// computation and the atomic commit of one event's writes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trustfabric/equilibrate/internal/adapters/repository"
	"github.com/trustfabric/equilibrate/internal/correlation"
	"github.com/trustfabric/equilibrate/internal/domain/cooldown"
	"github.com/trustfabric/equilibrate/internal/domain/decay"
	"github.com/trustfabric/equilibrate/internal/domain/dedupe"
	"github.com/trustfabric/equilibrate/internal/domain/difficulty"
	"github.com/trustfabric/equilibrate/internal/domain/diversity"
	"github.com/trustfabric/equilibrate/internal/domain/influence"
	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/internal/domain/sybil"
	"github.com/trustfabric/equilibrate/internal/sentiment"
	"github.com/trustfabric/equilibrate/pkg/logger"
	"github.com/trustfabric/equilibrate/pkg/metrics"
)

const (
	defaultBaseChange = 0.06
	defaultMinScore   = 0.0
	defaultMaxScore   = 5.0
	defaultDampening  = 0.25
)

// Publisher receives post-commit notifications. Publishing is best effort:
// a failed publish never rolls back a committed score.
type Publisher interface {
	PublishQuarantined(ctx context.Context, ev model.RatingEvent) error
	PublishApplied(ctx context.Context, ev model.RatingEvent, rec model.TrustRecord) error
}

type noopPublisher struct{}

func (noopPublisher) PublishQuarantined(context.Context, model.RatingEvent) error { return nil }
func (noopPublisher) PublishApplied(context.Context, model.RatingEvent, model.TrustRecord) error {
	return nil
}

// Result is the terminal outcome of one processed event.
type Result struct {
	Event  model.RatingEvent
	Record model.TrustRecord // post-commit record, zero value when rejected

	// Reason is set for rejected events.
	Reason string
	// RetryAfter is set for cooldown rejections.
	RetryAfter time.Duration
	// Suspicion is the Sybil Guard score, kept for audit responses.
	Suspicion float64
}

// Coordinator drives rating events through the scoring pipeline. Safe for
// concurrent use; events for the same target are serialized, distinct
// targets proceed in parallel.
type Coordinator struct {
	store      repository.Store
	deduper    dedupe.Deduper
	classifier sentiment.Classifier
	feed       correlation.Feed
	cooldowns  *cooldown.Ledger
	windows    *diversity.Window
	guard      *sybil.Guard
	influence  *influence.Calculator
	difficulty *difficulty.Scaler
	decay      *decay.Engine
	publisher  Publisher
	log        logger.Logger

	locks *keyedMutex
	now   func() time.Time

	baseChange float64
	minScore   float64
	maxScore   float64
	dampening  float64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDeduper sets the idempotency tracker.
func WithDeduper(d dedupe.Deduper) Option {
	return func(c *Coordinator) {
		if d != nil {
			c.deduper = d
		}
	}
}

// WithClassifier sets the sentiment classifier.
func WithClassifier(cl sentiment.Classifier) Option {
	return func(c *Coordinator) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithCorrelationFeed sets the rater cluster feed.
func WithCorrelationFeed(f correlation.Feed) Option {
	return func(c *Coordinator) {
		if f != nil {
			c.feed = f
		}
	}
}

// WithCooldowns sets the cooldown ledger.
func WithCooldowns(l *cooldown.Ledger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.cooldowns = l
		}
	}
}

// WithDiversity sets the per-target diversity window.
func WithDiversity(w *diversity.Window) Option {
	return func(c *Coordinator) {
		if w != nil {
			c.windows = w
		}
	}
}

// WithGuard sets the Sybil Guard.
func WithGuard(g *sybil.Guard) Option {
	return func(c *Coordinator) {
		if g != nil {
			c.guard = g
		}
	}
}

// WithInfluence sets the rater influence calculator.
func WithInfluence(calc *influence.Calculator) Option {
	return func(c *Coordinator) {
		if calc != nil {
			c.influence = calc
		}
	}
}

// WithDifficulty sets the progressive difficulty scaler.
func WithDifficulty(s *difficulty.Scaler) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.difficulty = s
		}
	}
}

// WithDecay sets the decay engine.
func WithDecay(e *decay.Engine) Option {
	return func(c *Coordinator) {
		if e != nil {
			c.decay = e
		}
	}
}

// WithPublisher sets the post-commit notification sink.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithBaseChange sets the base score change for a maximal rating.
func WithBaseChange(v float64) Option {
	return func(c *Coordinator) {
		if v > 0 {
			c.baseChange = v
		}
	}
}

// WithScoreRange sets the clamp bounds for trust scores.
func WithScoreRange(minScore, maxScore float64) Option {
	return func(c *Coordinator) {
		if minScore < maxScore {
			c.minScore = minScore
			c.maxScore = maxScore
		}
	}
}

// WithSuspiciousDampening sets the delta multiplier for suspicious events.
func WithSuspiciousDampening(v float64) Option {
	return func(c *Coordinator) {
		if v > 0 && v <= 1 {
			c.dampening = v
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Coordinator around the given store. All other
// collaborators default to in-memory or no-op implementations.
func New(store repository.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      store,
		deduper:    dedupe.NewInMemoryDeduper(),
		classifier: sentiment.NewRuleBased(),
		feed:       correlation.NoopFeed{},
		cooldowns:  cooldown.New(),
		windows:    diversity.New(),
		guard:      sybil.New(),
		influence:  influence.New(),
		difficulty: difficulty.New(),
		decay:      decay.New(),
		publisher:  noopPublisher{},
		log:        logger.Named("engine"),
		locks:      newKeyedMutex(),
		now:        time.Now,
		baseChange: defaultBaseChange,
		minScore:   defaultMinScore,
		maxScore:   defaultMaxScore,
		dampening:  defaultDampening,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process runs one rating event to a terminal state. Deterministic
// outcomes (applied, rejected, quarantined) return a Result with a nil
// error; a non-nil error means transient infrastructure failure and the
// event may be retried with the same event id.
func (c *Coordinator) Process(ctx context.Context, ev model.RatingEvent) (Result, error) {
	metrics.RecordRatingSubmitted()
	ev.State = model.StateSubmitted

	if reason := validate(ev); reason != "" {
		metrics.RecordRatingRejected(reason)
		return c.reject(ev, reason, 0), nil
	}

	if c.deduper.SeenAndRecord(ctx, ev.EventID) {
		metrics.RecordRatingDuplicate()
		metrics.RecordRatingRejected(ReasonDuplicate)
		return c.reject(ev, ReasonDuplicate, 0), nil
	}

	ev.State = model.StateValidating
	c.enrich(ctx, &ev)

	// Everything below mutates per-target state; one writer per target.
	c.locks.lock(ev.TargetID)
	defer c.locks.unlock(ev.TargetID)

	now := c.now()

	out := c.cooldowns.CheckAndReserve(ev.RaterID, ev.TargetID, now)
	if !out.Allowed {
		metrics.RecordRatingRejected(ReasonCooldown)
		c.log.Debug(ctx, "event rejected, cooldown active",
			logger.String("eventId", ev.EventID),
			logger.String("raterId", ev.RaterID),
			logger.String("targetId", ev.TargetID))
		return c.reject(ev, ReasonCooldown, out.RetryAfter), nil
	}

	rater, err := c.store.Ensure(ctx, ev.RaterID, now)
	if err != nil {
		return c.retryable(ctx, ev, fmt.Errorf("ensure rater: %w", err))
	}
	target, err := c.store.Ensure(ctx, ev.TargetID, now)
	if err != nil {
		return c.retryable(ctx, ev, fmt.Errorf("ensure target: %w", err))
	}

	weight := c.influence.Weight(rater.Score, now.Sub(rater.CreatedAt))
	divScore := c.windows.Evaluate(ev.TargetID, ev.RaterID, ev.ClusterID, now)
	contradicts := model.SentimentResult{Polarity: ev.Polarity, Confidence: ev.Confidence}.Contradicts(ev.Stars)

	assessment := c.guard.Assess(sybil.Signals{
		DiversityScore:          divScore,
		Contradiction:           contradicts,
		ContradictionConfidence: ev.Confidence,
		SharedCluster:           ev.ClusterID != "" && divScore < 1,
		InfluenceWeight:         weight,
	})
	ev.Verdict = assessment.Verdict

	settled, settledAt := c.decay.Settle(target, now)

	if assessment.Verdict == model.VerdictQuarantined {
		return c.quarantine(ctx, ev, target, settled, now, assessment.Suspicion)
	}

	delta := c.delta(ev.Stars, settled, weight, assessment.Verdict)
	newScore := clamp(settled+delta, c.minScore, c.maxScore)
	delta = newScore - settled

	ev.State = model.StateApplying
	rec, err := c.store.CommitRating(ctx, repository.RatingCommit{
		TargetID:        ev.TargetID,
		ExpectedVersion: target.Version,
		NewScore:        newScore,
		SettledAt:       settledAt,
		Entry: model.HistoryEntry{
			EventID:   ev.EventID,
			RaterID:   ev.RaterID,
			TargetID:  ev.TargetID,
			Stars:     ev.Stars,
			Polarity:  ev.Polarity,
			Verdict:   ev.Verdict,
			Delta:     delta,
			OldScore:  settled,
			NewScore:  newScore,
			AppliedAt: now,
		},
		Applied: true,
	})
	if err != nil {
		return c.retryable(ctx, ev, fmt.Errorf("commit rating: %w", err))
	}

	c.cooldowns.Commit(ev.RaterID, ev.TargetID, now)
	c.windows.Commit(ev.TargetID, ev.RaterID, ev.ClusterID, now)

	ev.State = model.StateApplied
	ev.Delta = delta
	metrics.RecordRatingApplied()
	metrics.RecordAppliedDelta(delta)
	if assessment.Verdict == model.VerdictSuspicious {
		metrics.RecordRatingSuspicious()
	}

	if err := c.publisher.PublishApplied(ctx, ev, rec); err != nil {
		c.log.Warn(ctx, "publish applied event", logger.Error(err),
			logger.String("eventId", ev.EventID))
	}

	c.log.Debug(ctx, "event applied",
		logger.String("eventId", ev.EventID),
		logger.String("targetId", ev.TargetID),
		logger.String("verdict", string(ev.Verdict)),
		logger.Float64("delta", delta),
		logger.Float64("score", rec.Score))

	return Result{Event: ev, Record: rec, Suspicion: assessment.Suspicion}, nil
}

// enrich resolves sentiment and correlation outside the target lock.
// Both signals degrade gracefully: a failed lookup downgrades the event,
// never blocks it.
func (c *Coordinator) enrich(ctx context.Context, ev *model.RatingEvent) {
	ev.Polarity = model.PolarityUnknown
	if ev.Comment != "" {
		res, err := c.classifier.Classify(ctx, ev.Comment)
		if err != nil {
			c.log.Warn(ctx, "sentiment classification failed", logger.Error(err),
				logger.String("eventId", ev.EventID))
			metrics.RecordErrorByComponent("sentiment", "classify")
		} else {
			ev.Polarity = res.Polarity
			ev.Confidence = res.Confidence
		}
	} else {
		ev.Polarity = model.PolarityNeutral
	}

	cluster, err := c.feed.ClusterOf(ctx, ev.RaterID)
	if err != nil {
		c.log.Warn(ctx, "correlation lookup failed", logger.Error(err),
			logger.String("raterId", ev.RaterID))
		metrics.RecordErrorByComponent("correlation", "lookup")
		return
	}
	ev.ClusterID = cluster
}

// delta maps stars onto a signed score change: the midpoint is neutral,
// extremes move the score by at most baseChange before difficulty scaling.
// Negative deltas skip difficulty scaling so high scores stay hard to
// earn and easy to lose.
func (c *Coordinator) delta(stars int, targetScore, weight float64, verdict model.Verdict) float64 {
	mid := float64(model.MinStars+model.MaxStars) / 2
	span := float64(model.MaxStars) - mid
	raw := c.baseChange * (float64(stars) - mid) / span

	raw *= weight
	scaled := c.difficulty.Scale(targetScore, raw)
	if verdict == model.VerdictSuspicious {
		scaled *= c.dampening
	}
	return scaled
}

func (c *Coordinator) quarantine(ctx context.Context, ev model.RatingEvent, target model.TrustRecord, settled float64, now time.Time, suspicion float64) (Result, error) {
	ev.State = model.StateQuarantined
	rec, err := c.store.CommitRating(ctx, repository.RatingCommit{
		TargetID:        ev.TargetID,
		ExpectedVersion: target.Version,
		Entry: model.HistoryEntry{
			EventID:   ev.EventID,
			RaterID:   ev.RaterID,
			TargetID:  ev.TargetID,
			Stars:     ev.Stars,
			Polarity:  ev.Polarity,
			Verdict:   model.VerdictQuarantined,
			OldScore:  settled,
			NewScore:  settled,
			AppliedAt: now,
		},
		Applied: false,
	})
	if err != nil {
		return c.retryable(ctx, ev, fmt.Errorf("commit quarantine: %w", err))
	}

	// Quarantined submissions still count toward the diversity window so
	// a sustained flood keeps the window saturated.
	c.windows.Commit(ev.TargetID, ev.RaterID, ev.ClusterID, now)

	metrics.RecordRatingQuarantined()
	c.log.Info(ctx, "event quarantined",
		logger.String("eventId", ev.EventID),
		logger.String("raterId", ev.RaterID),
		logger.String("targetId", ev.TargetID),
		logger.Float64("suspicion", suspicion))

	if err := c.publisher.PublishQuarantined(ctx, ev); err != nil {
		c.log.Warn(ctx, "publish quarantined event", logger.Error(err),
			logger.String("eventId", ev.EventID))
	}

	return Result{Event: ev, Record: rec, Suspicion: suspicion}, nil
}

// retryable releases the idempotency claim so the caller can resubmit the
// same event id once the store recovers.
func (c *Coordinator) retryable(ctx context.Context, ev model.RatingEvent, err error) (Result, error) {
	c.deduper.Unrecord(ctx, ev.EventID)
	metrics.RecordErrorByComponent("store", "commit")
	c.log.Error(ctx, "event processing failed", logger.Error(err),
		logger.String("eventId", ev.EventID))
	if errors.Is(err, repository.ErrUnavailable) || errors.Is(err, repository.ErrVersionConflict) {
		return Result{Event: ev}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return Result{Event: ev}, err
}

func (c *Coordinator) reject(ev model.RatingEvent, reason string, retryAfter time.Duration) Result {
	ev.State = model.StateRejected
	return Result{Event: ev, Reason: reason, RetryAfter: retryAfter}
}

func validate(ev model.RatingEvent) string {
	switch {
	case ev.EventID == "" || ev.RaterID == "" || ev.TargetID == "":
		return ReasonMissingField
	case ev.Stars < model.MinStars || ev.Stars > model.MaxStars:
		return ReasonInvalidStars
	case ev.RaterID == ev.TargetID:
		return ReasonSelfRating
	}
	return ""
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
