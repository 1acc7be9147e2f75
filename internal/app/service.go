// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventqueue "github.com/trustfabric/equilibrate/internal/adapters/mq/queue"
	"github.com/trustfabric/equilibrate/internal/adapters/mq/review"
	workerpool "github.com/trustfabric/equilibrate/internal/adapters/mq/worker"
	repository "github.com/trustfabric/equilibrate/internal/adapters/repository"
	"github.com/trustfabric/equilibrate/internal/config"
	"github.com/trustfabric/equilibrate/internal/correlation"
	"github.com/trustfabric/equilibrate/internal/domain/cooldown"
	"github.com/trustfabric/equilibrate/internal/domain/decay"
	"github.com/trustfabric/equilibrate/internal/domain/dedupe"
	"github.com/trustfabric/equilibrate/internal/domain/difficulty"
	"github.com/trustfabric/equilibrate/internal/domain/diversity"
	"github.com/trustfabric/equilibrate/internal/domain/influence"
	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/internal/domain/sybil"
	"github.com/trustfabric/equilibrate/internal/engine"
	"github.com/trustfabric/equilibrate/internal/jobs"
	"github.com/trustfabric/equilibrate/internal/sentiment"
	"github.com/trustfabric/equilibrate/pkg/logger"
	"github.com/trustfabric/equilibrate/pkg/metrics"
)

// ScoreView is the read model for one entity's current standing. The
// score is settled to query time without writing the settlement back.
type ScoreView struct {
	EntityID      string    `json:"entityId"`
	Score         float64   `json:"score"`
	SettledAt     time.Time `json:"settledAt"`
	EventCount    int       `json:"eventCount"`
	PositiveCount int       `json:"positiveCount"`
	NegativeCount int       `json:"negativeCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ReportEntry is one history row in a report. RaterID is empty in
// anonymized reports.
type ReportEntry struct {
	RaterID   string    `json:"raterId,omitempty"`
	Stars     int       `json:"stars"`
	Polarity  string    `json:"polarity"`
	Verdict   string    `json:"verdict"`
	Delta     float64   `json:"delta"`
	AppliedAt time.Time `json:"appliedAt"`
}

// Report is an entity's score plus its recent rating history. Full
// reports additionally carry rater ids and filed appeals.
type Report struct {
	ScoreView
	History []ReportEntry  `json:"history"`
	Appeals []model.Appeal `json:"appeals,omitempty"`
}

// Service wires the scoring pipeline together and implements the API
// dependencies.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store       repository.Store
	deduper     dedupe.Deduper
	eventQueue  eventqueue.Queue
	coordinator *engine.Coordinator
	workerPool  *workerpool.Pool
	sweeper     *jobs.Sweeper
	decay       *decay.Engine
	cooldowns   *cooldown.Ledger
	classifier  sentiment.Classifier
	feed        correlation.Feed
	publisher   engine.Publisher
	reviewConn  *review.Publisher

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the service configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore overrides the trust score store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClassifier overrides the sentiment classifier.
func WithClassifier(c sentiment.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithCorrelationFeed overrides the rater cluster feed.
func WithCorrelationFeed(f correlation.Feed) Option {
	return func(s *Service) {
		if f != nil {
			s.feed = f
		}
	}
}

// WithPublisher overrides the post-commit notification sink.
func WithPublisher(p engine.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	cfg := s.cfg

	s.logger.Info(ctx, "starting trust scoring service...")

	if s.store == nil {
		if cfg.DatabaseURL != "" {
			pg, err := repository.NewPGStore(ctx, cfg.DatabaseURL, cfg.NeutralScore)
			if err != nil {
				return fmt.Errorf("postgres store: %w", err)
			}
			if err := pg.InitSchema(ctx); err != nil {
				pg.Close()
				return fmt.Errorf("postgres schema: %w", err)
			}
			s.store = pg
			s.logger.Info(ctx, "using postgres store")
		} else {
			s.store = repository.NewMemStore(
				repository.WithNeutralScore(cfg.NeutralScore),
				repository.WithHistoryLimit(cfg.HistoryLimit),
			)
			s.logger.Info(ctx, "using in-memory store")
		}
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(cfg.DedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(cfg.EventQueueSize),
		eventqueue.WithBufferSize(cfg.EventQueueSize),
	)

	if s.classifier == nil {
		classifier, err := s.buildClassifier(cfg)
		if err != nil {
			return fmt.Errorf("sentiment classifier: %w", err)
		}
		s.classifier = classifier
	}

	if s.feed == nil {
		if cfg.CorrelationURL != "" {
			s.feed = correlation.NewHTTPFeed(cfg.CorrelationURL,
				correlation.WithTimeout(cfg.CorrelationTimeout))
		} else {
			s.feed = correlation.NoopFeed{}
		}
	}

	if s.publisher == nil && cfg.NatsURL != "" {
		pub, err := review.NewPublisher(ctx, cfg.NatsURL, cfg.NatsToken)
		if err != nil {
			return fmt.Errorf("review publisher: %w", err)
		}
		s.reviewConn = pub
		s.publisher = pub
	}

	s.decay = decay.New(
		decay.WithBaseline(cfg.NeutralScore),
		decay.WithHalfLife(cfg.DecayHalfLife),
	)
	s.cooldowns = cooldown.New(
		cooldown.WithWindow(cfg.CooldownWindow),
	)

	engineOpts := []engine.Option{
		engine.WithDeduper(s.deduper),
		engine.WithClassifier(s.classifier),
		engine.WithCorrelationFeed(s.feed),
		engine.WithCooldowns(s.cooldowns),
		engine.WithDiversity(diversity.New(
			diversity.WithWindowSize(cfg.DiversityWindowSize),
			diversity.WithMaxAge(cfg.DiversityMaxAge),
		)),
		engine.WithGuard(sybil.New(
			sybil.WithDiversityFloor(cfg.DiversityFloor),
			sybil.WithThresholds(cfg.SybilSuspiciousThreshold, cfg.SybilQuarantineThreshold),
		)),
		engine.WithInfluence(influence.New(
			influence.WithBaseWeight(cfg.InfluenceBaseWeight),
			influence.WithAgeFactor(cfg.InfluenceMinAgeFactor, cfg.InfluenceAgeSaturation),
			influence.WithScoreFactor(cfg.InfluenceMinScoreFactor),
			influence.WithScoreRange(cfg.MinScore, cfg.MaxScore),
		)),
		engine.WithDifficulty(difficulty.New(
			difficulty.WithScoreRange(cfg.MinScore, cfg.MaxScore),
			difficulty.WithExponent(cfg.DifficultyExponent),
		)),
		engine.WithDecay(s.decay),
		engine.WithBaseChange(cfg.BaseChange),
		engine.WithScoreRange(cfg.MinScore, cfg.MaxScore),
		engine.WithSuspiciousDampening(cfg.SuspiciousDampening),
	}
	if s.publisher != nil {
		engineOpts = append(engineOpts, engine.WithPublisher(s.publisher))
	}
	s.coordinator = engine.New(s.store, engineOpts...)

	s.workerPool = workerpool.NewPool(cfg.WorkerCount, s.eventQueue, s.coordinator)
	s.workerPool.Start(ctx)

	s.sweeper = jobs.NewSweeper(s.store, s.decay,
		jobs.WithSweepSpec(cfg.DecaySweepSpec),
		jobs.WithBatchSize(cfg.DecaySweepBatch),
		jobs.WithCooldowns(s.cooldowns),
	)
	if err := s.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "trust scoring service started",
		logger.Int("workers", cfg.WorkerCount),
		logger.Int("queueSize", cfg.EventQueueSize),
		logger.Int("dedupeSize", cfg.DedupeSize),
	)

	return nil
}

// buildClassifier assembles the configured sentiment classifier chain.
func (s *Service) buildClassifier(cfg *config.Config) (sentiment.Classifier, error) {
	var base sentiment.Classifier
	switch cfg.SentimentMode {
	case "remote":
		base = sentiment.NewRemote(cfg.SentimentURL,
			sentiment.WithTimeout(cfg.SentimentTimeout))
	case "local":
		local, err := sentiment.NewLocal(cfg.SentimentModel)
		if err != nil {
			return nil, err
		}
		base = local
	default:
		base = sentiment.NewRuleBased()
	}
	if cfg.SentimentCacheTTL > 0 {
		return sentiment.NewCached(base, sentiment.WithTTL(cfg.SentimentCacheTTL)), nil
	}
	return base, nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping trust scoring service...")

	if s.sweeper != nil {
		s.sweeper.Stop(ctx)
	}

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}

	if closer, ok := s.classifier.(sentiment.Closer); ok {
		_ = closer.Close()
	}

	if s.reviewConn != nil {
		s.reviewConn.Close()
	}

	if closer, ok := s.store.(interface{ Close() }); ok {
		closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "trust scoring service stopped")
}

// Submit runs one rating event through the pipeline synchronously.
func (s *Service) Submit(ctx context.Context, ev model.RatingEvent) (engine.Result, error) {
	return s.coordinator.Process(ctx, ev)
}

// Enqueue submits an event for asynchronous processing on the bulk
// ingestion path. Returns false if the queue refused the event.
func (s *Service) Enqueue(ctx context.Context, ev model.RatingEvent) bool {
	ok := s.eventQueue.Enqueue(ctx, ev)
	if ok {
		metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	}
	return ok
}

// Score returns the entity's standing settled to query time. The
// settlement is not written back; the next accepted rating or the
// background sweep persists it.
func (s *Service) Score(ctx context.Context, entityID string) (ScoreView, error) {
	rec, err := s.store.Get(ctx, entityID)
	if err != nil {
		return ScoreView{}, err
	}
	score, at := s.decay.Settle(rec, time.Now())
	return ScoreView{
		EntityID:      rec.EntityID,
		Score:         score,
		SettledAt:     at,
		EventCount:    rec.EventCount,
		PositiveCount: rec.PositiveCount,
		NegativeCount: rec.NegativeCount,
		CreatedAt:     rec.CreatedAt,
	}, nil
}

// Report returns the entity's score and recent history. Anonymized
// reports strip rater ids; full reports include them plus any appeals.
func (s *Service) Report(ctx context.Context, entityID string, full bool) (Report, error) {
	view, err := s.Score(ctx, entityID)
	if err != nil {
		return Report{}, err
	}

	history, err := s.store.History(ctx, entityID, s.cfg.HistoryLimit)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ScoreView: view,
		History:   make([]ReportEntry, len(history)),
	}
	for i, h := range history {
		entry := ReportEntry{
			Stars:     h.Stars,
			Polarity:  string(h.Polarity),
			Verdict:   string(h.Verdict),
			Delta:     h.Delta,
			AppliedAt: h.AppliedAt,
		}
		if full {
			entry.RaterID = h.RaterID
		}
		report.History[i] = entry
	}

	if full {
		appeals, err := s.store.Appeals(ctx, entityID)
		if err != nil {
			return Report{}, err
		}
		report.Appeals = appeals
	}

	return report, nil
}

// FileAppeal records a user appeal against an entity's score. Appeals
// are stored for audit and never change scores.
func (s *Service) FileAppeal(ctx context.Context, entityID, reason string) error {
	return s.store.AppendAppeal(ctx, model.Appeal{
		EntityID: entityID,
		Reason:   reason,
		FiledAt:  time.Now(),
	})
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.EventQueueSize,
		"dedupeSize":  s.cfg.DedupeSize,
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		trackedEntities := s.store.Count(ctx)
		cooldownPairs := s.cooldowns.Len()

		stats["queueLength"] = queueLen
		stats["trackedEntities"] = trackedEntities
		stats["cooldownPairs"] = cooldownPairs
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTrackedEntities(trackedEntities)
	}

	return stats
}
