// Package jobs runs background maintenance: the periodic decay sweep and
// cooldown ledger pruning.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trustfabric/equilibrate/internal/adapters/repository"
	"github.com/trustfabric/equilibrate/internal/domain/cooldown"
	"github.com/trustfabric/equilibrate/internal/domain/decay"
	"github.com/trustfabric/equilibrate/pkg/logger"
	"github.com/trustfabric/equilibrate/pkg/metrics"
)

// Default sweeper configuration constants.
const (
	defaultSweepSpec  = "@hourly"
	defaultPruneSpec  = "@daily"
	defaultBatchSize  = 1000
	defaultStaleAfter = time.Hour
)

// Sweeper periodically settles decay on entities that have not been
// rated recently, so reads and reports stay honest without a write on
// every query.
type Sweeper struct {
	cron      *cron.Cron
	store     repository.Store
	decay     *decay.Engine
	cooldowns *cooldown.Ledger
	log       logger.Logger

	sweepSpec  string
	pruneSpec  string
	batchSize  int
	staleAfter time.Duration
	now        func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithSweepSpec sets the cron spec for the decay sweep.
func WithSweepSpec(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.sweepSpec = spec
		}
	}
}

// WithBatchSize caps the number of entities settled per sweep run.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithStaleAfter sets how long an entity may go unsettled before the
// sweep picks it up.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithCooldowns attaches a cooldown ledger to prune on the daily job.
func WithCooldowns(l *cooldown.Ledger) Option {
	return func(s *Sweeper) {
		s.cooldowns = l
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper creates a Sweeper over the given store and decay engine.
func NewSweeper(store repository.Store, engine *decay.Engine, opts ...Option) *Sweeper {
	s := &Sweeper{
		cron:       cron.New(),
		store:      store,
		decay:      engine,
		log:        logger.Named("sweeper"),
		sweepSpec:  defaultSweepSpec,
		pruneSpec:  defaultPruneSpec,
		batchSize:  defaultBatchSize,
		staleAfter: defaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the cron entries and starts the scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.sweepSpec, func() {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.log.Error(ctx, "decay sweep failed", logger.Error(err))
		}
	}); err != nil {
		return err
	}

	if s.cooldowns != nil {
		if _, err := s.cron.AddFunc(s.pruneSpec, func() {
			pruned := s.cooldowns.Prune(s.now())
			s.log.Debug(ctx, "cooldown ledger pruned", logger.Int("removed", pruned))
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info(ctx, "background sweeper started",
		logger.String("sweepSpec", s.sweepSpec))
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	<-done.Done()
	s.log.Info(ctx, "background sweeper stopped")
}

// SweepOnce settles one batch of stale entities and returns how many
// were settled. Version conflicts are skipped: a concurrent rating has
// already settled that entity.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.staleAfter)

	ids, err := s.store.StaleEntities(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, id := range ids {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return settled, err
		}

		score, at := s.decay.Settle(rec, now)
		if score == rec.Score && !at.After(rec.LastDecay) {
			continue
		}

		if _, err := s.store.SettleDecay(ctx, id, score, at, rec.Version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) || errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return settled, err
		}
		metrics.RecordDecaySettle(rec.Score - score)
		settled++
	}

	metrics.RecordDecaySweep(settled)
	if settled > 0 {
		s.log.Debug(ctx, "decay sweep settled entities", logger.Int("count", settled))
	}
	return settled, nil
}
