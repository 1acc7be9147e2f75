package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/pkg/logger"
	"github.com/trustfabric/equilibrate/pkg/metrics"
)

// Schema holds the DDL for the Postgres backend. Applied on startup via
// InitSchema; all statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS trust_records (
	entity_id      TEXT PRIMARY KEY,
	score          DOUBLE PRECISION NOT NULL,
	last_decay     TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	version        BIGINT NOT NULL,
	event_count    BIGINT NOT NULL DEFAULT 0,
	positive_count BIGINT NOT NULL DEFAULT 0,
	negative_count BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS trust_records_last_decay_idx ON trust_records (last_decay);

CREATE TABLE IF NOT EXISTS rating_history (
	id         BIGSERIAL PRIMARY KEY,
	event_id   TEXT NOT NULL,
	rater_id   TEXT NOT NULL,
	target_id  TEXT NOT NULL,
	stars      INT NOT NULL,
	polarity   TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	delta      DOUBLE PRECISION NOT NULL,
	old_score  DOUBLE PRECISION NOT NULL,
	new_score  DOUBLE PRECISION NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS rating_history_target_idx ON rating_history (target_id, applied_at DESC);

CREATE TABLE IF NOT EXISTS appeals (
	id        BIGSERIAL PRIMARY KEY,
	entity_id TEXT NOT NULL,
	reason    TEXT NOT NULL,
	filed_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS appeals_entity_idx ON appeals (entity_id, filed_at DESC);
`

// PGStore is a Postgres-backed Store using a pgx connection pool.
type PGStore struct {
	pool    *pgxpool.Pool
	log     logger.Logger
	neutral float64
}

// NewPGStore connects to Postgres and verifies the connection.
func NewPGStore(ctx context.Context, databaseURL string, neutralScore float64) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PGStore{
		pool:    pool,
		log:     logger.Named("pgstore"),
		neutral: neutralScore,
	}, nil
}

// InitSchema applies the schema DDL.
func (s *PGStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

const selectRecord = `
SELECT entity_id, score, last_decay, created_at, version, event_count, positive_count, negative_count
FROM trust_records WHERE entity_id = $1`

func scanRecord(row pgx.Row) (model.TrustRecord, error) {
	var rec model.TrustRecord
	err := row.Scan(&rec.EntityID, &rec.Score, &rec.LastDecay, &rec.CreatedAt,
		&rec.Version, &rec.EventCount, &rec.PositiveCount, &rec.NegativeCount)
	return rec, err
}

func (s *PGStore) Get(ctx context.Context, entityID string) (model.TrustRecord, error) {
	start := time.Now()
	rec, err := scanRecord(s.pool.QueryRow(ctx, selectRecord, entityID))
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TrustRecord{}, ErrNotFound
		}
		metrics.RecordStoreError()
		return model.TrustRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, nil
}

func (s *PGStore) Ensure(ctx context.Context, entityID string, now time.Time) (model.TrustRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `
		INSERT INTO trust_records (entity_id, score, last_decay, created_at, version)
		VALUES ($1, $2, $3, $3, 1)
		ON CONFLICT (entity_id) DO UPDATE SET entity_id = EXCLUDED.entity_id
		RETURNING entity_id, score, last_decay, created_at, version, event_count, positive_count, negative_count`,
		entityID, s.neutral, now))
	if err != nil {
		metrics.RecordStoreError()
		return model.TrustRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, nil
}

func (s *PGStore) CommitRating(ctx context.Context, c RatingCommit) (model.TrustRecord, error) {
	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		metrics.RecordStoreError()
		return model.TrustRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var rec model.TrustRecord
	if c.Applied {
		pos, neg := 0, 0
		switch {
		case c.Entry.Delta > 0:
			pos = 1
		case c.Entry.Delta < 0:
			neg = 1
		}
		rec, err = scanRecord(tx.QueryRow(ctx, `
			UPDATE trust_records
			SET score = $3, last_decay = $4, version = version + 1,
			    event_count = event_count + 1,
			    positive_count = positive_count + $5,
			    negative_count = negative_count + $6
			WHERE entity_id = $1 AND version = $2
			RETURNING entity_id, score, last_decay, created_at, version, event_count, positive_count, negative_count`,
			c.TargetID, c.ExpectedVersion, c.NewScore, c.SettledAt, pos, neg))
	} else {
		rec, err = scanRecord(tx.QueryRow(ctx, `
			UPDATE trust_records
			SET version = version + 1, event_count = event_count + 1
			WHERE entity_id = $1 AND version = $2
			RETURNING entity_id, score, last_decay, created_at, version, event_count, positive_count, negative_count`,
			c.TargetID, c.ExpectedVersion))
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TrustRecord{}, s.commitConflict(ctx, c.TargetID)
		}
		metrics.RecordStoreError()
		return model.TrustRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	e := c.Entry
	if _, err := tx.Exec(ctx, `
		INSERT INTO rating_history (event_id, rater_id, target_id, stars, polarity, verdict, delta, old_score, new_score, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.EventID, e.RaterID, e.TargetID, e.Stars, string(e.Polarity), string(e.Verdict),
		e.Delta, e.OldScore, e.NewScore, e.AppliedAt); err != nil {
		metrics.RecordStoreError()
		return model.TrustRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.RecordStoreError()
		return model.TrustRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.RecordStoreCommitLatency(float64(time.Since(start).Milliseconds()))
	return rec, nil
}

// commitConflict distinguishes a stale version from a missing record after an
// UPDATE matched no rows.
func (s *PGStore) commitConflict(ctx context.Context, entityID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trust_records WHERE entity_id = $1)`, entityID).Scan(&exists)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists {
		return ErrVersionConflict
	}
	return ErrNotFound
}

func (s *PGStore) SettleDecay(ctx context.Context, entityID string, score float64, at time.Time, expectedVersion int64) (model.TrustRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `
		UPDATE trust_records
		SET score = $3, last_decay = $4, version = version + 1
		WHERE entity_id = $1 AND version = $2
		RETURNING entity_id, score, last_decay, created_at, version, event_count, positive_count, negative_count`,
		entityID, expectedVersion, score, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TrustRecord{}, s.commitConflict(ctx, entityID)
		}
		metrics.RecordStoreError()
		return model.TrustRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, nil
}

func (s *PGStore) History(ctx context.Context, entityID string, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, rater_id, target_id, stars, polarity, verdict, delta, old_score, new_score, applied_at
		FROM rating_history WHERE target_id = $1
		ORDER BY applied_at DESC, id DESC LIMIT $2`, entityID, limit)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var polarity, verdict string
		if err := rows.Scan(&e.EventID, &e.RaterID, &e.TargetID, &e.Stars, &polarity,
			&verdict, &e.Delta, &e.OldScore, &e.NewScore, &e.AppliedAt); err != nil {
			metrics.RecordStoreError()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		e.Polarity = model.Polarity(polarity)
		e.Verdict = model.Verdict(verdict)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *PGStore) StaleEntities(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_id FROM trust_records
		WHERE last_decay < $1 ORDER BY last_decay ASC LIMIT $2`, cutoff, limit)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			metrics.RecordStoreError()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}

func (s *PGStore) AppendAppeal(ctx context.Context, appeal model.Appeal) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO appeals (entity_id, reason, filed_at)
		SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM trust_records WHERE entity_id = $1)`,
		appeal.EntityID, appeal.Reason, appeal.FiledAt)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Appeals(ctx context.Context, entityID string) ([]model.Appeal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_id, reason, filed_at FROM appeals
		WHERE entity_id = $1 ORDER BY filed_at DESC, id DESC`, entityID)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.Appeal
	for rows.Next() {
		var a model.Appeal
		if err := rows.Scan(&a.EntityID, &a.Reason, &a.FiledAt); err != nil {
			metrics.RecordStoreError()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *PGStore) Count(ctx context.Context) int {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trust_records`).Scan(&n); err != nil {
		s.log.Error(ctx, "count trust records", logger.Error(err))
		return 0
	}
	return n
}
