// Package repository defines the trust score store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/trustfabric/equilibrate/internal/domain/model"
)

// RatingCommit bundles the writes of one accepted rating event. The store
// applies them as a single atomic unit per target entity: no write is
// observable until all are committed.
type RatingCommit struct {
	TargetID        string
	ExpectedVersion int64
	NewScore        float64
	SettledAt       time.Time

	// Entry is appended to the target's event history for both applied
	// and quarantined events.
	Entry model.HistoryEntry

	// Applied is false for quarantined events: the entry is recorded for
	// audit but the score and counters stay untouched.
	Applied bool
}

// Store provides read/write access to trust records, event history and
// appeals.
type Store interface {
	// Get returns the trust record for an entity.
	// Returns ErrNotFound if the entity is unknown.
	Get(ctx context.Context, entityID string) (model.TrustRecord, error)

	// Ensure returns the entity's trust record, creating one with the
	// neutral default score when absent.
	Ensure(ctx context.Context, entityID string, now time.Time) (model.TrustRecord, error)

	// CommitRating atomically persists one rating outcome.
	// Returns ErrVersionConflict when the record changed underneath the
	// caller, ErrUnavailable on storage failure.
	CommitRating(ctx context.Context, c RatingCommit) (model.TrustRecord, error)

	// SettleDecay persists a pure decay settlement with no event attached.
	SettleDecay(ctx context.Context, entityID string, score float64, at time.Time, expectedVersion int64) (model.TrustRecord, error)

	// History returns up to limit most recent history entries for a target,
	// newest first.
	History(ctx context.Context, entityID string, limit int) ([]model.HistoryEntry, error)

	// StaleEntities returns up to limit entity ids whose last settlement
	// predates cutoff, for the background decay sweep.
	StaleEntities(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// AppendAppeal records a user appeal; appeals never affect scores.
	AppendAppeal(ctx context.Context, appeal model.Appeal) error

	// Appeals returns the appeals filed for an entity, newest first.
	Appeals(ctx context.Context, entityID string) ([]model.Appeal, error)

	// Count returns the number of entities with a trust record.
	Count(ctx context.Context) int
}
