package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/pkg/metrics"
)

const (
	defaultNeutralScore = 2.5
	defaultHistoryLimit = 500
)

type memRecord struct {
	rec     model.TrustRecord
	history []model.HistoryEntry
	appeals []model.Appeal
}

// MemStore is an in-memory Store keyed by entity id. It is safe for
// concurrent use and is the default backend when no database is configured.
type MemStore struct {
	mu           sync.RWMutex
	records      map[string]*memRecord
	neutral      float64
	historyLimit int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	m := &MemStore{
		records:      make(map[string]*memRecord),
		neutral:      defaultNeutralScore,
		historyLimit: defaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemStore) Get(_ context.Context, entityID string) (model.TrustRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[entityID]
	if !ok {
		return model.TrustRecord{}, ErrNotFound
	}
	return r.rec, nil
}

func (m *MemStore) Ensure(_ context.Context, entityID string, now time.Time) (model.TrustRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[entityID]
	if !ok {
		r = &memRecord{rec: model.TrustRecord{
			EntityID:  entityID,
			Score:     m.neutral,
			LastDecay: now,
			CreatedAt: now,
			Version:   1,
		}}
		m.records[entityID] = r
		metrics.UpdateTrackedEntities(len(m.records))
	}
	return r.rec, nil
}

func (m *MemStore) CommitRating(_ context.Context, c RatingCommit) (model.TrustRecord, error) {
	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[c.TargetID]
	if !ok {
		return model.TrustRecord{}, ErrNotFound
	}
	if r.rec.Version != c.ExpectedVersion {
		return model.TrustRecord{}, ErrVersionConflict
	}

	r.rec.Version++
	r.rec.EventCount++
	if c.Applied {
		r.rec.Score = c.NewScore
		r.rec.LastDecay = c.SettledAt
		switch {
		case c.Entry.Delta > 0:
			r.rec.PositiveCount++
		case c.Entry.Delta < 0:
			r.rec.NegativeCount++
		}
	}
	r.history = append(r.history, c.Entry)
	if len(r.history) > m.historyLimit {
		r.history = r.history[len(r.history)-m.historyLimit:]
	}

	metrics.RecordStoreCommitLatency(float64(time.Since(start).Milliseconds()))
	return r.rec, nil
}

func (m *MemStore) SettleDecay(_ context.Context, entityID string, score float64, at time.Time, expectedVersion int64) (model.TrustRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[entityID]
	if !ok {
		return model.TrustRecord{}, ErrNotFound
	}
	if r.rec.Version != expectedVersion {
		return model.TrustRecord{}, ErrVersionConflict
	}
	r.rec.Version++
	r.rec.Score = score
	r.rec.LastDecay = at
	return r.rec, nil
}

func (m *MemStore) History(_ context.Context, entityID string, limit int) ([]model.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	n := len(r.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.HistoryEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = r.history[n-1-i]
	}
	return out, nil
}

func (m *MemStore) StaleEntities(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, limit)
	for id, r := range m.records {
		if r.rec.LastDecay.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	// Oldest settlements first so repeated short sweeps make progress.
	sort.Slice(ids, func(i, j int) bool {
		return m.records[ids[i]].rec.LastDecay.Before(m.records[ids[j]].rec.LastDecay)
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *MemStore) AppendAppeal(_ context.Context, appeal model.Appeal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[appeal.EntityID]
	if !ok {
		return ErrNotFound
	}
	r.appeals = append(r.appeals, appeal)
	return nil
}

func (m *MemStore) Appeals(_ context.Context, entityID string) ([]model.Appeal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]model.Appeal, len(r.appeals))
	for i := range r.appeals {
		out[i] = r.appeals[len(r.appeals)-1-i]
	}
	return out, nil
}

func (m *MemStore) Count(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
