// Package cooldown tracks recency of rater-to-target interactions.
package cooldown

import (
	"sync"
	"time"
)

// Default ledger constants; production values come from config.
const (
	defaultWindow = 7 * 24 * time.Hour
)

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithWindow sets the cooldown window between accepted events from the
// same (rater, target) pair.
func WithWindow(window time.Duration) Option {
	return func(l *Ledger) {
		if window > 0 {
			l.window = window
		}
	}
}

// Outcome is the result of a cooldown check.
type Outcome struct {
	Allowed    bool
	RetryAfter time.Duration // zero when Allowed
}

type pairKey struct {
	raterID  string
	targetID string
}

// Ledger records the last accepted event timestamp per (rater, target)
// pair. Check and Commit are separate steps: a rejected or quarantined
// event never updates the ledger.
type Ledger struct {
	mu     sync.RWMutex
	window time.Duration
	last   map[pairKey]time.Time
}

// New creates a Ledger with configuration options.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		window: defaultWindow,
		last:   make(map[pairKey]time.Time),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// CheckAndReserve reports whether an event from rater to target is allowed
// at now. It has no side effects; call Commit once the event is accepted.
func (l *Ledger) CheckAndReserve(raterID, targetID string, now time.Time) Outcome {
	l.mu.RLock()
	defer l.mu.RUnlock()

	last, ok := l.last[pairKey{raterID, targetID}]
	if !ok {
		return Outcome{Allowed: true}
	}
	elapsed := now.Sub(last)
	if elapsed >= l.window {
		return Outcome{Allowed: true}
	}
	return Outcome{Allowed: false, RetryAfter: l.window - elapsed}
}

// Commit records now as the last accepted event timestamp for the pair.
func (l *Ledger) Commit(raterID, targetID string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[pairKey{raterID, targetID}] = now
}

// Prune drops pairs whose last accepted event predates the cooldown window
// at now. Returns the number of pairs removed.
func (l *Ledger) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, last := range l.last {
		if now.Sub(last) >= l.window {
			delete(l.last, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked pairs.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.last)
}
