// Package diversity tracks how broadly a target's recent ratings are
// sourced across distinct raters.
package diversity

import (
	"sync"
	"time"
)

// Default window constants; production values come from config.
const (
	defaultWindowSize = 50
	defaultMaxAge     = 24 * time.Hour
)

// Option applies a configuration option to the Window.
type Option func(*Window)

// WithWindowSize bounds the number of recent events kept per target.
func WithWindowSize(size int) Option {
	return func(w *Window) {
		if size > 0 {
			w.size = size
		}
	}
}

// WithMaxAge bounds the age of events kept per target.
func WithMaxAge(maxAge time.Duration) Option {
	return func(w *Window) {
		if maxAge > 0 {
			w.maxAge = maxAge
		}
	}
}

type entry struct {
	raterID   string
	clusterID string
	at        time.Time
}

// Window maintains a bounded sliding window of recent rater ids per target.
// Evaluate and Commit are separate steps, mutated only on the commit path.
type Window struct {
	mu      sync.RWMutex
	size    int
	maxAge  time.Duration
	entries map[string][]entry // targetID -> ring of recent accepted events
}

// New creates a Window with configuration options.
func New(opts ...Option) *Window {
	w := &Window{
		size:    defaultWindowSize,
		maxAge:  defaultMaxAge,
		entries: make(map[string][]entry),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Evaluate returns a diversity score in [0,1] for an event from raterID
// (optionally carrying a correlation clusterID) against targetID's recent
// window. 1.0 means perfectly diverse recent sources; values near 0 mean a
// single rater or correlated cluster dominates. An empty window scores 1.0.
func (w *Window) Evaluate(targetID, raterID, clusterID string, now time.Time) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	live := 0
	matching := 0
	for _, e := range w.entries[targetID] {
		if now.Sub(e.at) > w.maxAge {
			continue
		}
		live++
		if e.raterID == raterID || (clusterID != "" && e.clusterID == clusterID) {
			matching++
		}
	}
	if live == 0 {
		return 1.0
	}
	// Count the incoming event itself so back-to-back submissions from one
	// source degrade immediately.
	return 1.0 - float64(matching+1)/float64(live+1)
}

// Commit appends an accepted event to the target's window, evicting the
// oldest entries beyond the configured size.
func (w *Window) Commit(targetID, raterID, clusterID string, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ring := append(w.entries[targetID], entry{raterID: raterID, clusterID: clusterID, at: now})

	// Drop aged-out entries first, then enforce the size bound.
	trimmed := ring[:0]
	for _, e := range ring {
		if now.Sub(e.at) <= w.maxAge {
			trimmed = append(trimmed, e)
		}
	}
	if len(trimmed) > w.size {
		trimmed = trimmed[len(trimmed)-w.size:]
	}
	w.entries[targetID] = trimmed
}

// Targets returns the number of targets with a live window.
func (w *Window) Targets() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}
