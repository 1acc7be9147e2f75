// Package decay implements the time-based pull of idle scores toward a
// neutral baseline.
package decay

import (
	"math"
	"time"

	"github.com/trustfabric/equilibrate/internal/domain/model"
)

// Default engine constants; production values come from config.
const (
	defaultBaseline = 2.5
	defaultHalfLife = 90 * 24 * time.Hour
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBaseline sets the neutral baseline scores decay toward.
func WithBaseline(baseline float64) Option {
	return func(e *Engine) {
		e.baseline = baseline
	}
}

// WithHalfLife sets the decay half-life.
func WithHalfLife(halfLife time.Duration) Option {
	return func(e *Engine) {
		if halfLife > 0 {
			e.halfLife = halfLife
		}
	}
}

// Engine settles scores to the present moment. It is a pure function of
// its inputs and holds no shared mutable state.
type Engine struct {
	baseline float64
	halfLife time.Duration
}

// New creates an Engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		baseline: defaultBaseline,
		halfLife: defaultHalfLife,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Baseline returns the neutral baseline.
func (e *Engine) Baseline() float64 {
	return e.baseline
}

// Settle returns the record's score pulled toward the baseline for the time
// elapsed since its last settlement, and the timestamp the score is now
// settled to. The settlement timestamp never moves backward: events carrying
// a logical timestamp earlier than the last settlement are settled against
// now at commit time.
func (e *Engine) Settle(rec model.TrustRecord, now time.Time) (float64, time.Time) {
	if !now.After(rec.LastDecay) {
		return rec.Score, rec.LastDecay
	}

	elapsed := now.Sub(rec.LastDecay)
	lambda := math.Ln2 / float64(e.halfLife)
	factor := math.Exp(-lambda * float64(elapsed))
	settled := e.baseline + (rec.Score-e.baseline)*factor
	return settled, now
}
