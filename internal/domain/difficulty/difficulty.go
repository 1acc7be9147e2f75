// Package difficulty implements progressive difficulty scaling of score deltas.
package difficulty

import "math"

// Default scaler constants; production values come from config.
const (
	defaultMinScore = 0.0
	defaultMaxScore = 5.0
	defaultExponent = 2.0
)

// Option applies a configuration option to the Scaler.
type Option func(*Scaler)

// WithScoreRange sets the score bounds used for normalization.
func WithScoreRange(minScore, maxScore float64) Option {
	return func(s *Scaler) {
		if maxScore > minScore {
			s.minScore = minScore
			s.maxScore = maxScore
		}
	}
}

// WithExponent sets the difficulty exponent (>= 1).
func WithExponent(k float64) Option {
	return func(s *Scaler) {
		if k >= 1 {
			s.exponent = k
		}
	}
}

// Scaler dampens positive deltas as the target's score approaches the
// ceiling. Negative deltas pass through unscaled: losing trust stays easy,
// maxing it out stays hard.
type Scaler struct {
	minScore float64
	maxScore float64
	exponent float64
}

// New creates a Scaler with configuration options.
func New(opts ...Option) *Scaler {
	s := &Scaler{
		minScore: defaultMinScore,
		maxScore: defaultMaxScore,
		exponent: defaultExponent,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scale returns the effective delta for a raw delta against the target's
// current score.
func (s *Scaler) Scale(targetScore, rawDelta float64) float64 {
	if rawDelta <= 0 {
		return rawDelta
	}
	norm := (targetScore - s.minScore) / (s.maxScore - s.minScore)
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	return rawDelta * math.Pow(1-norm, s.exponent)
}
