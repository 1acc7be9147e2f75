// Package influence derives a rater's weight from its own standing.
package influence

import (
	"math"
	"time"
)

// Default calculator constants; production values come from config.
const (
	defaultBaseWeight     = 1.0
	defaultMinAgeFactor   = 0.2
	defaultAgeSaturation  = 30 * 24 * time.Hour
	defaultMinScoreFactor = 0.1
	defaultMinScore       = 0.0
	defaultMaxScore       = 5.0
)

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithBaseWeight sets the base multiplier for all raters.
func WithBaseWeight(w float64) Option {
	return func(c *Calculator) {
		if w > 0 && w <= 1 {
			c.baseWeight = w
		}
	}
}

// WithAgeFactor configures the account-age saturation curve.
func WithAgeFactor(minFactor float64, saturation time.Duration) Option {
	return func(c *Calculator) {
		if minFactor > 0 && minFactor <= 1 {
			c.minAgeFactor = minFactor
		}
		if saturation > 0 {
			c.ageSaturation = saturation
		}
	}
}

// WithScoreFactor configures the trust-score saturation curve.
func WithScoreFactor(minFactor float64) Option {
	return func(c *Calculator) {
		if minFactor > 0 && minFactor <= 1 {
			c.minScoreFactor = minFactor
		}
	}
}

// WithScoreRange sets the score bounds used for normalization.
func WithScoreRange(minScore, maxScore float64) Option {
	return func(c *Calculator) {
		if maxScore > minScore {
			c.minScore = minScore
			c.maxScore = maxScore
		}
	}
}

// Calculator computes influence weights. It is a pure function of its
// inputs and holds no shared mutable state.
type Calculator struct {
	baseWeight     float64
	minAgeFactor   float64
	ageSaturation  time.Duration
	minScoreFactor float64
	minScore       float64
	maxScore       float64
}

// New creates a Calculator with configuration options.
func New(opts ...Option) *Calculator {
	c := &Calculator{
		baseWeight:     defaultBaseWeight,
		minAgeFactor:   defaultMinAgeFactor,
		ageSaturation:  defaultAgeSaturation,
		minScoreFactor: defaultMinScoreFactor,
		minScore:       defaultMinScore,
		maxScore:       defaultMaxScore,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Weight returns the influence weight in (0, 1] for a rater with the given
// trust score and account age. Both factors saturate toward 1, so no rater
// exerts unbounded influence regardless of reputation.
func (c *Calculator) Weight(raterScore float64, accountAge time.Duration) float64 {
	w := c.baseWeight * c.ageFactor(accountAge) * c.scoreFactor(raterScore)
	if w <= 0 {
		// Brand-new accounts keep a low but non-zero weight.
		return c.baseWeight * c.minAgeFactor * c.minScoreFactor
	}
	if w > 1 {
		return 1
	}
	return w
}

// ageFactor rises from minAgeFactor toward 1 as the account ages.
func (c *Calculator) ageFactor(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	grown := 1 - math.Exp(-float64(age)/float64(c.ageSaturation))
	return c.minAgeFactor + (1-c.minAgeFactor)*grown
}

// scoreFactor rises from minScoreFactor toward 1 with the rater's own
// normalized trust score, concave so early reputation counts most.
func (c *Calculator) scoreFactor(score float64) float64 {
	norm := (score - c.minScore) / (c.maxScore - c.minScore)
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	return c.minScoreFactor + (1-c.minScoreFactor)*math.Sqrt(norm)
}
