// Package sybil aggregates independent anti-gaming signals into a single
// per-event verdict.
package sybil

import (
	"github.com/trustfabric/equilibrate/internal/domain/model"
)

// Default guard constants; production values come from config.
const (
	defaultDiversityFloor       = 0.25
	defaultSuspiciousThreshold  = 0.35
	defaultQuarantineThreshold  = 0.7
	defaultDiversityWeight      = 0.5
	defaultContradictionWeight  = 0.4
	defaultClusterWeight        = 0.35
	defaultNewAccountWeight     = 0.15
)

// Option applies a configuration option to the Guard.
type Option func(*Guard)

// WithDiversityFloor sets the diversity score below which events are flagged.
func WithDiversityFloor(floor float64) Option {
	return func(g *Guard) {
		if floor >= 0 && floor <= 1 {
			g.diversityFloor = floor
		}
	}
}

// WithThresholds sets the suspicion thresholds for the three-tier verdict.
func WithThresholds(suspicious, quarantine float64) Option {
	return func(g *Guard) {
		if suspicious > 0 && quarantine > suspicious {
			g.suspiciousThreshold = suspicious
			g.quarantineThreshold = quarantine
		}
	}
}

// WithSignalWeights sets the contribution of each heuristic.
func WithSignalWeights(diversity, contradiction, cluster, newAccount float64) Option {
	return func(g *Guard) {
		if diversity >= 0 {
			g.diversityWeight = diversity
		}
		if contradiction >= 0 {
			g.contradictionWeight = contradiction
		}
		if cluster >= 0 {
			g.clusterWeight = cluster
		}
		if newAccount >= 0 {
			g.newAccountWeight = newAccount
		}
	}
}

// Signals bundles the independent heuristic outputs for one event. New
// heuristics are added here and weighed in Assess without touching the
// transaction coordinator.
type Signals struct {
	// CooldownViolation is set when the cooldown ledger rejected the pair.
	CooldownViolation bool

	// DiversityScore in [0,1] from the diversity window.
	DiversityScore float64

	// Contradiction is set when sentiment opposes the star rating;
	// ContradictionConfidence carries the classifier's confidence.
	Contradiction           bool
	ContradictionConfidence float64

	// SharedCluster is set when the rater resolves to a correlation
	// cluster that already appears in the target's recent window.
	SharedCluster bool

	// InfluenceWeight is the rater's computed weight; very low weights
	// mark throwaway accounts.
	InfluenceWeight float64
}

// Assessment is the guard's verdict plus the suspicion score behind it,
// kept for audit logging.
type Assessment struct {
	Verdict   model.Verdict
	Suspicion float64
}

// Guard scores events against configured suspicion thresholds. The
// three-tier response is deliberate: rejecting merely suspicious activity
// outright would punish false positives too harshly.
type Guard struct {
	diversityFloor      float64
	suspiciousThreshold float64
	quarantineThreshold float64
	diversityWeight     float64
	contradictionWeight float64
	clusterWeight       float64
	newAccountWeight    float64
}

// New creates a Guard with configuration options.
func New(opts ...Option) *Guard {
	g := &Guard{
		diversityFloor:      defaultDiversityFloor,
		suspiciousThreshold: defaultSuspiciousThreshold,
		quarantineThreshold: defaultQuarantineThreshold,
		diversityWeight:     defaultDiversityWeight,
		contradictionWeight: defaultContradictionWeight,
		clusterWeight:       defaultClusterWeight,
		newAccountWeight:    defaultNewAccountWeight,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Assess aggregates the signals into a verdict. A cooldown violation is a
// policy breach, not an ambiguous signal, and quarantines immediately.
func (g *Guard) Assess(sig Signals) Assessment {
	if sig.CooldownViolation {
		return Assessment{Verdict: model.VerdictQuarantined, Suspicion: 1}
	}

	suspicion := 0.0

	if sig.DiversityScore < g.diversityFloor {
		// Scale by how far below the floor the window has collapsed.
		deficit := (g.diversityFloor - sig.DiversityScore) / g.diversityFloor
		suspicion += g.diversityWeight * deficit
	}

	if sig.Contradiction {
		suspicion += g.contradictionWeight * sig.ContradictionConfidence
	}

	if sig.SharedCluster {
		suspicion += g.clusterWeight
	}

	if sig.InfluenceWeight < 0.1 {
		suspicion += g.newAccountWeight
	}

	switch {
	case suspicion >= g.quarantineThreshold:
		return Assessment{Verdict: model.VerdictQuarantined, Suspicion: suspicion}
	case suspicion >= g.suspiciousThreshold:
		return Assessment{Verdict: model.VerdictSuspicious, Suspicion: suspicion}
	default:
		return Assessment{Verdict: model.VerdictClean, Suspicion: suspicion}
	}
}
