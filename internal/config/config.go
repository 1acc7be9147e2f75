// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
// - Every scoring knob is deployment-tunable; nothing numeric is hardcoded
//   in the domain packages.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Score range bounds and the neutral baseline scores decay toward.
	MinScore     float64 `koanf:"min_score"`
	MaxScore     float64 `koanf:"max_score"`
	NeutralScore float64 `koanf:"neutral_score"`

	// BaseChange is the raw per-event delta for a maximally polar rating.
	BaseChange float64 `koanf:"base_change"`

	// DecayHalfLife is the time for an idle score to close half its
	// distance to the neutral baseline.
	DecayHalfLife time.Duration `koanf:"decay_half_life"`

	// DecaySweepInterval and DecaySweepBatch control the background job
	// that settles idle entities.
	DecaySweepSpec  string `koanf:"decay_sweep_spec"`
	DecaySweepBatch int    `koanf:"decay_sweep_batch"`

	// CooldownWindow is the minimum time between accepted events from the
	// same rater to the same target.
	CooldownWindow time.Duration `koanf:"cooldown_window"`

	// Diversity window sizing and the floor below which events are flagged.
	DiversityWindowSize int           `koanf:"diversity_window_size"`
	DiversityMaxAge     time.Duration `koanf:"diversity_max_age"`
	DiversityFloor      float64       `koanf:"diversity_floor"`

	// DifficultyExponent is the progressive difficulty exponent (>= 1).
	DifficultyExponent float64 `koanf:"difficulty_exponent"`

	// Influence calculator shape.
	InfluenceBaseWeight     float64       `koanf:"influence_base_weight"`
	InfluenceMinAgeFactor   float64       `koanf:"influence_min_age_factor"`
	InfluenceAgeSaturation  time.Duration `koanf:"influence_age_saturation"`
	InfluenceMinScoreFactor float64       `koanf:"influence_min_score_factor"`

	// Sybil guard thresholds and the dampening applied to suspicious events.
	SybilSuspiciousThreshold float64 `koanf:"sybil_suspicious_threshold"`
	SybilQuarantineThreshold float64 `koanf:"sybil_quarantine_threshold"`
	SuspiciousDampening      float64 `koanf:"suspicious_dampening"`

	// Sentiment adapter: mode is "rule", "remote" or "local".
	SentimentMode     string        `koanf:"sentiment_mode"`
	SentimentURL      string        `koanf:"sentiment_url"`
	SentimentTimeout  time.Duration `koanf:"sentiment_timeout"`
	SentimentCacheTTL time.Duration `koanf:"sentiment_cache_ttl"`
	SentimentModel    string        `koanf:"sentiment_model"`

	// CorrelationURL points at the optional anti-fraud correlation feed.
	// Empty disables the feed; Sybil detection degrades gracefully.
	CorrelationURL     string        `koanf:"correlation_url"`
	CorrelationTimeout time.Duration `koanf:"correlation_timeout"`

	// HistoryLimit bounds the per-entity event history retained.
	HistoryLimit int `koanf:"history_limit"`

	// EventQueueSize bounds the in-memory bulk ingestion queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of bulk ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event-id idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DatabaseURL selects the Postgres trust store when set; empty keeps
	// the in-memory store.
	DatabaseURL string `koanf:"database_url"`

	// NatsURL enables the review/score publisher when set.
	NatsURL   string `koanf:"nats_url"`
	NatsToken string `koanf:"nats_token"`
}

// New creates a Config populated with deployment defaults.
func New() *Config {
	c := &Config{
		LogLevel:                 "info",
		Addr:                     ":9090",
		MinScore:                 0.0,
		MaxScore:                 5.0,
		NeutralScore:             2.5,
		BaseChange:               0.06,
		DecayHalfLife:            90 * 24 * time.Hour,
		DecaySweepSpec:           "@hourly",
		DecaySweepBatch:          1000,
		CooldownWindow:           7 * 24 * time.Hour,
		DiversityWindowSize:      50,
		DiversityMaxAge:          24 * time.Hour,
		DiversityFloor:           0.25,
		DifficultyExponent:       2.0,
		InfluenceBaseWeight:      1.0,
		InfluenceMinAgeFactor:    0.2,
		InfluenceAgeSaturation:   30 * 24 * time.Hour,
		InfluenceMinScoreFactor:  0.1,
		SybilSuspiciousThreshold: 0.35,
		SybilQuarantineThreshold: 0.7,
		SuspiciousDampening:      0.25,
		SentimentMode:            "rule",
		SentimentTimeout:         2 * time.Second,
		SentimentCacheTTL:        5 * time.Minute,
		SentimentModel:           "KnightsAnalytics/distilbert-base-uncased-finetuned-sst-2-english",
		CorrelationTimeout:       time.Second,
		HistoryLimit:             500,
		EventQueueSize:           100_000,
		WorkerCount:              runtime.NumCPU() * 2,
		DedupeSize:               500_000,
	}
	return c
}
