package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if EQUILIBRATE_CONFIG is set
//  3. env (prefix EQUILIBRATE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("EQUILIBRATE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: EQUILIBRATE_ADDR, EQUILIBRATE_BASE_CHANGE, ...
	// Map env keys like EQUILIBRATE_QUEUE_SIZE -> queue_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("EQUILIBRATE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "equilibrate_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate enforces the structural invariants the scoring engine relies on.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxScore <= c.MinScore:
		return fmt.Errorf("%w: max_score must exceed min_score", ErrInvalidConfig)
	case c.NeutralScore < c.MinScore || c.NeutralScore > c.MaxScore:
		return fmt.Errorf("%w: neutral_score must lie within the score range", ErrInvalidConfig)
	case c.DifficultyExponent < 1:
		return fmt.Errorf("%w: difficulty_exponent must be >= 1", ErrInvalidConfig)
	case c.DecayHalfLife <= 0:
		return fmt.Errorf("%w: decay_half_life must be positive", ErrInvalidConfig)
	case c.CooldownWindow <= 0:
		return fmt.Errorf("%w: cooldown_window must be positive", ErrInvalidConfig)
	case c.DiversityFloor < 0 || c.DiversityFloor > 1:
		return fmt.Errorf("%w: diversity_floor must lie in [0,1]", ErrInvalidConfig)
	case c.SybilSuspiciousThreshold >= c.SybilQuarantineThreshold:
		return fmt.Errorf("%w: sybil_suspicious_threshold must be below sybil_quarantine_threshold", ErrInvalidConfig)
	case c.SuspiciousDampening <= 0 || c.SuspiciousDampening > 1:
		return fmt.Errorf("%w: suspicious_dampening must lie in (0,1]", ErrInvalidConfig)
	}
	return nil
}
