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
//  2. file (YAML) if SPOTWATCH_CONFIG is set
//  3. env (prefix SPOTWATCH_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("SPOTWATCH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: SPOTWATCH_ADDR, SPOTWATCH_HOURLY_SEND_CAP, ...
	// Map env keys like SPOTWATCH_HOURLY_SEND_CAP -> hourly_send_cap,
	// preserving underscores to match koanf tags on the struct.
	envProvider := env.Provider("SPOTWATCH_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "spotwatch_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.PollIntervalMinutes <= 0 {
		return fmt.Errorf("%w: poll_interval_minutes must be positive", ErrInvalidConfig)
	}
	if cfg.CooldownMinutes <= 0 {
		return fmt.Errorf("%w: cooldown_minutes must be positive", ErrInvalidConfig)
	}
	if cfg.HourlySendCap <= 0 {
		return fmt.Errorf("%w: hourly_send_cap must be positive", ErrInvalidConfig)
	}
	if len(cfg.EnabledSources) == 0 {
		return fmt.Errorf("%w: at least one source must be enabled", ErrInvalidConfig)
	}
	for _, s := range cfg.EnabledSources {
		switch s {
		case "pskreporter", "dxcluster":
		default:
			return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, s)
		}
	}
	return nil
}
