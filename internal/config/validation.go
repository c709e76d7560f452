package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	if err := validateGeneration(&cfg.Generation); err != nil {
		return err
	}
	if _, err := parsePositiveDuration("verification.test_timeout", cfg.Verification.TestTimeout); err != nil {
		return err
	}
	for field, raw := range map[string]string{
		"watch.debounce":    cfg.Watch.Debounce,
		"watch.gc_interval": cfg.Watch.GCInterval,
	} {
		if _, err := parsePositiveDuration(field, raw); err != nil {
			return err
		}
	}
	return nil
}

func validateGeneration(gen *GenerationConfig) error {
	if NormalizeBackend(string(gen.Backend)) == "" {
		return invalidField("generation.backend", fmt.Sprintf("unknown backend %q", gen.Backend))
	}
	if NormalizeRetryBackoff(string(gen.RetryBackoff)) == "" {
		return invalidField("generation.retry_backoff", fmt.Sprintf("unknown mode %q", gen.RetryBackoff))
	}
	if gen.Backend == BackendCommand && len(gen.Command) == 0 {
		return invalidField("generation.command", "required when backend is command")
	}
	if gen.Backend == BackendFixture && gen.FixtureDir == "" {
		return invalidField("generation.fixture_dir", "required when backend is fixture")
	}
	for field, raw := range map[string]string{
		"generation.retry_initial_delay": gen.RetryInitialDelay,
		"generation.retry_max_delay":     gen.RetryMaxDelay,
		"generation.attempt_timeout":     gen.AttemptTimeout,
	} {
		if _, err := parsePositiveDuration(field, raw); err != nil {
			return err
		}
	}
	return nil
}

func parsePositiveDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, invalidField(field, fmt.Sprintf("invalid duration %q", raw))
	}
	if d <= 0 {
		return 0, invalidField(field, "must be positive")
	}
	return d, nil
}

func invalidField(field, reason string) error {
	return errors.ConfigError("invalid configuration").
		WithContext("field", field).
		WithContext("reason", reason).
		Build()
}

// Duration parses a validated duration field, falling back to def on error.
func Duration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
