package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Default values applied when the configuration file leaves a field empty.
const (
	DefaultWorkers           = 4
	DefaultMaxAttempts       = 3
	DefaultRetryInitialDelay = "1s"
	DefaultRetryMaxDelay     = "30s"
	DefaultAttemptTimeout    = "5m"
	DefaultTestTimeout       = "10s"
	DefaultCacheDirectory    = ".mdcompile"
	DefaultOutputDirectory   = "./build"
	DefaultOutputModule      = "mdout"
	DefaultLRUSize           = 256
	DefaultEventsSubject     = "mdcompile.events"
	DefaultWatchDebounce     = "500ms"
	DefaultGCInterval        = "1h"
	DefaultAnthropicModel    = "claude-sonnet-4-5"
	DefaultGeminiModel       = "gemini-2.5-flash"
	DefaultMaxTokens         = 8192
)

// Load loads configuration from the specified file. A missing file is not an
// error when allowMissing is set; defaults are returned instead.
func Load(configPath string, allowMissing bool) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(configPath) // #nosec G304 - path is user supplied by design
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			cfg := Default()
			return cfg, nil
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "read configuration file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{Cache: CacheConfig{Enabled: true}}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "parse configuration file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Cache: CacheConfig{Enabled: true}}
	_ = applyDefaults(cfg)
	return cfg
}

// loadEnvFile loads .env and .env.local when present. Existing process
// environment variables are not overwritten.
func loadEnvFile() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "Note: could not load %s: %v\n", envPath, err)
		}
	}
}

func applyDefaults(cfg *Config) error {
	if cfg.Build.Workers <= 0 {
		cfg.Build.Workers = DefaultWorkers
	}

	gen := &cfg.Generation
	if gen.Backend == "" {
		gen.Backend = BackendAnthropic
	} else if b := NormalizeBackend(string(gen.Backend)); b != "" {
		gen.Backend = b
	}
	if gen.Model == "" {
		switch gen.Backend {
		case BackendAnthropic:
			gen.Model = DefaultAnthropicModel
		case BackendGemini:
			gen.Model = DefaultGeminiModel
		}
	}
	if gen.MaxTokens <= 0 {
		gen.MaxTokens = DefaultMaxTokens
	}
	if gen.MaxAttempts <= 0 {
		gen.MaxAttempts = DefaultMaxAttempts
	}
	if gen.RetryBackoff == "" {
		gen.RetryBackoff = RetryBackoffLinear
	} else if m := NormalizeRetryBackoff(string(gen.RetryBackoff)); m != "" {
		gen.RetryBackoff = m
	}
	if gen.RetryInitialDelay == "" {
		gen.RetryInitialDelay = DefaultRetryInitialDelay
	}
	if gen.RetryMaxDelay == "" {
		gen.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if gen.AttemptTimeout == "" {
		gen.AttemptTimeout = DefaultAttemptTimeout
	}

	if cfg.Verification.TestTimeout == "" {
		cfg.Verification.TestTimeout = DefaultTestTimeout
	}

	if cfg.Cache.Directory == "" {
		cfg.Cache.Directory = DefaultCacheDirectory
	}
	if cfg.Cache.LRUSize <= 0 {
		cfg.Cache.LRUSize = DefaultLRUSize
	}

	if cfg.Output.Directory == "" {
		cfg.Output.Directory = DefaultOutputDirectory
	}
	if cfg.Output.Module == "" {
		cfg.Output.Module = DefaultOutputModule
	}

	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventsSubject
	}

	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
	if cfg.Watch.GCInterval == "" {
		cfg.Watch.GCInterval = DefaultGCInterval
	}
	return nil
}
