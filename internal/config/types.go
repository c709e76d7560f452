package config

// Config represents the mdcompile configuration file.
type Config struct {
	Build        BuildConfig        `yaml:"build"`
	Generation   GenerationConfig   `yaml:"generation"`
	Verification VerificationConfig `yaml:"verification"`
	Cache        CacheConfig        `yaml:"cache"`
	Output       OutputConfig       `yaml:"output"`
	Events       EventsConfig       `yaml:"events"`
	Watch        WatchConfig        `yaml:"watch"`
}

// BuildConfig controls which documents are compiled and how much runs in parallel.
type BuildConfig struct {
	Sources []string `yaml:"sources,omitempty"` // files or directories walked for *.md
	Workers int      `yaml:"workers,omitempty"`
}

// GenerationConfig configures the generation backend and the retry loop around it.
type GenerationConfig struct {
	Backend           BackendKind      `yaml:"backend,omitempty"`
	Model             string           `yaml:"model,omitempty"`
	APIKey            string           `yaml:"api_key,omitempty"` // usually ${ANTHROPIC_API_KEY} or ${GEMINI_API_KEY}
	MaxTokens         int              `yaml:"max_tokens,omitempty"`
	MaxAttempts       int              `yaml:"max_attempts,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
	AttemptTimeout    string           `yaml:"attempt_timeout,omitempty"`
	Command           []string         `yaml:"command,omitempty"`     // backend=command
	FixtureDir        string           `yaml:"fixture_dir,omitempty"` // backend=fixture
}

// VerificationConfig configures the contract verifier.
type VerificationConfig struct {
	TestTimeout    string   `yaml:"test_timeout,omitempty"`
	AllowedImports []string `yaml:"allowed_imports,omitempty"` // added to the built-in stdlib allow-list
}

// CacheConfig configures the artifact cache.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory,omitempty"`
	LRUSize   int    `yaml:"lru_size,omitempty"`
}

// OutputConfig configures the emitted build tree.
type OutputConfig struct {
	Directory string `yaml:"directory,omitempty"`
	Module    string `yaml:"module,omitempty"` // Go module path of the emitted tree; units import each other below it
	Clean     bool   `yaml:"clean,omitempty"`
	GitCommit bool   `yaml:"git_commit,omitempty"`
}

// EventsConfig configures build lifecycle events.
type EventsConfig struct {
	History bool   `yaml:"history,omitempty"` // record events in <cache dir>/events.db
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce    string `yaml:"debounce,omitempty"`
	GCInterval  string `yaml:"gc_interval,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}
