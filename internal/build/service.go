package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/build/validation"
	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/parser"
)

// BuildService is the canonical interface for executing builds.
type BuildService interface {
	// Run executes the pipeline: parse → model → graph → fingerprint → generate → emit.
	// Per-unit failures are reported in the result; the returned error is
	// reserved for failures of the whole run.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs required to execute a build.
type BuildRequest struct {
	// Config is the loaded configuration for this build.
	Config *config.Config

	// Paths are source files or directories; empty means build.sources.
	Paths []string

	// OutputDir overrides output.directory.
	OutputDir string

	// Options provides optional build behavior modifiers.
	Options BuildOptions
}

// BuildOptions provides optional configuration for build behavior.
type BuildOptions struct {
	// NoCache ignores cached artifacts for lookups. Accepted artifacts are still stored.
	NoCache bool

	// DryRun stops after fingerprinting: no generation and no output.
	DryRun bool

	// Workers overrides build.workers.
	Workers int
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	BuildID string

	// Status indicates overall build outcome.
	Status BuildStatus

	// Units holds the final state of every unit, by name.
	Units map[string]*UnitResult

	// Order is the topological order of the build graph.
	Order []string

	// Fingerprints of every unit in the build graph.
	Fingerprints map[string]fingerprint.Fingerprint

	// Targets holds each unit's output kind (library or executable).
	Targets map[string]string

	// ParseErrors lists documents excluded from the build.
	ParseErrors parser.ParseErrors
	// Findings are the structural validation results over the model.
	Findings []validation.Finding

	// Documents is the number of documents that parsed cleanly.
	Documents int

	// Summary is filled in by the emitter.
	Summary *Summary

	// OutputPath is the output directory written by the emitter.
	OutputPath string

	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// Counts tallies unit outcomes.
func (r *BuildResult) Counts() Counts {
	var c Counts
	for _, u := range r.Units {
		switch u.State {
		case StateAccepted:
			if u.FromCache {
				c.FromCache++
			} else {
				c.Generated++
			}
		case StateFailed:
			c.Failed++
		case StateSkipped:
			c.Skipped++
		}
	}
	return c
}

// Err reports a build error when any unit did not reach Accepted, or else the
// parse errors of excluded documents. Its category selects the exit code.
func (r *BuildResult) Err() error {
	if r == nil {
		return nil
	}
	c := r.Counts()
	if c.Failed > 0 || c.Skipped > 0 {
		return errors.BuildError("build finished with failed units").
			WithContext("failed", c.Failed).
			WithContext("skipped", c.Skipped).
			Build()
	}
	if len(r.ParseErrors) > 0 {
		return r.ParseErrors
	}
	return nil
}

// Counts tallies unit outcomes of a build.
type Counts struct {
	FromCache int `json:"from_cache"`
	Generated int `json:"generated"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	// BuildStatusSuccess indicates every unit was accepted.
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusFailed indicates at least one unit failed or was skipped, or a fatal error.
	BuildStatusFailed BuildStatus = "failed"

	// BuildStatusInvalid indicates model or cycle errors; nothing was generated.
	BuildStatusInvalid BuildStatus = "invalid"

	// BuildStatusCancelled indicates the build was cancelled.
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildStatusSuccess || s == BuildStatusFailed ||
		s == BuildStatusInvalid || s == BuildStatusCancelled
}

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}
