// Package cache stores verified artifacts by fingerprint. Entries are
// append-only: the first write under a fingerprint wins and a later write with a
// different verdict is a CacheConflictError.
package cache

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Cache is the artifact cache contract. Implementations are safe for concurrent use.
type Cache interface {
	// Lookup returns the artifact stored under fp, if any.
	Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*artifact.Artifact, bool, error)

	// Store records a under fp. stored is false when an artifact with the same
	// verdict already exists; a different verdict returns *CacheConflictError.
	Store(ctx context.Context, fp fingerprint.Fingerprint, a *artifact.Artifact) (stored bool, err error)

	// Invalidate removes every entry of the unit and returns how many were removed.
	Invalidate(ctx context.Context, unitID string) (int, error)

	Close() error
}

// Entry describes one cached artifact without its source.
type Entry struct {
	Unit        string
	Fingerprint fingerprint.Fingerprint
	Verdict     artifact.Verdict
	Size        int64
	CreatedAt   time.Time
}

// Lister is implemented by caches that can enumerate their entries.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
}

// Collector is implemented by caches holding storage that can be garbage collected.
type Collector interface {
	GC(ctx context.Context) (int, error)
}

// CacheConflictError reports two different verdicts for one fingerprint. It
// indicates a fingerprinting or storage integrity bug and aborts the build.
type CacheConflictError struct {
	Fingerprint fingerprint.Fingerprint
	Unit        string
	Existing    artifact.Verdict
	Proposed    artifact.Verdict
}

func (e *CacheConflictError) Error() string {
	return fmt.Sprintf("cache conflict for unit %s at %s: stored verdict %s, new verdict %s",
		e.Unit, e.Fingerprint.Short(), e.Existing, e.Proposed)
}

// Category implements errors.Categorized.
func (e *CacheConflictError) Category() errors.ErrorCategory { return errors.CategoryCache }

func validate(fp fingerprint.Fingerprint, a *artifact.Artifact) error {
	if fp == "" {
		return errors.CacheError("cannot store artifact without fingerprint").Build()
	}
	if a == nil {
		return errors.CacheError("cannot store nil artifact").WithContext("fingerprint", fp.Short()).Build()
	}
	if a.Verdict != artifact.VerdictAccepted && a.Verdict != artifact.VerdictRejected {
		return errors.CacheError(fmt.Sprintf("invalid verdict %q", a.Verdict)).WithContext("unit", a.Unit).Build()
	}
	return nil
}
