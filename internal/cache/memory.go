package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
)

// MemoryCache keeps artifacts in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[fingerprint.Fingerprint]*artifact.Artifact
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[fingerprint.Fingerprint]*artifact.Artifact)}
}

func (c *MemoryCache) Lookup(_ context.Context, fp fingerprint.Fingerprint) (*artifact.Artifact, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.entries[fp]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (c *MemoryCache) Store(_ context.Context, fp fingerprint.Fingerprint, a *artifact.Artifact) (bool, error) {
	if err := validate(fp, a); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[fp]; ok {
		if existing.Verdict != a.Verdict {
			return false, &CacheConflictError{Fingerprint: fp, Unit: a.Unit, Existing: existing.Verdict, Proposed: a.Verdict}
		}
		return false, nil
	}
	stored := a.Clone()
	stored.Fingerprint = fp
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	c.entries[fp] = stored
	return true, nil
}

func (c *MemoryCache) Invalidate(_ context.Context, unitID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for fp, a := range c.entries {
		if a.Unit == unitID {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed, nil
}

// List returns entries sorted by unit then creation time.
func (c *MemoryCache) List(_ context.Context) ([]Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for fp, a := range c.entries {
		out = append(out, Entry{Unit: a.Unit, Fingerprint: fp, Verdict: a.Verdict, Size: int64(len(a.Source)), CreatedAt: a.CreatedAt})
	}
	sortEntries(out)
	return out, nil
}

func (c *MemoryCache) Close() error { return nil }

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Unit != entries[j].Unit {
			return entries[i].Unit < entries[j].Unit
		}
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].Fingerprint < entries[j].Fingerprint
	})
}
