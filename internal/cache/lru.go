package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// LRUCache fronts another cache with a bounded in-memory lookup cache. Watch
// mode rebuilds the same fingerprints repeatedly, so most lookups never reach
// the index.
type LRUCache struct {
	next Cache
	hot  *lru.Cache[fingerprint.Fingerprint, *artifact.Artifact]
}

// NewLRU wraps next with an LRU of the given size.
func NewLRU(next Cache, size int) (*LRUCache, error) {
	hot, err := lru.New[fingerprint.Fingerprint, *artifact.Artifact](size)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "create lookup cache").WithContext("size", size).Build()
	}
	return &LRUCache{next: next, hot: hot}, nil
}

func (c *LRUCache) Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*artifact.Artifact, bool, error) {
	if a, ok := c.hot.Get(fp); ok {
		return a.Clone(), true, nil
	}
	a, ok, err := c.next.Lookup(ctx, fp)
	if err != nil || !ok {
		return a, ok, err
	}
	c.hot.Add(fp, a.Clone())
	return a, true, nil
}

func (c *LRUCache) Store(ctx context.Context, fp fingerprint.Fingerprint, a *artifact.Artifact) (bool, error) {
	stored, err := c.next.Store(ctx, fp, a)
	if err != nil {
		return false, err
	}
	if stored {
		hot := a.Clone()
		hot.Fingerprint = fp
		if hot.CreatedAt.IsZero() {
			hot.CreatedAt = time.Now().UTC()
		}
		c.hot.Add(fp, hot)
	}
	return stored, nil
}

func (c *LRUCache) Invalidate(ctx context.Context, unitID string) (int, error) {
	for _, fp := range c.hot.Keys() {
		if a, ok := c.hot.Peek(fp); ok && a.Unit == unitID {
			c.hot.Remove(fp)
		}
	}
	return c.next.Invalidate(ctx, unitID)
}

// List delegates to the wrapped cache when it supports listing.
func (c *LRUCache) List(ctx context.Context) ([]Entry, error) {
	if l, ok := c.next.(Lister); ok {
		return l.List(ctx)
	}
	return nil, nil
}

// GC delegates to the wrapped cache when it supports collection.
func (c *LRUCache) GC(ctx context.Context) (int, error) {
	if col, ok := c.next.(Collector); ok {
		return col.GC(ctx)
	}
	return 0, nil
}

func (c *LRUCache) Close() error {
	c.hot.Purge()
	return c.next.Close()
}
