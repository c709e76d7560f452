package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
	derrors "git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/storage"
)

func fp(n int) fingerprint.Fingerprint {
	return fingerprint.Fingerprint(fmt.Sprintf("%064x", n))
}

func accepted(unit, src string) *artifact.Artifact {
	return &artifact.Artifact{Unit: unit, Source: []byte(src), Verdict: artifact.VerdictAccepted, Backend: "fixture", Attempts: 1}
}

func implementations(t *testing.T) map[string]Cache {
	t.Helper()
	sqlMem, err := NewSQLite(":memory:", storage.NewMemoryStore())
	require.NoError(t, err)
	sqlDisk, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	lruOverMem, err := NewLRU(NewMemoryCache(), 8)
	require.NoError(t, err)

	caches := map[string]Cache{
		"memory":      NewMemoryCache(),
		"sqlite-mem":  sqlMem,
		"sqlite-disk": sqlDisk,
		"lru":         lruOverMem,
	}
	t.Cleanup(func() {
		for _, c := range caches {
			_ = c.Close()
		}
	})
	return caches
}

func TestCache_StoreAndLookup(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := c.Lookup(ctx, fp(1))
			require.NoError(t, err)
			assert.False(t, ok)

			a := accepted("calc", "package calc\n")
			a.Diagnostics = artifact.Diagnostics{{Check: artifact.CheckTest, Subject: "t1", Message: "flaky once"}}
			stored, err := c.Store(ctx, fp(1), a)
			require.NoError(t, err)
			assert.True(t, stored)

			got, ok, err := c.Lookup(ctx, fp(1))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "calc", got.Unit)
			assert.Equal(t, "package calc\n", string(got.Source))
			assert.Equal(t, artifact.VerdictAccepted, got.Verdict)
			assert.Equal(t, fp(1), got.Fingerprint)
			assert.Equal(t, a.Diagnostics, got.Diagnostics)
			assert.Equal(t, "fixture", got.Backend)
			assert.False(t, got.CreatedAt.IsZero())
		})
	}
}

func TestCache_StoreOnce(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stored, err := c.Store(ctx, fp(2), accepted("calc", "first"))
			require.NoError(t, err)
			require.True(t, stored)

			// Same verdict: redundant success, first write kept.
			stored, err = c.Store(ctx, fp(2), accepted("calc", "second"))
			require.NoError(t, err)
			assert.False(t, stored)
			got, _, err := c.Lookup(ctx, fp(2))
			require.NoError(t, err)
			assert.Equal(t, "first", string(got.Source))

			// Different verdict: integrity violation.
			rejected := accepted("calc", "third")
			rejected.Verdict = artifact.VerdictRejected
			_, err = c.Store(ctx, fp(2), rejected)
			var conflict *CacheConflictError
			require.True(t, errors.As(err, &conflict))
			assert.Equal(t, artifact.VerdictAccepted, conflict.Existing)
			assert.Equal(t, artifact.VerdictRejected, conflict.Proposed)
			assert.Equal(t, derrors.CategoryCache, derrors.GetCategory(err))
		})
	}
}

func TestCache_ConcurrentStoresKeepFirstWrite(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			var mu sync.Mutex
			storedCount := 0
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					stored, err := c.Store(ctx, fp(3), accepted("calc", fmt.Sprintf("candidate %d", i)))
					assert.NoError(t, err)
					if stored {
						mu.Lock()
						storedCount++
						mu.Unlock()
					}
				}(i)
				// Different fingerprints never contend.
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := c.Store(ctx, fp(100+i), accepted(fmt.Sprintf("u%d", i), "x"))
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()
			assert.Equal(t, 1, storedCount)
		})
	}
}

func TestCache_Invalidate(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, unit := range []string{"calc", "calc", "stats"} {
				_, err := c.Store(ctx, fp(10+i), accepted(unit, unit))
				require.NoError(t, err)
			}
			removed, err := c.Invalidate(ctx, "calc")
			require.NoError(t, err)
			assert.Equal(t, 2, removed)

			_, ok, err := c.Lookup(ctx, fp(10))
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = c.Lookup(ctx, fp(12))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestCache_RejectsInvalidInput(t *testing.T) {
	c := NewMemoryCache()
	_, err := c.Store(context.Background(), "", accepted("calc", "x"))
	require.Error(t, err)
	_, err = c.Store(context.Background(), fp(1), nil)
	require.Error(t, err)
	_, err = c.Store(context.Background(), fp(1), &artifact.Artifact{Unit: "calc", Verdict: "maybe"})
	require.Error(t, err)
}

func TestSQLiteCache_ListAndGC(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	c, err := NewSQLite(":memory:", blobs)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Store(ctx, fp(1), accepted("calc", "calc v1"))
	require.NoError(t, err)
	_, err = c.Store(ctx, fp(2), accepted("stats", "stats v1"))
	require.NoError(t, err)
	_, err = c.Store(ctx, fp(3), accepted("stats", "calc v1")) // shares the calc blob
	require.NoError(t, err)

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "calc", entries[0].Unit)
	assert.Equal(t, int64(len("calc v1")), entries[0].Size)

	_, err = c.Invalidate(ctx, "stats")
	require.NoError(t, err)
	removed, err := c.GC(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "only the stats v1 blob is unreferenced")
	assert.Equal(t, 1, blobs.Size())

	got, ok, err := c.Lookup(ctx, fp(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "calc v1", string(got.Source))
}

// pausingStore holds Put open after the blob is written until release is closed.
type pausingStore struct {
	*storage.MemoryStore
	written chan struct{}
	release chan struct{}
}

func (p *pausingStore) Put(ctx context.Context, obj *storage.Object) (string, error) {
	hash, err := p.MemoryStore.Put(ctx, obj)
	close(p.written)
	<-p.release
	return hash, err
}

func TestSQLiteCache_GCWaitsForPendingStore(t *testing.T) {
	ctx := context.Background()
	blobs := &pausingStore{MemoryStore: storage.NewMemoryStore(), written: make(chan struct{}), release: make(chan struct{})}
	c, err := NewSQLite(":memory:", blobs)
	require.NoError(t, err)
	defer c.Close()

	storeErr := make(chan error, 1)
	go func() {
		_, err := c.Store(ctx, fp(1), accepted("calc", "calc v1"))
		storeErr <- err
	}()
	<-blobs.written

	gcDone := make(chan int, 1)
	go func() {
		removed, err := c.GC(ctx)
		assert.NoError(t, err)
		gcDone <- removed
	}()
	select {
	case <-gcDone:
		t.Fatal("GC ran while a store was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(blobs.release)
	require.NoError(t, <-storeErr)
	assert.Equal(t, 0, <-gcDone)

	got, ok, err := c.Lookup(ctx, fp(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "calc v1", string(got.Source))
}

func TestSQLiteCache_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := OpenSQLite(dir)
	require.NoError(t, err)
	_, err = c.Store(ctx, fp(7), accepted("calc", "package calc"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	reopened, err := OpenSQLite(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, ok, err := reopened.Lookup(ctx, fp(7))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "package calc", string(got.Source))
}

func TestSQLiteCache_MissingBlobIsMiss(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	c, err := NewSQLite(":memory:", blobs)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Store(ctx, fp(1), accepted("calc", "gone"))
	require.NoError(t, err)
	_, err = blobs.GC(ctx, nil)
	require.NoError(t, err)

	_, ok, err := c.Lookup(ctx, fp(1))
	require.NoError(t, err)
	assert.False(t, ok)
	entries, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLRUCache_ServesRepeatLookupsFromMemory(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	backing, err := NewSQLite(":memory:", blobs)
	require.NoError(t, err)
	c, err := NewLRU(backing, 4)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Store(ctx, fp(1), accepted("calc", "x"))
	require.NoError(t, err)
	before := blobs.GetCalls().Get
	for i := 0; i < 3; i++ {
		a, ok, err := c.Lookup(ctx, fp(1))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fp(1), a.Fingerprint)
		assert.False(t, a.CreatedAt.IsZero())
	}
	assert.Equal(t, before, blobs.GetCalls().Get)

	removed, err := c.Invalidate(ctx, "calc")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, ok, err := c.Lookup(ctx, fp(1))
	require.NoError(t, err)
	assert.False(t, ok)
}
