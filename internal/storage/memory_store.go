package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of ObjectStore used by tests and
// by builds running with the cache disabled.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	calls   Calls
}

// Calls tracks method invocations for test verification.
type Calls struct {
	Put    int
	Get    int
	Exists int
	Delete int
	List   int
}

// NewMemoryStore creates a new in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*Object),
	}
}

// Put stores an object and returns its content hash.
func (m *MemoryStore) Put(_ context.Context, obj *Object) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	hash := obj.Hash
	if hash == "" {
		h := sha256.Sum256(obj.Data)
		hash = hex.EncodeToString(h[:])
	}

	if _, ok := m.objects[hash]; ok {
		return hash, nil
	}

	now := time.Now()
	m.objects[hash] = &Object{
		Hash: hash,
		Type: obj.Type,
		Size: int64(len(obj.Data)),
		Data: append([]byte(nil), obj.Data...),
		Metadata: Metadata{
			CreatedAt:    now,
			LastAccessed: now,
			Custom:       copyLabels(obj.Metadata.Custom),
		},
	}
	return hash, nil
}

// Get retrieves an object by its content hash.
func (m *MemoryStore) Get(_ context.Context, hash string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	obj, ok := m.objects[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	obj.Metadata.LastAccessed = time.Now()

	// Return a copy to prevent external modification
	return &Object{
		Hash: obj.Hash,
		Type: obj.Type,
		Size: obj.Size,
		Data: append([]byte(nil), obj.Data...),
		Metadata: Metadata{
			CreatedAt:    obj.Metadata.CreatedAt,
			LastAccessed: obj.Metadata.LastAccessed,
			Custom:       copyLabels(obj.Metadata.Custom),
		},
	}, nil
}

// Exists checks if an object with the given hash exists.
func (m *MemoryStore) Exists(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++

	_, ok := m.objects[hash]
	return ok, nil
}

// Delete removes an object by its content hash.
func (m *MemoryStore) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++

	if _, ok := m.objects[hash]; !ok {
		return ErrNotFound{Hash: hash}
	}
	delete(m.objects, hash)
	return nil
}

// List returns all object hashes matching the given type filter, sorted.
func (m *MemoryStore) List(_ context.Context, objectType ObjectType) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++

	var hashes []string
	for hash, obj := range m.objects {
		if objectType == "" || obj.Type == objectType {
			hashes = append(hashes, hash)
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

// GC removes every object not listed in referenced.
func (m *MemoryStore) GC(_ context.Context, referenced map[string]bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for hash := range m.objects {
		if !referenced[hash] {
			delete(m.objects, hash)
			removed++
		}
	}
	return removed, nil
}

// Close releases resources (no-op).
func (m *MemoryStore) Close() error {
	return nil
}

// GetCalls returns the number of times each method was called.
func (m *MemoryStore) GetCalls() Calls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Size returns the number of stored objects.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// String returns a string representation for debugging.
func (m *MemoryStore) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("MemoryStore{objects: %d, calls: %+v}", len(m.objects), m.calls)
}

func copyLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
