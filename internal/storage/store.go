// Package storage provides content-addressable blob storage for generated unit sources.
package storage

import (
	"context"
	"errors"
	"time"
)

// ObjectStore provides content-addressable storage for artifact blobs.
// Objects are stored by their content hash, so identical outputs produced for
// different fingerprints share one blob.
type ObjectStore interface {
	// Put stores an object and returns its content hash.
	// If the object already exists, it returns the existing hash without writing.
	Put(ctx context.Context, obj *Object) (hash string, err error)

	// Get retrieves an object by its content hash.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, hash string) (*Object, error)

	// Exists checks if an object with the given hash exists.
	Exists(ctx context.Context, hash string) (bool, error)

	// Delete removes an object by its content hash.
	// Returns ErrNotFound if the object doesn't exist.
	Delete(ctx context.Context, hash string) error

	// List returns all object hashes matching the given type filter.
	// If objectType is empty, returns all objects.
	List(ctx context.Context, objectType ObjectType) ([]string, error)

	// GC removes every object whose hash is not in referenced and returns the number removed.
	GC(ctx context.Context, referenced map[string]bool) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Object represents a stored blob with its metadata.
type Object struct {
	// Hash is the content hash (SHA256) of the data.
	Hash string

	// Type identifies the kind of object.
	Type ObjectType

	// Size is the size of the data in bytes.
	Size int64

	Data []byte

	Metadata Metadata
}

// Metadata stores object metadata.
type Metadata struct {
	// CreatedAt is when the object was first stored.
	CreatedAt time.Time

	// LastAccessed is when the object was last retrieved.
	LastAccessed time.Time

	// Custom carries caller supplied labels such as the producing unit.
	Custom map[string]string
}

// ObjectType identifies the kind of stored object.
type ObjectType string

const (
	// ObjectTypeSource is the accepted Go source of a unit.
	ObjectTypeSource ObjectType = "source"

	// ObjectTypeSummary is a serialized build summary.
	ObjectTypeSummary ObjectType = "summary"
)

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Hash
}

// IsNotFound returns true if err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// ValidHash reports whether hash looks like a hex SHA256 digest. Hashes end up in
// filesystem paths, so anything else is rejected.
func ValidHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
