package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
	"git.home.luguber.info/inful/mdcompile/internal/storage"
)

// SQLiteCache indexes artifacts in SQLite and keeps their sources in a
// content-addressed object store. Layout under the cache directory:
//
//	cache.db      artifact index
//	objects/      source blobs (storage.FSStore)
type SQLiteCache struct {
	db    *sql.DB
	blobs storage.ObjectStore

	// gcMu keeps GC out while a Store has written a blob but not yet indexed it.
	gcMu sync.RWMutex
}

// OpenSQLite opens (creating if needed) the persistent cache in dir.
func OpenSQLite(dir string) (*SQLiteCache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "create cache directory").
			WithContext("path", dir).Build()
	}
	blobs, err := storage.NewFSStore(dir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "open blob store").WithContext("path", dir).Build()
	}
	return NewSQLite(filepath.Join(dir, "cache.db"), blobs)
}

// NewSQLite opens the index at dbPath (":memory:" for tests) over blobs.
func NewSQLite(dbPath string, blobs storage.ObjectStore) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "open cache index").WithContext("path", dbPath).Build()
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	c := &SQLiteCache{db: db, blobs: blobs}
	if err := c.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryCache, "initialize cache schema").Build()
	}
	return c, nil
}

func (c *SQLiteCache) initialize() error {
	schema := `
	PRAGMA journal_mode=WAL;
	PRAGMA busy_timeout=5000;
	CREATE TABLE IF NOT EXISTS artifacts (
		fingerprint TEXT PRIMARY KEY,
		unit TEXT NOT NULL,
		verdict TEXT NOT NULL,
		blob TEXT NOT NULL,
		size INTEGER NOT NULL,
		diagnostics TEXT,
		backend TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_unit ON artifacts(unit);
	`
	_, err := c.db.Exec(schema)
	return err
}

func (c *SQLiteCache) Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*artifact.Artifact, bool, error) {
	var (
		a           = &artifact.Artifact{Fingerprint: fp}
		blob        string
		diagnostics sql.NullString
		backend     sql.NullString
		createdAt   int64
		size        int64
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT unit, verdict, blob, size, diagnostics, backend, attempts, created_at FROM artifacts WHERE fingerprint = ?",
		string(fp),
	).Scan(&a.Unit, &a.Verdict, &blob, &size, &diagnostics, &backend, &a.Attempts, &createdAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapError(err, errors.CategoryCache, "query cache index").
			WithContext("fingerprint", fp.Short()).Build()
	}

	obj, err := c.blobs.Get(ctx, blob)
	if storage.IsNotFound(err) {
		// The index outlived its blob; treat as a miss so the unit regenerates.
		slog.Warn("Cache blob missing, dropping index entry", logfields.Unit(a.Unit), logfields.Fingerprint(string(fp)))
		if _, derr := c.db.ExecContext(ctx, "DELETE FROM artifacts WHERE fingerprint = ?", string(fp)); derr != nil {
			return nil, false, errors.WrapError(derr, errors.CategoryCache, "drop dangling cache entry").Build()
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapError(err, errors.CategoryCache, "read cached source").
			WithContext("fingerprint", fp.Short()).Build()
	}

	a.Source = obj.Data
	a.Backend = backend.String
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	if diagnostics.Valid && diagnostics.String != "" {
		if err := json.Unmarshal([]byte(diagnostics.String), &a.Diagnostics); err != nil {
			return nil, false, errors.WrapError(err, errors.CategoryCache, "decode cached diagnostics").Build()
		}
	}
	return a, true, nil
}

func (c *SQLiteCache) Store(ctx context.Context, fp fingerprint.Fingerprint, a *artifact.Artifact) (bool, error) {
	if err := validate(fp, a); err != nil {
		return false, err
	}
	c.gcMu.RLock()
	defer c.gcMu.RUnlock()

	// Blobs are content addressed, so writing before the index check is harmless.
	hash, err := c.blobs.Put(ctx, &storage.Object{
		Type:     storage.ObjectTypeSource,
		Data:     a.Source,
		Metadata: storage.Metadata{Custom: map[string]string{"unit": a.Unit}},
	})
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryCache, "write artifact source").WithContext("unit", a.Unit).Build()
	}

	var diagnostics []byte
	if len(a.Diagnostics) > 0 {
		if diagnostics, err = json.Marshal(a.Diagnostics); err != nil {
			return false, errors.WrapError(err, errors.CategoryCache, "encode diagnostics").Build()
		}
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryCache, "begin cache transaction").Build()
	}
	defer func() { _ = tx.Rollback() }()

	var existing artifact.Verdict
	err = tx.QueryRowContext(ctx, "SELECT verdict FROM artifacts WHERE fingerprint = ?", string(fp)).Scan(&existing)
	switch {
	case err == nil:
		if existing != a.Verdict {
			return false, &CacheConflictError{Fingerprint: fp, Unit: a.Unit, Existing: existing, Proposed: a.Verdict}
		}
		return false, nil
	case !stderrors.Is(err, sql.ErrNoRows):
		return false, errors.WrapError(err, errors.CategoryCache, "query cache index").Build()
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO artifacts (fingerprint, unit, verdict, blob, size, diagnostics, backend, attempts, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		string(fp), a.Unit, string(a.Verdict), hash, len(a.Source), nullable(diagnostics), a.Backend, a.Attempts, createdAt.UnixNano(),
	)
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryCache, "insert cache entry").WithContext("unit", a.Unit).Build()
	}
	if err := tx.Commit(); err != nil {
		return false, errors.WrapError(err, errors.CategoryCache, "commit cache entry").Build()
	}
	return true, nil
}

func (c *SQLiteCache) Invalidate(ctx context.Context, unitID string) (int, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM artifacts WHERE unit = ?", unitID)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryCache, "invalidate unit").WithContext("unit", unitID).Build()
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// List returns every index entry sorted by unit and creation time.
func (c *SQLiteCache) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT unit, fingerprint, verdict, size, created_at FROM artifacts ORDER BY unit, created_at, fingerprint")
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "list cache entries").Build()
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.Unit, &e.Fingerprint, &e.Verdict, &e.Size, &createdAt); err != nil {
			return nil, errors.WrapError(err, errors.CategoryCache, "scan cache entry").Build()
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "iterate cache entries").Build()
	}
	return out, nil
}

// GC deletes blobs that no index entry references.
func (c *SQLiteCache) GC(ctx context.Context) (int, error) {
	c.gcMu.Lock()
	defer c.gcMu.Unlock()

	rows, err := c.db.QueryContext(ctx, "SELECT DISTINCT blob FROM artifacts")
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryCache, "collect referenced blobs").Build()
	}
	referenced := map[string]bool{}
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			_ = rows.Close()
			return 0, errors.WrapError(err, errors.CategoryCache, "scan blob reference").Build()
		}
		referenced[hash] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, errors.WrapError(err, errors.CategoryCache, "iterate blob references").Build()
	}

	removed, err := c.blobs.GC(ctx, referenced)
	if err != nil {
		return removed, errors.WrapError(err, errors.CategoryCache, "collect unreferenced blobs").Build()
	}
	return removed, nil
}

func (c *SQLiteCache) Close() error {
	err := c.db.Close()
	if berr := c.blobs.Close(); err == nil {
		err = berr
	}
	return err
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
