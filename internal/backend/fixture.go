package backend

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Fixture replays canned responses from a directory. Attempt n of unit u
// reads the n-th file (sorted by name) of dir/u/, repeating the last file
// once they run out. A single file dir/u.md or dir/u.go serves every attempt.
type Fixture struct {
	dir string

	mu    sync.Mutex
	calls map[string]int
}

func NewFixture(dir string) (*Fixture, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.ConfigError("fixture directory not found").
			WithContext("field", "generation.fixture_dir").
			WithContext("path", dir).
			Build()
	}
	return &Fixture{dir: dir, calls: make(map[string]int)}, nil
}

func (f *Fixture) Name() string { return "fixture" }

// Calls returns how many times unit has been generated.
func (f *Fixture) Calls(unit string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[unit]
}

func (f *Fixture) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyTransport(f.Name(), err)
	}
	f.mu.Lock()
	f.calls[req.Unit]++
	f.mu.Unlock()

	path, err := f.resolve(req.Unit, req.Attempt)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- fixture paths are derived from the configured directory
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryBackend, "read fixture").
			Retryable().
			WithContext("path", path).
			Build()
	}
	return &Response{Text: string(data)}, nil
}

func (f *Fixture) resolve(unit string, attempt int) (string, error) {
	unitDir := filepath.Join(f.dir, unit)
	if entries, err := os.ReadDir(unitDir); err == nil {
		var files []string
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, e.Name())
			}
		}
		if len(files) > 0 {
			sort.Strings(files)
			i := min(max(attempt, 1), len(files)) - 1
			return filepath.Join(unitDir, files[i]), nil
		}
	}
	for _, ext := range []string{".md", ".go"} {
		p := filepath.Join(f.dir, unit+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.ConfigError("no fixture for unit").
		UserAction().
		WithContext("unit", unit).
		WithContext("dir", f.dir).
		Build()
}
