package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
)

// SourceWatcher reports changes to source documents and the configuration file.
type SourceWatcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	onChange   func(reason string)

	mu        sync.Mutex
	dirs      map[string]bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewSourceWatcher watches the given files and directories. Directories are
// watched recursively; directories created later are added as they appear.
// configPath may be empty.
func NewSourceWatcher(paths []string, configPath string, onChange func(reason string)) (*SourceWatcher, error) {
	if onChange == nil {
		return nil, errors.ValidationError("change callback is required").Build()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.FileSystemError("create file watcher").WithCause(err).Build()
	}
	sw := &SourceWatcher{watcher: w, onChange: onChange, dirs: map[string]bool{}, done: make(chan struct{})}

	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			_ = w.Close()
			return nil, errors.FileSystemError("resolve config path").WithCause(err).WithContext("path", configPath).Build()
		}
		sw.configPath = abs
		if err := sw.addDir(filepath.Dir(abs)); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = w.Close()
			return nil, errors.FileSystemError("resolve source path").WithCause(err).WithContext("path", p).Build()
		}
		info, err := os.Stat(abs)
		if err != nil {
			_ = w.Close()
			return nil, errors.FileSystemError("stat source path").WithCause(err).WithContext("path", p).Build()
		}
		if !info.IsDir() {
			// Editors often replace files; the parent directory sees that.
			err = sw.addDir(filepath.Dir(abs))
		} else {
			err = sw.addTree(abs)
		}
		if err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return sw, nil
}

func (sw *SourceWatcher) addDir(dir string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.dirs[dir] {
		return nil
	}
	if err := sw.watcher.Add(dir); err != nil {
		return errors.FileSystemError("watch directory").WithCause(err).WithContext("path", dir).Build()
	}
	sw.dirs[dir] = true
	return nil
}

func (sw *SourceWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return sw.addDir(path)
	})
}

// Watched returns the number of watched directories.
func (sw *SourceWatcher) Watched() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.dirs)
}

// Run processes filesystem events until ctx is done or Close is called.
func (sw *SourceWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handle(event)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Source watcher error", logfields.Error(err))
		}
	}
}

func (sw *SourceWatcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := sw.addTree(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
			}
			sw.onChange("directory created: " + filepath.Base(event.Name))
			return
		}
	}

	switch {
	case sw.configPath != "" && event.Name == sw.configPath:
		slog.Debug("Config file change detected", logfields.File(event.Name), slog.String("op", event.Op.String()))
		sw.onChange(ReasonConfigChanged)
	case strings.EqualFold(filepath.Ext(event.Name), ".md"):
		slog.Debug("Source change detected", logfields.File(event.Name), slog.String("op", event.Op.String()))
		sw.onChange(event.Op.String() + ": " + filepath.Base(event.Name))
	}
}

// Close stops the watcher.
func (sw *SourceWatcher) Close() error {
	var err error
	sw.closeOnce.Do(func() {
		close(sw.done)
		err = sw.watcher.Close()
	})
	return err
}
