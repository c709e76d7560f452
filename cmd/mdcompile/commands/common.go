package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mdcompile/internal/backend"
	"git.home.luguber.info/inful/mdcompile/internal/build"
	"git.home.luguber.info/inful/mdcompile/internal/cache"
	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/emit"
	"git.home.luguber.info/inful/mdcompile/internal/eventstore"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/git"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
	"git.home.luguber.info/inful/mdcompile/internal/metrics"
	"git.home.luguber.info/inful/mdcompile/internal/verify"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"mdcompile.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Compile annotated documents into a Go module"`
	Check   CheckCmd   `cmd:"" help:"Parse, model and validate documents without generating"`
	Graph   GraphCmd   `cmd:"" help:"Print the unit dependency graph (text, mermaid, dot)"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild whenever documents change"`
	Cache   CacheCmd   `cmd:"" help:"Inspect and maintain the artifact cache"`
	History HistoryCmd `cmd:"" help:"Show recorded builds"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration and document"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads the configuration file. A missing file yields defaults so
// documents can be compiled with flags alone.
func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.Config, true)
}

// sourcePaths prefers positional paths over build.sources.
func sourcePaths(args []string, cfg *config.Config) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(cfg.Build.Sources) > 0 {
		return cfg.Build.Sources, nil
	}
	return nil, errors.ValidationError("no source paths: pass paths or set build.sources").Build()
}

// openCache opens the persistent artifact cache, or returns nil when disabled.
func openCache(cfg *config.Config) (*cache.SQLiteCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	return cache.OpenSQLite(cfg.Cache.Directory)
}

// eventSinks wires the configured event sinks. The returned closer releases them.
func eventSinks(cfg *config.Config) (eventstore.Sink, func(), error) {
	var sinks eventstore.Multi
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Events.History {
		if err := os.MkdirAll(cfg.Cache.Directory, 0o750); err != nil {
			return nil, nil, errors.FileSystemError("create cache directory").WithCause(err).WithContext("path", cfg.Cache.Directory).Build()
		}
		store, err := eventstore.NewSQLiteStore(historyPath(cfg))
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, eventstore.StoreSink{Store: store})
		closers = append(closers, func() { _ = store.Close() })
	}
	if cfg.Events.NATSURL != "" {
		pub, err := eventstore.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			slog.Warn("NATS publisher unavailable, continuing without it", logfields.Error(err))
		} else {
			sinks = append(sinks, pub)
			closers = append(closers, func() { _ = pub.Close() })
		}
	}
	return sinks, closeAll, nil
}

func historyPath(cfg *config.Config) string {
	return filepath.Join(cfg.Cache.Directory, "events.db")
}

// pipeline holds everything a generating build needs.
type pipeline struct {
	service *build.DefaultBuildService
	cache   cache.Cache // nil when caching is disabled
	close   func()
}

// newPipeline wires backend, verifier, cache, emitter, metrics and events
// into a build service. hot puts an in-memory LRU in front of the cache.
func newPipeline(ctx context.Context, cfg *config.Config, reg *prom.Registry, emitOpts emit.Options, hot bool) (*pipeline, error) {
	b, err := backend.New(ctx, cfg.Generation)
	if err != nil {
		return nil, err
	}
	v := verify.New(verify.Options{
		ImportRoot:     cfg.Output.Module,
		AllowedImports: cfg.Verification.AllowedImports,
		TestTimeout:    config.Duration(cfg.Verification.TestTimeout, 0),
	})

	store, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	var c cache.Cache
	if store != nil {
		c = store
		if hot {
			if c, err = cache.NewLRU(store, cfg.Cache.LRUSize); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
	}
	sink, closeSinks, err := eventSinks(cfg)
	if err != nil {
		if c != nil {
			_ = c.Close()
		}
		return nil, err
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if reg != nil {
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	svc := build.NewBuildService().
		WithBackend(b).
		WithVerifier(v).
		WithEmitter(emit.New(emitOpts)).
		WithRecorder(recorder).
		WithEventSink(sink)
	if c != nil {
		svc = svc.WithCache(c)
	}

	return &pipeline{
		service: svc,
		cache:   c,
		close: func() {
			closeSinks()
			if c != nil {
				_ = c.Close()
			}
		},
	}, nil
}

func emitOptions(cfg *config.Config, clean bool) emit.Options {
	return emit.Options{
		Directory: cfg.Output.Directory,
		Module:    cfg.Output.Module,
		Clean:     clean || cfg.Output.Clean,
		GitCommit: cfg.Output.GitCommit,
		Author:    git.DefaultAuthor,
	}
}
