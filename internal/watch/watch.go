package watch

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mdcompile/internal/build"
	"git.home.luguber.info/inful/mdcompile/internal/cache"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
	"git.home.luguber.info/inful/mdcompile/internal/observability"
)

// BuildFunc runs one build.
type BuildFunc func(ctx context.Context, t Trigger) (*build.BuildResult, error)

type Options struct {
	Paths      []string
	ConfigPath string

	Debounce time.Duration
	MaxDelay time.Duration

	// GCInterval schedules cache garbage collection when Collector is set.
	GCInterval time.Duration
	Collector  cache.Collector

	// MetricsAddr serves /metrics, /status and /healthz when set.
	MetricsAddr string
	Registry    *prom.Registry
}

// Status is the watch state reported on /status.
type Status struct {
	Builds    int            `json:"builds"`
	Running   bool           `json:"running"`
	LastError string         `json:"last_error,omitempty"`
	Last      *build.Summary `json:"last,omitempty"`
}

// Watcher rebuilds whenever sources change.
type Watcher struct {
	opts  Options
	build BuildFunc

	mu     sync.Mutex
	status Status
	server *Server
}

func New(opts Options, fn BuildFunc) (*Watcher, error) {
	if fn == nil {
		return nil, errors.ValidationError("build function is required").Build()
	}
	if len(opts.Paths) == 0 {
		return nil, errors.ValidationError("no source paths to watch").Build()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	return &Watcher{opts: opts, build: fn}, nil
}

// Status returns a snapshot of the watch state.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Addr returns the metrics server address once Run has started it.
func (w *Watcher) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.server == nil {
		return ""
	}
	return w.server.Addr()
}

// Run builds once, then rebuilds on every coalesced change until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	debouncer, err := NewDebouncer(DebouncerConfig{QuietWindow: w.opts.Debounce, MaxDelay: w.opts.MaxDelay})
	if err != nil {
		return err
	}
	sources, err := NewSourceWatcher(w.opts.Paths, w.opts.ConfigPath, debouncer.Request)
	if err != nil {
		return err
	}
	defer func() { _ = sources.Close() }()

	if w.opts.MetricsAddr != "" {
		srv, err := NewServer(w.opts.MetricsAddr, w.opts.Registry, w.Status)
		if err != nil {
			return err
		}
		w.mu.Lock()
		w.server = srv
		w.mu.Unlock()
		go srv.Serve()
		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if w.opts.Collector != nil && w.opts.GCInterval > 0 {
		sched, err := NewScheduler()
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleCacheGC(ctx, w.opts.GCInterval, w.opts.Collector); err != nil {
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop(ctx) }()
	}

	observability.InfoContext(ctx, "Watching sources", logfields.Count(sources.Watched()))
	w.runBuild(ctx, Trigger{Reason: "initial build", RequestCount: 1, FirstAt: time.Now()})

	go sources.Run(ctx)
	return debouncer.Run(ctx, w.runBuild)
}

func (w *Watcher) runBuild(ctx context.Context, t Trigger) {
	w.mu.Lock()
	w.status.Running = true
	w.mu.Unlock()

	observability.InfoContext(ctx, "Rebuilding", logfields.Reason(t.Reason), logfields.Count(t.RequestCount))
	res, err := w.build(ctx, t)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Running = false
	w.status.Builds++
	w.status.LastError = ""
	if res != nil && res.Summary != nil {
		w.status.Last = res.Summary
	}
	if err != nil {
		w.status.LastError = err.Error()
		if ctx.Err() == nil {
			observability.WarnContext(ctx, "Build failed", logfields.Error(err))
		}
	}
}
