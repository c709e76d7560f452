package commands

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mdcompile/internal/build"
	"git.home.luguber.info/inful/mdcompile/internal/cache"
	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Paths       []string `arg:"" optional:"" type:"path" help:"Documents or directories (default: build.sources)"`
	Output      string   `short:"o" help:"Output directory (default: output.directory)"`
	Workers     int      `help:"Units generated in parallel (default: build.workers)"`
	MetricsAddr string   `name:"metrics-addr" help:"Serve /metrics and /status on this address (default: watch.metrics_addr)"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	paths, err := sourcePaths(w.Paths, cfg)
	if err != nil {
		return err
	}
	if w.MetricsAddr != "" {
		cfg.Watch.MetricsAddr = w.MetricsAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prom.NewRegistry()
	p, err := newPipeline(ctx, cfg, reg, emitOptions(cfg, false), true)
	if err != nil {
		return err
	}
	defer p.close()

	// A changed configuration file is picked up by the next build.
	var mu sync.Mutex
	current := cfg
	rebuild := func(ctx context.Context, t watch.Trigger) (*build.BuildResult, error) {
		mu.Lock()
		defer mu.Unlock()
		if t.ConfigChanged {
			next, err := root.loadConfig()
			if err != nil {
				return nil, err
			}
			current = next
		}
		res, err := p.service.Run(ctx, build.BuildRequest{
			Config:    current,
			Paths:     paths,
			OutputDir: w.Output,
			Options:   build.BuildOptions{Workers: w.Workers},
		})
		if err != nil {
			return res, err
		}
		if rerr := report(res); rerr != nil {
			return res, rerr
		}
		return res, nil
	}

	var collector cache.Collector
	if c, ok := p.cache.(cache.Collector); ok {
		collector = c
	}

	watcher, err := watch.New(watch.Options{
		Paths:       paths,
		ConfigPath:  root.Config,
		Debounce:    config.Duration(cfg.Watch.Debounce, 0),
		GCInterval:  config.Duration(cfg.Watch.GCInterval, 0),
		Collector:   collector,
		MetricsAddr: cfg.Watch.MetricsAddr,
		Registry:    reg,
	}, rebuild)
	if err != nil {
		return err
	}
	if err := watcher.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.RuntimeError("watch stopped unexpectedly").Build()
}
