package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/mdcompile/internal/build"
	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Paths   []string `arg:"" optional:"" type:"path" help:"Documents or directories (default: build.sources)"`
	Output  string   `short:"o" help:"Output directory (default: output.directory)"`
	Workers int      `help:"Units generated in parallel (default: build.workers)"`
	Backend string   `help:"Override generation.backend (anthropic|gemini|command|fixture)"`
	NoCache bool     `name:"no-cache" help:"Regenerate every unit; accepted results are still stored"`
	Clean   bool     `help:"Remove previous output before writing"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if err := b.applyOverrides(cfg); err != nil {
		return err
	}
	paths, err := sourcePaths(b.Paths, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := newPipeline(ctx, cfg, nil, emitOptions(cfg, b.Clean), false)
	if err != nil {
		return err
	}
	defer p.close()

	res, err := p.service.Run(ctx, build.BuildRequest{
		Config:    cfg,
		Paths:     paths,
		OutputDir: b.Output,
		Options:   build.BuildOptions{NoCache: b.NoCache, Workers: b.Workers},
	})
	if err != nil {
		return err
	}
	return report(res)
}

func (b *BuildCmd) applyOverrides(cfg *config.Config) error {
	if b.Backend != "" {
		kind := config.NormalizeBackend(b.Backend)
		if kind == "" {
			return errors.ValidationError("unknown backend").WithContext("backend", b.Backend).Build()
		}
		cfg.Generation.Backend = kind
		slog.Info("Backend overridden via CLI flag", logfields.Backend(string(kind)))
	}
	if b.Workers < 0 {
		return errors.ValidationError("workers must not be negative").Build()
	}
	return nil
}

// report prints the build summary and returns the error that selects the exit code.
func report(res *build.BuildResult) error {
	summary := res.Summary
	if summary == nil {
		summary = build.Summarize(res)
	}
	if err := summary.Render(os.Stdout); err != nil {
		return errors.RuntimeError("write summary").WithCause(err).Build()
	}
	if summary.Commit != "" {
		fmt.Printf("output committed: %s\n", summary.Commit)
	}
	return res.Err()
}
