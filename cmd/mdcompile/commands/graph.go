package commands

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/graph"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
	"git.home.luguber.info/inful/mdcompile/internal/model"
	"git.home.luguber.info/inful/mdcompile/internal/parser"
)

// GraphCmd implements the 'graph' command.
type GraphCmd struct {
	Paths  []string `arg:"" optional:"" type:"path" help:"Documents or directories (default: build.sources)"`
	Format string   `short:"f" help:"Output format: text, mermaid, dot" default:"text" enum:"text,mermaid,dot"`
	Output string   `short:"o" help:"Output file path (optional, prints to stdout if not specified)"`
}

func (g *GraphCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	paths, err := sourcePaths(g.Paths, cfg)
	if err != nil {
		return err
	}

	files, err := parser.Discover(paths)
	if err != nil {
		return err
	}
	parsed, err := parser.ParseAll(files)
	if err != nil {
		return err
	}
	for _, perr := range parsed.Errors {
		slog.Warn("Document excluded", logfields.File(perr.Path), logfields.Error(perr))
	}
	prog, err := model.Build(parsed.Documents, parsed.ExcludedModules()...)
	if err != nil {
		return err
	}
	gr, err := graph.Build(prog)
	if err != nil {
		return err
	}

	out := os.Stdout
	if g.Output != "" {
		f, err := os.Create(g.Output)
		if err != nil {
			return errors.FileSystemError("create output file").WithCause(err).WithContext("path", g.Output).Build()
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := gr.Render(out, graph.Format(g.Format)); err != nil {
		return err
	}
	if g.Output != "" {
		slog.Info("Graph written", logfields.File(g.Output), slog.String("format", g.Format))
	}
	if len(parsed.Errors) > 0 {
		return parsed.Errors
	}
	return nil
}
