// Package emit writes the accepted units of a build into a Go module tree and
// records the build summary next to it.
//
// Layout of the output directory:
//
//	go.mod                     module <output.module>
//	<unit>/<unit>.go           one package per accepted unit
//	cmd/<unit>/main.go         entry point of each executable unit
//	build-summary.json
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"go/format"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/build"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/git"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
	"git.home.luguber.info/inful/mdcompile/internal/parser"
)

// SummaryFile is the name of the summary written into the output directory.
const SummaryFile = "build-summary.json"

const goVersion = "1.24"

// Options configures an Emitter.
type Options struct {
	// Directory is used when the build result carries no output path.
	Directory string
	// Module is the Go module path of the emitted tree.
	Module string
	// Clean removes previous output before writing.
	Clean bool
	// GitCommit commits the output tree after writing.
	GitCommit bool
	Author    git.Author
}

// Emitter writes build outputs. It implements build.Emitter.
type Emitter struct {
	opts Options
	now  func() time.Time
}

func New(opts Options) *Emitter {
	if opts.Module == "" {
		opts.Module = "mdout"
	}
	return &Emitter{opts: opts, now: time.Now}
}

// Emit writes every accepted unit in topological order, removes stale output of
// units that did not reach Accepted, and writes the summary.
func (e *Emitter) Emit(ctx context.Context, res *build.BuildResult) (*build.Summary, error) {
	dir := res.OutputPath
	if dir == "" {
		dir = e.opts.Directory
	}
	if dir == "" {
		return nil, errors.ConfigError("output directory required").Build()
	}
	res.OutputPath = dir

	client := git.NewClient(dir)
	if e.opts.Clean {
		if err := client.CleanWorkspace(); err != nil {
			return nil, err
		}
	}
	if err := client.EnsureWorkspace(); err != nil {
		return nil, err
	}

	if err := writeFile(filepath.Join(dir, "go.mod"), []byte(fmt.Sprintf("module %s\n\ngo %s\n", e.opts.Module, goVersion))); err != nil {
		return nil, err
	}

	written := 0
	for _, unit := range res.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, ok := res.Units[unit]
		if !ok || r.State != build.StateAccepted || r.Artifact == nil {
			if err := e.remove(dir, unit); err != nil {
				return nil, err
			}
			continue
		}
		if err := e.writeUnit(dir, unit, res.Targets[unit], r.Artifact.Source); err != nil {
			return nil, err
		}
		written++
	}

	summary := build.Summarize(res)
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, errors.InternalError("encode build summary").WithCause(err).Build()
	}
	if err := writeFile(filepath.Join(dir, SummaryFile), append(data, '\n')); err != nil {
		return nil, err
	}
	slog.Info("Output written", logfields.Path(dir), logfields.Count(written))

	if e.opts.GitCommit {
		c := summary.Counts
		msg := fmt.Sprintf("mdcompile build %s\n\n%s: %d from cache, %d generated, %d failed, %d skipped\n",
			res.BuildID, summary.Status, c.FromCache, c.Generated, c.Failed, c.Skipped)
		hash, _, err := client.Commit(msg, e.opts.Author, e.now())
		if err != nil {
			return nil, err
		}
		summary.Commit = hash
	}
	return summary, nil
}

func (e *Emitter) writeUnit(dir, unit, target string, source []byte) error {
	if formatted, err := format.Source(source); err == nil {
		source = formatted
	}
	if err := writeFile(filepath.Join(dir, unit, unit+".go"), source); err != nil {
		return err
	}
	if target != parser.TargetExecutable {
		cmdDir := filepath.Join(dir, "cmd", unit)
		if err := os.RemoveAll(cmdDir); err != nil {
			return errors.FileSystemError("remove stale output").WithCause(err).WithContext("path", cmdDir).Build()
		}
		return nil
	}
	return writeFile(filepath.Join(dir, "cmd", unit, "main.go"), mainFile(path.Join(e.opts.Module, unit), unit))
}

// remove deletes output left from an earlier build of a unit that is not
// accepted now, so nothing is emitted with a missing dependency.
func (e *Emitter) remove(dir, unit string) error {
	for _, p := range []string{filepath.Join(dir, unit), filepath.Join(dir, "cmd", unit)} {
		if err := os.RemoveAll(p); err != nil {
			return errors.FileSystemError("remove stale output").WithCause(err).WithContext("path", p).Build()
		}
	}
	return nil
}

func mainFile(importPath, unit string) []byte {
	return []byte(fmt.Sprintf("package main\n\nimport %q\n\nfunc main() {\n\t%s.Main()\n}\n", importPath, unit))
}

func writeFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return errors.FileSystemError("create output directory").WithCause(err).WithContext("path", filepath.Dir(name)).Build()
	}
	if err := os.WriteFile(name, data, 0o600); err != nil {
		return errors.FileSystemError("write output file").WithCause(err).WithContext("path", name).Build()
	}
	return nil
}
