// Package verify checks generated candidates against their unit's contract:
// the exported API must match the declared interfaces exactly and every
// declared test must pass when interpreted with yaegi.
package verify

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
	"git.home.luguber.info/inful/mdcompile/internal/model"
)

// DefaultAllowedImports are the standard library packages a candidate may
// import without configuration.
var DefaultAllowedImports = []string{
	"bytes",
	"container/heap",
	"container/list",
	"encoding/base64",
	"encoding/hex",
	"encoding/json",
	"errors",
	"fmt",
	"maps",
	"math",
	"math/big",
	"path",
	"regexp",
	"slices",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
}

// Options configures a Verifier.
type Options struct {
	// ImportRoot is the import path prefix under which units import each other.
	ImportRoot string
	// AllowedImports extends DefaultAllowedImports.
	AllowedImports []string
	// TestTimeout bounds each declared test.
	TestTimeout time.Duration
}

// Candidate is one generated output of a unit.
type Candidate struct {
	Program *model.Program
	Module  *model.Module
	Source  []byte
	// Deps holds the accepted source of every transitive dependency, by module name.
	Deps map[string][]byte
}

// Result is the verifier's verdict on a candidate.
type Result struct {
	Verdict     artifact.Verdict
	Diagnostics artifact.Diagnostics
}

// Accepted reports whether the candidate passed every check.
func (r Result) Accepted() bool { return r.Verdict == artifact.VerdictAccepted }

// Verifier runs the structural and behavioral checks. It keeps no state
// between candidates and is safe for concurrent use.
type Verifier struct {
	importRoot  string
	allowed     map[string]bool
	testTimeout time.Duration
}

func New(opts Options) *Verifier {
	allowed := make(map[string]bool, len(DefaultAllowedImports)+len(opts.AllowedImports))
	for _, p := range DefaultAllowedImports {
		allowed[p] = true
	}
	for _, p := range opts.AllowedImports {
		allowed[p] = true
	}
	if opts.ImportRoot == "" {
		opts.ImportRoot = "mdout"
	}
	if opts.TestTimeout <= 0 {
		opts.TestTimeout = 10 * time.Second
	}
	return &Verifier{importRoot: opts.ImportRoot, allowed: allowed, testTimeout: opts.TestTimeout}
}

// AllowedImports returns the effective allow-list, sorted.
func (v *Verifier) AllowedImports() []string {
	out := make([]string, 0, len(v.allowed))
	for p := range v.allowed {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Verify checks c. Behavioral checks only run once the structural checks pass.
func (v *Verifier) Verify(ctx context.Context, c *Candidate) Result {
	start := time.Now()
	diags := v.checkStructure(c)
	if len(diags) == 0 {
		diags = v.runTests(ctx, c)
	}

	res := Result{Verdict: artifact.VerdictAccepted}
	if len(diags) > 0 {
		res = Result{Verdict: artifact.VerdictRejected, Diagnostics: diags}
	}
	slog.Debug("Candidate verified",
		logfields.Unit(c.Module.ID()),
		slog.String("verdict", string(res.Verdict)),
		logfields.Count(len(diags)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return res
}
