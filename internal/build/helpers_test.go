package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/backend"
	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/verify"
)

// unitDoc renders a module exporting Value() -> int whose function uses the
// Value of every dependency.
func unitDoc(name string, deps ...string) string {
	behavior := "Returns a constant."
	if len(deps) > 0 {
		refs := make([]string, len(deps))
		for i, d := range deps {
			refs[i] = d + ".Value"
		}
		behavior = "Sums " + strings.Join(refs, " and ") + "."
	}
	return fmt.Sprintf("```module %s\nThe %s unit.\n```\n\n"+
		"```interface Value() -> int\nReturns the value.\n```\n\n"+
		"```function value implements=Value\n%s\n```\n", name, name, behavior)
}

// writeDocs writes name -> content documents into a fresh directory.
func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".md"), []byte(content), 0o600))
	}
	return dir
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Build.Sources = []string{dir}
	cfg.Build.Workers = 2
	cfg.Generation.MaxAttempts = 3
	cfg.Generation.RetryBackoff = config.RetryBackoffFixed
	cfg.Generation.RetryInitialDelay = "1ms"
	cfg.Generation.RetryMaxDelay = "1ms"
	return cfg
}

// stubBackend returns a deterministic candidate per unit and counts calls.
type stubBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	requests map[string][]*backend.Request
	respond  func(ctx context.Context, req *backend.Request) (*backend.Response, error)
}

func newStubBackend() *stubBackend {
	return &stubBackend{calls: map[string]int{}, requests: map[string][]*backend.Request{}}
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Generate(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	b.mu.Lock()
	b.calls[req.Unit]++
	snapshot := *req
	snapshot.Feedback = append(artifact.Diagnostics(nil), req.Feedback...)
	b.requests[req.Unit] = append(b.requests[req.Unit], &snapshot)
	b.mu.Unlock()
	if b.respond != nil {
		return b.respond(ctx, req)
	}
	return &backend.Response{Text: candidate(req.Unit)}, nil
}

func (b *stubBackend) Calls(unit string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[unit]
}

func (b *stubBackend) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

func (b *stubBackend) Requests(unit string) []*backend.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*backend.Request(nil), b.requests[unit]...)
}

func candidate(unit string) string {
	return "```go\npackage " + unit + "\n\nfunc Value() int { return 1 }\n```\n"
}

// acceptAll accepts every candidate.
var acceptAll = VerifierFunc(func(context.Context, *verify.Candidate) verify.Result {
	return verify.Result{Verdict: artifact.VerdictAccepted}
})

// rejectUnits rejects every candidate of the named units.
func rejectUnits(units ...string) VerifierFunc {
	return func(_ context.Context, c *verify.Candidate) verify.Result {
		for _, u := range units {
			if c.Module.ID() == u {
				return verify.Result{
					Verdict:     artifact.VerdictRejected,
					Diagnostics: artifact.Diagnostics{{Check: artifact.CheckTest, Subject: "t", Message: "always wrong"}},
				}
			}
		}
		return verify.Result{Verdict: artifact.VerdictAccepted}
	}
}
