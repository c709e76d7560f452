package build

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/backend"
	"git.home.luguber.info/inful/mdcompile/internal/cache"
	"git.home.luguber.info/inful/mdcompile/internal/eventstore"
	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
	"git.home.luguber.info/inful/mdcompile/internal/metrics"
	"git.home.luguber.info/inful/mdcompile/internal/model"
	"git.home.luguber.info/inful/mdcompile/internal/observability"
	"git.home.luguber.info/inful/mdcompile/internal/retry"
	"git.home.luguber.info/inful/mdcompile/internal/verify"
)

// Verifier checks a candidate against its unit's contract.
type Verifier interface {
	Verify(ctx context.Context, c *verify.Candidate) verify.Result
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, c *verify.Candidate) verify.Result

func (f VerifierFunc) Verify(ctx context.Context, c *verify.Candidate) verify.Result {
	return f(ctx, c)
}

// Generator runs the generate → extract → verify loop for one unit under a
// bounded retry policy.
type Generator struct {
	Backend        backend.Backend
	Verifier       Verifier
	Cache          cache.Cache
	Policy         retry.Policy
	AttemptTimeout time.Duration
	ImportRoot     string
	Recorder       metrics.Recorder
	Events         eventstore.Sink
	BuildID        string
	Now            func() time.Time
}

// Generate produces an accepted artifact for m and stores it under fp. deps
// holds the accepted source of every transitive dependency.
//
// A unit that exhausts its attempts returns *GenerationExhaustedError. Any other
// error (cancellation, *cache.CacheConflictError) is fatal to the build.
func (g *Generator) Generate(ctx context.Context, prog *model.Program, m *model.Module, fp fingerprint.Fingerprint, deps map[string][]byte) (*artifact.Artifact, error) {
	req := backend.NewRequest(prog, m, g.ImportRoot, deps)
	maxAttempts := g.Policy.MaxAttempts()
	req.MaxAttempts = maxAttempts

	exhausted := &GenerationExhaustedError{Unit: m.ID()}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := g.Policy.Wait(ctx, attempt-1); err != nil {
				return nil, err
			}
		}
		req.Attempt = attempt
		req.Feedback = exhausted.Diagnostics
		exhausted.Attempts = attempt

		g.emit(ctx, func() (eventstore.Event, error) {
			return eventstore.NewUnitStateChanged(g.BuildID, m.ID(), fp.String(), string(StateGenerating), false, attempt, nil)
		})

		start := time.Now()
		source, diags, err := g.attempt(ctx, req)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var res verify.Result
		if err == nil && len(diags) == 0 {
			res = g.Verifier.Verify(ctx, &verify.Candidate{Program: prog, Module: m, Source: source, Deps: deps})
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			diags = res.Diagnostics
		}
		elapsed := time.Since(start)

		outcome := metrics.AttemptRejected
		switch {
		case err != nil:
			outcome = metrics.AttemptError
		case res.Accepted():
			outcome = metrics.AttemptAccepted
		}
		g.Recorder.ObserveAttempt(g.Backend.Name(), elapsed, outcome)
		g.emit(ctx, func() (eventstore.Event, error) {
			return eventstore.NewAttemptFinished(g.BuildID, m.ID(), attempt, g.Backend.Name(), string(outcome), elapsed, diagStrings(diags))
		})
		observability.DebugContext(ctx, "Generation attempt finished",
			logfields.Attempt(attempt),
			logfields.MaxAttempts(maxAttempts),
			logfields.Backend(g.Backend.Name()),
			logfields.DurationMS(float64(elapsed.Milliseconds())),
			slog.String("outcome", string(outcome)))

		if outcome == metrics.AttemptAccepted {
			a := &artifact.Artifact{
				Unit:        m.ID(),
				Fingerprint: fp,
				Source:      source,
				Verdict:     artifact.VerdictAccepted,
				Backend:     g.Backend.Name(),
				Attempts:    attempt,
				CreatedAt:   g.now(),
			}
			return g.store(ctx, fp, a)
		}

		exhausted.Diagnostics = diags
		exhausted.Cause = err
		if err != nil && backend.StopsRetry(err) {
			observability.WarnContext(ctx, "Backend error requires user action, not retrying",
				logfields.Backend(g.Backend.Name()),
				logfields.Error(err))
			break
		}
	}

	g.Recorder.IncRetryExhausted()
	return nil, exhausted
}

// attempt performs one backend call and reduces its response to source. A
// response without code yields an extract diagnostic instead of an error.
func (g *Generator) attempt(ctx context.Context, req *backend.Request) ([]byte, artifact.Diagnostics, error) {
	callCtx := ctx
	if g.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.AttemptTimeout)
		defer cancel()
	}

	resp, err := g.Backend.Generate(callCtx, req)
	if err != nil {
		return nil, artifact.Diagnostics{{Check: artifact.CheckBackend, Message: err.Error()}}, err
	}
	code, ok := backend.ExtractCode(resp.Text)
	if !ok {
		return nil, artifact.Diagnostics{{
			Check:   artifact.CheckExtract,
			Message: "response contains no Go code block",
		}}, nil
	}
	return []byte(code), nil, nil
}

// store records an accepted artifact. When a concurrent build already stored the
// same verdict under fp, the stored artifact is returned instead.
func (g *Generator) store(ctx context.Context, fp fingerprint.Fingerprint, a *artifact.Artifact) (*artifact.Artifact, error) {
	if g.Cache == nil {
		return a, nil
	}
	stored, err := g.Cache.Store(ctx, fp, a)
	if err != nil {
		var conflict *cache.CacheConflictError
		if stderrors.As(err, &conflict) {
			return nil, err
		}
		observability.WarnContext(ctx, "Failed to store artifact",
			logfields.Fingerprint(fp.String()),
			logfields.Error(err))
		return a, nil
	}
	if stored {
		return a, nil
	}
	if existing, ok, lerr := g.Cache.Lookup(ctx, fp); lerr == nil && ok && existing.Accepted() {
		return existing, nil
	}
	return a, nil
}

func (g *Generator) emit(ctx context.Context, build func() (eventstore.Event, error)) {
	if g.Events == nil {
		return
	}
	e, err := build()
	if err != nil {
		slog.Warn("Failed to build event", logfields.Error(err))
		return
	}
	g.Events.Emit(ctx, e)
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}

func diagStrings(ds artifact.Diagnostics) []string {
	if len(ds) == 0 {
		return nil
	}
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
