package build

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/mdcompile/internal/backend"
	"git.home.luguber.info/inful/mdcompile/internal/build/validation"
	"git.home.luguber.info/inful/mdcompile/internal/cache"
	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/eventstore"
	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/graph"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
	"git.home.luguber.info/inful/mdcompile/internal/metrics"
	"git.home.luguber.info/inful/mdcompile/internal/model"
	"git.home.luguber.info/inful/mdcompile/internal/observability"
	"git.home.luguber.info/inful/mdcompile/internal/parser"
	"git.home.luguber.info/inful/mdcompile/internal/retry"
)

// Emitter writes the accepted units of a finished build and produces its summary.
type Emitter interface {
	Emit(ctx context.Context, res *BuildResult) (*Summary, error)
}

// DefaultBuildService is the standard implementation of BuildService.
// It orchestrates the full pipeline: parse → model → graph → fingerprint →
// generate/verify → emit.
type DefaultBuildService struct {
	backend  backend.Backend
	verifier Verifier
	cache    cache.Cache
	emitter  Emitter
	recorder metrics.Recorder
	events   eventstore.Sink
	now      func() time.Time
}

// NewBuildService creates a DefaultBuildService. A backend and verifier must be
// injected before generating; check-only runs (DryRun) need neither.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		recorder: metrics.NoopRecorder{},
		events:   eventstore.Noop{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithBackend sets the generation backend.
func (s *DefaultBuildService) WithBackend(b backend.Backend) *DefaultBuildService {
	s.backend = b
	return s
}

// WithVerifier sets the contract verifier.
func (s *DefaultBuildService) WithVerifier(v Verifier) *DefaultBuildService {
	s.verifier = v
	return s
}

// WithCache sets the artifact cache. Without one every unit is generated.
func (s *DefaultBuildService) WithCache(c cache.Cache) *DefaultBuildService {
	s.cache = c
	return s
}

// WithEmitter sets the output emitter. Without one the summary is still computed.
func (s *DefaultBuildService) WithEmitter(e Emitter) *DefaultBuildService {
	s.emitter = e
	return s
}

func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r != nil {
		s.recorder = r
	}
	return s
}

func (s *DefaultBuildService) WithEventSink(sink eventstore.Sink) *DefaultBuildService {
	if sink != nil {
		s.events = sink
	}
	return s
}

// Run executes the complete build pipeline.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	startTime := time.Now()
	result := &BuildResult{
		BuildID:   uuid.NewString(),
		StartTime: startTime,
		Units:     map[string]*UnitResult{},
	}
	ctx = observability.WithBuildID(ctx, result.BuildID)

	done := func(status BuildStatus) {
		result.Status = status
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		switch status {
		case BuildStatusSuccess:
			s.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
		case BuildStatusInvalid:
			s.recorder.IncBuildOutcome(metrics.BuildOutcomeInvalid)
		case BuildStatusCancelled:
			s.recorder.IncBuildOutcome(metrics.BuildOutcomeCanceled)
		default:
			s.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		}
		s.recorder.ObserveBuildDuration(result.Duration)
	}
	fail := func(stage string, status BuildStatus, err error) (*BuildResult, error) {
		s.recorder.IncStageResult(stage, stageResult(err))
		s.emit(ctx, func() (eventstore.Event, error) {
			return eventstore.NewBuildFailed(result.BuildID, stage, err.Error())
		})
		done(status)
		return result, err
	}

	if req.Config == nil {
		return fail("config", BuildStatusFailed, errors.ConfigError("config required").Build())
	}
	cfg := req.Config
	paths := req.Paths
	if len(paths) == 0 {
		paths = cfg.Build.Sources
	}
	if len(paths) == 0 {
		return fail("config", BuildStatusFailed, errors.ValidationError("no source paths given").Build())
	}

	// Stage 1: parse
	stageStart := time.Now()
	pctx := observability.WithStage(ctx, "parse")
	files, err := parser.Discover(paths)
	if err != nil {
		return fail("parse", BuildStatusFailed, err)
	}
	parsed, err := parser.ParseAll(files)
	if err != nil {
		return fail("parse", BuildStatusFailed, err)
	}
	result.Documents = len(parsed.Documents)
	result.ParseErrors = parsed.Errors
	for _, perr := range parsed.Errors {
		observability.WarnContext(pctx, "Document excluded", logfields.File(perr.Path), logfields.Error(perr))
	}
	observability.InfoContext(pctx, "Documents parsed",
		logfields.Count(len(parsed.Documents)),
		slog.Int("excluded", len(parsed.Errors)))
	s.recorder.ObserveStageDuration("parse", time.Since(stageStart))
	s.recorder.IncStageResult("parse", metrics.ResultSuccess)

	// Stage 2: model and graph. Failures here are fatal before any generation.
	stageStart = time.Now()
	prog, err := model.Build(parsed.Documents, parsed.ExcludedModules()...)
	if err != nil {
		return fail("model", BuildStatusInvalid, err)
	}
	g, err := graph.Build(prog)
	if err != nil {
		return fail("graph", BuildStatusInvalid, err)
	}
	result.Order = g.Order()
	result.Findings = validation.DefaultRules().Validate(ctx, prog).Findings
	for _, f := range result.Findings {
		observability.WarnContext(ctx, f.Message,
			logfields.Unit(f.Unit), logfields.Path(f.Loc.String()), slog.String("rule", f.Rule), slog.String("severity", string(f.Severity)))
	}
	result.Fingerprints = fingerprint.All(prog, g)
	result.Targets = make(map[string]string, len(prog.Modules))
	for _, m := range prog.Modules {
		result.Targets[m.Name] = m.Target
	}
	s.recorder.ObserveStageDuration("model", time.Since(stageStart))
	s.recorder.IncStageResult("model", metrics.ResultSuccess)

	if req.Options.DryRun {
		for _, u := range result.Order {
			result.Units[u] = &UnitResult{Unit: u, Fingerprint: result.Fingerprints[u], State: StatePending}
		}
		result.Status = BuildStatusSuccess
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		return result, nil
	}

	if s.backend == nil || s.verifier == nil {
		return fail("generate", BuildStatusFailed, errors.ConfigError("generation backend and verifier required").Build())
	}

	// Stage 3: generate and verify
	stageStart = time.Now()
	gctx := observability.WithStage(ctx, "generate")
	workers := req.Options.Workers
	if workers <= 0 {
		workers = cfg.Build.Workers
	}
	s.emit(gctx, func() (eventstore.Event, error) {
		return eventstore.NewBuildStarted(result.BuildID, result.Order, result.Documents, s.backend.Name(), workers)
	})
	observability.InfoContext(gctx, "Generating units",
		logfields.Count(g.Len()),
		logfields.Backend(s.backend.Name()),
		slog.Int("workers", workers))

	gen := &Generator{
		Backend:        s.backend,
		Verifier:       s.verifier,
		Cache:          s.cache,
		Policy:         retry.FromConfig(cfg.Generation),
		AttemptTimeout: config.Duration(cfg.Generation.AttemptTimeout, 0),
		ImportRoot:     cfg.Output.Module,
		Recorder:       s.recorder,
		Events:         s.events,
		BuildID:        result.BuildID,
		Now:            s.now,
	}
	run := &unitRun{
		svc:     s,
		prog:    prog,
		graph:   g,
		fps:     result.Fingerprints,
		gen:     gen,
		noCache: req.Options.NoCache,
		sources: map[string][]byte{},
	}
	sched := &Scheduler{
		Graph:    g,
		Workers:  workers,
		Recorder: s.recorder,
		OnResult: func(r *UnitResult) {
			r.Fingerprint = result.Fingerprints[r.Unit]
			s.observeUnit(gctx, result.BuildID, r)
		},
	}
	units, err := sched.Run(gctx, run.work)
	for u, r := range units {
		result.Units[u] = r
	}
	s.recorder.ObserveStageDuration("generate", time.Since(stageStart))
	if err != nil {
		status := BuildStatusFailed
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			status = BuildStatusCancelled
		}
		observability.ErrorContext(gctx, "Build aborted", logfields.Error(err))
		return fail("generate", status, err)
	}
	s.recorder.IncStageResult("generate", metrics.ResultSuccess)

	status := BuildStatusSuccess
	if c := result.Counts(); c.Failed > 0 || c.Skipped > 0 {
		status = BuildStatusFailed
	}
	result.Status = status

	// Stage 4: emit
	result.OutputPath = req.OutputDir
	if result.OutputPath == "" {
		result.OutputPath = cfg.Output.Directory
	}
	result.Duration = time.Since(startTime)
	if s.emitter != nil {
		stageStart = time.Now()
		summary, err := s.emitter.Emit(observability.WithStage(ctx, "emit"), result)
		if err != nil {
			return fail("emit", BuildStatusFailed, err)
		}
		result.Summary = summary
		s.recorder.ObserveStageDuration("emit", time.Since(stageStart))
		s.recorder.IncStageResult("emit", metrics.ResultSuccess)
	} else {
		result.Summary = Summarize(result)
	}

	done(status)
	s.emit(ctx, func() (eventstore.Event, error) {
		c := result.Counts()
		return eventstore.NewBuildCompleted(result.BuildID, string(status), result.Duration,
			eventstore.BuildCounts{FromCache: c.FromCache, Generated: c.Generated, Failed: c.Failed, Skipped: c.Skipped},
			result.OutputPath)
	})
	observability.InfoContext(ctx, "Build finished",
		logfields.State(string(status)),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

func (s *DefaultBuildService) observeUnit(ctx context.Context, buildID string, r *UnitResult) {
	s.recorder.IncUnitResult(string(r.State), r.FromCache)
	s.emit(ctx, func() (eventstore.Event, error) {
		return eventstore.NewUnitStateChanged(buildID, r.Unit, r.Fingerprint.String(), string(r.State), r.FromCache, r.Attempts, r.Reason())
	})
	attrs := []slog.Attr{
		logfields.Unit(r.Unit),
		logfields.Fingerprint(r.Fingerprint.String()),
		logfields.State(string(r.State)),
	}
	switch r.State {
	case StateAccepted:
		observability.InfoContext(ctx, "Unit accepted", append(attrs, slog.Bool("from_cache", r.FromCache), logfields.Attempt(r.Attempts))...)
	case StateFailed:
		observability.WarnContext(ctx, "Unit failed", append(attrs, logfields.Attempt(r.Attempts), logfields.Error(r.Err))...)
	case StateSkipped:
		observability.WarnContext(ctx, "Unit skipped", append(attrs, slog.Any("blocked_by", r.BlockedBy))...)
	}
}

func (s *DefaultBuildService) emit(ctx context.Context, build func() (eventstore.Event, error)) {
	e, err := build()
	if err != nil {
		slog.Warn("Failed to build event", logfields.Error(err))
		return
	}
	s.events.Emit(ctx, e)
}

func stageResult(err error) metrics.ResultLabel {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return metrics.ResultCanceled
	}
	return metrics.ResultFatal
}

// unitRun holds the per-build state shared by workers.
type unitRun struct {
	svc     *DefaultBuildService
	prog    *model.Program
	graph   *graph.Graph
	fps     map[string]fingerprint.Fingerprint
	gen     *Generator
	noCache bool

	mu      sync.Mutex
	sources map[string][]byte // accepted source by unit
}

func (r *unitRun) work(ctx context.Context, unit string) (*UnitResult, error) {
	m, ok := r.prog.Module(unit)
	if !ok {
		return nil, errors.InternalError("unit missing from model").WithContext("unit", unit).Build()
	}
	fp := r.fps[unit]
	ctx = observability.WithUnit(ctx, unit)

	if len(m.Blocked) > 0 {
		return &UnitResult{Unit: unit, Fingerprint: fp, State: StateSkipped, BlockedBy: m.Blocked, Excluded: true}, nil
	}

	if c := r.svc.cache; c != nil && !r.noCache {
		a, hit, err := c.Lookup(ctx, fp)
		if err != nil {
			observability.WarnContext(ctx, "Cache lookup failed, generating",
				logfields.Fingerprint(fp.String()), logfields.Error(err))
			hit = false
		}
		hit = hit && a.Accepted()
		r.svc.recorder.IncCacheLookup(hit)
		if hit {
			r.accept(unit, a.Source)
			return &UnitResult{Unit: unit, State: StateAccepted, FromCache: true, Artifact: a}, nil
		}
	}

	a, err := r.gen.Generate(ctx, r.prog, m, fp, r.dependencySources(unit))
	if err != nil {
		var exhausted *GenerationExhaustedError
		if stderrors.As(err, &exhausted) {
			return &UnitResult{
				Unit:        unit,
				State:       StateFailed,
				Attempts:    exhausted.Attempts,
				Diagnostics: exhausted.Diagnostics,
				Err:         exhausted,
			}, nil
		}
		return nil, err
	}
	r.accept(unit, a.Source)
	return &UnitResult{Unit: unit, State: StateAccepted, Attempts: a.Attempts, Artifact: a}, nil
}

func (r *unitRun) accept(unit string, src []byte) {
	r.mu.Lock()
	r.sources[unit] = src
	r.mu.Unlock()
}

// dependencySources returns the accepted source of every transitive dependency.
func (r *unitRun) dependencySources(unit string) map[string][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string][]byte{}
	var walk func(string)
	walk = func(u string) {
		for _, d := range r.graph.Dependencies(u) {
			if _, seen := out[d]; seen {
				continue
			}
			out[d] = r.sources[d]
			walk(d)
		}
	}
	walk(unit)
	return out
}
