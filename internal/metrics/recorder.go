package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcomeLabel enumerates the final status of a whole build.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeInvalid  BuildOutcomeLabel = "invalid" // model or cycle errors, nothing generated
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// AttemptLabel enumerates the outcome of a single generation attempt.
type AttemptLabel string

const (
	AttemptAccepted AttemptLabel = "accepted"
	AttemptRejected AttemptLabel = "rejected"
	AttemptError    AttemptLabel = "error"
)

// Recorder defines observability hooks for build, unit and cache metrics. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for nil receivers
// when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncUnitResult(state string, fromCache bool)
	IncCacheLookup(hit bool)
	ObserveAttempt(backend string, d time.Duration, result AttemptLabel)
	IncRetryExhausted()
	SetWorkersBusy(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                 {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                 {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)                  {}
func (NoopRecorder) IncUnitResult(string, bool)                         {}
func (NoopRecorder) IncCacheLookup(bool)                                {}
func (NoopRecorder) ObserveAttempt(string, time.Duration, AttemptLabel) {}
func (NoopRecorder) IncRetryExhausted()                                 {}
func (NoopRecorder) SetWorkersBusy(int)                                 {}
