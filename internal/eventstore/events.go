package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Event type names.
const (
	TypeBuildStarted     = "BuildStarted"
	TypeUnitStateChanged = "UnitStateChanged"
	TypeAttemptFinished  = "AttemptFinished"
	TypeBuildCompleted   = "BuildCompleted"
	TypeBuildFailed      = "BuildFailed"
)

// BuildStarted is emitted once the build graph is known.
type BuildStarted struct {
	BaseEvent
	Units     []string `json:"units"`
	Documents int      `json:"documents"`
	Backend   string   `json:"backend"`
	Workers   int      `json:"workers"`
}

func NewBuildStarted(buildID string, units []string, documents int, backend string, workers int) (*BuildStarted, error) {
	e := &BuildStarted{Units: units, Documents: documents, Backend: backend, Workers: workers}
	if err := seal(&e.BaseEvent, buildID, TypeBuildStarted, e); err != nil {
		return nil, err
	}
	return e, nil
}

// UnitStateChanged is emitted on every unit state transition.
type UnitStateChanged struct {
	BaseEvent
	Unit        string   `json:"unit"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	State       string   `json:"state"`
	FromCache   bool     `json:"from_cache,omitempty"`
	Attempts    int      `json:"attempts,omitempty"`
	Reason      []string `json:"reason,omitempty"`
}

func NewUnitStateChanged(buildID, unit, fingerprint, state string, fromCache bool, attempts int, reason []string) (*UnitStateChanged, error) {
	e := &UnitStateChanged{
		Unit:        unit,
		Fingerprint: fingerprint,
		State:       state,
		FromCache:   fromCache,
		Attempts:    attempts,
		Reason:      reason,
	}
	if err := seal(&e.BaseEvent, buildID, TypeUnitStateChanged, e); err != nil {
		return nil, err
	}
	return e, nil
}

// AttemptFinished is emitted after each generation attempt.
type AttemptFinished struct {
	BaseEvent
	Unit        string   `json:"unit"`
	Attempt     int      `json:"attempt"`
	Backend     string   `json:"backend"`
	Outcome     string   `json:"outcome"` // accepted, rejected or error
	DurationMS  int64    `json:"duration_ms"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

func NewAttemptFinished(buildID, unit string, attempt int, backend, outcome string, duration time.Duration, diagnostics []string) (*AttemptFinished, error) {
	e := &AttemptFinished{
		Unit:        unit,
		Attempt:     attempt,
		Backend:     backend,
		Outcome:     outcome,
		DurationMS:  duration.Milliseconds(),
		Diagnostics: diagnostics,
	}
	if err := seal(&e.BaseEvent, buildID, TypeAttemptFinished, e); err != nil {
		return nil, err
	}
	return e, nil
}

// BuildCounts are the per-state unit totals of a finished build.
type BuildCounts struct {
	FromCache int `json:"from_cache"`
	Generated int `json:"generated"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// BuildCompleted is emitted when every unit reached a terminal state.
type BuildCompleted struct {
	BaseEvent
	Status     string      `json:"status"` // success, failed or canceled
	DurationMS int64       `json:"duration_ms"`
	Counts     BuildCounts `json:"counts"`
	Output     string      `json:"output,omitempty"`
}

func NewBuildCompleted(buildID, status string, duration time.Duration, counts BuildCounts, output string) (*BuildCompleted, error) {
	e := &BuildCompleted{Status: status, DurationMS: duration.Milliseconds(), Counts: counts, Output: output}
	if err := seal(&e.BaseEvent, buildID, TypeBuildCompleted, e); err != nil {
		return nil, err
	}
	return e, nil
}

// BuildFailed is emitted when a build aborts as a whole.
type BuildFailed struct {
	BaseEvent
	Stage string `json:"stage"`
	Error string `json:"error"`
}

func NewBuildFailed(buildID, stage, errorMsg string) (*BuildFailed, error) {
	e := &BuildFailed{Stage: stage, Error: errorMsg}
	if err := seal(&e.BaseEvent, buildID, TypeBuildFailed, e); err != nil {
		return nil, err
	}
	return e, nil
}

// seal fills the base event and encodes the typed event as its payload.
func seal(base *BaseEvent, buildID, eventType string, typed any) error {
	payload, err := json.Marshal(typed)
	if err != nil {
		return errors.EventStoreError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("build_id", buildID).
			Build()
	}
	*base = BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
	return nil
}
