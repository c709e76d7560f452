// Package eventstore records build lifecycle events and projects them into
// the build history shown by the history command.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	buildStatusRunning = "running"
	buildStatusFailed  = "failed"
)

// UnitOutcome is the last known state of a unit within one build.
type UnitOutcome struct {
	State     string   `json:"state"`
	FromCache bool     `json:"from_cache,omitempty"`
	Attempts  int      `json:"attempts,omitempty"`
	Reason    []string `json:"reason,omitempty"`
}

// BuildSummary is the read model of one build.
type BuildSummary struct {
	BuildID      string                 `json:"build_id"`
	Status       string                 `json:"status"` // running, success, failed, canceled
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Duration     time.Duration          `json:"duration,omitempty"`
	Backend      string                 `json:"backend,omitempty"`
	Documents    int                    `json:"documents"`
	Counts       BuildCounts            `json:"counts"`
	Attempts     int                    `json:"attempts"`
	Units        map[string]UnitOutcome `json:"units,omitempty"`
	ErrorStage   string                 `json:"error_stage,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Output       string                 `json:"output,omitempty"`
}

// BuildHistoryProjection maintains an in-memory view of build history,
// reconstructed from the events in a Store.
type BuildHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildSummary
	history  []*BuildSummary // finished builds, newest first
	maxSize  int
	lastSync time.Time
}

func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		history: make([]*BuildSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every stored event.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builds = make(map[string]*BuildSummary)
	p.history = make([]*BuildSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneBuildsLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event as it is emitted.
func (p *BuildHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *BuildHistoryProjection) applyEventLocked(event Event) {
	buildID := event.BuildID()
	if buildID == "" {
		return
	}

	summary, exists := p.builds[buildID]
	if !exists {
		summary = &BuildSummary{
			BuildID:   buildID,
			Status:    buildStatusRunning,
			StartedAt: event.Timestamp(),
			Units:     make(map[string]UnitOutcome),
		}
		p.builds[buildID] = summary
	}

	switch event.Type() {
	case TypeBuildStarted:
		var payload BuildStarted
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.StartedAt = event.Timestamp()
			summary.Backend = payload.Backend
			summary.Documents = payload.Documents
			for _, u := range payload.Units {
				summary.Units[u] = UnitOutcome{State: "pending"}
			}
		}

	case TypeUnitStateChanged:
		var payload UnitStateChanged
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Units[payload.Unit] = UnitOutcome{
				State:     payload.State,
				FromCache: payload.FromCache,
				Attempts:  payload.Attempts,
				Reason:    payload.Reason,
			}
		}

	case TypeAttemptFinished:
		summary.Attempts++

	case TypeBuildCompleted:
		var payload BuildCompleted
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Status = payload.Status
			summary.Counts = payload.Counts
			summary.Output = payload.Output
		}
		p.finishLocked(summary, event.Timestamp())

	case TypeBuildFailed:
		var payload BuildFailed
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}
		summary.Status = buildStatusFailed
		p.finishLocked(summary, event.Timestamp())
	}
}

func (p *BuildHistoryProjection) finishLocked(summary *BuildSummary, at time.Time) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)

	for _, h := range p.history {
		if h.BuildID == summary.BuildID {
			return
		}
	}
	p.history = append([]*BuildSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneBuildsLocked()
}

// pruneBuildsLocked drops finished builds that fell out of the bounded history.
func (p *BuildHistoryProjection) pruneBuildsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.BuildID] = struct{}{}
	}
	for id, summary := range p.builds {
		if summary.Status == buildStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.builds, id)
		}
	}
}

// GetHistory returns finished builds, newest first.
func (p *BuildHistoryProjection) GetHistory() []*BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*BuildSummary, len(p.history))
	for i, h := range p.history {
		result[i] = h.clone()
	}
	return result
}

// GetBuild returns the summary of one build.
func (p *BuildHistoryProjection) GetBuild(buildID string) (*BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.builds[buildID]
	if !exists {
		return nil, false
	}
	return summary.clone(), true
}

// GetActiveBuild returns a running build, if any.
func (p *BuildHistoryProjection) GetActiveBuild() *BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, summary := range p.builds {
		if summary.Status == buildStatusRunning {
			return summary.clone()
		}
	}
	return nil
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *BuildHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}

func (s *BuildSummary) clone() *BuildSummary {
	cp := *s
	cp.Units = make(map[string]UnitOutcome, len(s.Units))
	for k, v := range s.Units {
		cp.Units[k] = v
	}
	return &cp
}
