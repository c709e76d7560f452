package watch

import (
	"context"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// ReasonConfigChanged is the request reason for an edited configuration file.
const ReasonConfigChanged = "config changed"

// Trigger describes why a build runs.
type Trigger struct {
	Reason       string // reason of the last request in the burst
	RequestCount int
	FirstAt      time.Time
	// ConfigChanged is set when any request in the burst was ReasonConfigChanged.
	ConfigChanged bool
}

type DebouncerConfig struct {
	// QuietWindow is how long requests must stop before a build starts.
	QuietWindow time.Duration
	// MaxDelay bounds how long a steady stream of requests can postpone a build.
	MaxDelay time.Duration
}

// Debouncer coalesces bursts of build requests into single builds.
//
// Builds run one at a time on the Run goroutine. Requests arriving while a
// build runs are collected and produce exactly one follow-up build.
type Debouncer struct {
	cfg DebouncerConfig

	mu      sync.Mutex
	notify  chan struct{}
	pending int
	reason  string
	config  bool
	firstAt time.Time
}

func NewDebouncer(cfg DebouncerConfig) (*Debouncer, error) {
	if cfg.QuietWindow <= 0 {
		return nil, ferrors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * cfg.QuietWindow
	}
	if cfg.MaxDelay < cfg.QuietWindow {
		return nil, ferrors.ValidationError("max delay must not be shorter than the quiet window").Build()
	}
	return &Debouncer{cfg: cfg, notify: make(chan struct{}, 1)}, nil
}

// Request asks for a build. It never blocks.
func (d *Debouncer) Request(reason string) {
	d.mu.Lock()
	if d.pending == 0 {
		d.firstAt = time.Now()
	}
	d.pending++
	d.reason = reason
	d.config = d.config || reason == ReasonConfigChanged
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// take returns the collected trigger and resets the pending state.
func (d *Debouncer) take() (Trigger, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == 0 {
		return Trigger{}, false
	}
	t := Trigger{Reason: d.reason, RequestCount: d.pending, FirstAt: d.firstAt, ConfigChanged: d.config}
	d.pending = 0
	d.reason = ""
	d.config = false
	return t, true
}

func (d *Debouncer) firstRequest() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firstAt
}

// Run calls build for every coalesced burst until ctx is done.
func (d *Debouncer) Run(ctx context.Context, build func(context.Context, Trigger)) error {
	if build == nil {
		return ferrors.ValidationError("build function is required").Build()
	}

	quiet := time.NewTimer(time.Hour)
	stopTimer(quiet)
	var quietC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			stopTimer(quiet)
			return nil
		case <-d.notify:
			wait := d.cfg.QuietWindow
			if remaining := d.cfg.MaxDelay - time.Since(d.firstRequest()); remaining < wait {
				wait = max(remaining, 0)
			}
			stopTimer(quiet)
			quiet.Reset(wait)
			quietC = quiet.C
		case <-quietC:
			quietC = nil
			t, ok := d.take()
			if !ok {
				continue
			}
			build(ctx, t)
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
