package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recorder struct {
	mu       sync.Mutex
	triggers []Trigger
	fired    chan Trigger
	hold     time.Duration
}

func newRecorder() *recorder { return &recorder{fired: make(chan Trigger, 16)} }

func (r *recorder) build(_ context.Context, t Trigger) {
	r.mu.Lock()
	r.triggers = append(r.triggers, t)
	r.mu.Unlock()
	r.fired <- t
	time.Sleep(r.hold)
}

func (r *recorder) wait(t *testing.T, within time.Duration) Trigger {
	t.Helper()
	select {
	case got := <-r.fired:
		return got
	case <-time.After(within):
		t.Fatal("timed out waiting for build")
		return Trigger{}
	}
}

func (r *recorder) none(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case <-r.fired:
		t.Fatal("unexpected build")
	case <-time.After(within):
	}
}

func startDebouncer(t *testing.T, cfg DebouncerConfig, r *recorder) *Debouncer {
	t.Helper()
	d, err := NewDebouncer(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx, r.build)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d
}

func TestDebouncer_BurstCoalescesToSingleBuild(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
	})

	r := newRecorder()
	d := startDebouncer(t, DebouncerConfig{QuietWindow: 25 * time.Millisecond, MaxDelay: time.Second}, r)

	for range 5 {
		d.Request("write: a.md")
		time.Sleep(5 * time.Millisecond)
	}

	got := r.wait(t, 500*time.Millisecond)
	assert.Equal(t, 5, got.RequestCount)
	assert.Equal(t, "write: a.md", got.Reason)
	r.none(t, 75*time.Millisecond)
}

func TestDebouncer_MaxDelayForcesBuild(t *testing.T) {
	r := newRecorder()
	d := startDebouncer(t, DebouncerConfig{QuietWindow: 40 * time.Millisecond, MaxDelay: 100 * time.Millisecond}, r)

	stop := time.After(400 * time.Millisecond)
	start := time.Now()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Request("tick")
			continue
		case <-r.fired:
		case <-stop:
			t.Fatal("max delay did not force a build")
		}
		break
	}
	assert.Less(t, time.Since(start), 300*time.Millisecond)
}

func TestDebouncer_RequestsDuringBuildYieldOneFollowUp(t *testing.T) {
	r := newRecorder()
	r.hold = 100 * time.Millisecond
	d := startDebouncer(t, DebouncerConfig{QuietWindow: 10 * time.Millisecond, MaxDelay: time.Second}, r)

	d.Request("first")
	r.wait(t, 500*time.Millisecond)

	// The first build is still running.
	for range 3 {
		d.Request("during")
	}
	got := r.wait(t, 500*time.Millisecond)
	assert.Equal(t, 3, got.RequestCount)
	r.none(t, 150*time.Millisecond)
}

func TestDebouncer_ConfigChangeSurvivesLaterRequests(t *testing.T) {
	r := newRecorder()
	d := startDebouncer(t, DebouncerConfig{QuietWindow: 25 * time.Millisecond, MaxDelay: time.Second}, r)

	d.Request(ReasonConfigChanged)
	d.Request("write: a.md")
	got := r.wait(t, 500*time.Millisecond)
	assert.True(t, got.ConfigChanged)
	assert.Equal(t, "write: a.md", got.Reason)

	d.Request("write: b.md")
	assert.False(t, r.wait(t, 500*time.Millisecond).ConfigChanged)
}

func TestNewDebouncer_Validation(t *testing.T) {
	_, err := NewDebouncer(DebouncerConfig{})
	require.Error(t, err)

	_, err = NewDebouncer(DebouncerConfig{QuietWindow: time.Second, MaxDelay: time.Millisecond})
	require.Error(t, err)

	d, err := NewDebouncer(DebouncerConfig{QuietWindow: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d.cfg.MaxDelay)

	require.Error(t, d.Run(t.Context(), nil))
}
