package watch

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdcompile/internal/build"
	"git.home.luguber.info/inful/mdcompile/internal/metrics"
)

type buildLog struct {
	mu       sync.Mutex
	triggers []Trigger
}

func (l *buildLog) build(_ context.Context, t Trigger) (*build.BuildResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.triggers = append(l.triggers, t)
	return &build.BuildResult{
		BuildID: "b",
		Summary: &build.Summary{BuildID: "b", Status: build.BuildStatusSuccess, Counts: build.Counts{Generated: len(l.triggers)}},
	}, nil
}

func (l *buildLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.triggers)
}

func runWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func TestWatcher_InitialBuildThenRebuildOnChange(t *testing.T) {
	dir := t.TempDir()
	log := &buildLog{}
	w, err := New(Options{Paths: []string{dir}, Debounce: 20 * time.Millisecond}, log.build)
	require.NoError(t, err)
	runWatcher(t, w)

	require.Eventually(t, func() bool { return log.count() == 1 }, time.Second, 5*time.Millisecond)
	log.mu.Lock()
	assert.Equal(t, "initial build", log.triggers[0].Reason)
	log.mu.Unlock()

	// Give the source watcher time to start before changing a file.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calc.md"), []byte("x"), 0o600))
	require.Eventually(t, func() bool { return log.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	st := w.Status()
	assert.Equal(t, 2, st.Builds)
	assert.False(t, st.Running)
	require.NotNil(t, st.Last)
	assert.Equal(t, 2, st.Last.Counts.Generated)
}

func TestWatcher_ServesMetricsAndStatus(t *testing.T) {
	reg := prom.NewRegistry()
	metrics.NewPrometheusRecorder(reg).IncBuildOutcome(metrics.BuildOutcomeSuccess)

	log := &buildLog{}
	w, err := New(Options{
		Paths:       []string{t.TempDir()},
		Debounce:    20 * time.Millisecond,
		MetricsAddr: "127.0.0.1:0",
		Registry:    reg,
	}, log.build)
	require.NoError(t, err)
	runWatcher(t, w)
	require.Eventually(t, func() bool { return w.Addr() != "" && log.count() == 1 }, time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + w.Addr() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 1, st.Builds)
	assert.Equal(t, "b", st.Last.BuildID)

	mresp, err := http.Get("http://" + w.Addr() + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
}

func TestWatcher_RunsCacheGC(t *testing.T) {
	c := &countingCollector{}
	log := &buildLog{}
	w, err := New(Options{
		Paths:      []string{t.TempDir()},
		GCInterval: 20 * time.Millisecond,
		Collector:  c,
	}, log.build)
	require.NoError(t, err)
	runWatcher(t, w)

	require.Eventually(t, func() bool { return c.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Paths: []string{"."}}, nil)
	require.Error(t, err)

	_, err = New(Options{}, (&buildLog{}).build)
	require.Error(t, err)
}
