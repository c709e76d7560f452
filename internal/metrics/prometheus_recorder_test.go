package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("generate", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("generate", ResultSuccess)
	pr.IncBuildOutcome(BuildOutcomeSuccess)
	pr.IncUnitResult("accepted", true)
	pr.IncCacheLookup(false)
	pr.ObserveAttempt("fixture", 20*time.Millisecond, AttemptRejected)
	pr.IncRetryExhausted()
	pr.SetWorkersBusy(2)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["mdcompile_build_outcomes_total"])
	assert.True(t, names["mdcompile_cache_lookups_total"])
	assert.True(t, names["mdcompile_generation_attempts_total"])
	assert.True(t, names["mdcompile_workers_busy"])
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncCacheLookup(true)
		pr.ObserveAttempt("anthropic", time.Second, AttemptAccepted)
		pr.IncBuildOutcome(BuildOutcomeFailed)
	})
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncCacheLookup(true)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `mdcompile_cache_lookups_total{result="hit"} 1`))
}
