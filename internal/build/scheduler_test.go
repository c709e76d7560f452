package build

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/graph"
)

// The opencensus view worker is started from an init function of a transitive
// dependency of the generation backends and never exits.
var ignoreViewWorker = goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start")

func mustGraph(t *testing.T, edges map[string][]string) *graph.Graph {
	t.Helper()
	g, err := graph.New(edges)
	require.NoError(t, err)
	return g
}

func TestScheduler_DependenciesFinishFirst(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreViewWorker)

	g := mustGraph(t, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
		"e": nil,
	})
	var mu sync.Mutex
	finished := map[string]bool{}
	var order []string

	s := &Scheduler{
		Graph:    g,
		Workers:  3,
		OnResult: func(r *UnitResult) { order = append(order, r.Unit) },
	}
	results, err := s.Run(t.Context(), func(_ context.Context, unit string) (*UnitResult, error) {
		mu.Lock()
		defer mu.Unlock()
		for _, d := range g.Dependencies(unit) {
			if !finished[d] {
				t.Errorf("%s started before dependency %s finished", unit, d)
			}
		}
		finished[unit] = true
		return &UnitResult{Unit: unit, State: StateAccepted}, nil
	})
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Len(t, order, 5)
	pos := map[string]int{}
	for i, u := range order {
		pos[u] = i
	}
	assert.Greater(t, pos["d"], pos["b"])
	assert.Greater(t, pos["d"], pos["c"])
	assert.Greater(t, pos["b"], pos["a"])
}

func TestScheduler_BoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreViewWorker)

	edges := map[string][]string{}
	for _, u := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		edges[u] = nil
	}
	var running, peak atomic.Int32

	s := &Scheduler{Graph: mustGraph(t, edges), Workers: 2}
	_, err := s.Run(t.Context(), func(_ context.Context, unit string) (*UnitResult, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return &UnitResult{Unit: unit, State: StateAccepted}, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestScheduler_SkipPropagatesTransitively(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreViewWorker)

	g := mustGraph(t, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
		"x": nil,
	})
	var ran sync.Map

	s := &Scheduler{Graph: g, Workers: 2}
	results, err := s.Run(t.Context(), func(_ context.Context, unit string) (*UnitResult, error) {
		ran.Store(unit, true)
		if unit == "a" {
			return &UnitResult{Unit: unit, State: StateFailed}, nil
		}
		return &UnitResult{Unit: unit, State: StateAccepted}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, StateFailed, results["a"].State)
	assert.Equal(t, StateSkipped, results["b"].State)
	assert.Equal(t, []string{"a"}, results["b"].BlockedBy)
	assert.Equal(t, StateSkipped, results["c"].State)
	assert.Equal(t, []string{"b"}, results["c"].BlockedBy)
	assert.Equal(t, StateAccepted, results["x"].State)

	_, bRan := ran.Load("b")
	_, cRan := ran.Load("c")
	assert.False(t, bRan)
	assert.False(t, cRan)
}

func TestScheduler_CancellationStopsInFlightWork(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreViewWorker)

	g := mustGraph(t, map[string][]string{"a": nil, "b": nil, "c": {"a", "b"}})
	ctx, cancel := context.WithCancel(t.Context())
	var started sync.WaitGroup
	started.Add(2)
	go func() {
		started.Wait()
		cancel()
	}()

	s := &Scheduler{Graph: g, Workers: 2}
	results, err := s.Run(ctx, func(ctx context.Context, unit string) (*UnitResult, error) {
		started.Done()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestScheduler_FatalErrorAbortsBuild(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreViewWorker)

	g := mustGraph(t, map[string][]string{"a": nil, "b": nil, "c": {"a"}})
	fatal := errors.InternalError("boom").Build()

	s := &Scheduler{Graph: g, Workers: 1}
	results, err := s.Run(t.Context(), func(ctx context.Context, unit string) (*UnitResult, error) {
		if unit == "a" {
			return nil, fatal
		}
		return &UnitResult{Unit: unit, State: StateAccepted}, nil
	})

	require.ErrorIs(t, err, fatal)
	assert.NotContains(t, results, "c")
}

func TestScheduler_EmptyGraph(t *testing.T) {
	s := &Scheduler{Graph: mustGraph(t, map[string][]string{})}
	results, err := s.Run(t.Context(), func(context.Context, string) (*UnitResult, error) {
		t.Fatal("no work expected")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
