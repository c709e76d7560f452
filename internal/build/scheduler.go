package build

import (
	"context"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/mdcompile/internal/graph"
	"git.home.luguber.info/inful/mdcompile/internal/metrics"
)

// Work brings one unit to a terminal state. It runs only after every
// dependency of the unit is Accepted. A returned error aborts the build.
type Work func(ctx context.Context, unit string) (*UnitResult, error)

// Scheduler releases units to a bounded worker pool in dependency order. A unit
// becomes ready once all its dependencies are terminal; if any of them is not
// Accepted the unit is Skipped without running.
type Scheduler struct {
	Graph    *graph.Graph
	Workers  int
	Recorder metrics.Recorder

	// OnResult observes every terminal state in the order it is reached.
	// It is called from the scheduling goroutine only.
	OnResult func(*UnitResult)
}

// Run drives every unit of the graph to a terminal state. On error or
// cancellation the results gathered so far are returned with the error; units
// never released remain absent from the map.
func (s *Scheduler) Run(ctx context.Context, work Work) (map[string]*UnitResult, error) {
	g := s.Graph
	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}
	rec := s.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	results := make(map[string]*UnitResult, g.Len())
	remaining := make(map[string]int, g.Len())
	blocked := make(map[string][]string)
	var ready []string
	for _, u := range g.Order() {
		remaining[u] = len(g.Dependencies(u))
		if remaining[u] == 0 {
			ready = append(ready, u)
		}
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	// Buffered to the unit count so workers never block on delivery.
	done := make(chan *UnitResult, g.Len())

	running := 0
	var finish func(r *UnitResult)
	finish = func(r *UnitResult) {
		results[r.Unit] = r
		if s.OnResult != nil {
			s.OnResult(r)
		}
		for _, d := range g.Dependents(r.Unit) {
			if r.State != StateAccepted {
				blocked[d] = append(blocked[d], r.Unit)
			}
			remaining[d]--
			if remaining[d] > 0 {
				continue
			}
			if len(blocked[d]) > 0 {
				finish(&UnitResult{Unit: d, State: StateSkipped, BlockedBy: blocked[d]})
				continue
			}
			ready = append(ready, d)
		}
	}

	for len(results) < g.Len() {
		for len(ready) > 0 && running < workers && gctx.Err() == nil {
			unit := ready[0]
			ready = ready[1:]
			running++
			rec.SetWorkersBusy(running)
			eg.Go(func() error {
				r, err := work(gctx, unit)
				if err != nil {
					return err
				}
				done <- r
				return nil
			})
		}
		if running == 0 {
			break
		}
		select {
		case r := <-done:
			running--
			rec.SetWorkersBusy(running)
			finish(r)
		case <-gctx.Done():
			err := eg.Wait()
			rec.SetWorkersBusy(0)
			// Drain results delivered before the abort.
			for len(done) > 0 {
				finish(<-done)
			}
			if err == nil {
				err = ctx.Err()
			}
			return results, err
		}
	}

	if err := eg.Wait(); err != nil {
		return results, err
	}
	rec.SetWorkersBusy(0)
	return results, ctx.Err()
}
