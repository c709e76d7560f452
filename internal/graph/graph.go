// Package graph derives the dependency DAG over units, detects cycles and
// produces the deterministic topological order used by generation and emission.
package graph

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/model"
)

// Graph is the BuildGraph: one node per unit, an edge from a unit to each unit it depends on.
type Graph struct {
	nodes      []string
	deps       map[string][]string // unit -> units it depends on
	dependents map[string][]string // unit -> units depending on it
	order      []string
}

// CycleError names every strongly connected component of size > 1.
type CycleError struct {
	Cycles [][]string // each sorted; components sorted by first unit
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = "{" + strings.Join(c, ", ") + "}"
	}
	return "dependency cycle between units " + strings.Join(parts, " and ")
}

// Category implements errors.Categorized.
func (e *CycleError) Category() errors.ErrorCategory { return errors.CategoryCycle }

// Units returns every unit participating in a cycle, sorted.
func (e *CycleError) Units() []string {
	var out []string
	for _, c := range e.Cycles {
		out = append(out, c...)
	}
	sort.Strings(out)
	return out
}

// Build creates the graph for prog. It fails with *CycleError when the
// references between modules are cyclic.
func Build(prog *model.Program) (*Graph, error) {
	edges := make(map[string][]string, len(prog.Modules))
	for _, m := range prog.Modules {
		edges[m.Name] = m.Deps()
	}
	return New(edges)
}

// New creates a graph from an adjacency list of unit -> dependencies. Edges to
// unknown units are an error.
func New(edges map[string][]string) (*Graph, error) {
	g := &Graph{
		deps:       make(map[string][]string, len(edges)),
		dependents: make(map[string][]string, len(edges)),
	}
	for n := range edges {
		g.nodes = append(g.nodes, n)
	}
	sort.Strings(g.nodes)

	for _, n := range g.nodes {
		seen := map[string]bool{}
		for _, d := range edges[n] {
			if _, ok := edges[d]; !ok {
				return nil, errors.InternalError(fmt.Sprintf("unit %q depends on unknown unit %q", n, d)).Build()
			}
			if seen[d] {
				continue
			}
			seen[d] = true
			g.deps[n] = append(g.deps[n], d)
			g.dependents[d] = append(g.dependents[d], n)
		}
		sort.Strings(g.deps[n])
	}
	for _, n := range g.nodes {
		sort.Strings(g.dependents[n])
	}

	if cycles := g.stronglyConnected(); len(cycles) > 0 {
		return nil, &CycleError{Cycles: cycles}
	}
	g.order = g.topoOrder()
	return g, nil
}

// Units returns every unit, sorted by name.
func (g *Graph) Units() []string { return append([]string(nil), g.nodes...) }

// Len is the number of units.
func (g *Graph) Len() int { return len(g.nodes) }

// Order returns the topological order: dependencies before dependents, ties
// broken lexicographically.
func (g *Graph) Order() []string { return append([]string(nil), g.order...) }

// Dependencies returns the direct dependencies of unit.
func (g *Graph) Dependencies(unit string) []string { return append([]string(nil), g.deps[unit]...) }

// Dependents returns the units depending directly on unit.
func (g *Graph) Dependents(unit string) []string {
	return append([]string(nil), g.dependents[unit]...)
}

// Downstream returns every unit depending on unit directly or transitively, sorted.
func (g *Graph) Downstream(unit string) []string {
	seen := map[string]bool{}
	stack := append([]string(nil), g.dependents[unit]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.dependents[n]...)
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type stringHeap []string

func (h stringHeap) Len() int           { return len(h) }
func (h stringHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h stringHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *stringHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *stringHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder runs Kahn's algorithm with a min-heap ready queue.
func (g *Graph) topoOrder() []string {
	indeg := make(map[string]int, len(g.nodes))
	ready := &stringHeap{}
	for _, n := range g.nodes {
		indeg[n] = len(g.deps[n])
		if indeg[n] == 0 {
			heap.Push(ready, n)
		}
	}

	out := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(string)
		out = append(out, n)
		for _, m := range g.dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}
