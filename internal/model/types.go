// Package model merges parsed documents into the program model: modules with
// their interfaces, functions and tests, and the cross-module references that
// become build graph edges.
package model

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/parser"
)

// Location points at a declaration in a source document.
type Location struct {
	Path string
	Line int
}

func (l Location) String() string {
	if l.Path == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Program is the merged model of every source document in a build.
type Program struct {
	Modules []*Module // sorted by name
	byName  map[string]*Module
}

// Module returns the module with the given name.
func (p *Program) Module(name string) (*Module, bool) {
	m, ok := p.byName[name]
	return m, ok
}

// Names returns the module names in sorted order.
func (p *Program) Names() []string {
	names := make([]string, len(p.Modules))
	for i, m := range p.Modules {
		names[i] = m.Name
	}
	return names
}

// Module is one unit: the granule of fingerprinting, generation and verification.
type Module struct {
	Name       string
	Target     string
	Prose      string
	Interfaces []*Interface
	Functions  []*Function
	Tests      []*Test
	Sources    []string // contributing documents, sorted

	// Refs are the resolved references into other modules, sorted and unique.
	Refs []Ref

	// Blocked names the excluded modules this module references, sorted.
	Blocked []string
}

// ID is the unit identifier used by the cache and the build graph.
func (m *Module) ID() string { return m.Name }

// Deps returns the distinct modules this module references, sorted.
func (m *Module) Deps() []string {
	var deps []string
	for _, r := range m.Refs {
		if len(deps) == 0 || deps[len(deps)-1] != r.Module {
			deps = append(deps, r.Module)
		}
	}
	return deps
}

// Interface returns the named interface declared by the module.
func (m *Module) Interface(name string) (*Interface, bool) {
	for _, i := range m.Interfaces {
		if i.Name == name {
			return i, true
		}
	}
	return nil, false
}

// Function returns the named function spec.
func (m *Module) Function(name string) (*Function, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Test returns the named test spec.
func (m *Module) Test(name string) (*Test, bool) {
	for _, t := range m.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Interface is an exported signature with its contract description.
type Interface struct {
	Name     string
	Params   []parser.Param
	Returns  string
	Contract string
	Loc      Location
}

// Signature renders the interface header in source syntax.
func (i *Interface) Signature() string {
	params := make([]string, len(i.Params))
	for k, p := range i.Params {
		params[k] = p.Name + ": " + p.Type
	}
	sig := i.Name + "(" + strings.Join(params, ", ") + ")"
	if i.Returns != "" {
		sig += " -> " + i.Returns
	}
	return sig
}

// sameShape reports whether two interfaces have identical parameter and return types.
func (i *Interface) sameShape(o *Interface) bool {
	if i.Returns != o.Returns || len(i.Params) != len(o.Params) {
		return false
	}
	for k := range i.Params {
		if i.Params[k] != o.Params[k] {
			return false
		}
	}
	return true
}

// Function is a behavioral description, optionally implementing an interface.
type Function struct {
	Name       string
	Implements string
	Behavior   string
	Tests      []string
	Loc        Location
}

// Test is a unit or integration test over the module's functions.
type Test struct {
	Name        string
	Kind        string
	Targets     []string
	Setup       []string
	Input       string
	Expect      string
	Predicate   string
	Description string
	Loc         Location
}

// Integration reports whether the test runs against dependency outputs.
func (t *Test) Integration() bool { return t.Kind == parser.TestKindIntegration }

// Ref is a qualified reference module.Symbol from a declaration in another module.
type Ref struct {
	Module string
	Symbol string
}

func (r Ref) String() string { return r.Module + "." + r.Symbol }
