package model

import (
	"fmt"
	"regexp"
	"slices"
	"sort"

	"git.home.luguber.info/inful/mdcompile/internal/parser"
)

// qualifiedRefRe matches module.Interface tokens.
var qualifiedRefRe = regexp.MustCompile(`\b([a-z][a-z0-9_]*)\.([A-Z][A-Za-z0-9_]*)\b`)

type builder struct {
	prog     *Program
	problems []Problem
	explicit map[string]bool // modules with an explicit target
	excluded map[string]bool // modules declared by documents that failed to parse
}

// Build merges parsed documents into a Program. Documents are applied in path
// order: prose is last-write-wins, declarations are unioned and duplicates
// rejected. Every inconsistency is collected into a single *ModelError.
//
// Modules named in excluded are dropped entirely, including their parts in
// documents that did parse. References to them are recorded in Module.Blocked.
func Build(docs []*parser.Document, excluded ...string) (*Program, error) {
	sorted := append([]*parser.Document(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	b := &builder{
		prog:     &Program{byName: map[string]*Module{}},
		explicit: map[string]bool{},
		excluded: map[string]bool{},
	}
	for _, name := range excluded {
		b.excluded[name] = true
	}
	for _, doc := range sorted {
		b.merge(doc)
	}
	for _, m := range b.prog.Modules {
		if m.Target == "" {
			m.Target = parser.TargetLibrary
		}
	}

	b.checkSignatures()
	for _, m := range b.prog.Modules {
		b.checkLinks(m)
	}
	for _, m := range b.prog.Modules {
		b.resolveRefs(m)
	}

	if len(b.problems) > 0 {
		return nil, &ModelError{Problems: b.problems}
	}
	return b.prog, nil
}

func (b *builder) fail(loc Location, format string, args ...any) {
	b.problems = append(b.problems, Problem{Loc: loc, Message: fmt.Sprintf(format, args...)})
}

func (b *builder) module(name, path string) *Module {
	m, ok := b.prog.byName[name]
	if !ok {
		m = &Module{Name: name}
		b.prog.byName[name] = m
		i := sort.Search(len(b.prog.Modules), func(i int) bool { return b.prog.Modules[i].Name >= name })
		b.prog.Modules = append(b.prog.Modules, nil)
		copy(b.prog.Modules[i+1:], b.prog.Modules[i:])
		b.prog.Modules[i] = m
	}
	if n := len(m.Sources); n == 0 || m.Sources[n-1] != path {
		m.Sources = append(m.Sources, path)
	}
	return m
}

func (b *builder) merge(doc *parser.Document) {
	if fm := doc.Frontmatter; fm.Module != "" && !b.excluded[fm.Module] {
		m := b.module(fm.Module, doc.Path)
		if fm.Target != "" {
			m.Target = fm.Target
		}
	}

	for _, d := range doc.Decls {
		if b.excluded[d.Module] {
			continue
		}
		loc := Location{Path: doc.Path, Line: d.Pos.Line}
		m := b.module(d.Module, doc.Path)

		switch d.Kind {
		case parser.KindModule:
			if d.Target != "" {
				m.Target = d.Target
			}
			if text := d.Text(); text != "" {
				m.Prose = text
			}
		case parser.KindInterface:
			if prev, ok := m.Interface(d.Name); ok {
				b.fail(loc, "duplicate interface %q in module %q (first declared at %s)", d.Name, m.Name, prev.Loc)
				continue
			}
			m.Interfaces = append(m.Interfaces, &Interface{
				Name: d.Name, Params: d.Params, Returns: d.Returns, Contract: d.Text(), Loc: loc,
			})
		case parser.KindFunction:
			if prev, ok := m.Function(d.Name); ok {
				b.fail(loc, "duplicate function %q in module %q (first declared at %s)", d.Name, m.Name, prev.Loc)
				continue
			}
			m.Functions = append(m.Functions, &Function{
				Name: d.Name, Implements: d.Implements, Behavior: d.Text(), Tests: d.Tests, Loc: loc,
			})
		case parser.KindTest:
			if prev, ok := m.Test(d.Name); ok {
				b.fail(loc, "duplicate test %q in module %q (first declared at %s)", d.Name, m.Name, prev.Loc)
				continue
			}
			m.Tests = append(m.Tests, &Test{
				Name: d.Name, Kind: d.TestKind, Targets: d.Targets, Setup: d.Setup,
				Input: d.Input, Expect: d.Expect, Predicate: d.Predicate,
				Description: d.Text(), Loc: loc,
			})
		}
	}
}

// checkSignatures rejects an interface name exported by several modules with different shapes.
func (b *builder) checkSignatures() {
	first := map[string]*Interface{}
	owner := map[string]string{}
	for _, m := range b.prog.Modules {
		for _, iface := range m.Interfaces {
			prev, ok := first[iface.Name]
			if !ok {
				first[iface.Name] = iface
				owner[iface.Name] = m.Name
				continue
			}
			if !prev.sameShape(iface) {
				b.fail(iface.Loc, "interface %s in module %q conflicts with %s in module %q (%s)",
					iface.Signature(), m.Name, prev.Signature(), owner[iface.Name], prev.Loc)
			}
		}
	}
}

// checkLinks validates implements=, tests= and targets= within one module.
func (b *builder) checkLinks(m *Module) {
	implemented := map[string]bool{}
	for _, f := range m.Functions {
		if f.Implements != "" {
			if _, ok := m.Interface(f.Implements); !ok {
				b.fail(f.Loc, "function %q implements unknown interface %q in module %q", f.Name, f.Implements, m.Name)
			}
			implemented[f.Implements] = true
		}
		for _, tn := range f.Tests {
			if _, ok := m.Test(tn); !ok {
				b.fail(f.Loc, "function %q references unknown test %q in module %q", f.Name, tn, m.Name)
			}
		}
	}
	for _, t := range m.Tests {
		for _, fn := range t.Targets {
			if _, ok := m.Function(fn); !ok {
				b.fail(t.Loc, "test %q targets unknown function %q in module %q", t.Name, fn, m.Name)
			}
		}
	}
	for _, iface := range m.Interfaces {
		if !implemented[iface.Name] {
			b.fail(iface.Loc, "interface %q in module %q is not implemented by any function", iface.Name, m.Name)
		}
	}
}

// resolveRefs records every module.Interface reference into another known
// module, and every reference into an excluded one.
func (b *builder) resolveRefs(m *Module) {
	seen := map[Ref]bool{}
	scan := func(loc Location, text string) {
		for _, match := range qualifiedRefRe.FindAllStringSubmatch(text, -1) {
			ref := Ref{Module: match[1], Symbol: match[2]}
			if ref.Module == m.Name || seen[ref] {
				continue
			}
			if b.excluded[ref.Module] {
				seen[ref] = true
				if !slices.Contains(m.Blocked, ref.Module) {
					m.Blocked = append(m.Blocked, ref.Module)
				}
				continue
			}
			target, ok := b.prog.byName[ref.Module]
			if !ok {
				continue
			}
			if _, ok := target.Interface(ref.Symbol); !ok {
				b.fail(loc, "module %q references %s, which module %q does not export", m.Name, ref, ref.Module)
				seen[ref] = true
				continue
			}
			seen[ref] = true
			m.Refs = append(m.Refs, ref)
		}
	}

	for _, iface := range m.Interfaces {
		scan(iface.Loc, iface.Returns)
		for _, p := range iface.Params {
			scan(iface.Loc, p.Type)
		}
	}
	for _, f := range m.Functions {
		scan(f.Loc, f.Behavior)
	}

	sort.Strings(m.Blocked)
	sort.Slice(m.Refs, func(i, j int) bool {
		if m.Refs[i].Module != m.Refs[j].Module {
			return m.Refs[i].Module < m.Refs[j].Module
		}
		return m.Refs[i].Symbol < m.Refs[j].Symbol
	})
}
