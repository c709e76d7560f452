// Package fingerprint computes the content fingerprints used as artifact cache keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/mdcompile/internal/graph"
	"git.home.luguber.info/inful/mdcompile/internal/model"
)

// Version is mixed into every fingerprint. Bump it when the canonical form changes.
const Version = "mdcompile-fp-v1"

// Fingerprint is a 64 character hex SHA-256 digest.
type Fingerprint string

// Short returns the first 12 characters for display.
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

func (f Fingerprint) String() string { return string(f) }

// Slot binds a dependency slot name to the fingerprint of the unit filling it.
type Slot struct {
	Name        string
	Fingerprint Fingerprint
}

// Canonical renders the structured and prose parts of a unit specification.
// The structured part keeps declaration order and literals verbatim; the prose
// part is normalized.
func Canonical(m *model.Module) (structured, prose string) {
	var s, p strings.Builder
	fmt.Fprintf(&s, "module %s\ntarget %s\n", m.Name, m.Target)
	writeProse(&p, "module "+m.Name, m.Prose)

	for _, i := range m.Interfaces {
		fmt.Fprintf(&s, "interface %s\n", i.Signature())
		writeProse(&p, "interface "+i.Name, i.Contract)
	}
	for _, f := range m.Functions {
		fmt.Fprintf(&s, "function %s implements=%s tests=%s\n", f.Name, f.Implements, strings.Join(f.Tests, ","))
		writeProse(&p, "function "+f.Name, f.Behavior)
	}
	for _, t := range m.Tests {
		fmt.Fprintf(&s, "test %s kind=%s targets=%s\n", t.Name, t.Kind, strings.Join(t.Targets, ","))
		for _, setup := range t.Setup {
			fmt.Fprintf(&s, "  setup %s\n", setup)
		}
		fmt.Fprintf(&s, "  input %s\n", t.Input)
		if t.Predicate != "" {
			fmt.Fprintf(&s, "  predicate %s\n", t.Predicate)
		} else {
			fmt.Fprintf(&s, "  expect %s\n", t.Expect)
		}
		writeProse(&p, "test "+t.Name, t.Description)
	}
	return s.String(), p.String()
}

func writeProse(b *strings.Builder, label, text string) {
	if n := NormalizeProse(text); n != "" {
		fmt.Fprintf(b, "[%s]\n%s\n", label, n)
	}
}

// SpecDigest hashes the canonical specification of a unit.
func SpecDigest(m *model.Module) string {
	structured, prose := Canonical(m)
	return mdfp.CalculateFingerprintFromParts(structured, prose)
}

// Compute combines a unit's spec digest with its dependency slots. Slots are
// hashed in the order given; callers pass them sorted by slot name.
func Compute(unitID, specDigest string, slots []Slot) Fingerprint {
	h := sha256.New()
	field := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	field(Version)
	field(unitID)
	field(specDigest)
	for _, slot := range slots {
		field(slot.Name)
		field(string(slot.Fingerprint))
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// All computes the fingerprint of every unit in topological order so each
// dependency fingerprint is available when its dependents are hashed.
func All(prog *model.Program, g *graph.Graph) map[string]Fingerprint {
	out := make(map[string]Fingerprint, g.Len())
	for _, id := range g.Order() {
		m, ok := prog.Module(id)
		if !ok {
			continue
		}
		deps := g.Dependencies(id)
		slots := make([]Slot, len(deps))
		for i, d := range deps {
			slots[i] = Slot{Name: d, Fingerprint: out[d]}
		}
		out[id] = Compute(id, SpecDigest(m), slots)
	}
	return out
}
