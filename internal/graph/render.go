package graph

import (
	"fmt"
	"io"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Format selects a graph rendering.
type Format string

const (
	FormatText    Format = "text"
	FormatMermaid Format = "mermaid"
	FormatDOT     Format = "dot"
)

// Render writes the graph in the requested format. Units are listed in topological order.
func (g *Graph) Render(w io.Writer, format Format) error {
	var b strings.Builder
	switch format {
	case FormatText, "":
		for i, n := range g.order {
			deps := "(none)"
			if len(g.deps[n]) > 0 {
				deps = strings.Join(g.deps[n], ", ")
			}
			fmt.Fprintf(&b, "%d. %s <- %s\n", i+1, n, deps)
		}
	case FormatMermaid:
		b.WriteString("graph TD\n")
		for _, n := range g.order {
			if len(g.deps[n]) == 0 && len(g.dependents[n]) == 0 {
				fmt.Fprintf(&b, "    %s\n", n)
			}
			for _, d := range g.deps[n] {
				fmt.Fprintf(&b, "    %s --> %s\n", n, d)
			}
		}
	case FormatDOT:
		b.WriteString("digraph mdcompile {\n    rankdir=LR;\n")
		for _, n := range g.order {
			fmt.Fprintf(&b, "    %q;\n", n)
		}
		for _, n := range g.order {
			for _, d := range g.deps[n] {
				fmt.Fprintf(&b, "    %q -> %q;\n", n, d)
			}
		}
		b.WriteString("}\n")
	default:
		return errors.ValidationError(fmt.Sprintf("unknown graph format %q", format)).Build()
	}
	_, err := io.WriteString(w, b.String())
	return err
}
