package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	moduleRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Valid attribute values.
const (
	TargetLibrary    = "library"
	TargetExecutable = "executable"

	TestKindUnit        = "unit"
	TestKindIntegration = "integration"
)

// headerError is a problem in a declaration header, at a column relative to the header start.
type headerError struct {
	col    int
	reason string
}

func (e *headerError) Error() string { return e.reason }

func headerErrorf(col int, format string, args ...any) *headerError {
	return &headerError{col: col, reason: fmt.Sprintf(format, args...)}
}

// declarationKind reports the recognised kind of a fence info string, or "".
func declarationKind(info string) Kind {
	word, _, _ := strings.Cut(strings.TrimSpace(info), " ")
	if i := strings.IndexByte(word, '('); i >= 0 {
		word = word[:i]
	}
	switch Kind(word) {
	case KindModule, KindInterface, KindFunction, KindTest:
		return Kind(word)
	default:
		return ""
	}
}

// headerName returns the first field after the kind word of an info string.
func headerName(info string, kind Kind) string {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(info), string(kind)))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// parseHeader fills the header derived fields of d from the fence info string.
func parseHeader(d *Decl, info string) *headerError {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(info), string(d.Kind)))
	offset := len(info) - len(strings.TrimLeft(info, " \t")) + len(d.Kind) + 1

	if d.Kind == KindInterface {
		return parseInterfaceHeader(d, rest, offset)
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return headerErrorf(offset, "%s block missing name", d.Kind)
	}
	d.Name = fields[0]
	if d.Kind == KindModule {
		if !moduleRe.MatchString(d.Name) {
			return headerErrorf(offset, "invalid module name %q: must be a lowercase identifier", d.Name)
		}
	} else if !identRe.MatchString(d.Name) {
		return headerErrorf(offset, "invalid %s name %q", d.Kind, d.Name)
	}

	for _, field := range fields[1:] {
		col := offset + strings.Index(rest, field)
		key, value, ok := strings.Cut(field, "=")
		if !ok || value == "" {
			return headerErrorf(col, "malformed attribute %q: expected key=value", field)
		}
		if herr := applyAttribute(d, key, value, col); herr != nil {
			return herr
		}
	}

	if d.Kind == KindTest && d.TestKind == "" {
		d.TestKind = TestKindUnit
	}
	return nil
}

func applyAttribute(d *Decl, key, value string, col int) *headerError {
	switch {
	case d.Kind == KindModule && key == "target":
		if value != TargetLibrary && value != TargetExecutable {
			return headerErrorf(col, "invalid target %q: want library or executable", value)
		}
		d.Target = value
	case d.Kind == KindFunction && key == "implements":
		if !identRe.MatchString(value) {
			return headerErrorf(col, "invalid interface name %q", value)
		}
		d.Implements = value
	case d.Kind == KindFunction && key == "tests":
		names, herr := nameList(value, col)
		if herr != nil {
			return herr
		}
		d.Tests = names
	case d.Kind == KindTest && key == "kind":
		if value != TestKindUnit && value != TestKindIntegration {
			return headerErrorf(col, "invalid test kind %q: want unit or integration", value)
		}
		d.TestKind = value
	case d.Kind == KindTest && key == "targets":
		names, herr := nameList(value, col)
		if herr != nil {
			return herr
		}
		d.Targets = names
	default:
		return headerErrorf(col, "unknown %s attribute %q", d.Kind, key)
	}
	return nil
}

func nameList(value string, col int) ([]string, *headerError) {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if !identRe.MatchString(p) {
			return nil, headerErrorf(col, "invalid name %q in list %q", p, value)
		}
		out = append(out, p)
	}
	return out, nil
}

// parseInterfaceHeader parses `Name(param: type, ...) [-> type]`.
func parseInterfaceHeader(d *Decl, sig string, offset int) *headerError {
	open := strings.IndexByte(sig, '(')
	if open < 0 {
		return headerErrorf(offset, "malformed interface signature %q: missing parameter list", sig)
	}
	d.Name = strings.TrimSpace(sig[:open])
	if !identRe.MatchString(d.Name) {
		return headerErrorf(offset, "invalid interface name %q", d.Name)
	}

	closeIdx := matchingParen(sig, open)
	if closeIdx < 0 {
		return headerErrorf(offset+open, "malformed interface signature %q: unbalanced parentheses", sig)
	}

	params, herr := parseParams(sig[open+1:closeIdx], offset+open+1)
	if herr != nil {
		return herr
	}
	d.Params = params

	tail := strings.TrimSpace(sig[closeIdx+1:])
	if tail == "" {
		return nil
	}
	if !strings.HasPrefix(tail, "->") {
		return headerErrorf(offset+closeIdx+1, "malformed interface signature %q: expected -> before return type", sig)
	}
	ret := strings.TrimSpace(strings.TrimPrefix(tail, "->"))
	if !ValidTypeTag(ret) {
		return headerErrorf(offset+closeIdx+1, "invalid return type %q", ret)
	}
	d.Returns = ret
	return nil
}

func parseParams(list string, offset int) ([]Param, *headerError) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var params []Param
	seen := map[string]bool{}
	for _, raw := range splitTopLevel(list) {
		name, typ, ok := strings.Cut(raw, ":")
		name, typ = strings.TrimSpace(name), strings.TrimSpace(typ)
		col := offset + strings.Index(list, raw)
		if !ok {
			return nil, headerErrorf(col, "malformed parameter %q: expected name: type", strings.TrimSpace(raw))
		}
		if !identRe.MatchString(name) {
			return nil, headerErrorf(col, "invalid parameter name %q", name)
		}
		if seen[name] {
			return nil, headerErrorf(col, "duplicate parameter %q", name)
		}
		if !ValidTypeTag(typ) {
			return nil, headerErrorf(col, "invalid type %q for parameter %s", typ, name)
		}
		seen[name] = true
		params = append(params, Param{Name: name, Type: typ})
	}
	return params, nil
}

// splitTopLevel splits on commas outside brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// SplitMapTag splits a map[K]V tag at the bracket closing its key, so keys may
// themselves contain brackets.
func SplitMapTag(t string) (key, value string, ok bool) {
	if !strings.HasPrefix(t, "map[") {
		return "", "", false
	}
	depth := 0
	for i := len("map"); i < len(t); i++ {
		switch t[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return t[4:i], t[i+1:], true
			}
		}
	}
	return "", "", false
}

// ValidTypeTag reports whether t is a semantic type tag: an identifier, a
// qualified module.Name, []T or map[K]V over type tags.
func ValidTypeTag(t string) bool {
	switch {
	case t == "":
		return false
	case strings.HasPrefix(t, "[]"):
		return ValidTypeTag(t[2:])
	case strings.HasPrefix(t, "map["):
		key, value, ok := SplitMapTag(t)
		return ok && ValidTypeTag(key) && ValidTypeTag(value)
	}
	if mod, name, ok := strings.Cut(t, "."); ok {
		return moduleRe.MatchString(mod) && identRe.MatchString(name)
	}
	return identRe.MatchString(t)
}
