package model

import (
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/parser"
)

var scalarTypes = map[string]string{
	"int":    "int",
	"float":  "float64",
	"string": "string",
	"bool":   "bool",
	"bytes":  "[]byte",
	"any":    "any",
	"error":  "error",
}

// GoType renders a type tag as a Go type expression. A qualified tag m.X
// naming an interface of module m becomes that interface's func type. Tags
// with no mapping are returned unchanged.
func (p *Program) GoType(tag string) string {
	switch {
	case strings.HasPrefix(tag, "[]"):
		return "[]" + p.GoType(tag[2:])
	case strings.HasPrefix(tag, "map["):
		key, value, ok := parser.SplitMapTag(tag)
		if !ok {
			return tag
		}
		return "map[" + p.GoType(key) + "]" + p.GoType(value)
	}
	if goType, ok := scalarTypes[tag]; ok {
		return goType
	}
	if mod, name, ok := strings.Cut(tag, "."); ok && p != nil {
		if m, ok := p.Module(mod); ok {
			if iface, ok := m.Interface(name); ok {
				return p.FuncType(iface)
			}
		}
	}
	return tag
}

// FuncType renders the Go func type of an interface, e.g. func(int, int) int.
func (p *Program) FuncType(i *Interface) string {
	params := make([]string, len(i.Params))
	for k, param := range i.Params {
		params[k] = p.GoType(param.Type)
	}
	ft := "func(" + strings.Join(params, ", ") + ")"
	if i.Returns != "" {
		ft += " " + p.GoType(i.Returns)
	}
	return ft
}

// GoSignature renders the exported Go declaration expected for an interface,
// e.g. func Add(a int, b int) int.
func (p *Program) GoSignature(i *Interface) string {
	params := make([]string, len(i.Params))
	for k, param := range i.Params {
		params[k] = param.Name + " " + p.GoType(param.Type)
	}
	sig := "func " + i.Name + "(" + strings.Join(params, ", ") + ")"
	if i.Returns != "" {
		sig += " " + p.GoType(i.Returns)
	}
	return sig
}
