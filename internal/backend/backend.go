// Package backend drives the external code generation services. A Backend
// turns a unit request into free-form text; ExtractCode reduces that text to
// the Go source handed to the verifier.
package backend

import (
	"context"
	"path"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/markdown"
	"git.home.luguber.info/inful/mdcompile/internal/model"
)

// Backend generates candidate implementations. Implementations must honor
// ctx cancellation and be safe for concurrent use.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is everything a backend sees about one unit.
type Request struct {
	Unit         string               `json:"unit"`
	ImportPath   string               `json:"import_path"`
	Target       string               `json:"target"`
	Prose        string               `json:"prose,omitempty"`
	Interfaces   []Signature          `json:"interfaces"`
	Functions    []Function           `json:"functions,omitempty"`
	Tests        []TestCase           `json:"tests,omitempty"`
	Dependencies []Dependency         `json:"dependencies,omitempty"`
	Attempt      int                  `json:"attempt"`
	MaxAttempts  int                  `json:"max_attempts"`
	Feedback     artifact.Diagnostics `json:"feedback,omitempty"` // diagnostics of the previous attempt
}

// Signature is an interface rendered for Go.
type Signature struct {
	Name     string `json:"name"`
	Go       string `json:"go"`
	Contract string `json:"contract,omitempty"`
}

type Function struct {
	Name       string `json:"name"`
	Implements string `json:"implements,omitempty"`
	Behavior   string `json:"behavior,omitempty"`
}

type TestCase struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Setup       []string `json:"setup,omitempty"`
	Input       string   `json:"input"`
	Expect      string   `json:"expect,omitempty"`
	Predicate   string   `json:"predicate,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Dependency is an accepted upstream unit the candidate may import.
type Dependency struct {
	Module     string      `json:"module"`
	ImportPath string      `json:"import_path"`
	Interfaces []Signature `json:"interfaces"`
	Source     string      `json:"source,omitempty"`
}

// Response is the raw backend output.
type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// NewRequest assembles the request for module m. Units import each other as
// importRoot/<module>; deps holds the accepted source of every dependency.
func NewRequest(prog *model.Program, m *model.Module, importRoot string, deps map[string][]byte) *Request {
	req := &Request{
		Unit:       m.ID(),
		ImportPath: path.Join(importRoot, m.Name),
		Target:     m.Target,
		Prose:      m.Prose,
		Interfaces: signatures(prog, m),
		Attempt:    1,
	}
	for _, f := range m.Functions {
		req.Functions = append(req.Functions, Function{Name: f.Name, Implements: f.Implements, Behavior: f.Behavior})
	}
	for _, t := range m.Tests {
		req.Tests = append(req.Tests, TestCase{
			Name:        t.Name,
			Kind:        t.Kind,
			Setup:       t.Setup,
			Input:       t.Input,
			Expect:      t.Expect,
			Predicate:   t.Predicate,
			Description: t.Description,
		})
	}
	for _, dep := range m.Deps() {
		dm, ok := prog.Module(dep)
		if !ok {
			continue
		}
		req.Dependencies = append(req.Dependencies, Dependency{
			Module:     dep,
			ImportPath: path.Join(importRoot, dep),
			Interfaces: signatures(prog, dm),
			Source:     string(deps[dep]),
		})
	}
	return req
}

func signatures(prog *model.Program, m *model.Module) []Signature {
	out := make([]Signature, len(m.Interfaces))
	for i, iface := range m.Interfaces {
		out[i] = Signature{Name: iface.Name, Go: prog.GoSignature(iface), Contract: iface.Contract}
	}
	return out
}

// ExtractCode returns the Go source in a backend response: the first fenced
// go block, an untagged fenced block, or the whole text when it already
// starts with a package clause.
func ExtractCode(text string) (string, bool) {
	if block, ok := markdown.FirstCode([]byte(text), "go", "golang"); ok {
		return block.Code, strings.TrimSpace(block.Code) != ""
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "package ") {
		return trimmed + "\n", true
	}
	return "", false
}
