package validation

import (
	"context"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/model"
	"git.home.luguber.info/inful/mdcompile/internal/parser"
)

func moduleLoc(m *model.Module) model.Location {
	if len(m.Sources) == 0 {
		return model.Location{}
	}
	return model.Location{Path: m.Sources[0], Line: 1}
}

// ExecutableEntryRule flags a declared Main interface that the emitted
// entry point cannot call.
type ExecutableEntryRule struct{}

func (ExecutableEntryRule) Name() string { return "executable_entry" }

func (ExecutableEntryRule) Check(_ context.Context, _ *model.Program, m *model.Module) []Finding {
	if m.Target != parser.TargetExecutable {
		return nil
	}
	iface, ok := m.Interface("Main")
	if !ok || (len(iface.Params) == 0 && iface.Returns == "") {
		return nil
	}
	return []Finding{{
		Severity: SeverityError,
		Loc:      iface.Loc,
		Message:  "executable module declares " + iface.Signature() + "; Main must take no parameters and return nothing",
	}}
}

// ContractRule flags interfaces without a contract description.
type ContractRule struct{}

func (ContractRule) Name() string { return "contract" }

func (ContractRule) Check(_ context.Context, _ *model.Program, m *model.Module) []Finding {
	var out []Finding
	if len(m.Interfaces) == 0 && m.Target == parser.TargetLibrary {
		out = append(out, Finding{Severity: SeverityWarning, Loc: moduleLoc(m), Message: "library module exports no interfaces"})
	}
	for _, iface := range m.Interfaces {
		if strings.TrimSpace(iface.Contract) == "" {
			out = append(out, Finding{Severity: SeverityWarning, Loc: iface.Loc, Message: "interface " + iface.Name + " has no contract"})
		}
	}
	return out
}

// BehaviorRule flags functions without a behavior description.
type BehaviorRule struct{}

func (BehaviorRule) Name() string { return "behavior" }

func (BehaviorRule) Check(_ context.Context, _ *model.Program, m *model.Module) []Finding {
	var out []Finding
	for _, f := range m.Functions {
		if strings.TrimSpace(f.Behavior) == "" {
			out = append(out, Finding{Severity: SeverityWarning, Loc: f.Loc, Message: "function " + f.Name + " has no behavior description"})
		}
	}
	return out
}

// TestCoverageRule flags modules whose candidates can only be checked structurally.
type TestCoverageRule struct{}

func (TestCoverageRule) Name() string { return "test_coverage" }

func (TestCoverageRule) Check(_ context.Context, _ *model.Program, m *model.Module) []Finding {
	if len(m.Tests) > 0 || len(m.Interfaces) == 0 {
		return nil
	}
	return []Finding{{Severity: SeverityWarning, Loc: moduleLoc(m), Message: "module declares no tests; candidates are verified structurally only"}}
}

// IntegrationTestRule flags integration tests in modules without dependencies.
type IntegrationTestRule struct{}

func (IntegrationTestRule) Name() string { return "integration_test" }

func (IntegrationTestRule) Check(_ context.Context, _ *model.Program, m *model.Module) []Finding {
	if len(m.Deps()) > 0 {
		return nil
	}
	var out []Finding
	for _, t := range m.Tests {
		if t.Integration() {
			out = append(out, Finding{Severity: SeverityWarning, Loc: t.Loc, Message: "integration test " + t.Name + " in a module without dependencies"})
		}
	}
	return out
}
