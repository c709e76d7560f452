// Package validation runs structural checks over the program model before any
// generation happens. Findings never change what gets built; error findings
// describe documents whose candidates the verifier will reject every time.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
	"git.home.luguber.info/inful/mdcompile/internal/model"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one problem reported by a rule.
type Finding struct {
	Rule     string
	Severity Severity
	Unit     string
	Loc      model.Location
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s [%s] %s", f.Loc, f.Severity, f.Rule, f.Message)
}

// Rule inspects one module.
type Rule interface {
	// Name returns a short identifier used in findings.
	Name() string

	Check(ctx context.Context, prog *model.Program, m *model.Module) []Finding
}

// RuleChain runs every rule against every module.
type RuleChain struct {
	rules []Rule
}

// NewRuleChain creates a chain with the given rules.
func NewRuleChain(rules ...Rule) *RuleChain {
	return &RuleChain{rules: rules}
}

// DefaultRules returns the rules run by check and build.
func DefaultRules() *RuleChain {
	return NewRuleChain(
		ExecutableEntryRule{},
		ContractRule{},
		BehaviorRule{},
		TestCoverageRule{},
		IntegrationTestRule{},
	)
}

// Validate runs the chain over prog. Findings are ordered by location.
func (rc *RuleChain) Validate(ctx context.Context, prog *model.Program) *Report {
	report := &Report{}
	for _, m := range prog.Modules {
		for _, rule := range rc.rules {
			if ctx.Err() != nil {
				return report
			}
			for _, f := range rule.Check(ctx, prog, m) {
				f.Rule = rule.Name()
				f.Unit = m.Name
				report.Findings = append(report.Findings, f)
			}
		}
	}
	sort.SliceStable(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i].Loc, report.Findings[j].Loc
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Line < b.Line
	})
	return report
}

// Report collects the findings of one validation run.
type Report struct {
	Findings []Finding
}

// Errors returns the error findings.
func (r *Report) Errors() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Err returns a model error when any finding is an error.
func (r *Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	return errors.NewError(errors.CategoryModel, fmt.Sprintf("%d structural error(s) in documents", len(errs))).
		UserAction().
		WithContext("first", errs[0].String()).
		Build()
}

// Log writes every finding at a level matching its severity.
func (r *Report) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, f := range r.Findings {
		attrs := []any{logfields.Unit(f.Unit), logfields.Path(f.Loc.String()), slog.String("rule", f.Rule)}
		if f.Severity == SeverityError {
			logger.Error(f.Message, attrs...)
			continue
		}
		logger.Warn(f.Message, attrs...)
	}
}
