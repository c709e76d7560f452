package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/model"
	"git.home.luguber.info/inful/mdcompile/internal/parser"
)

func program(t *testing.T, docs map[string]string) *model.Program {
	t.Helper()
	var parsed []*parser.Document
	for path, src := range docs {
		doc, err := parser.Parse(path, []byte(src))
		require.NoError(t, err)
		parsed = append(parsed, doc)
	}
	prog, err := model.Build(parsed)
	require.NoError(t, err)
	return prog
}

const wellFormed = "```module calc\nArithmetic.\n```\n\n" +
	"```interface Add(a: int, b: int) -> int\nReturns a plus b.\n```\n\n" +
	"```function add implements=Add tests=adds\nAdds the numbers.\n```\n\n" +
	"```test adds targets=add\ninput: Add(1, 2)\nexpect: 3\n```\n"

func rules(findings []Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Rule
	}
	return out
}

func TestValidate_WellFormedProgramHasNoFindings(t *testing.T) {
	prog := program(t, map[string]string{"calc.md": wellFormed})

	report := DefaultRules().Validate(t.Context(), prog)
	assert.Empty(t, report.Findings)
	assert.NoError(t, report.Err())
}

func TestValidate_Warnings(t *testing.T) {
	src := "```module calc\n```\n\n" +
		"```interface Add(a: int, b: int) -> int\n```\n\n" +
		"```function add implements=Add\n```\n"
	prog := program(t, map[string]string{"calc.md": src})

	report := DefaultRules().Validate(t.Context(), prog)
	assert.ElementsMatch(t, []string{"contract", "behavior", "test_coverage"}, rules(report.Findings))
	for _, f := range report.Findings {
		assert.Equal(t, SeverityWarning, f.Severity)
		assert.Equal(t, "calc", f.Unit)
	}
	assert.NoError(t, report.Err(), "warnings do not fail validation")
}

func TestValidate_ExecutableMainWithParameters(t *testing.T) {
	src := "```module app target=executable\nThe program.\n```\n\n" +
		"```interface Main(args: string)\nRuns.\n```\n\n" +
		"```function run implements=Main tests=runs\nRuns the program.\n```\n\n" +
		"```test runs targets=run\ninput: Main(\"x\")\npredicate: true\n```\n"
	prog := program(t, map[string]string{"app.md": src})

	report := DefaultRules().Validate(t.Context(), prog)
	require.Len(t, report.Errors(), 1)
	assert.Equal(t, "executable_entry", report.Errors()[0].Rule)
	assert.Equal(t, "app.md", report.Errors()[0].Loc.Path)

	err := report.Err()
	require.Error(t, err)
	assert.Equal(t, errors.CategoryModel, errors.GetCategory(err))
}

func TestValidate_IntegrationTestWithoutDependencies(t *testing.T) {
	src := "```module calc\nArithmetic.\n```\n\n" +
		"```interface Add(a: int, b: int) -> int\nReturns a plus b.\n```\n\n" +
		"```function add implements=Add\nAdds the numbers.\n```\n\n" +
		"```test adds kind=integration targets=add\ninput: Add(1, 2)\nexpect: 3\n```\n"
	prog := program(t, map[string]string{"calc.md": src})

	report := DefaultRules().Validate(t.Context(), prog)
	assert.Equal(t, []string{"integration_test"}, rules(report.Findings))
}

func TestValidate_FindingsOrderedByLocation(t *testing.T) {
	b := "```module b\n```\n\n```interface B() -> int\n```\n\n```function b implements=B\nb\n```\n"
	a := "```module a\n```\n\n```interface A() -> int\n```\n\n```function a implements=A\na\n```\n"
	prog := program(t, map[string]string{"b.md": b, "a.md": a})

	report := NewRuleChain(ContractRule{}).Validate(t.Context(), prog)
	require.Len(t, report.Findings, 2)
	assert.Equal(t, "a.md", report.Findings[0].Loc.Path)
	assert.Equal(t, "b.md", report.Findings[1].Loc.Path)
}
