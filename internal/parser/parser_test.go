package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

const calcDoc = "# Calculator\n" +
	"\n" +
	"Preamble text.\n" +
	"\n" +
	"```module calc target=library\n" +
	"Integer arithmetic helpers.\n" +
	"```\n" +
	"\n" +
	"More design notes.\n" +
	"\n" +
	"```interface Add(a: int, b: int) -> int\n" +
	"Returns the sum of a and b.\n" +
	"```\n" +
	"\n" +
	"```function Add implements=Add tests=adds_small\n" +
	"Add the two operands.\n" +
	"```\n" +
	"\n" +
	"```test adds_small kind=unit targets=Add\n" +
	"Small numbers add up.\n" +
	"input: Add(2, 3)\n" +
	"expect: 5\n" +
	"```\n"

func TestParse_Declarations_InSourceOrder(t *testing.T) {
	doc, err := Parse("calc.md", []byte(calcDoc))
	require.NoError(t, err)
	require.Len(t, doc.Decls, 4)

	mod := doc.Decls[0]
	assert.Equal(t, KindModule, mod.Kind)
	assert.Equal(t, "calc", mod.Name)
	assert.Equal(t, TargetLibrary, mod.Target)
	assert.Equal(t, Position{Line: 5, Column: 4}, mod.Pos)
	assert.Equal(t, []string{"More design notes."}, mod.Prose)
	assert.Equal(t, "Integer arithmetic helpers.\n\nMore design notes.", mod.Text())

	iface := doc.Decls[1]
	assert.Equal(t, KindInterface, iface.Kind)
	assert.Equal(t, "Add", iface.Name)
	assert.Equal(t, "calc", iface.Module)
	assert.Equal(t, []Param{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}}, iface.Params)
	assert.Equal(t, "int", iface.Returns)

	fn := doc.Decls[2]
	assert.Equal(t, "Add", fn.Implements)
	assert.Equal(t, []string{"adds_small"}, fn.Tests)

	tst := doc.Decls[3]
	assert.Equal(t, TestKindUnit, tst.TestKind)
	assert.Equal(t, []string{"Add"}, tst.Targets)
	assert.Equal(t, "Add(2, 3)", tst.Input)
	assert.Equal(t, "5", tst.Expect)
	assert.Equal(t, "Small numbers add up.", tst.Description)

	assert.Equal(t, []string{"# Calculator", "Preamble text."}, doc.Preamble)
}

func TestParse_Frontmatter_DefaultModule(t *testing.T) {
	src := "---\nmodule: strutil\ntarget: executable\nowner: ignored\n---\n" +
		"```function Reverse\nReverse a string.\n```\n"

	doc, err := Parse("s.md", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "strutil", doc.Frontmatter.Module)
	assert.Equal(t, TargetExecutable, doc.Frontmatter.Target)
	require.Len(t, doc.Decls, 1)
	assert.Equal(t, "strutil", doc.Decls[0].Module)
	assert.Equal(t, 6, doc.Decls[0].Pos.Line, "line numbers count frontmatter lines")
}

func TestParse_CRLF_Normalised(t *testing.T) {
	src := "```module calc\r\nprose\r\n```\r\n"
	doc, err := Parse("crlf.md", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "prose\n", doc.Decls[0].Body)
}

func TestParse_OtherFencesAreProse(t *testing.T) {
	src := "```module calc\n```\n\n```go\nfunc x() {}\n```\n\n<!-- note -->\n"
	doc, err := Parse("p.md", []byte(src))
	require.NoError(t, err)
	require.Len(t, doc.Decls, 1)
	assert.Equal(t, []string{"```go\nfunc x() {}\n```", "<!-- note -->"}, doc.Decls[0].Prose)
}

func TestParse_Errors_CollectedTogether(t *testing.T) {
	src := "```interface Orphan(a: int) -> int\n```\n\n" +
		"```module calc\n```\n\n" +
		"```interface Bad(a int)\n```\n\n" +
		"```function f color=red\n```\n\n" +
		"```test t1\ninput: f(1)\n```\n\n" +
		"```test t2\nexpect: 1\n```\n"

	doc, err := Parse("bad.md", []byte(src))
	require.Error(t, err)
	assert.Nil(t, doc)

	var perrs ParseErrors
	require.True(t, errors.As(err, &perrs))
	reasons := make([]string, len(perrs))
	for i, pe := range perrs {
		reasons[i] = pe.Reason
	}
	assert.Equal(t, []string{
		`interface block "Orphan" outside any module`,
		`malformed parameter "a int": expected name: type`,
		`unknown function attribute "color"`,
		`test "t1" missing expected output`,
		`test "t2" missing input`,
	}, reasons)
	assert.Equal(t, 1, perrs[0].Line)
	assert.Equal(t, derrors.CategoryParse, derrors.GetCategory(err))
}

func TestParse_UnterminatedBlock(t *testing.T) {
	src := "```module calc\n```\n\n```function f\nnever closed\n"
	_, err := Parse("u.md", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u.md:4:4: unterminated function block")
}

func TestParse_MissingFrontmatterClose(t *testing.T) {
	_, err := Parse("fm.md", []byte("---\nmodule: calc\n# no close\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closing delimiter is missing")
}

func TestParse_InvalidNames(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"uppercase module", "```module Calc\n```\n", `invalid module name "Calc"`},
		{"missing name", "```module calc\n```\n\n```function\n```\n", "function block missing name"},
		{"bad target", "```module calc target=dll\n```\n", `invalid target "dll"`},
		{"bad kind", "```module calc\n```\n\n```test t kind=e2e\ninput: 1\nexpect: 1\n```\n", `invalid test kind "e2e"`},
		{"bad return", "```module calc\n```\n\n```interface F() -> 1x\n```\n", `invalid return type "1x"`},
		{"duplicate param", "```module calc\n```\n\n```interface F(a: int, a: int)\n```\n", `duplicate parameter "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("n.md", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidTypeTag(t *testing.T) {
	valid := []string{"int", "float", "[]string", "map[string]int", "map[string][]bytes", "map[[]int]string", "map[map[string]int]bool", "calc.Adder", "[]calc.Adder"}
	for _, v := range valid {
		assert.True(t, ValidTypeTag(v), v)
	}
	invalid := []string{"", "[]", "map[string", "map[[]int", "map[]int", "Calc.Adder", "a.b.c", "1int"}
	for _, v := range invalid {
		assert.False(t, ValidTypeTag(v), v)
	}
}

func TestParse_PredicateAndSetup(t *testing.T) {
	src := "```module calc\n```\n\n```test sorted kind=integration\nsetup: xs := []int{3, 1, 2}\ninput: Sort(xs)\npredicate: len(result) == 3\n```\n"
	doc, err := Parse("p.md", []byte(src))
	require.NoError(t, err)
	tst := doc.Decls[1]
	assert.Equal(t, TestKindIntegration, tst.TestKind)
	assert.Equal(t, []string{"xs := []int{3, 1, 2}"}, tst.Setup)
	assert.Equal(t, "len(result) == 3", tst.Predicate)
	assert.Empty(t, tst.Expect)
}

func TestDiscoverAndParseAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hidden"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte(calcDoc), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.md"), []byte("```module broken\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden", "c.md"), []byte(calcDoc), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	paths, err := Discover([]string{dir, filepath.Join(dir, "b.md")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.md"), filepath.Join(dir, "sub", "a.md")}, paths)

	res, err := ParseAll(paths)
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, filepath.Join(dir, "b.md"), res.Documents[0].Path)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Reason, "unterminated module block")
	assert.Equal(t, []Excluded{{Path: filepath.Join(dir, "sub", "a.md"), Modules: []string{"broken"}}}, res.Excluded)

	_, err = Discover([]string{filepath.Join(dir, "missing")})
	require.Error(t, err)
	assert.Equal(t, derrors.CategoryFileSystem, derrors.GetCategory(err))
}

func TestParseAll_RecordsModulesOfExcludedDocuments(t *testing.T) {
	dir := t.TempDir()
	docs := map[string]string{
		"fm.md":     "---\nmodule: store\n---\n\n```test t\ninput: f(1)\n```\n",
		"header.md": "```module http target=nope\n```\n\n```module cli\n```\n\n```function f\nunterminated",
		"good.md":   calcDoc,
	}
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	paths, err := Discover([]string{dir})
	require.NoError(t, err)

	res, err := ParseAll(paths)
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	require.Len(t, res.Excluded, 2)
	assert.Equal(t, []string{"store"}, res.Excluded[0].Modules)
	assert.Equal(t, []string{"http", "cli"}, res.Excluded[1].Modules)
	assert.Equal(t, []string{"cli", "http", "store"}, res.ExcludedModules())
}
