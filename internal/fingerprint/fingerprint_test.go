package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdcompile/internal/graph"
	"git.home.luguber.info/inful/mdcompile/internal/model"
	"git.home.luguber.info/inful/mdcompile/internal/parser"
)

const coreDoc = "```module core\nShared  arithmetic.\n```\n\n" +
	"```interface Add(a: int, b: int) -> int\nReturns the sum.\n```\n\n" +
	"```function add implements=Add tests=small\nAdd both operands.\n```\n\n" +
	"```test small targets=add\ninput: Add(1, 2)\nexpect: 3\n```\n"

const appDoc = "```module app\n```\n\n" +
	"```interface Total(xs: []int) -> int\n```\n\n" +
	"```function total implements=Total\nFold with core.Add.\n```\n"

func fingerprints(t *testing.T, docs map[string]string) map[string]Fingerprint {
	t.Helper()
	var parsed []*parser.Document
	for path, src := range docs {
		d, err := parser.Parse(path, []byte(src))
		require.NoError(t, err)
		parsed = append(parsed, d)
	}
	prog, err := model.Build(parsed)
	require.NoError(t, err)
	g, err := graph.Build(prog)
	require.NoError(t, err)
	return All(prog, g)
}

func TestNormalizeProse(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"collapses whitespace", "  a \n\n b\tc  ", "a b c"},
		{"strips comments", "keep <!-- drop\nme --> this", "keep this"},
		{"nfc", "cafe\u0301", "caf\u00e9"},
		{"keeps markup", "a <b>bold</b> x < y", "a <b>bold</b> x < y"},
		{"unterminated tag", "a <!-- c --> d<e", "a d<e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeProse(tt.in))
		})
	}
}

func TestAll_Deterministic(t *testing.T) {
	docs := map[string]string{"core.md": coreDoc, "app.md": appDoc}
	first := fingerprints(t, docs)
	second := fingerprints(t, docs)
	assert.Equal(t, first, second)
	assert.Len(t, string(first["core"]), 64)
	assert.NotEqual(t, first["core"], first["app"])
}

func TestAll_CosmeticChangesIgnored(t *testing.T) {
	base := fingerprints(t, map[string]string{"core.md": coreDoc, "app.md": appDoc})

	cosmetic := "```module core\nShared arithmetic. <!-- reviewed -->\n```\n\n\n" +
		"```interface Add(a: int, b: int) -> int\nReturns   the\nsum.\n```\n\n" +
		"```function add implements=Add tests=small\n  Add both operands.  \n```\n\n" +
		"```test small targets=add\ninput: Add(1, 2)\nexpect: 3\n```\n"
	changed := fingerprints(t, map[string]string{"core.md": cosmetic, "app.md": appDoc})

	assert.Equal(t, base["core"], changed["core"])
	assert.Equal(t, base["app"], changed["app"])
}

func TestAll_SemanticChangesPropagate(t *testing.T) {
	base := fingerprints(t, map[string]string{"core.md": coreDoc, "app.md": appDoc, "solo.md": "```module solo\n```\n"})

	tests := map[string]string{
		"signature": "```module core\nShared  arithmetic.\n```\n\n" +
			"```interface Add(a: int, b: int, c: int) -> int\nReturns the sum.\n```\n\n" +
			"```function add implements=Add tests=small\nAdd both operands.\n```\n\n" +
			"```test small targets=add\ninput: Add(1, 2, 0)\nexpect: 3\n```\n",
		"test literal": "```module core\nShared  arithmetic.\n```\n\n" +
			"```interface Add(a: int, b: int) -> int\nReturns the sum.\n```\n\n" +
			"```function add implements=Add tests=small\nAdd both operands.\n```\n\n" +
			"```test small targets=add\ninput: Add(2, 2)\nexpect: 4\n```\n",
		"behavior": "```module core\nShared  arithmetic.\n```\n\n" +
			"```interface Add(a: int, b: int) -> int\nReturns the sum.\n```\n\n" +
			"```function add implements=Add tests=small\nAdd both operands with overflow checks.\n```\n\n" +
			"```test small targets=add\ninput: Add(1, 2)\nexpect: 3\n```\n",
	}
	for name, core := range tests {
		t.Run(name, func(t *testing.T) {
			changed := fingerprints(t, map[string]string{"core.md": core, "app.md": appDoc, "solo.md": "```module solo\n```\n"})
			assert.NotEqual(t, base["core"], changed["core"])
			assert.NotEqual(t, base["app"], changed["app"], "dependents change transitively")
			assert.Equal(t, base["solo"], changed["solo"], "unrelated units are untouched")
		})
	}
}

func TestCompute_SlotIdentityMatters(t *testing.T) {
	dep := Fingerprint("0123")
	a := Compute("u", "digest", []Slot{{Name: "x", Fingerprint: dep}})
	b := Compute("u", "digest", []Slot{{Name: "y", Fingerprint: dep}})
	c := Compute("u", "digest", []Slot{{Name: "x", Fingerprint: dep}})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)

	// Length prefixes keep field boundaries unambiguous.
	assert.NotEqual(t, Compute("ab", "c", nil), Compute("a", "bc", nil))
	assert.Equal(t, "0123456789ab", Fingerprint("0123456789abcdef").Short())
}
