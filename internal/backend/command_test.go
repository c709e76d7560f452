package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

func TestCommand_Generate(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	// Echo the unit name from the environment and the request size from stdin.
	b, err := NewCommand([]string{"/bin/sh", "-c", `printf 'package %s\n' "$MDCOMPILE_UNIT"; printf '// attempt %s\n' "$MDCOMPILE_ATTEMPT"; grep -c '"unit":"mathx"'`})
	require.NoError(t, err)

	prog := program(t)
	mathx, _ := prog.Module("mathx")
	req := NewRequest(prog, mathx, "mdout", nil)
	req.Attempt = 2
	resp, err := b.Generate(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, "package mathx\n// attempt 2\n1\n", resp.Text)
}

func TestCommand_Failures(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	prog := program(t)
	mathx, _ := prog.Module("mathx")
	req := NewRequest(prog, mathx, "mdout", nil)

	b, err := NewCommand([]string{"/bin/sh", "-c", "echo boom >&2; exit 3"})
	require.NoError(t, err)
	_, err = b.Generate(t.Context(), req)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryBackend, errors.GetCategory(err))
	assert.False(t, StopsRetry(err))
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	stderr, _ := ce.Context().GetString("stderr")
	assert.Equal(t, "boom", stderr)

	missing, err := NewCommand([]string{filepath.Join(t.TempDir(), "no-such-binary")})
	require.NoError(t, err)
	_, err = missing.Generate(t.Context(), req)
	require.Error(t, err)
	assert.True(t, StopsRetry(err))

	_, err = NewCommand(nil)
	require.Error(t, err)
}

func TestFixture_ReplaysAttempts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mathx"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mathx", "01.md"), []byte("first"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mathx", "02.md"), []byte("second"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stats.go"), []byte("package stats\n"), 0o600))

	b, err := New(t.Context(), config.GenerationConfig{Backend: config.BackendFixture, FixtureDir: dir})
	require.NoError(t, err)
	f := b.(*Fixture)

	for attempt, want := range map[int]string{1: "first", 2: "second", 3: "second"} {
		resp, err := f.Generate(t.Context(), &Request{Unit: "mathx", Attempt: attempt})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Text, "attempt %d", attempt)
	}
	resp, err := f.Generate(t.Context(), &Request{Unit: "stats", Attempt: 5})
	require.NoError(t, err)
	assert.Equal(t, "package stats\n", resp.Text)
	assert.Equal(t, 3, f.Calls("mathx"))

	_, err = f.Generate(t.Context(), &Request{Unit: "other", Attempt: 1})
	require.Error(t, err)
	assert.True(t, StopsRetry(err))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(t.Context(), config.GenerationConfig{Backend: "carrier-pigeon"})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
}
