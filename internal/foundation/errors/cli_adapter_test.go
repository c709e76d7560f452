package errors

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// cycleError mimics a domain error that reports its own category.
type cycleError struct{ units []string }

func (e *cycleError) Error() string           { return fmt.Sprintf("cycle: %v", e.units) }
func (e *cycleError) Category() ErrorCategory { return CategoryCycle }

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: ExitOK},
		{name: "validation", err: ValidationError("bad flag").Build(), expected: ExitUsage},
		{name: "parse", err: NewError(CategoryParse, "bad block").Build(), expected: ExitParse},
		{name: "model", err: NewError(CategoryModel, "duplicate").Build(), expected: ExitSpecification},
		{name: "domain cycle error", err: &cycleError{units: []string{"a", "b"}}, expected: ExitSpecification},
		{name: "wrapped domain cycle error", err: fmt.Errorf("graph: %w", &cycleError{units: []string{"a", "b"}}), expected: ExitSpecification},
		{name: "config", err: ConfigError("missing").Build(), expected: ExitConfig},
		{name: "backend", err: BackendError("timeout").Build(), expected: ExitExternal},
		{name: "cache conflict", err: CacheError("conflict").Build(), expected: ExitInternal},
		{name: "failed units", err: BuildError("2 units failed").Build(), expected: ExitBuild},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, expected: ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())

	classified := WrapError(&customError{msg: "disk full"}, CategoryFileSystem, "write output").Build()

	assert.Empty(t, quiet.FormatError(nil))
	assert.Equal(t, "Error: write output", quiet.FormatError(classified))
	assert.Contains(t, verbose.FormatError(classified), "disk full")
	assert.Equal(t, "Error: unknown error", quiet.FormatError(&customError{msg: "unknown error"}))
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	var logs, out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	adapter := NewCLIErrorAdapter(false, logger)

	code := adapter.Report(&out, ConfigError("unknown backend").WithContext("backend", "gpt").Build())
	assert.Equal(t, ExitConfig, code)
	assert.Equal(t, "Error: unknown backend\n", out.String())
	assert.Contains(t, logs.String(), "backend=gpt")

	out.Reset()
	logs.Reset()
	assert.Equal(t, ExitBuild, adapter.Report(&out, BuildError("1 unit failed").Build()))
	assert.Empty(t, logs.String())

	out.Reset()
	assert.Equal(t, ExitOK, adapter.Report(&out, nil))
	assert.Empty(t, out.String())
}
