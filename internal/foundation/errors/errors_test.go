package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	original := errors.New("connection reset")
	err := WrapError(original, CategoryBackend, "generation request failed").
		Warning().
		Retryable().
		WithContext("unit", "calc").
		WithContext("attempt", 2).
		Build()

	assert.Equal(t, CategoryBackend, err.Category())
	assert.Equal(t, SeverityWarning, err.Severity())
	assert.Equal(t, RetryBackoff, err.RetryStrategy())
	assert.Equal(t, "generation request failed", err.Message())
	assert.ErrorIs(t, err, original)
	assert.True(t, err.CanRetry())
	assert.False(t, err.IsFatal())
	assert.Equal(t, "[backend:warning] generation request failed: connection reset", err.Error())

	unit, ok := err.Context().GetString("unit")
	require.True(t, ok)
	assert.Equal(t, "calc", unit)
	attempt, ok := err.Context().Get("attempt")
	require.True(t, ok)
	assert.Equal(t, 2, attempt)
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		builder  *ErrorBuilder
		category ErrorCategory
		severity ErrorSeverity
		retry    RetryStrategy
	}{
		{"ConfigError", ConfigError("x"), CategoryConfig, SeverityFatal, RetryNever},
		{"ValidationError", ValidationError("x"), CategoryValidation, SeverityFatal, RetryNever},
		{"AuthError", AuthError("x"), CategoryAuth, SeverityError, RetryUserAction},
		{"NetworkError", NetworkError("x"), CategoryNetwork, SeverityError, RetryBackoff},
		{"BackendError", BackendError("x"), CategoryBackend, SeverityError, RetryBackoff},
		{"BuildError", BuildError("x"), CategoryBuild, SeverityError, RetryNever},
		{"FileSystemError", FileSystemError("x"), CategoryFileSystem, SeverityError, RetryBackoff},
		{"CacheError", CacheError("x"), CategoryCache, SeverityFatal, RetryNever},
		{"EventStoreError", EventStoreError("x"), CategoryEventStore, SeverityError, RetryNever},
		{"RuntimeError", RuntimeError("x"), CategoryRuntime, SeverityFatal, RetryNever},
		{"InternalError", InternalError("x"), CategoryInternal, SeverityFatal, RetryNever},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Build()
			assert.Equal(t, tt.category, err.Category())
			assert.Equal(t, tt.severity, err.Severity())
			assert.Equal(t, tt.retry, err.RetryStrategy())
		})
	}
}

func TestClassifiedError_WithContextCopies(t *testing.T) {
	base := CacheError("stored artifact differs").WithContext("fingerprint", "abc").Build()
	derived := base.WithContext("unit", "calc")

	_, ok := base.Context().Get("unit")
	assert.False(t, ok)
	fp, _ := derived.Context().GetString("fingerprint")
	assert.Equal(t, "abc", fp)
	assert.ErrorIs(t, derived, base)
}

func TestClassifiedErrorInChain(t *testing.T) {
	inner := BackendError("rate limited").RateLimit().WithContext("unit", "calc").Build()
	wrapped := fmt.Errorf("attempt 2: %w", inner)

	classified, ok := AsClassified(wrapped)
	require.True(t, ok)
	assert.Equal(t, CategoryBackend, classified.Category())
	assert.True(t, HasCategory(wrapped, CategoryBackend))
	assert.Equal(t, RetryRateLimit, GetRetryStrategy(wrapped))
	assert.Equal(t, RetryNever, GetRetryStrategy(errors.New("plain")))
	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
}
