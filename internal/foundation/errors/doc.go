// Package errors provides the classified error primitives used across mdcompile.
//
// Key features:
//   - ErrorCategory: broad classification (config, parse, model, cycle, build, cache, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: whether the generation loop may try again
//   - ClassifiedError: structured error with category, severity and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - Categorized: interface implemented by domain error types
//   - CLIErrorAdapter: exit code mapping and user-facing formatting
//
// Example usage:
//
//	err := errors.BackendError("generation request failed").
//		WithContext("unit", unitID).
//		Build()
package errors
