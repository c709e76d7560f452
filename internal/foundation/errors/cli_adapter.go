package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
)

// Exit codes returned by the mdcompile CLI.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitUsage         = 2
	ExitParse         = 3
	ExitSpecification = 4
	ExitAuth          = 5
	ExitConfig        = 7
	ExitExternal      = 8
	ExitInternal      = 10
	ExitBuild         = 11
	ExitRuntime       = 12
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	var categorized Categorized
	if stderrors.As(err, &categorized) {
		return exitCodeForCategory(categorized.Category())
	}

	// Fallback for unclassified errors
	return ExitGeneral
}

func exitCodeForCategory(category ErrorCategory) int {
	switch category {
	case CategoryValidation:
		return ExitUsage
	case CategoryParse:
		return ExitParse
	case CategoryModel, CategoryCycle:
		return ExitSpecification
	case CategoryAuth:
		return ExitAuth
	case CategoryConfig:
		return ExitConfig
	case CategoryNetwork, CategoryBackend:
		return ExitExternal
	case CategoryCache, CategoryInternal:
		return ExitInternal
	case CategoryBuild, CategoryGeneration, CategoryFileSystem:
		return ExitBuild
	case CategoryRuntime, CategoryEventStore:
		return ExitRuntime
	default:
		return ExitGeneral
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	if classified, ok := AsClassified(err); ok && !a.verbose {
		return fmt.Sprintf("Error: %s", classified.Message())
	}
	return fmt.Sprintf("Error: %v", err)
}

// Report writes err to w and returns the exit code for it. Fatal errors are
// also logged with their context, and so is every error in verbose mode.
func (a *CLIErrorAdapter) Report(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	fmt.Fprintln(w, a.FormatError(err))
	return a.ExitCodeFor(err)
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.IsFatal()
	}
	return false
}

func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Command failed",
			slog.String("category", string(GetCategory(err))),
			slog.String("error", err.Error()))
		return
	}

	level := slog.LevelError
	if classified.Severity() == SeverityWarning {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{slog.String("category", string(classified.Category()))}
	if classified.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if cause := classified.Cause(); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	for k, v := range classified.Context() {
		attrs = append(attrs, slog.Any(k, v))
	}
	a.logger.LogAttrs(context.Background(), level, classified.Message(), attrs...)
}
