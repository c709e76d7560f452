package build

import (
	"fmt"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// GenerationExhaustedError marks a unit that produced no accepted candidate
// within its attempt budget. It fails that unit only; independent units keep
// building.
type GenerationExhaustedError struct {
	Unit     string
	Attempts int
	// Diagnostics of the last rejected candidate, or the last backend error.
	Diagnostics artifact.Diagnostics
	// Cause is the last backend error, if the last attempt failed in the backend.
	Cause error
}

func (e *GenerationExhaustedError) Error() string {
	plural := "s"
	if e.Attempts == 1 {
		plural = ""
	}
	return fmt.Sprintf("unit %s: no accepted candidate after %d attempt%s", e.Unit, e.Attempts, plural)
}

func (e *GenerationExhaustedError) Unwrap() error { return e.Cause }

// Category implements errors.Categorized.
func (e *GenerationExhaustedError) Category() errors.ErrorCategory {
	return errors.CategoryGeneration
}
