package model

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Problem is one model inconsistency.
type Problem struct {
	Loc     Location
	Message string
}

func (p Problem) String() string { return p.Loc.String() + ": " + p.Message }

// ModelError reports every cross-document inconsistency found while building the model.
type ModelError struct {
	Problems []Problem
}

func (e *ModelError) Error() string {
	if len(e.Problems) == 1 {
		return "model error: " + e.Problems[0].String()
	}
	lines := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		lines[i] = p.String()
	}
	return fmt.Sprintf("%d model errors:\n  %s", len(e.Problems), strings.Join(lines, "\n  "))
}

// Category implements errors.Categorized.
func (e *ModelError) Category() errors.ErrorCategory { return errors.CategoryModel }
