package parser

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// ParseError is a malformed construct in one source document.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Reason)
}

// Category implements errors.Categorized.
func (e *ParseError) Category() errors.ErrorCategory { return errors.CategoryParse }

// ParseErrors collects every ParseError found in a document, in source order.
type ParseErrors []*ParseError

func (e ParseErrors) Error() string {
	switch len(e) {
	case 0:
		return "no parse errors"
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, pe := range e {
		msgs[i] = pe.Error()
	}
	return fmt.Sprintf("%d parse errors:\n  %s", len(e), strings.Join(msgs, "\n  "))
}

// Category implements errors.Categorized.
func (e ParseErrors) Category() errors.ErrorCategory { return errors.CategoryParse }

// Unwrap exposes the individual errors to errors.Is/As.
func (e ParseErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, pe := range e {
		out[i] = pe
	}
	return out
}
