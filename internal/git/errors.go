package git

import (
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// GitError simplifies creating a git-scoped ClassifiedError.
func GitError(message string) *errors.ErrorBuilder {
	return errors.NewError(errors.CategoryFileSystem, message)
}

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op string, path string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}
	return GitError("git operation failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("path", path).
		Build()
}
