package git

import (
	stderrors "errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ReadRepoHead returns the HEAD commit hash of the repository at repoPath, or
// an empty string when the repository has no commits yet.
func ReadRepoHead(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", ClassifyGitError(err, "open", repoPath)
	}
	ref, err := repo.Head()
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", ClassifyGitError(err, "head", repoPath)
	}
	return ref.Hash().String(), nil
}
