package git

import (
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/mdcompile/internal/logfields"
)

// Author signs output commits.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor is used when no author is configured.
var DefaultAuthor = Author{Name: "mdcompile", Email: "mdcompile@localhost"}

// Commit stages every file in the output directory and commits it, creating
// the repository on first use. It returns the HEAD hash and whether a new
// commit was made; an unchanged tree makes no commit.
func (c *Client) Commit(message string, author Author, when time.Time) (string, bool, error) {
	repo, err := git.PlainOpen(c.workspaceDir)
	if stderrors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(c.workspaceDir, false)
	}
	if err != nil {
		return "", false, ClassifyGitError(err, "open", c.workspaceDir)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", false, ClassifyGitError(err, "worktree", c.workspaceDir)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", false, ClassifyGitError(err, "add", c.workspaceDir)
	}
	status, err := wt.Status()
	if err != nil {
		return "", false, ClassifyGitError(err, "status", c.workspaceDir)
	}
	if status.IsClean() {
		head, err := ReadRepoHead(c.workspaceDir)
		return head, false, err
	}

	if author.Name == "" {
		author = DefaultAuthor
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: author.Name, Email: author.Email, When: when},
	})
	if err != nil {
		return "", false, ClassifyGitError(err, "commit", c.workspaceDir)
	}
	slog.Info("Output committed",
		logfields.Path(c.workspaceDir),
		slog.String("commit", hash.String()[:8]))
	return hash.String(), true, nil
}
