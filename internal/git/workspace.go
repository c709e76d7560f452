package git

import (
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
)

// Client manages one output directory.
type Client struct {
	workspaceDir string
}

// NewClient creates a client for the output directory dir.
func NewClient(dir string) *Client {
	return &Client{workspaceDir: dir}
}

// Dir returns the output directory.
func (c *Client) Dir() string { return c.workspaceDir }

func (c *Client) EnsureWorkspace() error {
	if err := os.MkdirAll(c.workspaceDir, 0o750); err != nil {
		return errors.NewError(errors.CategoryFileSystem, "failed to create output directory").
			WithCause(err).
			WithContext("path", c.workspaceDir).
			Build()
	}
	return nil
}

// CleanWorkspace removes every entry of the output directory except the .git
// directory, so committed history survives a clean build.
func (c *Client) CleanWorkspace() error {
	entries, err := os.ReadDir(c.workspaceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewError(errors.CategoryFileSystem, "failed to read output directory").
			WithCause(err).
			WithContext("path", c.workspaceDir).
			Build()
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		path := filepath.Join(c.workspaceDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			return errors.NewError(errors.CategoryFileSystem, "failed to remove output entry").
				WithCause(err).
				WithContext("path", path).
				Build()
		}
	}
	slog.Info("Output directory cleaned", logfields.Path(c.workspaceDir))
	return nil
}
