package commands

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// ExitCode reports err on stderr and returns the process exit code for it.
func ExitCode(err error, verbose bool) int {
	return errors.NewCLIErrorAdapter(verbose, slog.Default()).Report(os.Stderr, err)
}
