package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force   bool   `help:"Overwrite existing files"`
	SpecDir string `name:"spec-dir" help:"Directory for the example document" default:"specs"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	slog.Info("Initializing configuration", logfields.Path(root.Config), slog.Bool("force", i.Force))
	if err := config.Init(root.Config, i.SpecDir, i.Force); err != nil {
		return err
	}
	fmt.Printf("wrote %s and %s/calc.md\n", root.Config, i.SpecDir)
	return nil
}
