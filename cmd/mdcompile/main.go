package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mdcompile/cmd/mdcompile/commands"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var cli commands.CLI
	parser, err := kong.New(&cli,
		kong.Name("mdcompile"),
		kong.Description("Compile annotated markdown documents into a verified Go module."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return errors.ExitInternal
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return errors.ExitUsage
	}

	err = ctx.Run(&commands.Global{Logger: slog.Default()}, &cli)
	return commands.ExitCode(err, cli.Verbose)
}
