package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/mdcompile/internal/build"
	"git.home.luguber.info/inful/mdcompile/internal/build/validation"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	Paths  []string `arg:"" optional:"" type:"path" help:"Documents or directories (default: build.sources)"`
	Strict bool     `help:"Treat validation warnings as errors"`
}

func (c *CheckCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	paths, err := sourcePaths(c.Paths, cfg)
	if err != nil {
		return err
	}

	res, err := build.NewBuildService().Run(context.Background(), build.BuildRequest{
		Config:  cfg,
		Paths:   paths,
		Options: build.BuildOptions{DryRun: true},
	})
	if err != nil {
		return err
	}
	if err := renderCheck(os.Stdout, res); err != nil {
		return err
	}

	findings := &validation.Report{Findings: res.Findings}
	if c.Strict {
		for i := range findings.Findings {
			findings.Findings[i].Severity = validation.SeverityError
		}
	}
	if err := findings.Err(); err != nil {
		return err
	}
	if len(res.ParseErrors) > 0 {
		return res.ParseErrors
	}
	return nil
}

func renderCheck(w io.Writer, res *build.BuildResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "UNIT\tTARGET\tFINGERPRINT\n")
	for _, u := range res.Order {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u, res.Targets[u], res.Fingerprints[u].Short())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, f := range res.Findings {
		fmt.Fprintf(w, "%s\n", f)
	}
	for _, perr := range res.ParseErrors {
		fmt.Fprintf(w, "excluded: %s\n", perr)
	}
	_, err := fmt.Fprintf(w, "\n%d document(s), %d unit(s), %d finding(s), %d excluded\n",
		res.Documents, len(res.Order), len(res.Findings), len(res.ParseErrors))
	return err
}
