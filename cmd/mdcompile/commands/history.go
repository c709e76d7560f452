package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/eventstore"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Build string `short:"b" help:"Show the units of one build"`
	Limit int    `short:"n" help:"Number of builds to show" default:"20"`
	JSON  bool   `name:"json" help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	path := historyPath(cfg)
	if _, err := os.Stat(path); err != nil {
		return errors.ValidationError("no build history recorded; enable events.history").WithContext("path", path).Build()
	}
	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	proj := eventstore.NewBuildHistoryProjection(store, h.Limit)
	if err := proj.Rebuild(context.Background()); err != nil {
		return err
	}

	if h.Build != "" {
		b, ok := proj.GetBuild(h.Build)
		if !ok {
			return errors.ValidationError("unknown build").WithContext("build", h.Build).Build()
		}
		if h.JSON {
			return writeJSON(os.Stdout, b)
		}
		return renderBuild(os.Stdout, b)
	}

	history := proj.GetHistory()
	if h.JSON {
		return writeJSON(os.Stdout, history)
	}
	return renderHistory(os.Stdout, history)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderHistory(w io.Writer, history []*eventstore.BuildSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "BUILD\tSTARTED\tSTATUS\tDURATION\tCACHED\tGENERATED\tFAILED\tSKIPPED\n")
	for _, b := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			b.BuildID, b.StartedAt.Local().Format("2006-01-02 15:04:05"), b.Status,
			b.Duration.Round(time.Millisecond), b.Counts.FromCache, b.Counts.Generated, b.Counts.Failed, b.Counts.Skipped)
	}
	return tw.Flush()
}

func renderBuild(w io.Writer, b *eventstore.BuildSummary) error {
	fmt.Fprintf(w, "build %s: %s (backend %s, %d documents, %d attempts)\n", b.BuildID, b.Status, b.Backend, b.Documents, b.Attempts)
	if b.ErrorMessage != "" {
		fmt.Fprintf(w, "failed in %s: %s\n", b.ErrorStage, b.ErrorMessage)
	}
	units := make([]string, 0, len(b.Units))
	for u := range b.Units {
		units = append(units, u)
	}
	sort.Strings(units)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "UNIT\tSTATE\tCACHED\tATTEMPTS\n")
	for _, u := range units {
		o := b.Units[u]
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\n", u, o.State, o.FromCache, o.Attempts)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, u := range units {
		for _, r := range b.Units[u].Reason {
			fmt.Fprintf(w, "  %s: %s\n", u, r)
		}
	}
	return nil
}
