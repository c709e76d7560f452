package build

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Summary is the user-facing record of a build: every unit's final state and,
// for each non-accepted unit, the diagnostic chain that led there.
type Summary struct {
	BuildID     string        `json:"build_id"`
	Status      BuildStatus   `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    string        `json:"duration"`
	Counts      Counts        `json:"counts"`
	Units       []UnitSummary `json:"units"`
	ParseErrors []string      `json:"parse_errors,omitempty"`
	Output      string        `json:"output,omitempty"`
	Commit      string        `json:"commit,omitempty"`
}

// UnitSummary is one unit's line in the summary.
type UnitSummary struct {
	Unit        string    `json:"unit"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	State       UnitState `json:"state"`
	FromCache   bool      `json:"from_cache,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
	Reason      []string  `json:"reason,omitempty"`
}

// Summarize builds the summary of res with units in topological order.
func Summarize(res *BuildResult) *Summary {
	s := &Summary{
		BuildID:   res.BuildID,
		Status:    res.Status,
		StartedAt: res.StartTime.UTC(),
		Duration:  res.Duration.Round(time.Millisecond).String(),
		Counts:    res.Counts(),
		Output:    res.OutputPath,
	}
	for _, u := range res.Order {
		r, ok := res.Units[u]
		if !ok {
			s.Units = append(s.Units, UnitSummary{Unit: u, Fingerprint: res.Fingerprints[u].String(), State: StatePending})
			continue
		}
		s.Units = append(s.Units, UnitSummary{
			Unit:        u,
			Fingerprint: r.Fingerprint.String(),
			State:       r.State,
			FromCache:   r.FromCache,
			Attempts:    r.Attempts,
			Reason:      r.Reason(),
		})
	}
	for _, perr := range res.ParseErrors {
		s.ParseErrors = append(s.ParseErrors, perr.Error())
	}
	return s
}

// Failures returns the units that did not reach Accepted.
func (s *Summary) Failures() []UnitSummary {
	var out []UnitSummary
	for _, u := range s.Units {
		if u.State != StateAccepted {
			out = append(out, u)
		}
	}
	return out
}

// Render writes the summary as a human-readable table.
func (s *Summary) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "UNIT\tSTATE\tSOURCE\tFINGERPRINT\n")
	for _, u := range s.Units {
		source := "generated"
		switch {
		case u.State != StateAccepted:
			source = "-"
		case u.FromCache:
			source = "cache"
		}
		fp := u.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Unit, u.State, source, fp)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, u := range s.Failures() {
		fmt.Fprintf(w, "\n%s (%s):\n", u.Unit, u.State)
		for _, line := range u.Reason {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(line, "\n", "\n  "))
		}
	}
	for _, p := range s.ParseErrors {
		fmt.Fprintf(w, "\nexcluded: %s\n", p)
	}

	c := s.Counts
	_, err := fmt.Fprintf(w, "\n%s: %d from cache, %d generated, %d failed, %d skipped in %s\n",
		s.Status, c.FromCache, c.Generated, c.Failed, c.Skipped, s.Duration)
	return err
}
