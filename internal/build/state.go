package build

import (
	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
)

// UnitState is the position of a unit in its build-run lifecycle:
//
//	Pending → Accepted                      (cache hit)
//	Pending → Generating → Accepted | Failed
//	Pending → Skipped                       (a dependency did not reach Accepted)
type UnitState string

const (
	StatePending    UnitState = "pending"
	StateGenerating UnitState = "generating"
	StateAccepted   UnitState = "accepted"
	StateFailed     UnitState = "failed"
	StateSkipped    UnitState = "skipped"
)

// IsTerminal reports whether the state is final for a build run.
func (s UnitState) IsTerminal() bool {
	return s == StateAccepted || s == StateFailed || s == StateSkipped
}

// UnitResult is the final state of one unit.
type UnitResult struct {
	Unit        string
	Fingerprint fingerprint.Fingerprint
	State       UnitState
	FromCache   bool
	Attempts    int

	// Artifact is set for accepted units.
	Artifact *artifact.Artifact

	// Diagnostics of the last rejected attempt for failed units.
	Diagnostics artifact.Diagnostics

	// BlockedBy names the direct dependencies that did not reach Accepted, for skipped units.
	BlockedBy []string
	// Excluded is set when BlockedBy names modules dropped by parse errors.
	Excluded bool

	// Err is the per-unit error of a failed unit.
	Err error
}

// Reason renders the diagnostic chain that led to a non-accepted state.
func (u *UnitResult) Reason() []string {
	switch u.State {
	case StateFailed:
		out := make([]string, 0, len(u.Diagnostics)+1)
		if u.Err != nil {
			out = append(out, u.Err.Error())
		}
		for _, d := range u.Diagnostics {
			out = append(out, d.String())
		}
		return out
	case StateSkipped:
		out := make([]string, len(u.BlockedBy))
		for i, d := range u.BlockedBy {
			if u.Excluded {
				out[i] = "module " + d + " was excluded by parse errors"
				continue
			}
			out[i] = "dependency " + d + " was not accepted"
		}
		return out
	default:
		return nil
	}
}
