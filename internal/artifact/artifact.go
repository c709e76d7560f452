// Package artifact defines generated unit outputs and their verification verdicts.
package artifact

import (
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/mdcompile/internal/fingerprint"
)

// Verdict is the outcome of contract verification.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
)

// Check names the verifier stage that produced a diagnostic.
type Check string

const (
	CheckExtract   Check = "extract"
	CheckSyntax    Check = "syntax"
	CheckPackage   Check = "package"
	CheckSignature Check = "signature"
	CheckExports   Check = "exports"
	CheckImports   Check = "imports"
	CheckTest      Check = "test"
	CheckBackend   Check = "backend"
)

// Diagnostic explains why a candidate was rejected.
type Diagnostic struct {
	Check   Check  `json:"check"`
	Subject string `json:"subject,omitempty"` // interface, import or test name
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("%s: %s", d.Check, d.Message)
	}
	return fmt.Sprintf("%s %s: %s", d.Check, d.Subject, d.Message)
}

// Diagnostics is an ordered diagnostic list.
type Diagnostics []Diagnostic

func (ds Diagnostics) String() string {
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// Artifact is the generated output of a unit with its verification result.
// Once stored under a fingerprint it is never modified.
type Artifact struct {
	Unit        string                  `json:"unit"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Source      []byte                  `json:"-"`
	Verdict     Verdict                 `json:"verdict"`
	Diagnostics Diagnostics             `json:"diagnostics,omitempty"`
	Backend     string                  `json:"backend,omitempty"`
	Attempts    int                     `json:"attempts,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Accepted reports whether the artifact passed verification.
func (a *Artifact) Accepted() bool { return a != nil && a.Verdict == VerdictAccepted }

// Clone returns a deep copy.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Source = append([]byte(nil), a.Source...)
	c.Diagnostics = append(Diagnostics(nil), a.Diagnostics...)
	return &c
}
