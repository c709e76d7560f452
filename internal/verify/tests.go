package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	"git.home.luguber.info/inful/mdcompile/internal/model"
)

const (
	harnessFunc = "MdcompileRunTest"
	harnessFile = "zz_mdcompile_harness.go"
	passPrefix  = "pass\x00"
	failPrefix  = "fail\x00"
)

// runTests executes every declared test in a fresh interpreter.
func (v *Verifier) runTests(ctx context.Context, c *Candidate) artifact.Diagnostics {
	var diags artifact.Diagnostics
	for _, t := range c.Module.Tests {
		if ctx.Err() != nil {
			diags = append(diags, artifact.Diagnostic{Check: artifact.CheckTest, Subject: t.Name, Message: "verification canceled"})
			break
		}
		if msg := v.runTest(ctx, c, t); msg != "" {
			diags = append(diags, artifact.Diagnostic{Check: artifact.CheckTest, Subject: t.Name, Message: msg})
		}
	}
	return diags
}

// runTest returns an empty string when t passes, otherwise the failure reason.
func (v *Verifier) runTest(ctx context.Context, c *Candidate, t *model.Test) string {
	gopath, err := os.MkdirTemp("", "mdcompile-verify-*")
	if err != nil {
		return "prepare interpreter: " + err.Error()
	}
	defer func() { _ = os.RemoveAll(gopath) }()

	importPath := path.Join(v.importRoot, c.Module.Name)
	files := map[string][]byte{
		filepath.Join(importPath, c.Module.Name+".go"): c.Source,
		filepath.Join(importPath, harnessFile):         []byte(v.harness(c.Module, t)),
	}
	for dep, src := range c.Deps {
		files[filepath.Join(v.importRoot, dep, dep+".go")] = src
	}
	for rel, data := range files {
		p := filepath.Join(gopath, "src", filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return "prepare interpreter: " + err.Error()
		}
		if err := os.WriteFile(p, data, 0o600); err != nil {
			return "prepare interpreter: " + err.Error()
		}
	}

	tctx, cancel := context.WithTimeout(ctx, v.testTimeout)
	defer cancel()
	out, err := interpret(tctx, gopath, importPath, c.Module.Name)
	switch {
	case err != nil && tctx.Err() != nil && ctx.Err() == nil:
		return fmt.Sprintf("timed out after %s", v.testTimeout)
	case err != nil:
		return strings.TrimSpace(err.Error())
	case strings.HasPrefix(out, passPrefix):
		return ""
	}
	got := strings.TrimPrefix(out, failPrefix)
	if t.Expect != "" {
		return fmt.Sprintf("%s: got %s, want %s", t.Input, got, t.Expect)
	}
	return fmt.Sprintf("%s: predicate %q is false for result %s", t.Input, t.Predicate, got)
}

func interpret(ctx context.Context, gopath, importPath, pkg string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	i := interp.New(interp.Options{GoPath: gopath, Stdout: io.Discard, Stderr: io.Discard})
	if err := i.Use(stdlib.Symbols); err != nil {
		return "", err
	}
	if _, err := i.EvalWithContext(ctx, fmt.Sprintf("import %q", importPath)); err != nil {
		return "", err
	}
	res, err := i.EvalWithContext(ctx, pkg+"."+harnessFunc+"()")
	if err != nil {
		return "", err
	}
	s, ok := res.Interface().(string)
	if !ok {
		return "", fmt.Errorf("unexpected harness result %v", res)
	}
	return s, nil
}

// harness renders a file in the unit's package that evaluates t. Integration
// tests also see the unit's dependencies under their package names.
func (v *Verifier) harness(m *model.Module, t *model.Test) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\nimport (\n\tmdcompilefmt \"fmt\"\n", m.Name)
	var guards []string
	if t.Integration() {
		seen := map[string]bool{}
		for _, ref := range m.Refs {
			if seen[ref.Module] {
				continue
			}
			seen[ref.Module] = true
			fmt.Fprintf(&b, "\t%q\n", path.Join(v.importRoot, ref.Module))
			guards = append(guards, fmt.Sprintf("var _ = %s.%s\n", ref.Module, ref.Symbol))
		}
	}
	b.WriteString(")\n\n")
	for _, g := range guards {
		b.WriteString(g)
	}

	fmt.Fprintf(&b, "\nfunc %s() string {\n", harnessFunc)
	for _, s := range t.Setup {
		fmt.Fprintf(&b, "\t%s\n", s)
	}
	fmt.Fprintf(&b, "\tresult := %s\n", t.Input)
	b.WriteString("\tgot := mdcompilefmt.Sprint(result)\n")
	if t.Expect != "" {
		fmt.Fprintf(&b, "\tif got == mdcompilefmt.Sprint(%s) {\n", t.Expect)
	} else {
		fmt.Fprintf(&b, "\tif %s {\n", t.Predicate)
	}
	fmt.Fprintf(&b, "\t\treturn %q + got\n\t}\n\treturn %q + got\n}\n", passPrefix, failPrefix)
	return b.String()
}
