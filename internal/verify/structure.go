package verify

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/artifact"
	mdparser "git.home.luguber.info/inful/mdcompile/internal/parser"
)

// mainFunc is the entry point executable units export in addition to their interfaces.
const mainFunc = "Main"

func (v *Verifier) checkStructure(c *Candidate) artifact.Diagnostics {
	m := c.Module
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, m.Name+".go", c.Source, parser.SkipObjectResolution)
	if err != nil {
		return syntaxDiagnostics(err)
	}

	var diags artifact.Diagnostics
	if file.Name.Name != m.Name {
		diags = append(diags, artifact.Diagnostic{
			Check:   artifact.CheckPackage,
			Subject: file.Name.Name,
			Message: fmt.Sprintf("package clause must be %q", m.Name),
		})
	}
	diags = append(diags, v.checkImports(c, file)...)

	funcs := exportedFuncs(file)
	expected := make(map[string]bool, len(m.Interfaces)+1)
	for _, iface := range m.Interfaces {
		expected[iface.Name] = true
		fn, ok := funcs[iface.Name]
		if !ok {
			diags = append(diags, artifact.Diagnostic{
				Check:   artifact.CheckSignature,
				Subject: iface.Name,
				Message: "missing exported func " + c.Program.GoSignature(iface),
			})
			continue
		}
		want := make([]string, len(iface.Params))
		for i, p := range iface.Params {
			want[i] = canonicalType(c.Program.GoType(p.Type))
		}
		var wantResults []string
		if iface.Returns != "" {
			wantResults = []string{canonicalType(c.Program.GoType(iface.Returns))}
		}
		if msg := compareFunc(fn, want, wantResults); msg != "" {
			diags = append(diags, artifact.Diagnostic{
				Check:   artifact.CheckSignature,
				Subject: iface.Name,
				Message: msg + "; want " + c.Program.GoSignature(iface),
			})
		}
	}

	if m.Target == mdparser.TargetExecutable {
		expected[mainFunc] = true
		fn, ok := funcs[mainFunc]
		switch {
		case !ok:
			diags = append(diags, artifact.Diagnostic{Check: artifact.CheckSignature, Subject: mainFunc, Message: "executable unit must export func Main()"})
		case compareFunc(fn, nil, nil) != "":
			diags = append(diags, artifact.Diagnostic{Check: artifact.CheckSignature, Subject: mainFunc, Message: "Main must take no parameters and return nothing"})
		}
	}

	for _, name := range sortedKeys(funcs) {
		if !expected[name] {
			diags = append(diags, artifact.Diagnostic{
				Check:   artifact.CheckExports,
				Subject: name,
				Message: "exported function is not declared by any interface",
			})
		}
	}
	return diags
}

func syntaxDiagnostics(err error) artifact.Diagnostics {
	var list scanner.ErrorList
	if !errors.As(err, &list) || len(list) == 0 {
		return artifact.Diagnostics{{Check: artifact.CheckSyntax, Message: err.Error()}}
	}
	var diags artifact.Diagnostics
	for i, e := range list {
		if i == 5 {
			diags = append(diags, artifact.Diagnostic{Check: artifact.CheckSyntax, Message: fmt.Sprintf("%d more errors", len(list)-i)})
			break
		}
		diags = append(diags, artifact.Diagnostic{
			Check:   artifact.CheckSyntax,
			Subject: fmt.Sprintf("%d:%d", e.Pos.Line, e.Pos.Column),
			Message: e.Msg,
		})
	}
	return diags
}

func (v *Verifier) checkImports(c *Candidate, file *ast.File) artifact.Diagnostics {
	deps := make(map[string]bool)
	for _, dep := range c.Module.Deps() {
		deps[path.Join(v.importRoot, dep)] = true
	}
	var diags artifact.Diagnostics
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			p = spec.Path.Value
		}
		if v.allowed[p] || deps[p] {
			continue
		}
		msg := "import is not allowed"
		if strings.HasPrefix(p, v.importRoot+"/") {
			msg = "unit is not a declared dependency"
		}
		diags = append(diags, artifact.Diagnostic{Check: artifact.CheckImports, Subject: p, Message: msg})
	}
	return diags
}

// exportedFuncs returns the exported top-level functions (methods excluded).
func exportedFuncs(file *ast.File) map[string]*ast.FuncDecl {
	funcs := make(map[string]*ast.FuncDecl)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !fn.Name.IsExported() {
			continue
		}
		funcs[fn.Name.Name] = fn
	}
	return funcs
}

func compareFunc(fn *ast.FuncDecl, wantParams, wantResults []string) string {
	if fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0 {
		return "func must not be generic"
	}
	params := fieldTypes(fn.Type.Params)
	if len(params) != len(wantParams) {
		return fmt.Sprintf("has %d parameters, want %d", len(params), len(wantParams))
	}
	for i := range params {
		if params[i] != wantParams[i] {
			return fmt.Sprintf("parameter %d has type %s, want %s", i+1, params[i], wantParams[i])
		}
	}
	results := fieldTypes(fn.Type.Results)
	if len(results) != len(wantResults) {
		return fmt.Sprintf("returns %d values, want %d", len(results), len(wantResults))
	}
	for i := range results {
		if results[i] != wantResults[i] {
			return fmt.Sprintf("returns %s, want %s", results[i], wantResults[i])
		}
	}
	return ""
}

// fieldTypes flattens a field list to one type per declared name.
func fieldTypes(fl *ast.FieldList) []string {
	if fl == nil {
		return nil
	}
	var out []string
	for _, f := range fl.List {
		t := normalizeType(types.ExprString(f.Type))
		n := max(len(f.Names), 1)
		for range n {
			out = append(out, t)
		}
	}
	return out
}

func canonicalType(goType string) string {
	expr, err := parser.ParseExpr(goType)
	if err != nil {
		return goType
	}
	return normalizeType(types.ExprString(expr))
}

func normalizeType(t string) string {
	return strings.ReplaceAll(t, "interface{}", "any")
}

func sortedKeys(m map[string]*ast.FuncDecl) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
