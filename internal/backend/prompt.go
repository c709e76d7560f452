package backend

import (
	"strings"
	"text/template"
)

const promptText = `You are generating the Go package {{.ImportPath}} (package {{.Unit}}).
{{- if eq .Target "executable"}}
The unit is an executable: besides the functions below, export func Main() that runs the program.
{{- end}}

## Design
{{if .Prose}}{{.Prose}}{{else}}(none){{end}}

## Exported API
Export exactly these functions and no other exported functions:
{{range .Interfaces}}
- {{.Go}}
{{- if .Contract}}
  {{.Contract}}
{{- end}}
{{- end}}
{{- if .Functions}}

## Behavior
{{range .Functions}}
- {{.Name}}{{if .Implements}} (implements {{.Implements}}){{end}}: {{.Behavior}}
{{- end}}
{{- end}}
{{- if .Tests}}

## Tests the package must pass
{{range .Tests}}
- {{.Name}} ({{.Kind}}){{range .Setup}}
  setup: {{.}}{{end}}
  input: {{.Input}}
{{- if .Expect}}
  expect: {{.Expect}}
{{- else}}
  predicate over result: {{.Predicate}}
{{- end}}
{{- end}}
{{- end}}
{{- if .Dependencies}}

## Dependencies
{{range .Dependencies}}
import "{{.ImportPath}}"
{{- range .Interfaces}}
- {{.Go}}
{{- end}}
{{- end}}
{{- end}}
{{- if .Feedback}}

## Previous attempt {{.Previous}} of {{.MaxAttempts}} was rejected
{{range .Feedback}}
- {{.}}
{{- end}}
{{- end}}

Use only the Go standard library and the dependencies listed above.
Reply with the complete source file in a single fenced go code block.
`

var promptTemplate = template.Must(template.New("prompt").Parse(promptText))

type promptData struct {
	*Request
}

func (d promptData) Previous() int { return d.Attempt - 1 }

// RenderPrompt renders the plain-text generation request for LLM backends.
func RenderPrompt(req *Request) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, promptData{req}); err != nil {
		return "", err
	}
	return b.String(), nil
}
