package parser

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// Frontmatter holds the recognised document-level keys. Unknown keys are ignored.
type Frontmatter struct {
	Module string `yaml:"module"`
	Target string `yaml:"target"`
}

var errMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// splitFrontmatter separates YAML frontmatter (`---` delimited) from the Markdown
// body. Input must already use "\n" line endings. lines is the number of source
// lines consumed by the frontmatter block, including both delimiters.
func splitFrontmatter(content []byte) (fm []byte, body []byte, lines int, err error) {
	open := []byte("---\n")
	if !bytes.HasPrefix(content, open) {
		return nil, content, 0, nil
	}

	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		return []byte{}, content[start+len(open):], 2, nil
	}

	closeSeq := []byte("\n---\n")
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		if bytes.HasSuffix(content, []byte("\n---")) {
			idx = len(content) - start - len("\n---")
			fm = content[start : start+idx+1]
			return fm, nil, bytes.Count(fm, []byte("\n")) + 2, nil
		}
		return nil, nil, 0, errMissingClosingDelimiter
	}

	end := start + idx + 1
	fm = content[start:end]
	return fm, content[start+idx+len(closeSeq):], bytes.Count(fm, []byte("\n")) + 2, nil
}

func parseFrontmatter(raw []byte) (Frontmatter, error) {
	var fm Frontmatter
	if len(bytes.TrimSpace(raw)) == 0 {
		return fm, nil
	}
	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return fm, err
	}
	return fm, nil
}
