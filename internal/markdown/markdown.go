// Package markdown holds goldmark helpers shared by packages that read
// markdown produced outside the source documents, such as backend responses.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced or indented code block.
type CodeBlock struct {
	Language string // first word of the info string, lowercased
	Code     string
	Line     int // 1-based line of the first content line
}

// ParseBody parses a markdown body into a goldmark AST.
func ParseBody(body []byte) gmast.Node {
	return goldmark.New().Parser().Parse(text.NewReader(body))
}

// ExtractCodeBlocks returns every code block in document order, including
// blocks nested in lists and quotes.
func ExtractCodeBlocks(body []byte) []CodeBlock {
	root := ParseBody(body)

	var blocks []CodeBlock
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.FencedCodeBlock:
			blocks = append(blocks, CodeBlock{
				Language: strings.ToLower(string(node.Language(body))),
				Code:     linesText(node.Lines(), body),
				Line:     firstLine(node.Lines(), body),
			})
			return gmast.WalkSkipChildren, nil
		case *gmast.CodeBlock:
			blocks = append(blocks, CodeBlock{
				Code: linesText(node.Lines(), body),
				Line: firstLine(node.Lines(), body),
			})
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return blocks
}

// FirstCode returns the first code block tagged with one of langs. An
// untagged fenced block is used when no tagged block matches.
func FirstCode(body []byte, langs ...string) (CodeBlock, bool) {
	var untagged *CodeBlock
	for _, b := range ExtractCodeBlocks(body) {
		for _, l := range langs {
			if b.Language == l {
				return b, true
			}
		}
		if b.Language == "" && untagged == nil {
			b := b
			untagged = &b
		}
	}
	if untagged != nil {
		return *untagged, true
	}
	return CodeBlock{}, false
}

func linesText(lines *text.Segments, src []byte) string {
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}

func firstLine(lines *text.Segments, src []byte) int {
	if lines.Len() == 0 {
		return 0
	}
	return bytes.Count(src[:lines.At(0).Start], []byte("\n")) + 1
}
