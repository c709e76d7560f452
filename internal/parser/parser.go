// Package parser turns annotated markdown documents into ordered declarations.
//
// A declaration is a top-level fenced code block whose info string starts with
// module, interface, function or test. Every other top-level block is prose
// attached to the nearest preceding declaration.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Kind is the kind of a declaration block.
type Kind string

const (
	KindModule    Kind = "module"
	KindInterface Kind = "interface"
	KindFunction  Kind = "function"
	KindTest      Kind = "test"
)

// Position is a 1-based line and column in the original source text.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Param is one interface parameter with its semantic type tag.
type Param struct {
	Name string
	Type string
}

// Decl is one declaration block. Which fields are set depends on Kind.
type Decl struct {
	Kind   Kind
	Name   string
	Module string // enclosing module
	Pos    Position

	// Body is the fence content. Prose holds the top-level blocks that follow
	// the declaration up to the next one.
	Body  string
	Prose []string

	Target string // module

	Params  []Param // interface
	Returns string

	Implements string // function
	Tests      []string

	TestKind    string // test
	Targets     []string
	Setup       []string
	Input       string
	Expect      string
	Predicate   string
	Description string
}

// Text is the body followed by attached prose, separated by blank lines.
func (d *Decl) Text() string {
	parts := make([]string, 0, len(d.Prose)+1)
	body := d.Body
	if d.Kind == KindTest {
		body = d.Description
	}
	if strings.TrimSpace(body) != "" {
		parts = append(parts, strings.TrimSpace(body))
	}
	parts = append(parts, d.Prose...)
	return strings.Join(parts, "\n\n")
}

// Document is a parsed source document.
type Document struct {
	Path        string
	Frontmatter Frontmatter
	Preamble    []string
	Decls       []*Decl
}

// ParseFile reads and parses path.
func ParseFile(path string) (*Document, error) {
	// #nosec G304 - path comes from source discovery
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, src)
}

// Parse parses one document. All problems are collected; when any is found the
// returned error is a ParseErrors and the document is nil.
func Parse(path string, src []byte) (*Document, error) {
	doc, _, err := parse(path, src)
	return doc, err
}

// parse also returns the names of every module the document declares, including
// those whose declarations failed to parse.
func parse(path string, src []byte) (*Document, []string, error) {
	src = bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	p := &docParser{doc: &Document{Path: path}}

	fmRaw, body, fmLines, err := splitFrontmatter(src)
	if err != nil {
		p.errorf(Position{Line: 1, Column: 1}, "%v", err)
		return nil, nil, p.errs
	}
	if fm, err := parseFrontmatter(fmRaw); err != nil {
		p.errorf(Position{Line: 2, Column: 1}, "invalid frontmatter: %v", err)
	} else {
		p.doc.Frontmatter = fm
		p.module = fm.Module
		p.declare(fm.Module)
		if fm.Module != "" && !moduleRe.MatchString(fm.Module) {
			p.errorf(Position{Line: 2, Column: 1}, "invalid frontmatter module %q", fm.Module)
		}
		if fm.Target != "" && fm.Target != TargetLibrary && fm.Target != TargetExecutable {
			p.errorf(Position{Line: 2, Column: 1}, "invalid frontmatter target %q", fm.Target)
		}
	}

	p.src = body
	p.lines = newLineIndex(body, fmLines)

	root := goldmark.New().Parser().Parse(text.NewReader(body))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		p.visit(n)
	}

	if len(p.errs) > 0 {
		return nil, p.declared, p.errs
	}
	return p.doc, p.declared, nil
}

type docParser struct {
	doc      *Document
	src      []byte
	lines    lineIndex
	module   string
	declared []string
	last     *Decl
	errs     ParseErrors
}

func (p *docParser) declare(module string) {
	if !moduleRe.MatchString(module) {
		return
	}
	for _, m := range p.declared {
		if m == module {
			return
		}
	}
	p.declared = append(p.declared, module)
}

func (p *docParser) errorf(pos Position, format string, args ...any) {
	p.errs = append(p.errs, &ParseError{
		Path:   p.doc.Path,
		Line:   pos.Line,
		Column: pos.Column,
		Reason: fmt.Sprintf(format, args...),
	})
}

func (p *docParser) visit(n gmast.Node) {
	fcb, ok := n.(*gmast.FencedCodeBlock)
	if !ok || fcb.Info == nil {
		p.attachProse(n)
		return
	}
	info := string(fcb.Info.Segment.Value(p.src))
	kind := declarationKind(info)
	if kind == "" {
		p.attachProse(n)
		return
	}

	pos := p.lines.position(fcb.Info.Segment.Start)
	d := &Decl{Kind: kind, Pos: pos, Body: blockContent(fcb, p.src)}
	p.last = d
	if kind == KindModule {
		p.declare(headerName(info, kind))
	}

	if !p.closed(fcb) {
		p.errorf(pos, "unterminated %s block", kind)
		return
	}
	if herr := parseHeader(d, info); herr != nil {
		p.errorf(Position{Line: pos.Line, Column: pos.Column + herr.col}, "%s", herr.reason)
		return
	}

	if kind == KindModule {
		p.module = d.Name
		d.Module = d.Name
		if d.Target == "" && d.Name == p.doc.Frontmatter.Module {
			d.Target = p.doc.Frontmatter.Target
		}
	} else {
		if p.module == "" {
			p.errorf(pos, "%s block %q outside any module", kind, d.Name)
			return
		}
		d.Module = p.module
	}

	if kind == KindTest {
		for _, perr := range parseTestBody(d) {
			p.errorf(pos, "%s", perr)
		}
	}
	p.doc.Decls = append(p.doc.Decls, d)
}

// attachProse records the raw source text of a non-declaration block.
func (p *docParser) attachProse(n gmast.Node) {
	start, stop := p.span(n)
	if start < 0 {
		return
	}
	prose := strings.TrimSpace(string(p.src[start:stop]))
	if prose == "" {
		return
	}
	if p.last == nil {
		p.doc.Preamble = append(p.doc.Preamble, prose)
		return
	}
	p.last.Prose = append(p.last.Prose, prose)
}

// span returns the byte range of a block in the body, extended to full lines.
// Fenced blocks include their fences.
func (p *docParser) span(n gmast.Node) (int, int) {
	start, stop := -1, -1
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering || c.Type() != gmast.TypeBlock {
			return gmast.WalkContinue, nil
		}
		lines := c.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if start < 0 || seg.Start < start {
				start = seg.Start
			}
			if seg.Stop > stop {
				stop = seg.Stop
			}
		}
		if hb, ok := c.(*gmast.HTMLBlock); ok && hb.HasClosure() {
			if start < 0 || hb.ClosureLine.Start < start {
				start = hb.ClosureLine.Start
			}
			if hb.ClosureLine.Stop > stop {
				stop = hb.ClosureLine.Stop
			}
		}
		if fcb, ok := c.(*gmast.FencedCodeBlock); ok {
			if fcb.Info != nil && (start < 0 || fcb.Info.Segment.Start < start) {
				start = fcb.Info.Segment.Start
			}
			if end := p.closingFenceEnd(fcb); end > stop {
				stop = end
			}
		}
		return gmast.WalkContinue, nil
	})
	if start < 0 {
		return -1, -1
	}
	return p.lines.lineStart(start), stop
}

// closed reports whether the fenced block has a closing fence. goldmark lets an
// unclosed fence run to the end of the document.
func (p *docParser) closed(fcb *gmast.FencedCodeBlock) bool {
	return p.closingFenceEnd(fcb) >= 0
}

// closingFenceEnd returns the end offset of the closing fence line, or -1.
func (p *docParser) closingFenceEnd(fcb *gmast.FencedCodeBlock) int {
	lines := fcb.Lines()
	var headerStart, after int
	switch {
	case fcb.Info != nil:
		headerStart = p.lines.lineStart(fcb.Info.Segment.Start)
		after = fcb.Info.Segment.Stop
	case lines.Len() > 0:
		headerStart = p.lines.lineStart(max(lines.At(0).Start-1, 0))
		after = lines.At(0).Start
	default:
		return -1
	}
	if n := lines.Len(); n > 0 {
		after = lines.At(n - 1).Stop
	}

	header := strings.TrimLeft(lineAt(p.src, headerStart), " ")
	if header == "" {
		return -1
	}
	fenceChar := string(header[0])
	fenceLen := len(header) - len(strings.TrimLeft(header, fenceChar))

	next := after
	if after == 0 || p.src[after-1] != '\n' {
		nl := bytes.IndexByte(p.src[after:], '\n')
		if nl < 0 {
			return -1
		}
		next = after + nl + 1
	}
	if next >= len(p.src) {
		return -1
	}
	closing := lineAt(p.src, next)
	trimmed := strings.TrimSpace(closing)
	if len(trimmed) >= fenceLen && strings.Trim(trimmed, fenceChar) == "" {
		return next + len(closing)
	}
	return -1
}

func lineAt(src []byte, start int) string {
	end := bytes.IndexByte(src[start:], '\n')
	if end < 0 {
		return string(src[start:])
	}
	return string(src[start : start+end])
}

func blockContent(fcb *gmast.FencedCodeBlock, src []byte) string {
	var buf strings.Builder
	lines := fcb.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}

// parseTestBody reads setup/input/expect/predicate lines out of a test body.
func parseTestBody(d *Decl) []string {
	var problems []string
	var description []string
	inputs := 0
	for _, raw := range strings.Split(d.Body, "\n") {
		line := strings.TrimSpace(raw)
		key, value, ok := strings.Cut(line, ":")
		value = strings.TrimSpace(value)
		if !ok {
			description = append(description, raw)
			continue
		}
		switch strings.TrimSpace(key) {
		case "setup":
			d.Setup = append(d.Setup, value)
		case "input":
			inputs++
			d.Input = value
		case "expect":
			if d.Expect != "" || d.Predicate != "" {
				problems = append(problems, fmt.Sprintf("test %q declares more than one expected outcome", d.Name))
			}
			d.Expect = value
		case "predicate":
			if d.Expect != "" || d.Predicate != "" {
				problems = append(problems, fmt.Sprintf("test %q declares more than one expected outcome", d.Name))
			}
			d.Predicate = value
		default:
			description = append(description, raw)
		}
	}
	d.Description = strings.TrimSpace(strings.Join(description, "\n"))

	switch {
	case inputs == 0:
		problems = append(problems, fmt.Sprintf("test %q missing input", d.Name))
	case inputs > 1:
		problems = append(problems, fmt.Sprintf("test %q has more than one input", d.Name))
	case d.Input == "":
		problems = append(problems, fmt.Sprintf("test %q has an empty input", d.Name))
	}
	if d.Expect == "" && d.Predicate == "" {
		problems = append(problems, fmt.Sprintf("test %q missing expected output", d.Name))
	}
	return problems
}

// lineIndex maps body offsets to source positions.
type lineIndex struct {
	starts []int // offset of each line start in the body
	base   int   // source lines preceding the body
}

func newLineIndex(body []byte, base int) lineIndex {
	starts := []int{0}
	for i, b := range body {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts, base: base}
}

func (li lineIndex) line(off int) int {
	return sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > off }) - 1
}

func (li lineIndex) lineStart(off int) int {
	return li.starts[li.line(off)]
}

func (li lineIndex) position(off int) Position {
	l := li.line(off)
	return Position{Line: li.base + l + 1, Column: off - li.starts[l] + 1}
}
