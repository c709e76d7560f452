package parser

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Discover expands files and directories into the sorted, de-duplicated list of
// markdown documents to compile. Hidden directories are skipped.
func Discover(paths []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		clean := filepath.Clean(p)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "source path not accessible").
				WithContext("path", root).Build()
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".md") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "walk source directory").
				WithContext("path", root).Build()
		}
	}

	sort.Strings(out)
	return out, nil
}

// Result is the outcome of parsing a set of documents.
type Result struct {
	Documents []*Document
	Errors    ParseErrors

	// Excluded lists the documents that failed to parse with the modules they declare.
	Excluded []Excluded
}

// Excluded is a document left out of the build because of parse errors.
type Excluded struct {
	Path    string
	Modules []string
}

// ExcludedModules returns the sorted names of every module declared by an
// excluded document.
func (r *Result) ExcludedModules() []string {
	seen := map[string]bool{}
	var out []string
	for _, ex := range r.Excluded {
		for _, m := range ex.Modules {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ParseAll parses every path. Documents with parse errors are excluded from
// Documents, their errors are appended to Errors and the modules they declare
// are recorded in Excluded. I/O failures abort.
func ParseAll(paths []string) (*Result, error) {
	res := &Result{}
	for _, path := range paths {
		// #nosec G304 - path comes from source discovery
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "read source document").
				WithContext("path", path).Build()
		}
		doc, declared, err := parse(path, src)
		if err == nil {
			res.Documents = append(res.Documents, doc)
			continue
		}
		if perrs, ok := err.(ParseErrors); ok {
			res.Errors = append(res.Errors, perrs...)
			res.Excluded = append(res.Excluded, Excluded{Path: path, Modules: declared})
			continue
		}
		return nil, errors.WrapError(err, errors.CategoryInternal, "parse source document").
			WithContext("path", path).Build()
	}
	return res, nil
}
