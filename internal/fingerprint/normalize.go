package fingerprint

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// NormalizeProse canonicalizes free text so cosmetic edits do not change a
// fingerprint: HTML comments are removed, the text is put in Unicode NFC and
// whitespace runs collapse to a single space.
func NormalizeProse(s string) string {
	s = stripHTMLComments(s)
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// stripHTMLComments drops comment tokens and keeps the raw bytes of everything else.
func stripHTMLComments(s string) string {
	if !strings.Contains(s, "<!--") {
		return s
	}
	var out bytes.Buffer
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.CommentToken {
			out.WriteByte(' ')
			continue
		}
		out.Write(z.Raw())
		if tt == html.ErrorToken {
			return out.String()
		}
	}
}
