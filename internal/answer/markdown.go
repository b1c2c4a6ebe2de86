// ABOUTME: Plain-text rendering of markdown answer bodies
// ABOUTME: Used for attachment fallbacks on clients without markup support

package answer

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// PlainText strips markdown from s, keeping only the visible text. Block
// boundaries become newlines. Input that fails to parse is returned
// unchanged; a degraded fallback beats no fallback.
func PlainText(s string) string {
	source := []byte(s)
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.Paragraph, *ast.Heading:
				if b.Len() > 0 {
					b.WriteString("\n")
				}
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.AutoLink:
			b.Write(t.URL(source))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return s
	}
	return strings.TrimRight(b.String(), "\n")
}
