package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"
)

// parseMarkdown extracts the plain text of a markdown document by walking
// the goldmark AST, so headings, emphasis and links contribute their text
// without any markup noise.
func parseMarkdown(data []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(gmtext.NewReader(data))

	var text strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				text.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch t := n.(type) {
		case *ast.Text:
			text.Write(t.Segment.Value(data))
			if t.SoftLineBreak() || t.HardLineBreak() {
				text.WriteString("\n")
			}
		case *ast.FencedCodeBlock:
			writeLines(&text, t, data)
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			writeLines(&text, t, data)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text.String()) + "\n", nil
}

func writeLines(text *strings.Builder, n ast.Node, data []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		text.Write(line.Value(data))
	}
}
