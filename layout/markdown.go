package layout

import (
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/wudi/doctool/document"
)

// RenderMarkdown lays out a markdown source as a paginated document.
func (e *Engine) RenderMarkdown(src []byte) (*document.Document, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	e.start()
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			e.writeBlock(nodeText(node, src), e.headingSize(node.Level), 0)
			e.blockGap()
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			// List item paragraphs are handled by the item itself.
			if _, inList := node.Parent().(*ast.ListItem); inList {
				return ast.WalkContinue, nil
			}
			e.writeBlock(nodeText(node, src), 0, 0)
			e.blockGap()
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			e.writeBlock("• "+nodeText(node, src), 0, e.FontSize)
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			e.writeRawLines(node, src)
			e.blockGap()
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			e.writeRawLines(node, src)
			e.blockGap()
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			e.blockGap()
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("layout: markdown walk: %w", err)
	}
	if e.doc.PageCount() == 0 {
		e.newPage()
	}
	return e.doc, nil
}

// writeRawLines emits code lines without wrapping.
func (e *Engine) writeRawLines(n interface{ Lines() *text.Segments }, src []byte) {
	lines := n.Lines()
	size := e.FontSize * 0.9
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := trimEOL(string(seg.Value(src)))
		e.advance(size * e.LineHeight)
		e.page.DrawText(line, document.TextOptions{
			X:        e.Margin + e.FontSize,
			Y:        e.cursorY,
			FontSize: size,
			Font:     "Courier",
		})
	}
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// nodeText collects the plain text under a node.
func nodeText(n ast.Node, src []byte) string {
	var out []byte
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			out = append(out, t.Segment.Value(src)...)
			if t.SoftLineBreak() || t.HardLineBreak() {
				out = append(out, ' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return string(out)
}
