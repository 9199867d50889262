package layout

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/wudi/doctool/document"
)

// RenderHTML lays out the text-level content of an HTML source. Block
// elements become paragraphs; headings keep their relative sizes.
// Styling, tables and scripts are ignored.
func (e *Engine) RenderHTML(src []byte) (*document.Document, error) {
	root, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("layout: html parse: %w", err)
	}
	e.start()
	e.walkHTML(root)
	if e.doc.PageCount() == 0 {
		e.newPage()
	}
	return e.doc, nil
}

func (e *Engine) walkHTML(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "head", "noscript":
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			e.writeBlock(htmlText(n), e.headingSize(level), 0)
			e.blockGap()
			return
		case "p", "div", "section", "article", "blockquote":
			if text := htmlText(n); text != "" && !hasBlockChild(n) {
				e.writeBlock(text, 0, 0)
				e.blockGap()
				return
			}
		case "li":
			e.writeBlock("• "+htmlText(n), 0, e.FontSize)
			return
		case "br":
			e.blockGap()
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walkHTML(c)
	}
}

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"blockquote": true, "ul": true, "ol": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockTags[c.Data] {
			return true
		}
	}
	return false
}

// htmlText collects and normalizes the text under a node.
func htmlText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		}
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style":
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
