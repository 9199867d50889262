// Package layout converts markdown and simple HTML into paginated
// documents for the text-to-PDF tools. Text flows top to bottom with
// word wrapping; a new page starts when the cursor passes the bottom
// margin.
package layout

import (
	"strings"

	"github.com/wudi/doctool/document"
	"github.com/wudi/doctool/fonts"
)

// Engine lays out text blocks onto pages.
type Engine struct {
	PageSize   document.Rectangle
	Margin     float64
	FontSize   float64
	LineHeight float64 // multiple of the font size

	doc     *document.Document
	page    *document.Page
	cursorY float64
}

// New returns an engine with A4 pages and the defaults the converters
// use.
func New() *Engine {
	return &Engine{
		PageSize:   document.A4,
		Margin:     56,
		FontSize:   11,
		LineHeight: 1.5,
	}
}

func (e *Engine) start() {
	e.doc = document.CreateEmpty()
	e.page = nil
	e.cursorY = 0
}

func (e *Engine) newPage() {
	e.page = e.doc.AddPage(e.PageSize)
	e.cursorY = e.PageSize.URY - e.Margin
}

// advance moves the cursor down, breaking the page when needed.
func (e *Engine) advance(dy float64) {
	if e.page == nil {
		e.newPage()
	}
	if e.cursorY-dy < e.Margin {
		e.newPage()
	}
	e.cursorY -= dy
}

// writeBlock wraps text at the content width and emits one draw op per
// line. size 0 means the engine default.
func (e *Engine) writeBlock(text string, size float64, indent float64) {
	if size <= 0 {
		size = e.FontSize
	}
	width := e.PageSize.Width() - 2*e.Margin - indent
	for _, line := range wrap(text, size, width) {
		e.advance(size * e.LineHeight)
		e.page.DrawText(line, document.TextOptions{
			X:        e.Margin + indent,
			Y:        e.cursorY,
			FontSize: size,
		})
	}
}

// blockGap adds vertical space between blocks.
func (e *Engine) blockGap() {
	e.advance(e.FontSize * 0.8)
}

// wrap splits text into lines no wider than width at the given size.
// Measurement failures fall back to a character-count heuristic.
func wrap(text string, size, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		candidate := line + " " + word
		if textWidth(candidate, size) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	return append(lines, line)
}

func textWidth(text string, size float64) float64 {
	if w, err := fonts.Measure(text, size); err == nil {
		return w
	}
	return float64(len(text)) * size * 0.5
}

// headingSize maps a heading level to a font size.
func (e *Engine) headingSize(level int) float64 {
	switch level {
	case 1:
		return e.FontSize * 2
	case 2:
		return e.FontSize * 1.6
	case 3:
		return e.FontSize * 1.3
	default:
		return e.FontSize * 1.1
	}
}
