package layout

import (
	"strings"
	"testing"
)

func TestRenderMarkdownBasics(t *testing.T) {
	src := []byte("# Title\n\nA paragraph of body text.\n\n- first item\n- second item\n")
	doc, err := New().RenderMarkdown(src)
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if doc.PageCount() != 1 {
		t.Fatalf("got %d pages", doc.PageCount())
	}
	texts := doc.Pages[0].TextRuns()
	joined := strings.Join(texts, "\n")
	for _, want := range []string{"Title", "A paragraph of body text.", "• first item", "• second item"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in:\n%s", want, joined)
		}
	}
}

func TestRenderMarkdownPaginates(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("A reasonably long paragraph that occupies a line or two of the page.\n\n")
	}
	doc, err := New().RenderMarkdown([]byte(sb.String()))
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if doc.PageCount() < 2 {
		t.Fatalf("got %d pages, want pagination", doc.PageCount())
	}
}

func TestRenderMarkdownEmptyInput(t *testing.T) {
	doc, err := New().RenderMarkdown(nil)
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if doc.PageCount() != 1 {
		t.Fatalf("got %d pages, want one blank page", doc.PageCount())
	}
}

func TestRenderMarkdownCodeBlock(t *testing.T) {
	doc, err := New().RenderMarkdown([]byte("```\nfunc main() {}\n```\n"))
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	joined := strings.Join(doc.Pages[0].TextRuns(), "\n")
	if !strings.Contains(joined, "func main() {}") {
		t.Fatalf("code line missing:\n%s", joined)
	}
}

func TestRenderHTML(t *testing.T) {
	src := []byte(`<html><head><style>p{color:red}</style></head>
<body><h1>Heading</h1><p>Body text here.</p><ul><li>alpha</li><li>beta</li></ul>
<script>ignore()</script></body></html>`)
	doc, err := New().RenderHTML(src)
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	joined := strings.Join(doc.Pages[0].TextRuns(), "\n")
	for _, want := range []string{"Heading", "Body text here.", "• alpha", "• beta"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "ignore()") || strings.Contains(joined, "color:red") {
		t.Fatalf("script/style leaked:\n%s", joined)
	}
}

func TestWrap(t *testing.T) {
	lines := wrap("one two three four five six seven eight nine ten", 12, 100)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %v", lines)
	}
	for _, line := range lines {
		if w := textWidth(line, 12); w > 100+1 {
			t.Fatalf("line %q too wide: %v", line, w)
		}
	}
	if got := wrap("", 12, 100); got != nil {
		t.Fatalf("empty input: %v", got)
	}
}

