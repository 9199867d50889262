package session

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/wudi/doctool/document"
	"github.com/wudi/doctool/parser"
	"github.com/wudi/doctool/security"
	"github.com/wudi/doctool/signature"
	"github.com/wudi/doctool/writer"
)

// fakeScheduler captures scheduled callbacks so tests control time.
type fakeScheduler struct {
	fns      []func()
	canceled int
}

func (f *fakeScheduler) schedule(d time.Duration, fn func()) CancelFunc {
	f.fns = append(f.fns, fn)
	return func() { f.canceled++ }
}

// fire runs every pending callback.
func (f *fakeScheduler) fire() {
	fns := f.fns
	f.fns = nil
	for _, fn := range fns {
		fn()
	}
}

type captureSink struct {
	got []Download
}

func (c *captureSink) Deliver(d Download) error {
	c.got = append(c.got, d)
	return nil
}

func newTestSession(t *testing.T) (*Session, *captureSink, *fakeScheduler) {
	t.Helper()
	sink := &captureSink{}
	sched := &fakeScheduler{}
	s := New(Config{Sink: sink, Scheduler: sched.schedule})
	return s, sink, sched
}

func pdfBytes(t *testing.T, pages int) []byte {
	t.Helper()
	doc := document.CreateEmpty()
	for i := 0; i < pages; i++ {
		p := doc.AddPage(document.A4)
		p.DrawText("page", document.TextOptions{X: 72, Y: 720})
	}
	data, err := writer.Serialize(doc)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return data
}

func encryptedPDFBytes(t *testing.T, password string) []byte {
	t.Helper()
	doc := document.CreateEmpty()
	doc.AddPage(document.A4)
	doc.SetEncryption(password, "", security.Permissions{Print: true})
	data, err := writer.Serialize(doc)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return data
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestLifecycleProtect(t *testing.T) {
	s, sink, sched := newTestSession(t)
	if s.Phase() != PhaseIdle {
		t.Fatalf("phase = %v", s.Phase())
	}
	if err := s.SelectTool(ToolProtect); err != nil {
		t.Fatalf("SelectTool: %v", err)
	}
	if s.Phase() != PhaseCollecting {
		t.Fatalf("phase = %v", s.Phase())
	}
	s.AddFiles(NewFile("secret.pdf", pdfBytes(t, 2)))
	s.Options().Password = "hunter2"
	s.Submit(context.Background())

	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	if len(sink.got) != 1 || sink.got[0].Name != "protected.pdf" {
		t.Fatalf("downloads = %+v", sink.got)
	}
	if !strings.Contains(s.Status(), "Password added") {
		t.Fatalf("status = %q", s.Status())
	}

	// The output must demand the password.
	if _, err := parser.Load(sink.got[0].Data, ""); err == nil {
		t.Fatal("protected output loaded without password")
	}
	doc, err := parser.Load(sink.got[0].Data, "hunter2")
	if err != nil {
		t.Fatalf("load with password: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("got %d pages", doc.PageCount())
	}

	// After the reset delay the session returns to Idle.
	sched.fire()
	if s.Phase() != PhaseIdle || s.ActiveTool() != "" || s.Options() != nil {
		t.Fatalf("not reset: phase=%v tool=%q", s.Phase(), s.ActiveTool())
	}
}

func TestSubmitValidation(t *testing.T) {
	cases := []struct {
		name  string
		tool  Tool
		setup func(s *Session)
		want  string
	}{
		{"no file", ToolMerge, func(s *Session) {}, "Select a file first."},
		{"missing range", ToolSplit, func(s *Session) {
			s.AddFiles(NewFile("a.pdf", pdfBytes(t, 3)))
		}, "Enter the pages to extract"},
		{"missing password", ToolProtect, func(s *Session) {
			s.AddFiles(NewFile("a.pdf", pdfBytes(t, 1)))
		}, "Enter a password."},
		{"missing watermark", ToolWatermarkPDF, func(s *Session) {
			s.AddFiles(NewFile("a.pdf", pdfBytes(t, 1)))
		}, "Enter the watermark text."},
		{"blank signature", ToolSign, func(s *Session) {
			s.AddFiles(NewFile("a.pdf", pdfBytes(t, 1)))
		}, "Draw a signature first."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, sink, _ := newTestSession(t)
			if err := s.SelectTool(tc.tool); err != nil {
				t.Fatalf("SelectTool: %v", err)
			}
			tc.setup(s)
			s.Submit(context.Background())
			if s.Phase() != PhaseFailed {
				t.Fatalf("phase = %v", s.Phase())
			}
			if !strings.Contains(s.Status(), tc.want) {
				t.Fatalf("status = %q, want %q", s.Status(), tc.want)
			}
			if len(sink.got) != 0 {
				t.Fatalf("unexpected downloads: %+v", sink.got)
			}
		})
	}
}

func TestBackDiscardsPendingReset(t *testing.T) {
	s, _, sched := newTestSession(t)
	s.SelectTool(ToolMerge)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 1)))
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}

	s.Back()
	if s.Phase() != PhaseIdle {
		t.Fatalf("phase = %v", s.Phase())
	}
	if sched.canceled == 0 {
		t.Fatal("pending reset not canceled")
	}

	// A stale reset firing later must not clobber the next tool.
	s.SelectTool(ToolSplit)
	sched.fire()
	if s.Phase() != PhaseCollecting || s.ActiveTool() != ToolSplit {
		t.Fatalf("stale reset applied: phase=%v tool=%q", s.Phase(), s.ActiveTool())
	}
}

func TestMergeConcatenatesInOrder(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolMerge)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 2)), NewFile("b.pdf", pdfBytes(t, 3)))
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	if sink.got[0].Name != "merged.pdf" {
		t.Fatalf("name = %q", sink.got[0].Name)
	}
	doc, err := parser.Load(sink.got[0].Data, "")
	if err != nil {
		t.Fatalf("load merged: %v", err)
	}
	if doc.PageCount() != 5 {
		t.Fatalf("got %d pages", doc.PageCount())
	}
}

func TestMergeFailsFastOnBadInput(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolMerge)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 1)), NewFile("bad.pdf", []byte("not a pdf")))
	s.Submit(context.Background())
	if s.Phase() != PhaseFailed {
		t.Fatalf("phase = %v", s.Phase())
	}
	if len(sink.got) != 0 {
		t.Fatalf("partial output delivered: %+v", sink.got)
	}
	if !strings.Contains(s.Status(), "damaged or not a PDF") {
		t.Fatalf("status = %q", s.Status())
	}
}

func TestSplitExtractsRange(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolSplit)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 5)))
	s.Options().Range = "1-2,4"
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	doc, err := parser.Load(sink.got[0].Data, "")
	if err != nil {
		t.Fatalf("load split: %v", err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("got %d pages", doc.PageCount())
	}
}

func TestOrganizeCommitsWorkingOrder(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolOrganize)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 3)))
	org, err := s.Organizer()
	if err != nil {
		t.Fatalf("Organizer: %v", err)
	}
	if err := org.Reorder(0, 2); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	org.Remove(org.Items()[0].ID)
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	doc, err := parser.Load(sink.got[0].Data, "")
	if err != nil {
		t.Fatalf("load organized: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("got %d pages", doc.PageCount())
	}
}

func TestRotatePDFAppliesToAllPages(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolRotatePDF)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 2)))
	s.Options().Rotation = 90
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	doc, err := parser.Load(sink.got[0].Data, "")
	if err != nil {
		t.Fatalf("load rotated: %v", err)
	}
	for i, p := range doc.Pages {
		if p.Rotate != 90 {
			t.Fatalf("page %d rotate = %d", i, p.Rotate)
		}
	}
}

func TestPDFToJPGDeliversPerPage(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolPDFToJPG)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 2)))
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	if len(sink.got) != 2 {
		t.Fatalf("got %d downloads", len(sink.got))
	}
	for i, d := range sink.got {
		if want := []string{"page_1.jpg", "page_2.jpg"}[i]; d.Name != want {
			t.Fatalf("name = %q, want %q", d.Name, want)
		}
		if !bytes.HasPrefix(d.Data, []byte{0xFF, 0xD8}) {
			t.Fatalf("download %d is not a JPEG", i)
		}
	}
}

func TestJPGToPDFMakesOnePagePerImage(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolJPGToPDF)
	s.AddFiles(NewFile("a.jpg", jpegBytes(t, 40, 30)), NewFile("b.jpg", jpegBytes(t, 20, 20)))
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	doc, err := parser.Load(sink.got[0].Data, "")
	if err != nil {
		t.Fatalf("load converted: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("got %d pages", doc.PageCount())
	}
	if w := doc.Pages[0].MediaBox.Width(); w != 40 {
		t.Fatalf("page width = %v", w)
	}
}

func TestUnlockFlow(t *testing.T) {
	data := encryptedPDFBytes(t, "open sesame")

	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolUnlock)
	s.AddFiles(NewFile("locked.pdf", data))
	s.Options().Password = "wrong"
	s.Submit(context.Background())
	if s.Phase() != PhaseFailed || !strings.Contains(s.Status(), "Incorrect password") {
		t.Fatalf("phase=%v status=%q", s.Phase(), s.Status())
	}

	s.SelectTool(ToolUnlock)
	s.AddFiles(NewFile("locked.pdf", data))
	s.Options().Password = "open sesame"
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	if sink.got[0].Name != "unlocked.pdf" {
		t.Fatalf("name = %q", sink.got[0].Name)
	}
	if _, err := parser.Load(sink.got[0].Data, ""); err != nil {
		t.Fatalf("unlocked output still locked: %v", err)
	}
}

func TestEncryptedInputOutsideUnlock(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.SelectTool(ToolRotatePDF)
	s.AddFiles(NewFile("locked.pdf", encryptedPDFBytes(t, "pw")))
	s.Options().Rotation = 90
	s.Submit(context.Background())
	if s.Phase() != PhaseFailed {
		t.Fatalf("phase = %v", s.Phase())
	}
	if !strings.Contains(s.Status(), "password-protected") {
		t.Fatalf("status = %q", s.Status())
	}
}

func TestSignStampsLastPage(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolSign)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 2)))
	pad := s.SignaturePad()
	pad.BeginStroke(signature.Point{X: 10, Y: 10})
	pad.ExtendStroke(signature.Point{X: 80, Y: 40})
	pad.EndStroke()
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	doc, err := parser.Load(sink.got[0].Data, "")
	if err != nil {
		t.Fatalf("load signed: %v", err)
	}
	if len(doc.Pages[0].Resources.Images) != 0 {
		t.Fatal("first page gained an image")
	}
	if len(doc.Pages[1].Resources.Images) != 1 {
		t.Fatalf("last page images = %d", len(doc.Pages[1].Resources.Images))
	}
}

func TestSignZeroPageDocumentFails(t *testing.T) {
	// A zero-page PDF is valid output of the split tool; signing it
	// must fail cleanly instead of panicking.
	data, err := writer.Serialize(document.CreateEmpty())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolSign)
	s.AddFiles(NewFile("empty.pdf", data))
	pad := s.SignaturePad()
	pad.BeginStroke(signature.Point{X: 10, Y: 10})
	pad.ExtendStroke(signature.Point{X: 80, Y: 40})
	pad.EndStroke()
	s.Submit(context.Background())
	if s.Phase() != PhaseFailed {
		t.Fatalf("phase = %v", s.Phase())
	}
	if len(sink.got) != 0 {
		t.Fatalf("unexpected downloads: %+v", sink.got)
	}
}

func TestCompressImage(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolCompressImage)
	s.AddFiles(NewFile("photo.jpg", jpegBytes(t, 60, 40)))
	s.Options().Quality = 0.5
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	if sink.got[0].Name != "photo_compressed.jpg" {
		t.Fatalf("name = %q", sink.got[0].Name)
	}
	if !strings.Contains(s.Status(), "Compressed") {
		t.Fatalf("status = %q", s.Status())
	}
	// Sizes must not pick up digit grouping ("1,024.0").
	if strings.Contains(s.Status(), ",") {
		t.Fatalf("status has grouped digits: %q", s.Status())
	}
}

func TestResizeImageLockedAspect(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolResizeImage)
	s.AddFiles(NewFile("photo.jpg", jpegBytes(t, 100, 50)))
	s.Options().Width = 40
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(sink.got[0].Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 20 {
		t.Fatalf("got %dx%d", cfg.Width, cfg.Height)
	}
	if sink.got[0].Name != "photo_resized.jpg" {
		t.Fatalf("name = %q", sink.got[0].Name)
	}
}

func TestCropImageUsesSelection(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolCropImage)
	s.AddFiles(NewFile("photo.jpg", jpegBytes(t, 80, 60)))
	crp, err := s.Cropper()
	if err != nil {
		t.Fatalf("Cropper: %v", err)
	}
	crp.SetRect(image.Rect(0, 0, 30, 20))
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(sink.got[0].Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 30 || cfg.Height != 20 {
		t.Fatalf("got %dx%d", cfg.Width, cfg.Height)
	}
	if sink.got[0].Name != "photo_cropped.jpg" {
		t.Fatalf("name = %q", sink.got[0].Name)
	}
}

func TestAddFilesFiltersAndLimits(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.SelectTool(ToolSplit)
	s.AddFiles(
		NewFile("a.txt", []byte("nope")),
		NewFile("a.pdf", pdfBytes(t, 1)),
		NewFile("b.pdf", pdfBytes(t, 1)),
	)
	files := s.Files()
	if len(files) != 1 || files[0].Name != "a.pdf" {
		t.Fatalf("files = %+v", files)
	}

	s.SelectTool(ToolMerge)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 1)), NewFile("b.pdf", pdfBytes(t, 1)))
	if len(s.Files()) != 2 {
		t.Fatalf("merge files = %d", len(s.Files()))
	}
}

func TestSelectToolResetsPreviousState(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.SelectTool(ToolSplit)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 1)))
	s.Options().Range = "1"

	s.SelectTool(ToolMerge)
	if len(s.Files()) != 0 {
		t.Fatal("files survived tool switch")
	}
	if s.Options().Range != "" {
		t.Fatal("options survived tool switch")
	}
}

func TestWatermarkPDF(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolWatermarkPDF)
	s.AddFiles(NewFile("a.pdf", pdfBytes(t, 2)))
	s.Options().WatermarkText = "CONFIDENTIAL"
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	doc, err := parser.Load(sink.got[0].Data, "")
	if err != nil {
		t.Fatalf("load watermarked: %v", err)
	}
	for i, p := range doc.Pages {
		found := false
		for _, run := range p.TextRuns() {
			if run == "CONFIDENTIAL" {
				found = true
			}
		}
		if !found {
			t.Fatalf("page %d missing watermark text", i)
		}
	}
}

func TestTextToPDF(t *testing.T) {
	s, sink, _ := newTestSession(t)
	s.SelectTool(ToolTextToPDF)
	s.AddFiles(NewFile("notes.md", []byte("# Notes\n\nHello world.\n")))
	s.Submit(context.Background())
	if s.Phase() != PhaseSucceeded {
		t.Fatalf("phase = %v, status %q", s.Phase(), s.Status())
	}
	if sink.got[0].Name != "notes_converted.pdf" {
		t.Fatalf("name = %q", sink.got[0].Name)
	}
	doc, err := parser.Load(sink.got[0].Data, "")
	if err != nil {
		t.Fatalf("load converted: %v", err)
	}
	joined := strings.Join(doc.Pages[0].TextRuns(), "\n")
	if !strings.Contains(joined, "Hello world.") {
		t.Fatalf("text missing:\n%s", joined)
	}
}
