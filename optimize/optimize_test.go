package optimize

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/wudi/doctool/document"
)

func noisyJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(i*7 + i/3)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestDocumentRecompressesImages(t *testing.T) {
	data := noisyJPEG(t, 400, 300)
	doc := document.CreateEmpty()
	p := doc.AddPage(document.A4)
	img := &document.Image{
		Width: 400, Height: 300, ColorSpace: "DeviceRGB",
		BitsPerComponent: 8, Filter: "DCTDecode", Data: data,
	}
	p.DrawImage(img, 0, 0, 400, 300)

	n := Document(doc, Config{JPEGQuality: 40})
	if n != 1 {
		t.Fatalf("rewrote %d images, want 1", n)
	}
	for _, got := range p.Resources.Images {
		if len(got.Data) >= len(data) {
			t.Fatalf("image grew: %d >= %d", len(got.Data), len(data))
		}
		if got.Filter != "DCTDecode" {
			t.Fatalf("filter: %q", got.Filter)
		}
	}
}

func TestDocumentDownscalesOversized(t *testing.T) {
	doc := document.CreateEmpty()
	p := doc.AddPage(document.A4)
	img := &document.Image{
		Width: 300, Height: 100, ColorSpace: "DeviceRGB",
		BitsPerComponent: 8, Filter: "DCTDecode", Data: noisyJPEG(t, 300, 100),
	}
	p.DrawImage(img, 0, 0, 300, 100)

	Document(doc, Config{JPEGQuality: 50, MaxDimension: 150})
	for _, got := range p.Resources.Images {
		if got.Width != 150 || got.Height != 50 {
			t.Fatalf("dims: %dx%d, want 150x50", got.Width, got.Height)
		}
	}
}

func TestDocumentSharedImageRewrittenOnce(t *testing.T) {
	doc := document.CreateEmpty()
	img := &document.Image{
		Width: 200, Height: 200, ColorSpace: "DeviceRGB",
		BitsPerComponent: 8, Filter: "DCTDecode", Data: noisyJPEG(t, 200, 200),
	}
	doc.AddPage(document.A4).DrawImage(img, 0, 0, 100, 100)
	doc.AddPage(document.A4).DrawImage(img, 0, 0, 100, 100)

	if n := Document(doc, Config{JPEGQuality: 40}); n != 1 {
		t.Fatalf("rewrote %d, want 1 (shared image)", n)
	}
}

func TestDocumentKeepsImagesThatWouldGrow(t *testing.T) {
	doc := document.CreateEmpty()
	p := doc.AddPage(document.A4)
	tiny := &document.Image{
		Width: 2, Height: 2, ColorSpace: "DeviceRGB",
		BitsPerComponent: 8, Data: []byte{0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3},
	}
	p.DrawImage(tiny, 0, 0, 2, 2)

	if n := Document(doc, Config{JPEGQuality: 75}); n != 0 {
		t.Fatalf("rewrote %d, want 0", n)
	}
	for _, got := range p.Resources.Images {
		if got != tiny {
			t.Fatal("tiny image should be untouched")
		}
	}
}
