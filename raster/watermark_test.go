package raster

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"testing"

	"github.com/wudi/doctool"
	"github.com/wudi/doctool/fonts"
)

func TestWatermarkChangesPixels(t *testing.T) {
	img := loadPNG(t, 300, 100)
	out, err := img.Watermark("DRAFT", WatermarkOptions{
		Anchor:   AnchorCenter,
		FontSize: 36,
		Opacity:  1,
	})
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	changed := false
	for y := 20; y < 80 && !changed; y++ {
		for x := 60; x < 240 && !changed; x++ {
			r, g, b, _ := decoded.At(x, y).RGBA()
			if r>>8 != 20 || g>>8 != 120 || b>>8 != 220 {
				changed = true
			}
		}
	}
	if !changed {
		t.Fatal("no watermark pixels drawn")
	}
}

func TestWatermarkEmptyText(t *testing.T) {
	img := loadPNG(t, 50, 50)
	_, err := img.Watermark("", WatermarkOptions{})
	var mpe *doctool.MissingParameterError
	if !errors.As(err, &mpe) {
		t.Fatalf("got %v, want MissingParameterError", err)
	}
}

func TestWatermarkPreservesType(t *testing.T) {
	img := loadPNG(t, 120, 60)
	out, err := img.Watermark("x", WatermarkOptions{Anchor: AnchorBottomLeft})
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if _, _, format := decodeDims(t, out); format != "png" {
		t.Fatalf("got %q, want png", format)
	}
}

func TestAnchorPositions(t *testing.T) {
	const (
		w, h = 400, 200
		size = 24.0
		text = "mark"
	)
	width, err := fonts.Measure(text, size)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	x, _, err := anchorPosition(AnchorTopLeft, w, h, text, size)
	if err != nil || x != anchorMargin {
		t.Fatalf("topLeft x: %v err=%v", x, err)
	}

	// Right anchors end the run 20px from the edge.
	x, _, err = anchorPosition(AnchorTopRight, w, h, text, size)
	if err != nil {
		t.Fatalf("topRight: %v", err)
	}
	if end := x + width; end != w-anchorMargin {
		t.Fatalf("topRight run ends at %v, want %v", end, w-anchorMargin)
	}

	x, baseline, err := anchorPosition(AnchorBottomRight, w, h, text, size)
	if err != nil {
		t.Fatalf("bottomRight: %v", err)
	}
	if end := x + width; end != w-anchorMargin {
		t.Fatalf("bottomRight run ends at %v, want %v", end, w-anchorMargin)
	}
	if baseline != h-anchorMargin {
		t.Fatalf("bottomRight baseline: %v", baseline)
	}

	x, _, err = anchorPosition(AnchorCenter, w, h, text, size)
	if err != nil {
		t.Fatalf("center: %v", err)
	}
	if center := x + width/2; center < w/2-1 || center > w/2+1 {
		t.Fatalf("center midpoint: %v", center)
	}

	if _, _, err := anchorPosition("nowhere", w, h, text, size); err == nil {
		t.Fatal("unknown anchor must error")
	}
}

func TestWatermarkDefaultColorWhite(t *testing.T) {
	img := loadPNG(t, 200, 80)
	out, err := img.Watermark("W", WatermarkOptions{Anchor: AnchorTopLeft, Opacity: 1})
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	whiteish := false
	for y := 15; y < 50 && !whiteish; y++ {
		for x := 15; x < 60 && !whiteish; x++ {
			c := color.NRGBAModel.Convert(decoded.At(x, y)).(color.NRGBA)
			if c.R > 200 && c.G > 200 && c.B > 200 {
				whiteish = true
			}
		}
	}
	if !whiteish {
		t.Fatal("default white watermark not visible")
	}
}
