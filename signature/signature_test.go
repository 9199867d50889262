package signature

import (
	"bytes"
	"image/png"
	"testing"
)

func TestNewPadIsBlank(t *testing.T) {
	pad, err := NewPad(300, 150)
	if err != nil {
		t.Fatalf("NewPad: %v", err)
	}
	if !pad.IsBlank() {
		t.Fatal("fresh pad must be blank")
	}
}

func TestNewPadInvalidSize(t *testing.T) {
	if _, err := NewPad(0, 100); err == nil {
		t.Fatal("expected error")
	}
}

func TestStrokeLifecycle(t *testing.T) {
	pad, err := NewPad(200, 100)
	if err != nil {
		t.Fatalf("NewPad: %v", err)
	}

	// Moves without a begin are ignored.
	pad.ExtendStroke(Point{X: 50, Y: 50})
	if !pad.IsBlank() {
		t.Fatal("orphan move must not draw")
	}

	pad.BeginStroke(Point{X: 20, Y: 30})
	pad.ExtendStroke(Point{X: 120, Y: 60})
	if pad.IsBlank() {
		t.Fatal("active stroke must already show")
	}
	pad.EndStroke()
	if pad.IsBlank() {
		t.Fatal("finished stroke lost")
	}
}

func TestClearKeepsSize(t *testing.T) {
	pad, err := NewPad(200, 100)
	if err != nil {
		t.Fatalf("NewPad: %v", err)
	}
	pad.BeginStroke(Point{X: 10, Y: 10})
	pad.ExtendStroke(Point{X: 90, Y: 40})
	pad.EndStroke()
	pad.Clear()
	if !pad.IsBlank() {
		t.Fatal("pad not blank after clear")
	}
	w, h := pad.Size()
	if w != 200 || h != 100 {
		t.Fatalf("size changed: %dx%d", w, h)
	}
}

func TestToImageTransparentPNG(t *testing.T) {
	pad, err := NewPad(100, 50)
	if err != nil {
		t.Fatalf("NewPad: %v", err)
	}
	pad.BeginStroke(Point{X: 10, Y: 25})
	pad.ExtendStroke(Point{X: 90, Y: 25})
	pad.EndStroke()

	data, err := pad.ToImage()
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	// Background transparent, stroke opaque.
	_, _, _, bgA := img.At(5, 5).RGBA()
	if bgA != 0 {
		t.Fatalf("background alpha %d, want 0", bgA)
	}
	_, _, _, inkA := img.At(50, 25).RGBA()
	if inkA == 0 {
		t.Fatal("stroke pixel transparent")
	}
}

func TestSingleTapLeavesDot(t *testing.T) {
	pad, err := NewPad(50, 50)
	if err != nil {
		t.Fatalf("NewPad: %v", err)
	}
	pad.BeginStroke(Point{X: 25, Y: 25})
	pad.EndStroke()
	if pad.IsBlank() {
		t.Fatal("single tap must leave a mark")
	}
}

func TestOffSurfacePointsClipped(t *testing.T) {
	pad, err := NewPad(50, 50)
	if err != nil {
		t.Fatalf("NewPad: %v", err)
	}
	pad.BeginStroke(Point{X: -20, Y: -20})
	pad.ExtendStroke(Point{X: -5, Y: -5})
	pad.EndStroke()
	if _, err := pad.ToImage(); err != nil {
		t.Fatalf("ToImage: %v", err)
	}
}
