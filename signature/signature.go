// Package signature implements the freehand signature pad: stroke
// capture from an input-agnostic point stream, blank detection by
// snapshot comparison, and transparent PNG export.
package signature

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
)

// Point is a surface coordinate. Pointer adapters translate mouse or
// touch positions into surface-local points before feeding the pad.
type Point struct {
	X, Y float64
}

// penWidth is the stroke radius in pixels.
const penWidth = 1.2

// Pad is the drawing surface. The size is fixed at construction, as
// the surface is sized once when mounted.
type Pad struct {
	width, height int
	strokes       [][]Point
	current       []Point
	active        bool

	// blank is the encoded empty surface captured at construction;
	// emptiness is decided by comparing against it.
	blank []byte
}

// NewPad creates a surface of the given pixel size.
func NewPad(width, height int) (*Pad, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("signature: surface %dx%d must be positive", width, height)
	}
	p := &Pad{width: width, height: height}
	snap, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	p.blank = snap
	return p, nil
}

// Size returns the surface dimensions.
func (p *Pad) Size() (int, int) {
	return p.width, p.height
}

// BeginStroke starts a stroke at pt.
func (p *Pad) BeginStroke(pt Point) {
	p.active = true
	p.current = []Point{pt}
}

// ExtendStroke adds a point to the active stroke. Points arriving
// without a begin are dropped.
func (p *Pad) ExtendStroke(pt Point) {
	if !p.active {
		return
	}
	p.current = append(p.current, pt)
}

// EndStroke finishes the active stroke.
func (p *Pad) EndStroke() {
	if !p.active {
		return
	}
	p.strokes = append(p.strokes, p.current)
	p.current = nil
	p.active = false
}

// Clear erases all strokes. The surface size is kept.
func (p *Pad) Clear() {
	p.strokes = nil
	p.current = nil
	p.active = false
}

// IsBlank reports whether the surface still matches its empty
// snapshot.
func (p *Pad) IsBlank() bool {
	snap, err := p.snapshot()
	if err != nil {
		return false
	}
	return bytes.Equal(snap, p.blank)
}

// ToImage exports the strokes as a transparent PNG.
func (p *Pad) ToImage() ([]byte, error) {
	return p.snapshot()
}

// snapshot renders and encodes the current surface.
func (p *Pad) snapshot() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	ink := color.NRGBA{A: 255}
	for _, stroke := range p.strokes {
		drawStroke(img, stroke, ink)
	}
	if p.active {
		drawStroke(img, p.current, ink)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawStroke(img *image.NRGBA, stroke []Point, ink color.NRGBA) {
	if len(stroke) == 1 {
		stampDot(img, stroke[0], ink)
		return
	}
	for i := 1; i < len(stroke); i++ {
		drawSegment(img, stroke[i-1], stroke[i], ink)
	}
}

// drawSegment stamps dots along the line so fast pointer moves still
// leave a continuous trail.
func drawSegment(img *image.NRGBA, a, b Point, ink color.NRGBA) {
	dx, dy := b.X-a.X, b.Y-a.Y
	dist := math.Hypot(dx, dy)
	steps := int(dist) + 1
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		stampDot(img, Point{X: a.X + dx*t, Y: a.Y + dy*t}, ink)
	}
}

func stampDot(img *image.NRGBA, center Point, ink color.NRGBA) {
	r := int(math.Ceil(penWidth))
	cx, cy := int(center.X), int(center.Y)
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if !image.Pt(x, y).In(img.Bounds()) {
				continue
			}
			ddx, ddy := float64(x)-center.X, float64(y)-center.Y
			if ddx*ddx+ddy*ddy <= penWidth*penWidth {
				img.SetNRGBA(x, y, ink)
			}
		}
	}
}
