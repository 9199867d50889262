// Package cropper implements the interactive crop surface: the full
// image with a semi-opaque mask outside the selection, a drag gesture
// that translates the rectangle, and an apply step that clamps and
// cuts.
package cropper

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/wudi/doctool/raster"
)

// maskAlpha is the opacity of the veil outside the selection.
const maskAlpha = 128

// Cropper holds the selection and transient pointer state. The stored
// rectangle is free to leave the image; clamping happens only in
// Apply.
type Cropper struct {
	img  *raster.Image
	rect image.Rectangle

	dragging bool
	last     image.Point
}

// New starts with a centered selection covering half the image.
func New(img *raster.Image) *Cropper {
	w, h := img.Width(), img.Height()
	return &Cropper{
		img:  img,
		rect: image.Rect(w/4, h/4, w/4+w/2, h/4+h/2),
	}
}

// Image returns the source image the selection applies to.
func (c *Cropper) Image() *raster.Image {
	return c.img
}

// Rect returns the current selection, unclamped.
func (c *Cropper) Rect() image.Rectangle {
	return c.rect
}

// SetRect replaces the selection without clamping.
func (c *Cropper) SetRect(r image.Rectangle) {
	c.rect = r.Canon()
}

// PointerDown begins a drag when the point lies inside the selection
// and reports whether it did.
func (c *Cropper) PointerDown(x, y int) bool {
	if !image.Pt(x, y).In(c.rect) {
		return false
	}
	c.dragging = true
	c.last = image.Pt(x, y)
	return true
}

// PointerMove translates the selection by the pointer delta. The size
// never changes and no bounds are enforced mid-drag.
func (c *Cropper) PointerMove(x, y int) {
	if !c.dragging {
		return
	}
	d := image.Pt(x-c.last.X, y-c.last.Y)
	c.rect = c.rect.Add(d)
	c.last = image.Pt(x, y)
}

// PointerUp ends the drag.
func (c *Cropper) PointerUp() {
	c.dragging = false
}

// Dragging reports whether a drag is in progress.
func (c *Cropper) Dragging() bool {
	return c.dragging
}

// command is one step of the overlay pipeline.
type command func(dst *image.RGBA)

// Render draws the overlay: the source pixels, a mask over everything
// outside the selection, and a border around it. The steps run in
// order so later commands paint over earlier ones.
func (c *Cropper) Render(src image.Image) *image.RGBA {
	bounds := image.Rect(0, 0, c.img.Width(), c.img.Height())
	dst := image.NewRGBA(bounds)
	sel := c.rect.Intersect(bounds)

	pipeline := []command{
		func(d *image.RGBA) {
			draw.Draw(d, bounds, src, src.Bounds().Min, draw.Src)
		},
		func(d *image.RGBA) {
			veil := image.NewUniform(color.NRGBA{A: maskAlpha})
			for _, r := range outsideRects(bounds, sel) {
				draw.Draw(d, r, veil, image.Point{}, draw.Over)
			}
		},
		func(d *image.RGBA) {
			drawBorder(d, sel, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		},
	}
	for _, step := range pipeline {
		step(dst)
	}
	return dst
}

// outsideRects splits the area of bounds outside sel into bands.
func outsideRects(bounds, sel image.Rectangle) []image.Rectangle {
	if sel.Empty() {
		return []image.Rectangle{bounds}
	}
	return []image.Rectangle{
		image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, sel.Min.Y), // above
		image.Rect(bounds.Min.X, sel.Max.Y, bounds.Max.X, bounds.Max.Y), // below
		image.Rect(bounds.Min.X, sel.Min.Y, sel.Min.X, sel.Max.Y),       // left
		image.Rect(sel.Max.X, sel.Min.Y, bounds.Max.X, sel.Max.Y),       // right
	}
}

func drawBorder(dst *image.RGBA, r image.Rectangle, c color.NRGBA) {
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.SetRGBA(x, r.Min.Y, color.RGBA{c.R, c.G, c.B, c.A})
		dst.SetRGBA(x, r.Max.Y-1, color.RGBA{c.R, c.G, c.B, c.A})
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.SetRGBA(r.Min.X, y, color.RGBA{c.R, c.G, c.B, c.A})
		dst.SetRGBA(r.Max.X-1, y, color.RGBA{c.R, c.G, c.B, c.A})
	}
}

// Apply clamps the selection to the image and cuts it. This is the
// only point where clamping happens.
func (c *Cropper) Apply() ([]byte, error) {
	return c.img.Crop(c.rect)
}
