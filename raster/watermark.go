package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/doctool"
	"github.com/wudi/doctool/fonts"
)

// Anchor names a watermark corner or the center.
type Anchor string

const (
	AnchorTopLeft     Anchor = "topLeft"
	AnchorTopRight    Anchor = "topRight"
	AnchorBottomLeft  Anchor = "bottomLeft"
	AnchorBottomRight Anchor = "bottomRight"
	AnchorCenter      Anchor = "center"
)

// anchorMargin is the distance in pixels between an edge anchor and
// the image border.
const anchorMargin = 20

// WatermarkOptions controls text stamping.
type WatermarkOptions struct {
	Anchor   Anchor
	FontSize float64 // pixels, default 24
	Color    color.NRGBA
	Opacity  float64 // 0..1, default 0.5
}

// Watermark stamps text on the image and re-encodes it in the source
// MIME type.
func (i *Image) Watermark(text string, opts WatermarkOptions) ([]byte, error) {
	if text == "" {
		return nil, &doctool.MissingParameterError{Name: "watermark text"}
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 24
	}
	if opts.Opacity <= 0 || opts.Opacity > 1 {
		opts.Opacity = 0.5
	}
	if opts.Color == (color.NRGBA{}) {
		opts.Color = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	opts.Color.A = byte(opts.Opacity*255 + 0.5)

	x, baseline, err := anchorPosition(opts.Anchor, i.Width(), i.Height(), text, opts.FontSize)
	if err != nil {
		return nil, err
	}
	face, err := fonts.Face(opts.FontSize)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(i.src.Bounds())
	draw.Draw(dst, dst.Bounds(), i.src, i.src.Bounds().Min, draw.Src)
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(opts.Color),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * 64),
			Y: fixed.Int26_6(baseline * 64),
		},
	}
	d.DrawString(text)
	return i.encode(dst)
}

// anchorPosition computes the text origin for an anchor. Right-edge
// anchors subtract the measured text width so the run ends 20px from
// the border.
func anchorPosition(anchor Anchor, w, h int, text string, size float64) (x, baseline float64, err error) {
	width, err := fonts.Measure(text, size)
	if err != nil {
		return 0, 0, err
	}
	ascent, err := fonts.Ascent(size)
	if err != nil {
		return 0, 0, err
	}
	switch anchor {
	case AnchorTopLeft:
		return anchorMargin, anchorMargin + ascent, nil
	case AnchorTopRight:
		return float64(w) - width - anchorMargin, anchorMargin + ascent, nil
	case AnchorBottomLeft:
		return anchorMargin, float64(h) - anchorMargin, nil
	case AnchorBottomRight:
		return float64(w) - width - anchorMargin, float64(h) - anchorMargin, nil
	case AnchorCenter, "":
		return (float64(w) - width) / 2, (float64(h) + ascent) / 2, nil
	default:
		return 0, 0, &doctool.InvalidParameterError{
			Name:   "anchor",
			Reason: fmt.Sprintf("unknown anchor %q", anchor),
		}
	}
}
