package document

import (
	"bytes"
	"fmt"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/wudi/doctool"
	"github.com/wudi/doctool/contentstream"
	"github.com/wudi/doctool/ir/raw"
)

// SetRotation sets the page's display rotation. Only multiples of 90
// are representable; the value is normalized into [0, 360).
func (p *Page) SetRotation(degrees int) error {
	if degrees%90 != 0 {
		return &doctool.InvalidParameterError{
			Name:   "rotation",
			Reason: fmt.Sprintf("%d is not a multiple of 90", degrees),
		}
	}
	deg := degrees % 360
	if deg < 0 {
		deg += 360
	}
	p.Rotate = deg
	return nil
}

// RotateBy adds a quarter-turn increment to the current rotation.
func (p *Page) RotateBy(degrees int) error {
	return p.SetRotation(p.Rotate + degrees)
}

// EmbedImage decodes a JPEG or PNG file and returns an Image ready for
// drawing. JPEG data is kept as-is; PNG is expanded to raw samples
// with an optional soft mask for transparency.
func EmbedImage(data []byte) (*Image, error) {
	switch {
	case len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8:
		return embedJPEG(data)
	case len(data) > 8 && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return embedPNG(data)
	default:
		return nil, &doctool.DecodeError{Format: "image", Err: fmt.Errorf("unrecognized image header")}
	}
}

func embedJPEG(data []byte) (*Image, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &doctool.DecodeError{Format: "jpeg", Err: err}
	}
	cs := "DeviceRGB"
	if cfg.ColorModel == color.GrayModel {
		cs = "DeviceGray"
	}
	return &Image{
		Width:            cfg.Width,
		Height:           cfg.Height,
		ColorSpace:       cs,
		BitsPerComponent: 8,
		Filter:           "DCTDecode",
		Data:             data,
	}, nil
}

func embedPNG(data []byte) (*Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &doctool.DecodeError{Format: "png", Err: err}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				rgb = append(rgb, 0, 0, 0)
			} else {
				// Un-premultiply to straight RGB.
				rgb = append(rgb,
					byte((r*0xFFFF/a)>>8),
					byte((g*0xFFFF/a)>>8),
					byte((bl*0xFFFF/a)>>8))
			}
			alpha = append(alpha, byte(a>>8))
			if a>>8 != 0xFF {
				opaque = false
			}
		}
	}
	out := &Image{
		Width:            w,
		Height:           h,
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
		Data:             rgb,
	}
	if !opaque {
		out.SMask = &Image{
			Width:            w,
			Height:           h,
			ColorSpace:       "DeviceGray",
			BitsPerComponent: 8,
			Data:             alpha,
		}
	}
	return out, nil
}

func (p *Page) addImage(img *Image) string {
	name := fmt.Sprintf("Im%d", p.nextImage)
	p.nextImage++
	p.Resources.Images[name] = img
	return name
}

func (p *Page) addExtGState(alpha float64) string {
	name := fmt.Sprintf("GS%d", p.nextGS)
	p.nextGS++
	p.Resources.ExtGStates[name] = alpha
	return name
}

func (p *Page) addFont(baseFont string) string {
	for name, base := range p.Resources.Fonts {
		if base == baseFont {
			return name
		}
	}
	name := fmt.Sprintf("F%d", p.nextFont+1)
	p.nextFont++
	p.Resources.Fonts[name] = baseFont
	return name
}

// DrawImage places img with its lower-left corner at (x, y), scaled to
// w by h user space units.
func (p *Page) DrawImage(img *Image, x, y, w, h float64) {
	name := p.addImage(img)
	p.Ops = append(p.Ops,
		contentstream.Op("q"),
		contentstream.Op("cm",
			raw.Real(w), raw.Int(0), raw.Int(0), raw.Real(h),
			raw.Real(x), raw.Real(y)),
		contentstream.Op("Do", raw.Name{Val: name}),
		contentstream.Op("Q"),
	)
}

// TextOptions controls DrawText placement and appearance.
type TextOptions struct {
	X, Y     float64
	FontSize float64
	Font     string     // base font, default Helvetica
	Color    [3]float64 // RGB in [0,1]
	Opacity  float64    // fill alpha, default 1
	Rotation float64    // counter-clockwise degrees around (X, Y)
}

// DrawText draws a single-line text run at the given baseline origin.
func (p *Page) DrawText(text string, opts TextOptions) {
	if opts.FontSize <= 0 {
		opts.FontSize = 12
	}
	if opts.Font == "" {
		opts.Font = "Helvetica"
	}
	if opts.Opacity <= 0 || opts.Opacity > 1 {
		opts.Opacity = 1
	}
	fontName := p.addFont(opts.Font)

	ops := []contentstream.Operation{contentstream.Op("q")}
	if opts.Opacity < 1 {
		gs := p.addExtGState(opts.Opacity)
		ops = append(ops, contentstream.Op("gs", raw.Name{Val: gs}))
	}
	ops = append(ops,
		contentstream.Op("BT"),
		contentstream.Op("rg",
			raw.Real(opts.Color[0]), raw.Real(opts.Color[1]), raw.Real(opts.Color[2])),
		contentstream.Op("Tf", raw.Name{Val: fontName}, raw.Real(opts.FontSize)),
	)
	if opts.Rotation != 0 {
		rad := opts.Rotation * math.Pi / 180
		c, s := math.Cos(rad), math.Sin(rad)
		ops = append(ops, contentstream.Op("Tm",
			raw.Real(c), raw.Real(s), raw.Real(-s), raw.Real(c),
			raw.Real(opts.X), raw.Real(opts.Y)))
	} else {
		ops = append(ops, contentstream.Op("Td", raw.Real(opts.X), raw.Real(opts.Y)))
	}
	ops = append(ops,
		contentstream.Op("Tj", raw.Str([]byte(text))),
		contentstream.Op("ET"),
		contentstream.Op("Q"),
	)
	p.Ops = append(p.Ops, ops...)
}

// FillRect paints an axis-aligned rectangle with the given RGB color.
func (p *Page) FillRect(r Rectangle, color [3]float64) {
	p.Ops = append(p.Ops,
		contentstream.Op("q"),
		contentstream.Op("rg",
			raw.Real(color[0]), raw.Real(color[1]), raw.Real(color[2])),
		contentstream.Op("re",
			raw.Real(r.LLX), raw.Real(r.LLY), raw.Real(r.Width()), raw.Real(r.Height())),
		contentstream.Op("f"),
		contentstream.Op("Q"),
	)
}
