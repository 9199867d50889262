// Package render rasterizes document pages. It covers the subset of
// the imaging model the toolkit itself emits plus common page content:
// rectangle fills, image XObjects and simple horizontal text runs.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/doctool/contentstream"
	"github.com/wudi/doctool/document"
	"github.com/wudi/doctool/fonts"
	"github.com/wudi/doctool/ir/raw"
)

// Config controls rasterization.
type Config struct {
	// Scale maps user space units to pixels. 1.0 renders a point per
	// pixel.
	Scale float64
}

// ThumbnailScale is the fixed scale used for organizer previews.
const ThumbnailScale = 0.5

// ExportScale is the fixed scale used for page-to-JPEG export.
const ExportScale = 2.0

// matrix is a PDF affine transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

type state struct {
	ctm   matrix
	fill  [3]float64
	alpha float64
}

type renderer struct {
	page   *document.Page
	img    *image.RGBA
	scale  float64
	stack  []state
	cur    state
	rects  []document.Rectangle // current path, rect subpaths only
	// text state
	inText   bool
	textMat  matrix
	lineMat  matrix
	fontSize float64
}

// Page rasterizes p onto a white background. The page's display
// rotation is applied to the output.
func Page(p *document.Page, cfg Config) (*image.RGBA, error) {
	if cfg.Scale <= 0 {
		return nil, fmt.Errorf("render: scale %v must be positive", cfg.Scale)
	}
	w := int(p.MediaBox.Width()*cfg.Scale + 0.5)
	h := int(p.MediaBox.Height()*cfg.Scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	r := &renderer{
		page:  p,
		img:   img,
		scale: cfg.Scale,
		cur:   state{ctm: identity, alpha: 1},
	}
	for _, op := range p.Ops {
		r.step(op)
	}
	return rotated(img, p.Rotate), nil
}

// PageJPEG renders p and encodes it as JPEG.
func PageJPEG(p *document.Page, scale float64, quality int) ([]byte, error) {
	img, err := Page(p, Config{Scale: scale})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Thumbnail renders the fixed-scale preview used by the organizer.
func Thumbnail(p *document.Page) (*image.RGBA, error) {
	return Page(p, Config{Scale: ThumbnailScale})
}

func (r *renderer) step(op contentstream.Operation) {
	switch op.Operator {
	case "q":
		r.stack = append(r.stack, r.cur)
	case "Q":
		if n := len(r.stack); n > 0 {
			r.cur = r.stack[n-1]
			r.stack = r.stack[:n-1]
		}
	case "cm":
		if m, ok := matrixOperands(op.Operands); ok {
			r.cur.ctm = m.mul(r.cur.ctm)
		}
	case "rg":
		if v, ok := numbers(op.Operands, 3); ok {
			r.cur.fill = [3]float64{v[0], v[1], v[2]}
		}
	case "g":
		if v, ok := numbers(op.Operands, 1); ok {
			r.cur.fill = [3]float64{v[0], v[0], v[0]}
		}
	case "gs":
		if name, ok := nameOperand(op.Operands); ok {
			if alpha, ok := r.page.Resources.ExtGStates[name]; ok {
				r.cur.alpha = alpha
			}
		}
	case "re":
		if v, ok := numbers(op.Operands, 4); ok {
			r.rects = append(r.rects, document.Rectangle{
				LLX: v[0], LLY: v[1], URX: v[0] + v[2], URY: v[1] + v[3],
			})
		}
	case "f", "F", "f*", "b", "B", "b*", "B*":
		for _, rect := range r.rects {
			r.fillRect(rect)
		}
		r.rects = nil
	case "n", "S", "s":
		r.rects = nil
	case "Do":
		if name, ok := nameOperand(op.Operands); ok {
			if img, ok := r.page.Resources.Images[name]; ok {
				r.drawImage(img)
			}
		}
	case "BT":
		r.inText = true
		r.textMat = identity
		r.lineMat = identity
	case "ET":
		r.inText = false
	case "Tf":
		if len(op.Operands) == 2 {
			if n, ok := op.Operands[1].(raw.Number); ok {
				r.fontSize = n.Value()
			}
		}
	case "Td":
		if v, ok := numbers(op.Operands, 2); ok {
			r.lineMat = matrix{1, 0, 0, 1, v[0], v[1]}.mul(r.lineMat)
			r.textMat = r.lineMat
		}
	case "Tm":
		if m, ok := matrixOperands(op.Operands); ok {
			r.lineMat = m
			r.textMat = m
		}
	case "Tj":
		if len(op.Operands) == 1 {
			if s, ok := op.Operands[0].(raw.String); ok {
				r.drawText(string(s.Bytes))
			}
		}
	case "TJ":
		if len(op.Operands) == 1 {
			if arr, ok := op.Operands[0].(*raw.Array); ok {
				var sb bytes.Buffer
				for _, item := range arr.Items {
					if s, ok := item.(raw.String); ok {
						sb.Write(s.Bytes)
					}
				}
				r.drawText(sb.String())
			}
		}
	}
}

// numbers unwraps exactly n numeric operands.
func numbers(ops []raw.Object, n int) ([]float64, bool) {
	if len(ops) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, op := range ops {
		num, ok := op.(raw.Number)
		if !ok {
			return nil, false
		}
		out[i] = num.Value()
	}
	return out, true
}

// matrixOperands unwraps the six numbers of a cm/Tm operand list.
func matrixOperands(ops []raw.Object) (matrix, bool) {
	v, ok := numbers(ops, 6)
	if !ok {
		return matrix{}, false
	}
	return matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

// nameOperand unwraps a single name operand.
func nameOperand(ops []raw.Object) (string, bool) {
	if len(ops) != 1 {
		return "", false
	}
	name, ok := ops[0].(raw.Name)
	if !ok {
		return "", false
	}
	return name.Val, true
}

// device converts user space coordinates to pixel coordinates through
// the current transform.
func (r *renderer) device(x, y float64) (float64, float64) {
	ux, uy := r.cur.ctm.apply(x, y)
	px := (ux - r.page.MediaBox.LLX) * r.scale
	py := (r.page.MediaBox.URY - uy) * r.scale
	return px, py
}

func (r *renderer) fillRect(rect document.Rectangle) {
	x0, y0 := r.device(rect.LLX, rect.LLY)
	x1, y1 := r.device(rect.URX, rect.URY)
	bounds := pixelRect(x0, y0, x1, y1)
	c := r.fillColor()
	src := image.NewUniform(c)
	draw.Draw(r.img, bounds.Intersect(r.img.Bounds()), src, image.Point{}, draw.Over)
}

func (r *renderer) fillColor() color.Color {
	return color.NRGBA{
		R: byte(r.cur.fill[0]*255 + 0.5),
		G: byte(r.cur.fill[1]*255 + 0.5),
		B: byte(r.cur.fill[2]*255 + 0.5),
		A: byte(r.cur.alpha*255 + 0.5),
	}
}

// drawImage composites an image XObject through the unit square
// mapping of the current transform. Placement is axis-aligned; skew
// components are ignored.
func (r *renderer) drawImage(src *document.Image) {
	decoded, err := decodeImage(src)
	if err != nil {
		return
	}
	x0, y0 := r.device(0, 0)
	x1, y1 := r.device(1, 1)
	bounds := pixelRect(x0, y0, x1, y1)
	target := bounds.Intersect(r.img.Bounds())
	if target.Empty() {
		return
	}
	xdraw.CatmullRom.Scale(r.img, bounds, decoded, decoded.Bounds(), xdraw.Over, nil)
}

func (r *renderer) drawText(text string) {
	if !r.inText || r.fontSize <= 0 || text == "" {
		return
	}
	// Effective size folds in the text matrix and transform scale.
	m := r.textMat.mul(r.cur.ctm)
	scaleY := vecLen(m[2], m[3])
	size := r.fontSize * scaleY * r.scale
	if size < 1 {
		return
	}
	face, err := fonts.Face(size)
	if err != nil {
		return
	}
	ux, uy := m.apply(0, 0)
	px := (ux - r.page.MediaBox.LLX) * r.scale
	py := (r.page.MediaBox.URY - uy) * r.scale
	d := font.Drawer{
		Dst:  r.img,
		Src:  image.NewUniform(r.fillColor()),
		Face: face,
		Dot:  fixed.Point26_6{X: floatToFixed(px), Y: floatToFixed(py)},
	}
	d.DrawString(text)
	// Advance the text matrix by the drawn width in text space.
	if w, err := fonts.Measure(text, r.fontSize); err == nil {
		r.textMat = matrix{1, 0, 0, 1, w, 0}.mul(r.textMat)
	}
}

func vecLen(x, y float64) float64 {
	if x < 0 {
		x = -x
	}
	if y < 0 {
		y = -y
	}
	if x > y {
		return x
	}
	return y
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

func pixelRect(x0, y0, x1, y1 float64) image.Rectangle {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return image.Rect(int(x0+0.5), int(y0+0.5), int(x1+0.5), int(y1+0.5))
}

// decodeImage converts an embedded image to a drawable image.Image.
func decodeImage(src *document.Image) (image.Image, error) {
	var base image.Image
	switch {
	case src.Filter == "DCTDecode":
		img, err := jpeg.Decode(bytes.NewReader(src.Data))
		if err != nil {
			return nil, err
		}
		base = img
	case src.ColorSpace == "DeviceGray" && src.BitsPerComponent == 8:
		if len(src.Data) < src.Width*src.Height {
			return nil, fmt.Errorf("render: gray samples short")
		}
		g := image.NewGray(image.Rect(0, 0, src.Width, src.Height))
		copy(g.Pix, src.Data)
		base = g
	case src.ColorSpace == "DeviceRGB" && src.BitsPerComponent == 8:
		if len(src.Data) < src.Width*src.Height*3 {
			return nil, fmt.Errorf("render: rgb samples short")
		}
		rgba := image.NewRGBA(image.Rect(0, 0, src.Width, src.Height))
		for i := 0; i < src.Width*src.Height; i++ {
			rgba.Pix[i*4+0] = src.Data[i*3+0]
			rgba.Pix[i*4+1] = src.Data[i*3+1]
			rgba.Pix[i*4+2] = src.Data[i*3+2]
			rgba.Pix[i*4+3] = 0xFF
		}
		base = rgba
	default:
		return nil, fmt.Errorf("render: unsupported image %s/%d", src.ColorSpace, src.BitsPerComponent)
	}
	if src.SMask == nil {
		return base, nil
	}
	return applyMask(base, src.SMask)
}

func applyMask(base image.Image, mask *document.Image) (image.Image, error) {
	if mask.ColorSpace != "DeviceGray" || mask.BitsPerComponent != 8 ||
		len(mask.Data) < mask.Width*mask.Height {
		return base, nil
	}
	b := base.Bounds()
	out := image.NewNRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			cr, cg, cb, _ := base.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// Nearest-neighbor mask lookup when sizes differ.
			mx := x * mask.Width / b.Dx()
			my := y * mask.Height / b.Dy()
			a := mask.Data[my*mask.Width+mx]
			out.SetNRGBA(x, y, color.NRGBA{
				R: byte(cr >> 8), G: byte(cg >> 8), B: byte(cb >> 8), A: a,
			})
		}
	}
	return out, nil
}

// rotated returns img turned clockwise by the page rotation.
func rotated(img *image.RGBA, degrees int) *image.RGBA {
	switch degrees {
	case 90, 180, 270:
	default:
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var out *image.RGBA
	if degrees == 180 {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		out = image.NewRGBA(image.Rect(0, 0, h, w))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			switch degrees {
			case 90:
				out.SetRGBA(h-1-y, x, c)
			case 180:
				out.SetRGBA(w-1-x, h-1-y, c)
			case 270:
				out.SetRGBA(y, w-1-x, c)
			}
		}
	}
	return out
}
