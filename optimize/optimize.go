// Package optimize shrinks documents for the compress tool. Embedded
// images are re-encoded as JPEG at a target quality and downscaled
// when they exceed a pixel budget; vector content is left alone and
// shrinks through the writer's flate pass.
package optimize

import (
	"bytes"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"

	"github.com/wudi/doctool/document"
)

// Config controls image recompression.
type Config struct {
	// JPEGQuality for re-encoded images, 1..100. Default 75.
	JPEGQuality int
	// MaxDimension caps image width and height in pixels; larger
	// images are downscaled proportionally. 0 disables scaling.
	MaxDimension int
}

// DefaultConfig matches the compress tool's fixed settings.
var DefaultConfig = Config{JPEGQuality: 75, MaxDimension: 2048}

// Document recompresses every embedded image in place and returns the
// number of images rewritten.
func Document(doc *document.Document, cfg Config) int {
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 75
	}
	rewritten := 0
	seen := make(map[*document.Image]*document.Image)
	for _, page := range doc.Pages {
		for name, img := range page.Resources.Images {
			if out, ok := seen[img]; ok {
				page.Resources.Images[name] = out
				continue
			}
			out := recompress(img, cfg)
			seen[img] = out
			page.Resources.Images[name] = out
			if out != img {
				rewritten++
			}
		}
	}
	return rewritten
}

// recompress returns a smaller replacement for img, or img itself when
// nothing could be gained.
func recompress(img *document.Image, cfg Config) *document.Image {
	decoded, err := toImage(img)
	if err != nil {
		return img
	}
	if cfg.MaxDimension > 0 {
		decoded = capSize(decoded, cfg.MaxDimension)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: cfg.JPEGQuality}); err != nil {
		return img
	}
	if buf.Len() >= len(img.Data) {
		return img
	}
	b := decoded.Bounds()
	return &document.Image{
		Width:            b.Dx(),
		Height:           b.Dy(),
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
		Filter:           "DCTDecode",
		Data:             buf.Bytes(),
	}
}

func toImage(img *document.Image) (image.Image, error) {
	switch {
	case img.Filter == "DCTDecode":
		return jpeg.Decode(bytes.NewReader(img.Data))
	case img.ColorSpace == "DeviceGray" && img.BitsPerComponent == 8 &&
		len(img.Data) >= img.Width*img.Height:
		g := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
		copy(g.Pix, img.Data)
		return g, nil
	case img.ColorSpace == "DeviceRGB" && img.BitsPerComponent == 8 &&
		len(img.Data) >= img.Width*img.Height*3:
		rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
		for i := 0; i < img.Width*img.Height; i++ {
			rgba.Pix[i*4+0] = img.Data[i*3+0]
			rgba.Pix[i*4+1] = img.Data[i*3+1]
			rgba.Pix[i*4+2] = img.Data[i*3+2]
			rgba.Pix[i*4+3] = 0xFF
		}
		return rgba, nil
	default:
		return nil, errUnsupported
	}
}

var errUnsupported = jpegError("unsupported image encoding")

type jpegError string

func (e jpegError) Error() string { return string(e) }

// capSize downscales img so neither side exceeds maxDim.
func capSize(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
