// Package raster implements the image tools: compress, resize, rotate,
// watermark and crop. Every operation leaves the source untouched and
// returns freshly encoded bytes.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/wudi/doctool"
)

// Image is a decoded raster image plus its source MIME type. The
// decoded pixels and the natural dimensions never change after Load.
type Image struct {
	src  image.Image
	mime string
}

// MIME types the loader accepts.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
)

// defaultJPEGQuality is used when re-encoding JPEG output of
// geometry operations.
const defaultJPEGQuality = 92

// Load decodes a JPEG, PNG or GIF image.
func Load(r io.Reader) (*Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, &doctool.DecodeError{Format: "image", Err: err}
	}
	var mime string
	switch format {
	case "jpeg":
		mime = MIMEJPEG
	case "png":
		mime = MIMEPNG
	case "gif":
		mime = MIMEGIF
	default:
		return nil, &doctool.DecodeError{Format: format, Err: fmt.Errorf("unsupported format")}
	}
	return &Image{src: img, mime: mime}, nil
}

// LoadBytes decodes in-memory image data.
func LoadBytes(data []byte) (*Image, error) {
	return Load(bytes.NewReader(data))
}

// Width returns the natural pixel width.
func (i *Image) Width() int { return i.src.Bounds().Dx() }

// Height returns the natural pixel height.
func (i *Image) Height() int { return i.src.Bounds().Dy() }

// MIME returns the source MIME type.
func (i *Image) MIME() string { return i.mime }

// AspectRatio returns width over height.
func (i *Image) AspectRatio() float64 {
	return float64(i.Width()) / float64(i.Height())
}

// LockedHeight returns the height matching a target width under the
// image's natural aspect ratio, rounded to the nearest pixel.
func (i *Image) LockedHeight(width int) int {
	return int(math.Round(float64(width) / i.AspectRatio()))
}

// LockedWidth returns the width matching a target height under the
// image's natural aspect ratio, rounded to the nearest pixel.
func (i *Image) LockedWidth(height int) int {
	return int(math.Round(float64(height) * i.AspectRatio()))
}

// Compress re-encodes the image as JPEG at the given quality in
// (0, 1], regardless of the source type.
func (i *Image) Compress(quality float64) ([]byte, error) {
	if quality <= 0 || quality > 1 {
		return nil, &doctool.InvalidParameterError{
			Name:   "quality",
			Reason: fmt.Sprintf("%v outside (0, 1]", quality),
		}
	}
	var buf bytes.Buffer
	opts := &jpeg.Options{Quality: int(math.Round(quality * 100))}
	if err := jpeg.Encode(&buf, i.src, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resize scales to exactly width by height pixels, preserving the
// source MIME type.
func (i *Image) Resize(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, &doctool.InvalidParameterError{
			Name:   "dimensions",
			Reason: fmt.Sprintf("%dx%d must be positive", width, height),
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), i.src, i.src.Bounds(), xdraw.Src, nil)
	return i.encode(dst)
}

// Rotate turns the image clockwise by the given degrees, which must be
// a multiple of 90. Width and height swap at 90 and 270.
func (i *Image) Rotate(degrees int) ([]byte, error) {
	if degrees%90 != 0 {
		return nil, &doctool.InvalidParameterError{
			Name:   "rotation",
			Reason: fmt.Sprintf("%d is not a multiple of 90", degrees),
		}
	}
	deg := degrees % 360
	if deg < 0 {
		deg += 360
	}
	b := i.src.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.RGBA
	if deg == 90 || deg == 270 {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := i.src.At(b.Min.X+x, b.Min.Y+y)
			switch deg {
			case 0:
				dst.Set(x, y, c)
			case 90:
				dst.Set(h-1-y, x, c)
			case 180:
				dst.Set(w-1-x, h-1-y, c)
			case 270:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return i.encode(dst)
}

// Crop cuts the given rectangle out of the image, preserving the
// source MIME type. The rectangle is clamped to the image bounds here,
// at apply time, and never earlier; degenerate selections collapse to
// a 1x1 minimum.
func (i *Image) Crop(rect image.Rectangle) ([]byte, error) {
	b := i.src.Bounds()
	c := clampRect(rect, b.Dx(), b.Dy())
	dst := image.NewRGBA(image.Rect(0, 0, c.Dx(), c.Dy()))
	xdraw.Copy(dst, image.Point{}, i.src, c.Add(b.Min), xdraw.Src, nil)
	return i.encode(dst)
}

// clampRect confines rect to a w by h canvas with a 1x1 minimum.
func clampRect(rect image.Rectangle, w, h int) image.Rectangle {
	r := rect.Canon()
	if r.Min.X < 0 {
		r.Min.X = 0
	}
	if r.Min.Y < 0 {
		r.Min.Y = 0
	}
	if r.Min.X > w-1 {
		r.Min.X = w - 1
	}
	if r.Min.Y > h-1 {
		r.Min.Y = h - 1
	}
	if r.Max.X > w {
		r.Max.X = w
	}
	if r.Max.Y > h {
		r.Max.Y = h
	}
	if r.Max.X <= r.Min.X {
		r.Max.X = r.Min.X + 1
	}
	if r.Max.Y <= r.Min.Y {
		r.Max.Y = r.Min.Y + 1
	}
	return r
}

// encode re-encodes pixels in the source MIME type.
func (i *Image) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	switch i.mime {
	case MIMEPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case MIMEGIF:
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: defaultJPEGQuality}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
