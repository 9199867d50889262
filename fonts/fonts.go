// Package fonts provides the shared typeface and text metrics used by
// the raster watermarker and the page renderer. A single Go Regular
// face is parsed once and cached per size.
package fonts

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	parseOnce sync.Once
	parsed    *opentype.Font
	parseErr  error

	mu    sync.Mutex
	faces = make(map[float64]font.Face)
)

func loadFont() (*opentype.Font, error) {
	parseOnce.Do(func() {
		parsed, parseErr = opentype.Parse(goregular.TTF)
	})
	return parsed, parseErr
}

// Face returns a font.Face at the given point size. Faces are cached
// and must not be closed by callers.
func Face(size float64) (font.Face, error) {
	f, err := loadFont()
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	if face, ok := faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	faces[size] = face
	return face, nil
}

// Measure returns the advance width of text at the given size, in the
// same units as the size.
func Measure(text string, size float64) (float64, error) {
	face, err := Face(size)
	if err != nil {
		return 0, err
	}
	adv := font.MeasureString(face, text)
	return fixedToFloat(adv), nil
}

// Ascent returns the face ascent at the given size.
func Ascent(size float64) (float64, error) {
	face, err := Face(size)
	if err != nil {
		return 0, err
	}
	return fixedToFloat(face.Metrics().Ascent), nil
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
