// Package filters implements the stream filters the toolkit reads and
// writes. Flate covers the vast majority of content streams; ASCIIHex
// and RunLength appear in hand-built files.
package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// MaxDecodedSize caps decoded stream sizes to keep a corrupt length
// field from exhausting memory.
const MaxDecodedSize = 256 << 20

// Decode applies the named filter to data.
func Decode(name string, data []byte) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		return FlateDecode(data)
	case "ASCIIHexDecode", "AHx":
		return ASCIIHexDecode(data)
	case "RunLengthDecode", "RL":
		return RunLengthDecode(data)
	case "DCTDecode", "DCT":
		// JPEG data stays encoded; image consumers decode it themselves.
		return data, nil
	default:
		return nil, fmt.Errorf("filters: unsupported filter %q", name)
	}
}

// FlateDecode inflates zlib-wrapped data.
func FlateDecode(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("filters: flate: %w", err)
	}
	defer zr.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(zr, MaxDecodedSize+1)); err != nil {
		return nil, fmt.Errorf("filters: flate: %w", err)
	}
	if buf.Len() > MaxDecodedSize {
		return nil, fmt.Errorf("filters: flate: decoded size exceeds %d bytes", MaxDecodedSize)
	}
	return buf.Bytes(), nil
}

// FlateEncode deflates data at the default compression level.
func FlateEncode(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

// ASCIIHexDecode decodes hex-encoded data, stopping at '>'.
func ASCIIHexDecode(data []byte) ([]byte, error) {
	var out []byte
	var hi byte
	haveHi := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == '>' {
			break
		}
		switch {
		case c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20:
			continue
		case c >= '0' && c <= '9':
			c -= '0'
		case c >= 'a' && c <= 'f':
			c -= 'a' - 10
		case c >= 'A' && c <= 'F':
			c -= 'A' - 10
		default:
			return nil, fmt.Errorf("filters: asciihex: bad digit %q at %d", c, i)
		}
		if haveHi {
			out = append(out, hi<<4|c)
			haveHi = false
		} else {
			hi = c
			haveHi = true
		}
	}
	if haveHi {
		out = append(out, hi<<4)
	}
	return out, nil
}

// RunLengthDecode expands run-length encoded data.
func RunLengthDecode(data []byte) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(data) {
		n := data[i]
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			end := i + int(n) + 1
			if end > len(data) {
				return nil, fmt.Errorf("filters: runlength: literal run past end")
			}
			out = append(out, data[i:end]...)
			i = end
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("filters: runlength: repeat run past end")
			}
			for j := 0; j < 257-int(n); j++ {
				out = append(out, data[i])
			}
			i++
		}
	}
	return out, nil
}
