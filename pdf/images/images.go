// Package images consumes PNG files for PDF embedding. The PNG is not
// rendered to pixels: the chunk structure is walked directly, the IHDR
// fields are read, and the concatenated IDAT payload is inflated so the
// caller can recompress the filtered row data behind a FlateDecode filter
// with PNG-predictor decode parameters.
package images

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Common errors
var (
	ErrInvalidPNG        = errors.New("invalid PNG data")
	ErrUnsupportedFormat = errors.New("unsupported PNG format")
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// PNG colour types.
const (
	ColorTypeGray    = 0
	ColorTypeRGB     = 2
	ColorTypeIndexed = 3
)

// PNG holds the facts recovered from a PNG file that the embedder needs.
type PNG struct {
	// Width and Height are the pixel dimensions from IHDR.
	Width  int
	Height int

	// BitDepth is the bit depth per sample from IHDR.
	BitDepth int

	// ColorType is the IHDR colour type.
	ColorType int

	// Pixels is the inflated IDAT payload: filtered row data, one filter
	// byte per scanline, exactly as the PNG predictor expects.
	Pixels []byte

	// Palette is the raw PLTE chunk body for indexed images.
	Palette []byte
}

// ParsePNG walks the chunk structure of a PNG file. Interlaced images and
// colour types carrying an alpha channel are rejected: the embedder passes
// filtered rows through unchanged, which leaves no place to split an alpha
// channel off.
func ParsePNG(data []byte) (*PNG, error) {
	if len(data) < len(pngSignature) || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidPNG)
	}

	p := &PNG{}
	var idat bytes.Buffer
	sawIHDR := false

	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		ctype := string(data[pos+4 : pos+8])
		body := pos + 8
		if body+length+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated %s chunk", ErrInvalidPNG, ctype)
		}
		chunk := data[body : body+length]

		switch ctype {
		case "IHDR":
			if length < 13 {
				return nil, fmt.Errorf("%w: short IHDR", ErrInvalidPNG)
			}
			p.Width = int(binary.BigEndian.Uint32(chunk[0:4]))
			p.Height = int(binary.BigEndian.Uint32(chunk[4:8]))
			p.BitDepth = int(chunk[8])
			p.ColorType = int(chunk[9])
			if chunk[12] != 0 {
				return nil, fmt.Errorf("%w: interlaced image", ErrUnsupportedFormat)
			}
			sawIHDR = true
		case "PLTE":
			p.Palette = chunk
		case "IDAT":
			idat.Write(chunk)
		case "IEND":
			pos = len(data)
			continue
		}

		pos = body + length + 4 // skip CRC
	}

	if !sawIHDR {
		return nil, fmt.Errorf("%w: missing IHDR", ErrInvalidPNG)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", ErrInvalidPNG, p.Width, p.Height)
	}
	switch p.ColorType {
	case ColorTypeGray, ColorTypeRGB:
	case ColorTypeIndexed:
		if len(p.Palette) == 0 {
			return nil, fmt.Errorf("%w: indexed image without PLTE", ErrInvalidPNG)
		}
	default:
		return nil, fmt.Errorf("%w: colour type %d", ErrUnsupportedFormat, p.ColorType)
	}
	if idat.Len() == 0 {
		return nil, fmt.Errorf("%w: no IDAT data", ErrInvalidPNG)
	}

	pixels, err := Inflate(idat.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: IDAT inflate: %v", ErrInvalidPNG, err)
	}
	p.Pixels = pixels

	return p, nil
}

// Colors returns the number of colour components per pixel as the PNG
// predictor counts them (indexed pixels are one component wide).
func (p *PNG) Colors() int {
	if p.ColorType == ColorTypeRGB {
		return 3
	}
	return 1
}

// ColorSpaceText renders the image's colour space as raw PDF text.
func (p *PNG) ColorSpaceText() string {
	switch p.ColorType {
	case ColorTypeRGB:
		return "/DeviceRGB"
	case ColorTypeIndexed:
		hival := len(p.Palette)/3 - 1
		return "[/Indexed /DeviceRGB " + strconv.Itoa(hival) +
			" <" + hex.EncodeToString(p.Palette) + ">]"
	default:
		return "/DeviceGray"
	}
}

// Inflate decompresses a zlib stream.
func Inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Deflate compresses data as a zlib stream.
func Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
