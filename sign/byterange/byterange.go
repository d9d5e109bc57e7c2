// Package byterange provides the standalone ByteRange protocol utilities:
// locating a signature placeholder in an assembled PDF, extracting the
// bytes a detached signer must hash, and embedding the finished signature
// into the placeholder.
package byterange

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNoPlaceholder         = errors.New("no signature placeholder found")
	ErrInvalidByteRange      = errors.New("invalid ByteRange")
	ErrSignatureTooLarge     = errors.New("signature exceeds placeholder capacity")
	ErrByteRangeOutOfBounds  = errors.New("ByteRange exceeds buffer length")
	ErrByteRangeNegativeSpan = errors.New("ByteRange values must not be negative")
)

var (
	contentsMarker  = []byte("/Contents <")
	byteRangeMarker = []byte("/ByteRange [")
)

// ByteRange is the four-integer descriptor of the file byte spans a
// digital signature covers: {offset1, length1, offset2, length2}. The hex
// placeholder between the two spans is excluded.
type ByteRange [4]int64

// TotalBytes returns the end of the second span, which for a well-formed
// placeholder equals the total file length.
func (br ByteRange) TotalBytes() int64 {
	return br[2] + br[3]
}

// Placement describes where the signature placeholder sits in a buffer.
type Placement struct {
	// ByteRange is the four-integer range around the hex placeholder.
	ByteRange ByteRange

	// HexStart and HexEnd delimit the zero-filled hex span, excluding the
	// angle brackets.
	HexStart int64
	HexEnd   int64

	// Length is the character length of the hex span.
	Length int64

	// ByteRangeStart is the offset of the "[" of the /ByteRange entry, or
	// -1 when the buffer carries none.
	ByteRangeStart int64
}

// Find locates the signature placeholder in an assembled buffer. The last
// occurrence of the /Contents marker wins, since earlier revisions of an
// incrementally updated file may contain the same literal text.
func Find(buf []byte) (*Placement, error) {
	c := bytes.LastIndex(buf, contentsMarker)
	if c < 0 {
		return nil, fmt.Errorf("%w: missing /Contents marker", ErrNoPlaceholder)
	}
	hexStart := c + len(contentsMarker)

	hexEnd := hexStart
	for hexEnd < len(buf) && isHexDigit(buf[hexEnd]) {
		hexEnd++
	}
	if hexEnd >= len(buf) || buf[hexEnd] != '>' {
		return nil, fmt.Errorf("%w: unterminated /Contents hex string", ErrNoPlaceholder)
	}

	brStart := int64(-1)
	if b := bytes.LastIndex(buf, byteRangeMarker); b >= 0 {
		brStart = int64(b + len(byteRangeMarker) - 1)
	}

	return &Placement{
		ByteRange: ByteRange{
			0,
			int64(hexStart - 1),
			int64(hexEnd + 1),
			int64(len(buf) - hexEnd - 1),
		},
		HexStart:       int64(hexStart),
		HexEnd:         int64(hexEnd),
		Length:         int64(hexEnd - hexStart),
		ByteRangeStart: brStart,
	}, nil
}

// FindByteRange locates the placeholder and returns just its byte range.
func FindByteRange(buf []byte) (ByteRange, error) {
	p, err := Find(buf)
	if err != nil {
		return ByteRange{}, err
	}
	return p.ByteRange, nil
}

// ExtractBytesToSign returns the concatenation of the two spans the given
// byte range describes: everything except the hex placeholder itself. The
// spans are composed as views into buf and copied once into a freshly
// allocated result.
func ExtractBytesToSign(buf []byte, br ByteRange) ([]byte, error) {
	if br[0] < 0 || br[2] < 0 {
		return nil, fmt.Errorf("%w: offsets %d and %d", ErrByteRangeNegativeSpan, br[0], br[2])
	}
	if br[1] <= 0 || br[3] <= 0 {
		return nil, fmt.Errorf("%w: lengths %d and %d must be positive", ErrInvalidByteRange, br[1], br[3])
	}
	if br[0]+br[1] > int64(len(buf)) || br[2]+br[3] > int64(len(buf)) {
		return nil, fmt.Errorf("%w: buffer is %d bytes", ErrByteRangeOutOfBounds, len(buf))
	}

	first := buf[br[0] : br[0]+br[1]]
	second := buf[br[2] : br[2]+br[3]]

	out := make([]byte, len(first)+len(second))
	copy(out, first)
	copy(out[len(first):], second)
	return out, nil
}

// EmbedSignature writes the detached signature into the placeholder of
// buf, in place, and returns the same buffer. The signature is rendered as
// lowercase hex and right-padded with '0' to the placeholder width. The
// caller transfers ownership of buf into this call.
func EmbedSignature(buf []byte, signature []byte) ([]byte, error) {
	p, err := Find(buf)
	if err != nil {
		return nil, err
	}

	hexSig := hex.EncodeToString(signature)
	if int64(len(hexSig)) > p.Length {
		return nil, fmt.Errorf("%w: %d hex characters into a %d character placeholder",
			ErrSignatureTooLarge, len(hexSig), p.Length)
	}

	span := buf[p.HexStart:p.HexEnd]
	n := copy(span, hexSig)
	for i := n; i < len(span); i++ {
		span[i] = '0'
	}
	return buf, nil
}

func isHexDigit(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	}
	return false
}
