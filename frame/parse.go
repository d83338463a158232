package frame

import (
	"fmt"

	"github.com/coreman2200/sk9822/pixel"
)

// Pixel is one decoded LED word.
type Pixel struct {
	Color pixel.Color
	Code  uint8
}

// FormatError describes a wire buffer that does not follow the layout.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("frame: malformed buffer at offset %d: %s", e.Offset, e.Reason)
}

// Count recovers the pixel count from a wire length. Size is strictly
// increasing in n, so the answer is unique when it exists.
func Count(size int) (int, bool) {
	// Each pixel costs at most 5 bytes, so this never overshoots.
	for n := max(0, (size-StartSize-ResetSize-1)/(pixel.Size+1)); ; n++ {
		switch s := Size(n); {
		case s == size:
			return n, true
		case s > size:
			return 0, false
		}
	}
}

// Parse decodes a complete wire buffer. The start and reset segments must be
// zero and every pixel word must carry the marker bits; the trailing padding
// is not inspected.
func Parse(buf []byte) ([]Pixel, error) {
	n, ok := Count(len(buf))
	if !ok {
		return nil, &FormatError{Offset: len(buf), Reason: "length matches no pixel count"}
	}
	seg := Layout(n)
	for i := 0; i < StartSize; i++ {
		if buf[i] != 0 {
			return nil, &FormatError{Offset: i, Reason: "start frame not zero"}
		}
	}
	for i := seg.Reset; i < seg.End; i++ {
		if buf[i] != 0 {
			return nil, &FormatError{Offset: i, Reason: "reset frame not zero"}
		}
	}
	out := make([]Pixel, n)
	for i := range out {
		var w [pixel.Size]byte
		off := PixelOffset(i)
		copy(w[:], buf[off:])
		c, code, ok := pixel.Decode(w)
		if !ok {
			return nil, &FormatError{Offset: off, Reason: "pixel marker bits missing"}
		}
		out[i] = Pixel{Color: c, Code: code}
	}
	return out, nil
}
