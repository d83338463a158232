// Package pixel packs a colour and a brightness percentage into the 4-byte
// word an APA102/SK9822 LED shifts in.
package pixel

import "image/color"

const (
	// Marker is OR-ed into the first byte of every LED word. The chain uses
	// the top three set bits to tell pixel words from the start frame.
	Marker uint8 = 0xE0

	// MaxCode is the largest 5-bit global brightness value.
	MaxCode uint8 = 0x1F

	// DefaultBrightness is the percentage freshly allocated frames use.
	DefaultBrightness = 3

	// Size is the number of bytes per encoded pixel.
	Size = 4
)

// Color is one LED's channel intensities.
type Color struct {
	R, G, B uint8
}

var (
	Black = Color{}
	White = Color{R: 0xFF, G: 0xFF, B: 0xFF}
	Red   = Color{R: 0xFF}
	Green = Color{G: 0xFF}
	Blue  = Color{B: 0xFF}
)

// Default is the encoded word every pixel starts with: black, ~3% brightness.
var Default = Encode(Black, DefaultBrightness)

// BrightnessCode maps a percentage onto the chain's 5-bit brightness field.
// The curve is steeper at the low end; input outside [0,100] saturates.
func BrightnessCode(p int) uint8 {
	switch {
	case p >= 100:
		return MaxCode
	case p > 8:
		return uint8((p - 7) / 3)
	case p > 0:
		return 1
	default:
		return 0
	}
}

// Encode returns the wire word [marker|code, B, G, R].
func Encode(c Color, brightness int) [Size]byte {
	return [Size]byte{Marker | (BrightnessCode(brightness) & MaxCode), c.B, c.G, c.R}
}

// Put writes the encoded word into dst, which must hold at least Size bytes.
func Put(dst []byte, c Color, brightness int) {
	w := Encode(c, brightness)
	copy(dst[:Size], w[:])
}

// Decode splits a wire word into its colour and 5-bit brightness code.
// ok is false when the marker bits are not set.
func Decode(w [Size]byte) (c Color, code uint8, ok bool) {
	return Color{R: w[3], G: w[2], B: w[1]}, w[0] & MaxCode, w[0]&Marker == Marker
}

// FromColor converts any image/color value. Alpha is dropped after the
// conversion to non-premultiplied RGBA.
func FromColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B}
}

// RGBA implements color.Color so a Color can be drawn into images directly.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}.RGBA()
}
