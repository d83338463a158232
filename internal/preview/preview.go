// Package preview shows what the simulated bus would have put on the wire:
// on the terminal through a periph.io console display, and to browsers over
// a websocket.
package preview

import (
	"image"
	"image/color"

	"github.com/coreman2200/sk9822/bus"
	"github.com/coreman2200/sk9822/bus/simbus"
	"github.com/coreman2200/sk9822/frame"
	"github.com/coreman2200/sk9822/pixel"
)

// Sink consumes raw wire frames.
type Sink interface {
	Publish(wire []byte) error
}

// Attach feeds every frame completed on s to sinks.
func Attach(s *simbus.Bus, sinks ...Sink) {
	s.OnFrame(func(_ bus.Handle, wire []byte) {
		for _, k := range sinks {
			_ = k.Publish(wire)
		}
	})
}

// Shade scales a pixel's colour by its 5-bit brightness code, roughly what
// the eye sees from the LED.
func Shade(p frame.Pixel) color.NRGBA {
	s := func(v uint8) uint8 { return uint8(uint16(v) * uint16(p.Code) / uint16(pixel.MaxCode)) }
	return color.NRGBA{R: s(p.Color.R), G: s(p.Color.G), B: s(p.Color.B), A: 0xFF}
}

// Image renders decoded pixels as an N×1 image.
func Image(px []frame.Pixel) *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, len(px), 1))
	for x, p := range px {
		im.SetNRGBA(x, 0, Shade(p))
	}
	return im
}
