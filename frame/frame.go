// Package frame lays out the full byte stream for a chain of N LEDs:
//
//	0x00 x4 | N encoded pixels | 0x00 x4 | 0x00 x (ceil(N/16)+1)
//
// Every LED delays the clock by about half a bit, so the trailing segment
// supplies the extra edges needed to latch the far end of the chain.
package frame

import (
	"errors"
	"fmt"

	"github.com/coreman2200/sk9822/pixel"
)

const (
	StartSize = 4
	ResetSize = 4

	// MaxPixels bounds a single chain. It keeps Size well inside int on
	// 32-bit targets.
	MaxPixels = 1 << 24
)

var (
	ErrInvalidLength = errors.New("frame: pixel count must not be negative")
	ErrTooLarge      = errors.New("frame: pixel count exceeds MaxPixels")
)

// Buffer is the wire buffer capability shared by the heap and fixed layouts.
type Buffer interface {
	// Bytes returns the whole wire buffer. It must not be modified, and it is
	// only valid until the next SetPixel.
	Bytes() []byte
	SetPixel(i int, c pixel.Color, brightness int) error
	Len() int
}

// EndSize is the number of trailing padding bytes for n pixels.
func EndSize(n int) int {
	return (n+15)/16 + 1
}

// Size is the total wire length for n pixels.
func Size(n int) int {
	return StartSize + n*pixel.Size + ResetSize + EndSize(n)
}

// PixelOffset is the offset of pixel i's first byte.
func PixelOffset(i int) int {
	return StartSize + i*pixel.Size
}

// Segments reports where each part of an n-pixel frame begins.
type Segments struct {
	Pixels int
	Reset  int
	End    int
	Total  int
}

func Layout(n int) Segments {
	p := StartSize
	r := p + n*pixel.Size
	e := r + ResetSize
	return Segments{Pixels: p, Reset: r, End: e, Total: e + EndSize(n)}
}

// IndexError is returned when a pixel index falls outside the chain.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("frame: pixel index %d out of range [0,%d)", e.Index, e.Len)
}

// StorageError is returned when caller-provided storage does not match the
// layout for the requested pixel count.
type StorageError struct {
	Pixels int
	Want   int
	Got    int
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("frame: storage for %d pixels must be %d bytes, got %d", e.Pixels, e.Want, e.Got)
}

func checkLength(n int) error {
	if n < 0 {
		return ErrInvalidLength
	}
	if n > MaxPixels {
		return ErrTooLarge
	}
	return nil
}

// initialize writes the zero segments and default pixels into buf, which is
// exactly Size(n) bytes.
func initialize(buf []byte, n int) {
	for i := range buf {
		buf[i] = 0
	}
	for i := 0; i < n; i++ {
		copy(buf[PixelOffset(i):], pixel.Default[:])
	}
}

func setPixel(buf []byte, n, i int, c pixel.Color, brightness int) error {
	if i < 0 || i >= n {
		return &IndexError{Index: i, Len: n}
	}
	pixel.Put(buf[PixelOffset(i):], c, brightness)
	return nil
}
