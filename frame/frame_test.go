package frame_test

import (
	"bytes"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/sk9822/frame"
	"github.com/coreman2200/sk9822/pixel"
)

func TestSize(t *testing.T) {
	for _, v := range []struct{ N, Want int }{
		{0, 9},
		{1, 4 + 4 + 4 + 2},
		{15, 4 + 60 + 4 + 2},
		{16, 4 + 64 + 4 + 2},
		{17, 4 + 68 + 4 + 3},
		{512, 4 + 2048 + 4 + 33},
	} {
		assert.Equal(t, v.Want, frame.Size(v.N), "n=%d", v.N)
	}
}

func TestNewHeapLayout(t *testing.T) {
	for _, n := range []int{1, 2, 3, 15, 16, 17, 31, 32, 33, 100, 512} {
		t.Run("N="+strconv.Itoa(n), func(t *testing.T) {
			h, err := frame.NewHeap(n)
			require.NoError(t, err)
			b := h.Bytes()
			seg := frame.Layout(n)

			assert.Len(t, b, 4+4*n+4+(n+15)/16+1)
			assert.Equal(t, seg.Total, len(b))
			assert.Equal(t, n, h.Len())
			assert.Equal(t, []byte{0, 0, 0, 0}, b[:4])
			assert.Equal(t, []byte{0, 0, 0, 0}, b[seg.Reset:seg.End])
			assert.Equal(t, make([]byte, frame.EndSize(n)), b[seg.End:])
			for i := 0; i < n; i++ {
				off := frame.PixelOffset(i)
				assert.Equal(t, pixel.Default[:], b[off:off+4], "pixel %d", i)
			}
		})
	}
}

func TestNewHeapInvalid(t *testing.T) {
	_, err := frame.NewHeap(-1)
	assert.ErrorIs(t, err, frame.ErrInvalidLength)
	_, err = frame.NewHeap(frame.MaxPixels + 1)
	assert.ErrorIs(t, err, frame.ErrTooLarge)

	h, err := frame.NewHeap(0)
	require.NoError(t, err)
	assert.Len(t, h.Bytes(), 9)
}

func TestSetPixelScenario(t *testing.T) {
	h, err := frame.NewHeap(3)
	require.NoError(t, err)
	require.NoError(t, h.SetPixel(1, pixel.Color{R: 255}, 50))

	want := []byte{
		0, 0, 0, 0,
		0xE1, 0, 0, 0,
		0xEE, 0x00, 0x00, 0xFF,
		0xE1, 0, 0, 0,
		0, 0, 0, 0,
		0, 0,
	}
	assert.Equal(t, want, h.Bytes())

	w, err := h.Pixel(1)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{0xEE, 0x00, 0x00, 0xFF}, w)
}

func TestSetPixelLocality(t *testing.T) {
	const n = 40
	h, err := frame.NewHeap(n)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		before := append([]byte(nil), h.Bytes()...)
		require.NoError(t, h.SetPixel(i, pixel.Color{R: byte(i), G: 0xAA, B: 0x55}, i*3))

		after := h.Bytes()
		lo, hi := frame.PixelOffset(i), frame.PixelOffset(i)+4
		assert.Equal(t, before[:lo], after[:lo], "bytes before pixel %d changed", i)
		assert.Equal(t, before[hi:], after[hi:], "bytes after pixel %d changed", i)
	}
}

func TestSetPixelIdempotent(t *testing.T) {
	h, err := frame.NewHeap(8)
	require.NoError(t, err)
	require.NoError(t, h.SetPixel(5, pixel.White, 77))
	once := append([]byte(nil), h.Bytes()...)
	require.NoError(t, h.SetPixel(5, pixel.White, 77))
	assert.Equal(t, once, h.Bytes())
}

func TestSetPixelOutOfRange(t *testing.T) {
	h, err := frame.NewHeap(4)
	require.NoError(t, err)
	before := append([]byte(nil), h.Bytes()...)

	for _, i := range []int{-1, 4, 100} {
		err := h.SetPixel(i, pixel.White, 100)
		var ie *frame.IndexError
		require.True(t, errors.As(err, &ie), "index %d", i)
		assert.Equal(t, i, ie.Index)
		assert.Equal(t, 4, ie.Len)
	}
	assert.Equal(t, before, h.Bytes())

	_, err = h.Pixel(4)
	assert.Error(t, err)
}

func TestFixedMatchesHeap(t *testing.T) {
	type call struct {
		i int
		c pixel.Color
		b int
	}
	calls := []call{
		{0, pixel.Red, 100},
		{29, pixel.Blue, 1},
		{7, pixel.Color{R: 1, G: 2, B: 3}, 50},
		{7, pixel.Color{R: 4, G: 5, B: 6}, -3},
		{15, pixel.White, 250},
		{16, pixel.Green, 9},
	}

	const leds = 30
	var store [4 + leds*4 + 4 + (leds+15)/16 + 1]byte
	for i := range store {
		store[i] = 0x5A
	}
	f, err := frame.NewFixed(leds, store[:])
	require.NoError(t, err)
	h, err := frame.NewHeap(leds)
	require.NoError(t, err)

	assert.Equal(t, h.Bytes(), f.Bytes())
	for _, c := range calls {
		require.NoError(t, f.SetPixel(c.i, c.c, c.b))
		require.NoError(t, h.SetPixel(c.i, c.c, c.b))
		assert.True(t, bytes.Equal(h.Bytes(), f.Bytes()))
	}
	assert.Equal(t, h.Len(), f.Len())
	assert.Equal(t, store[:], f.Bytes())

	var ie *frame.IndexError
	assert.ErrorAs(t, f.SetPixel(leds, pixel.White, 1), &ie)
}

func TestNewFixedStorageMismatch(t *testing.T) {
	_, err := frame.NewFixed(10, make([]byte, frame.Size(10)-1))
	var se *frame.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, frame.Size(10), se.Want)
	assert.Equal(t, frame.Size(10)-1, se.Got)
}
