package strip_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/sk9822/frame"
	"github.com/coreman2200/sk9822/pixel"
)

func TestDrawerBounds(t *testing.T) {
	d, _ := newDriver(t, 10, nil)
	assert.Equal(t, image.Rect(0, 0, 10, 1), d.Bounds())
	assert.Equal(t, color.NRGBAModel, d.ColorModel())
	assert.Equal(t, "sk9822{, 10}", d.String())
}

func TestDraw(t *testing.T) {
	d, s := newDriver(t, 4, nil)

	img := image.NewNRGBA(image.Rect(0, 0, 6, 2))
	for x := 0; x < 6; x++ {
		img.SetNRGBA(x, 1, color.NRGBA{R: byte(10 * x), G: 1, B: 2, A: 255})
	}
	require.NoError(t, d.Draw(d.Bounds(), img, image.Pt(1, 1)))

	px, err := frame.Parse(s.Last())
	require.NoError(t, err)
	for i, p := range px {
		assert.Equal(t, pixel.Color{R: byte(10 * (i + 1)), G: 1, B: 2}, p.Color, "pixel %d", i)
		assert.Equal(t, pixel.BrightnessCode(pixel.DefaultBrightness), p.Code)
	}
}

func TestDrawClipped(t *testing.T) {
	d, s := newDriver(t, 4, nil)
	img := image.NewUniform(color.NRGBA{R: 255, A: 255})

	require.NoError(t, d.Draw(image.Rect(2, 0, 10, 1), img, image.Point{}))
	px, err := frame.Parse(s.Last())
	require.NoError(t, err)
	assert.Equal(t, pixel.Black, px[0].Color)
	assert.Equal(t, pixel.Black, px[1].Color)
	assert.Equal(t, pixel.Red, px[2].Color)
	assert.Equal(t, pixel.Red, px[3].Color)

	require.NoError(t, d.Draw(image.Rect(5, 0, 9, 1), img, image.Point{}))
	assert.Len(t, s.Frames(), 1, "nothing to draw, nothing flushed")
}

func TestHalt(t *testing.T) {
	d, s := newDriver(t, 3, nil)
	require.NoError(t, d.Fill(pixel.White, 100))
	require.NoError(t, d.Halt())

	px, err := frame.Parse(s.Last())
	require.NoError(t, err)
	for _, p := range px {
		assert.Equal(t, frame.Pixel{Color: pixel.Black, Code: 0}, p)
	}
}
