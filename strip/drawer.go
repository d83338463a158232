package strip

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"periph.io/x/conn/v3/display"

	"github.com/coreman2200/sk9822/pixel"
)

// The chain is a 1-pixel-high display so image based callers can treat it
// like any other periph.io drawer.

func (d *Driver) String() string {
	return fmt.Sprintf("sk9822{%s, %d}", d.cfg.Bus, d.cfg.Length)
}

// Halt blanks every LED.
func (d *Driver) Halt() error {
	if err := d.Fill(pixel.Black, 0); err != nil {
		return err
	}
	return d.Flush(context.Background())
}

func (d *Driver) ColorModel() color.Model {
	return color.NRGBAModel
}

func (d *Driver) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.cfg.Length, 1)
}

// Draw copies row sp.Y of src onto the chain at DefaultBrightness and
// flushes.
func (d *Driver) Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error {
	r := dstRect.Intersect(d.Bounds())
	if r.Empty() {
		return nil
	}
	sp = sp.Add(r.Min.Sub(dstRect.Min))
	sb := src.Bounds()
	for x := r.Min.X; x < r.Max.X; x++ {
		p := image.Pt(sp.X+x-r.Min.X, sp.Y)
		if !p.In(sb) {
			continue
		}
		if err := d.SetPixel(x, pixel.FromColor(src.At(p.X, p.Y)), d.cfg.DefaultBrightness); err != nil {
			return err
		}
	}
	return d.Flush(context.Background())
}

var _ display.Drawer = (*Driver)(nil)
