// Package pattern paints the CLI's test patterns onto a strip.
package pattern

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/coreman2200/sk9822/pixel"
)

type Kind string

const (
	Off        Kind = "off"
	Solid      Kind = "solid"
	Chase      Kind = "chase"
	IndexSweep Kind = "index_sweep"
	Rainbow    Kind = "rainbow"
)

// Kinds lists every pattern the Runner knows.
var Kinds = []Kind{Off, Solid, Chase, IndexSweep, Rainbow}

// Canvas is what a pattern paints on; *strip.Driver satisfies it.
type Canvas interface {
	Len() int
	SetPixel(i int, c pixel.Color, brightness int) error
}

type Plan struct {
	Kind       Kind
	Color      pixel.Color
	Brightness int
}

type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan} }

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step paints the next frame; it returns false once a finite pattern is done.
func (r *Runner) Step(c Canvas) (bool, error) {
	n := c.Len()
	b := r.plan.Brightness
	paint := func(f func(i int) pixel.Color) error {
		for i := 0; i < n; i++ {
			if err := c.SetPixel(i, f(i), b); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	switch r.plan.Kind {
	case Off:
		err = paint(func(int) pixel.Color { return pixel.Black })
	case Solid:
		err = paint(func(int) pixel.Color { return r.plan.Color })
	case Chase:
		head := r.step % max(n, 1)
		err = paint(func(i int) pixel.Color {
			if i == head {
				return r.plan.Color
			}
			return pixel.Black
		})
	case IndexSweep:
		if r.step >= n {
			return false, nil
		}
		err = paint(func(i int) pixel.Color {
			if i == r.step {
				return pixel.White
			}
			return pixel.Black
		})
	case Rainbow:
		err = paint(func(i int) pixel.Color {
			return pixel.FromColor(Wheel(float64((i+r.step)%n) / float64(n)))
		})
	default:
		return false, fmt.Errorf("unknown pattern %q", r.plan.Kind)
	}
	if err != nil {
		return false, err
	}
	r.step++
	return true, nil
}

// ParseKind accepts any name in Kinds.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown pattern %q", s)
}

// ParseColor reads a six digit hex colour, with or without a leading '#'.
func ParseColor(s string) (pixel.Color, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil || len(b) != 3 {
		return pixel.Color{}, fmt.Errorf("invalid colour %q", s)
	}
	return pixel.Color{R: b[0], G: b[1], B: b[2]}, nil
}
