package frame

import "github.com/coreman2200/sk9822/pixel"

// Fixed lays a frame over storage the caller owns, so targets without a heap
// (TinyGo boards) can keep the whole buffer in a package-level array:
//
//	const leds = 30
//	var store [4 + leds*4 + 4 + (leds+15)/16 + 1]byte
//	f, err := frame.NewFixed(leds, store[:])
//
// The byte layout is identical to Heap.
type Fixed struct {
	length int
	data   []byte
}

func NewFixed(n int, store []byte) (*Fixed, error) {
	if err := checkLength(n); err != nil {
		return nil, err
	}
	if want := Size(n); len(store) != want {
		return nil, &StorageError{Pixels: n, Want: want, Got: len(store)}
	}
	f := &Fixed{length: n, data: store}
	initialize(f.data, n)
	return f, nil
}

func (f *Fixed) Bytes() []byte { return f.data }

func (f *Fixed) Len() int { return f.length }

func (f *Fixed) SetPixel(i int, c pixel.Color, brightness int) error {
	return setPixel(f.data, f.length, i, c, brightness)
}

var _ Buffer = (*Fixed)(nil)
