package frame

import "github.com/coreman2200/sk9822/pixel"

// Heap is a wire buffer allocated at runtime for a chain of any length.
type Heap struct {
	length int
	data   []byte
}

func NewHeap(n int) (*Heap, error) {
	if err := checkLength(n); err != nil {
		return nil, err
	}
	h := &Heap{
		length: n,
		data:   make([]byte, Size(n)),
	}
	initialize(h.data, n)
	return h, nil
}

func (h *Heap) Bytes() []byte { return h.data }

func (h *Heap) Len() int { return h.length }

func (h *Heap) SetPixel(i int, c pixel.Color, brightness int) error {
	return setPixel(h.data, h.length, i, c, brightness)
}

// Pixel returns the encoded word currently held for pixel i.
func (h *Heap) Pixel(i int) ([pixel.Size]byte, error) {
	var w [pixel.Size]byte
	if i < 0 || i >= h.length {
		return w, &IndexError{Index: i, Len: h.length}
	}
	copy(w[:], h.data[PixelOffset(i):])
	return w, nil
}

var _ Buffer = (*Heap)(nil)
