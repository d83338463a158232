// Package strip drives one APA102/SK9822 chain: pixels are set in an owned
// wire buffer and Flush pushes the whole buffer out over the bus.
//
//	d, err := strip.New(strip.DefaultConfig(), periphbus.New())
//	...
//	d.SetPixel(0, pixel.Red, 50)
//	err = d.Flush(ctx)
package strip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/coreman2200/sk9822/bus"
	"github.com/coreman2200/sk9822/frame"
	"github.com/coreman2200/sk9822/pixel"
	"github.com/coreman2200/sk9822/transfer"
)

type Option func(*Driver)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver owns the frame buffer and the attached bus device. SetPixel never
// touches the hardware; Flush and Submit calls are serialised internally.
type Driver struct {
	cfg Config
	t   bus.Transport
	h   bus.Handle
	log zerolog.Logger

	frame *frame.Heap
	q     *transfer.Queue

	mu       sync.Mutex
	ring     [][]byte
	next     int
	inflight []*transfer.Pending
	closed   atomic.Bool
}

// New initialises the bus, attaches the chain as a device and allocates a
// frame for cfg.Length pixels. Init must not have been called on cfg.Bus
// before.
func New(cfg Config, t bus.Transport, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{cfg: cfg, t: t, log: zerolog.Nop()}
	for _, o := range opts {
		o(d)
	}

	f, err := frame.NewHeap(cfg.Length)
	if err != nil {
		return nil, &ConfigError{Field: "length", Err: err}
	}
	d.frame = f

	if err := t.Init(cfg.Bus, cfg.pins(), cfg.DMA); err != nil {
		return nil, fmt.Errorf("strip: init bus %q: %w", cfg.Bus, err)
	}
	h, err := t.Attach(cfg.Bus, cfg.device())
	if err != nil {
		if r, ok := t.(bus.Releaser); ok {
			_ = r.Free(cfg.Bus)
		}
		return nil, fmt.Errorf("strip: attach to bus %q: %w", cfg.Bus, err)
	}
	d.h = h

	d.q = transfer.New(t, h,
		transfer.WithDepth(cfg.QueueDepth),
		transfer.WithTimeout(cfg.Timeout),
		transfer.WithLogger(d.log),
	)
	// A timed out Flush leaves its transfer reading the buffer, so it must
	// not be the live frame either.
	if cfg.QueueDepth > 1 || cfg.Timeout > 0 {
		d.ring = make([][]byte, cfg.QueueDepth)
		for i := range d.ring {
			d.ring[i] = make([]byte, frame.Size(cfg.Length))
		}
	}

	d.log.Info().
		Str("bus", string(cfg.Bus)).
		Int("leds", cfg.Length).
		Stringer("clock", cfg.ClockSpeed).
		Int("frame_bytes", len(f.Bytes())).
		Msg("strip ready")
	return d, nil
}

func (d *Driver) Config() Config { return d.cfg }

// Len is the number of LEDs in the chain.
func (d *Driver) Len() int { return d.frame.Len() }

// Bytes is the current wire buffer. Read only.
func (d *Driver) Bytes() []byte { return d.frame.Bytes() }

// SetPixel updates pixel i in the frame. The change shows on the next Flush.
// With a queue depth of 1 and no Timeout the caller must not call it while a
// Submit is outstanding or after a cancelled Flush.
func (d *Driver) SetPixel(i int, c pixel.Color, brightness int) error {
	if d.closed.Load() {
		return ErrClosed
	}
	return d.frame.SetPixel(i, c, brightness)
}

// Fill sets every pixel to the same value.
func (d *Driver) Fill(c pixel.Color, brightness int) error {
	for i := 0; i < d.frame.Len(); i++ {
		if err := d.SetPixel(i, c, brightness); err != nil {
			return err
		}
	}
	return nil
}

// Flush sends the frame and returns once the bus reports it transmitted.
// Transfers left behind by Submit or a timed out Flush are awaited first.
func (d *Driver) Flush(ctx context.Context) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.drain(ctx, 0); err != nil {
		return err
	}
	p, err := d.submit(ctx)
	if err != nil {
		return err
	}
	if err := d.q.Await(ctx, p); err != nil {
		if !p.Done() {
			d.inflight = append(d.inflight, p)
		}
		return err
	}
	return nil
}

// Submit starts sending the frame without waiting for it. When the queue is
// full the oldest transfer is awaited first. With QueueDepth > 1 or a Timeout
// set the frame is copied, so SetPixel may be called straight away.
func (d *Driver) Submit(ctx context.Context) (*transfer.Pending, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.drain(ctx, d.q.Depth()-1); err != nil {
		return nil, err
	}
	p, err := d.submit(ctx)
	if err != nil {
		return nil, err
	}
	d.inflight = append(d.inflight, p)
	return p, nil
}

// Wait blocks until every submitted transfer has completed.
func (d *Driver) Wait(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drain(ctx, 0)
}

func (d *Driver) submit(ctx context.Context) (*transfer.Pending, error) {
	buf := d.frame.Bytes()
	if d.ring != nil {
		snap := d.ring[d.next]
		copy(snap, buf)
		d.next = (d.next + 1) % len(d.ring)
		buf = snap
	}
	p, err := d.q.Submit(ctx, buf)
	if err != nil {
		d.log.Error().Err(err).Msg("submit failed")
		return nil, err
	}
	return p, nil
}

// drain awaits the oldest transfers until at most keep remain in flight.
// Failed transfers are dropped from the list and their error returned.
func (d *Driver) drain(ctx context.Context, keep int) error {
	for len(d.inflight) > keep {
		p := d.inflight[0]
		err := d.q.Await(ctx, p)
		if !p.Done() {
			return err
		}
		d.inflight = d.inflight[1:]
		if err != nil {
			d.log.Error().Err(err).Uint64("transfer", uint64(p.ID())).Msg("transfer failed")
			return err
		}
	}
	return nil
}

// Close waits for outstanding transfers, then detaches the device and frees
// the bus when the transport supports it.
func (d *Driver) Close() error {
	if d.closed.Swap(true) {
		return ErrClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if err := d.drain(context.Background(), 0); err != nil {
		errs = append(errs, err)
	}
	if r, ok := d.t.(bus.Releaser); ok {
		if err := r.Detach(d.h); err != nil {
			errs = append(errs, fmt.Errorf("strip: detach: %w", err))
		}
		if err := r.Free(d.cfg.Bus); err != nil {
			errs = append(errs, fmt.Errorf("strip: free bus %q: %w", d.cfg.Bus, err))
		}
	}
	d.log.Info().Str("bus", string(d.cfg.Bus)).Msg("strip closed")
	return errors.Join(errs...)
}
