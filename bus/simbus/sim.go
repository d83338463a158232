// Package simbus is an in-memory bus.Transport. It keeps a copy of every
// frame it is handed, can hold each transfer for a fixed latency and can be
// told to fail the next transfer. The CLI uses it when no SPI port is
// available; tests use it as the hardware stand-in.
package simbus

import (
	"context"
	"sync"
	"time"

	"github.com/coreman2200/sk9822/bus"
)

// FrameFunc observes a completed frame. It runs on the transfer worker; the
// slice is a private copy.
type FrameFunc func(h bus.Handle, frame []byte)

type device struct {
	id    bus.ID
	cfg   bus.DeviceConfig
	async *bus.Async
}

// Bus is a simulated transport. The zero value is not usable; call New.
type Bus struct {
	mu      sync.Mutex
	latency time.Duration
	buses   map[bus.ID]bus.Pins
	devices map[bus.Handle]*device
	next    bus.Handle
	frames  [][]byte
	fail    error
	onFrame []FrameFunc
}

func New() *Bus {
	return &Bus{
		buses:   map[bus.ID]bus.Pins{},
		devices: map[bus.Handle]*device{},
	}
}

// SetLatency sets how long each transfer stays on the simulated wire.
func (s *Bus) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// OnFrame registers f to run after every completed transfer.
func (s *Bus) OnFrame(f FrameFunc) {
	s.mu.Lock()
	s.onFrame = append(s.onFrame, f)
	s.mu.Unlock()
}

// FailNext makes the next transfer report err instead of completing.
func (s *Bus) FailNext(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// Frames returns copies of every completed frame, oldest first.
func (s *Bus) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// Last returns the most recent completed frame, or nil.
func (s *Bus) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Config returns the device configuration h was attached with.
func (s *Bus) Config(h bus.Handle) (bus.DeviceConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[h]
	if !ok {
		return bus.DeviceConfig{}, false
	}
	return d.cfg, true
}

func (s *Bus) Init(id bus.ID, pins bus.Pins, dma bus.DMAChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buses[id]; ok {
		return bus.ErrInitialized
	}
	s.buses[id] = pins
	return nil
}

func (s *Bus) Attach(id bus.ID, cfg bus.DeviceConfig) (bus.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buses[id]; !ok {
		return 0, bus.ErrNotInitialized
	}
	s.next++
	h := s.next
	s.devices[h] = &device{
		id:    id,
		cfg:   cfg,
		async: bus.NewAsync(func(w []byte) error { return s.transmit(h, w) }, cfg.QueueDepth, 0),
	}
	return h, nil
}

func (s *Bus) transmit(h bus.Handle, w []byte) error {
	s.mu.Lock()
	d := s.latency
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}

	s.mu.Lock()
	if err := s.fail; err != nil {
		s.fail = nil
		s.mu.Unlock()
		return err
	}
	f := append([]byte(nil), w...)
	s.frames = append(s.frames, f)
	hooks := s.onFrame
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(h, append([]byte(nil), f...))
	}
	return nil
}

func (s *Bus) device(h bus.Handle) (*device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[h]
	if !ok {
		return nil, bus.ErrUnknownHandle
	}
	return d, nil
}

func (s *Bus) Submit(h bus.Handle, tx []byte) (bus.TransferID, error) {
	d, err := s.device(h)
	if err != nil {
		return 0, err
	}
	return d.async.Submit(tx)
}

func (s *Bus) Await(ctx context.Context, h bus.Handle, id bus.TransferID) error {
	d, err := s.device(h)
	if err != nil {
		return err
	}
	if err := d.async.Await(ctx, id); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &bus.TransportError{Op: "await", Bus: d.id, Err: err}
	}
	return nil
}

func (s *Bus) Detach(h bus.Handle) error {
	s.mu.Lock()
	d, ok := s.devices[h]
	delete(s.devices, h)
	s.mu.Unlock()
	if !ok {
		return bus.ErrUnknownHandle
	}
	return d.async.Close()
}

func (s *Bus) Free(id bus.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buses[id]; !ok {
		return bus.ErrNotInitialized
	}
	delete(s.buses, id)
	return nil
}

var (
	_ bus.Transport = (*Bus)(nil)
	_ bus.Releaser  = (*Bus)(nil)
)
