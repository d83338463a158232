// Package tinygobus drives the chain through any tinygo.org/x/drivers SPI
// implementation, typically machine.SPI0 on a microcontroller.
//
// Pin muxing and clock setup are board specific, so the board package hands
// in a Configure hook:
//
//	t := tinygobus.New(machine.SPI0, func(p bus.Pins, c bus.DeviceConfig) error {
//		return machine.SPI0.Configure(machine.SPIConfig{
//			Frequency: uint32(c.ClockSpeed / physic.Hertz),
//			SDO:       machine.Pin(p.Data),
//			SCK:       machine.Pin(p.Clock),
//			Mode:      3,
//		})
//	})
package tinygobus

import (
	"context"
	"sync"

	"tinygo.org/x/drivers"

	"github.com/coreman2200/sk9822/bus"
)

// Configure applies pins and clock settings to the SPI peripheral.
type Configure func(pins bus.Pins, cfg bus.DeviceConfig) error

// Bus is a single-bus transport around a drivers.SPI.
type Bus struct {
	spi       drivers.SPI
	configure Configure

	mu     sync.Mutex
	id     bus.ID
	pins   bus.Pins
	inited bool
	async  *bus.Async
}

// New wraps s. configure may be nil when the peripheral is already set up.
func New(s drivers.SPI, configure Configure) *Bus {
	return &Bus{spi: s, configure: configure}
}

func (b *Bus) Init(id bus.ID, pins bus.Pins, dma bus.DMAChannel) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inited {
		return bus.ErrInitialized
	}
	b.id, b.pins, b.inited = id, pins, true
	return nil
}

// Attach configures the peripheral. There is one device per Bus, so the
// handle is always 1.
func (b *Bus) Attach(id bus.ID, cfg bus.DeviceConfig) (bus.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inited || id != b.id {
		return 0, bus.ErrNotInitialized
	}
	if b.async != nil {
		return 0, &bus.ConfigError{Bus: id, Field: "device", Reason: "bus already has a device attached"}
	}
	if b.configure != nil {
		if err := b.configure(b.pins, cfg); err != nil {
			return 0, &bus.ConfigError{Bus: id, Field: "device", Reason: err.Error()}
		}
	}
	b.async = bus.NewAsync(func(w []byte) error { return b.spi.Tx(w, nil) }, cfg.QueueDepth, cfg.MaxTransferSize)
	return 1, nil
}

func (b *Bus) worker(h bus.Handle) (*bus.Async, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h != 1 || b.async == nil {
		return nil, bus.ErrUnknownHandle
	}
	return b.async, nil
}

func (b *Bus) Submit(h bus.Handle, tx []byte) (bus.TransferID, error) {
	a, err := b.worker(h)
	if err != nil {
		return 0, err
	}
	id, err := a.Submit(tx)
	if err != nil {
		return 0, &bus.TransportError{Op: "submit", Bus: b.id, Err: err}
	}
	return id, nil
}

func (b *Bus) Await(ctx context.Context, h bus.Handle, id bus.TransferID) error {
	a, err := b.worker(h)
	if err != nil {
		return err
	}
	if err := a.Await(ctx, id); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &bus.TransportError{Op: "tx", Bus: b.id, Err: err}
	}
	return nil
}

func (b *Bus) Detach(h bus.Handle) error {
	b.mu.Lock()
	a := b.async
	if h != 1 || a == nil {
		b.mu.Unlock()
		return bus.ErrUnknownHandle
	}
	b.async = nil
	b.mu.Unlock()
	return a.Close()
}

func (b *Bus) Free(id bus.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inited || id != b.id {
		return bus.ErrNotInitialized
	}
	b.inited = false
	return nil
}

var (
	_ bus.Transport = (*Bus)(nil)
	_ bus.Releaser  = (*Bus)(nil)
)
