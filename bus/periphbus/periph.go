// Package periphbus drives the chain through a periph.io SPI port, normally
// a Linux spidev device.
package periphbus

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/coreman2200/sk9822/bus"
)

// Opener opens a port by its spireg name. "" opens the first port.
type Opener func(name string) (spi.PortCloser, error)

type Option func(*Bus)

// WithOpener replaces spireg.Open, mostly so tests can hand in spitest ports.
func WithOpener(o Opener) Option {
	return func(b *Bus) { b.open = o }
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.log = l }
}

type device struct {
	id    bus.ID
	conn  spi.Conn
	async *bus.Async
}

// Bus implements bus.Transport on periph.io. host.Init must have run before
// the default opener can find any port.
type Bus struct {
	open Opener
	log  zerolog.Logger

	mu      sync.Mutex
	ports   map[bus.ID]spi.PortCloser
	devices map[bus.Handle]*device
	next    bus.Handle
}

func New(opts ...Option) *Bus {
	b := &Bus{
		open:    spireg.Open,
		log:     zerolog.Nop(),
		ports:   map[bus.ID]spi.PortCloser{},
		devices: map[bus.Handle]*device{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bus) Init(id bus.ID, pins bus.Pins, dma bus.DMAChannel) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ports[id]; ok {
		return bus.ErrInitialized
	}
	p, err := b.open(string(id))
	if err != nil {
		return &bus.ConfigError{Bus: id, Field: "bus", Reason: err.Error()}
	}
	if err := checkPins(id, p, pins); err != nil {
		_ = p.Close()
		return err
	}
	if dma != bus.DMAAuto {
		b.log.Debug().Str("bus", p.String()).Stringer("dma", dma).Msg("spidev picks its own DMA channel; ignoring selection")
	}
	b.ports[id] = p
	b.log.Info().Str("bus", p.String()).Int("data_pin", pins.Data).Int("clock_pin", pins.Clock).Msg("bus initialized")
	return nil
}

// checkPins compares the requested pins with the ones the port is wired to,
// when the port reports them. Pins set to bus.NoPin are not checked.
func checkPins(id bus.ID, p spi.Port, pins bus.Pins) error {
	pp, ok := p.(spi.Pins)
	if !ok {
		return nil
	}
	if mosi := pp.MOSI(); pins.Data != bus.NoPin && mosi != nil && mosi.Number() >= 0 && mosi.Number() != pins.Data {
		return &bus.ConfigError{Bus: id, Field: "data pin", Reason: "port " + p.String() + " drives MOSI on " + mosi.Name() + " (" + strconv.Itoa(mosi.Number()) + ")"}
	}
	if clk := pp.CLK(); pins.Clock != bus.NoPin && clk != nil && clk.Number() >= 0 && clk.Number() != pins.Clock {
		return &bus.ConfigError{Bus: id, Field: "clock pin", Reason: "port " + p.String() + " drives CLK on " + clk.Name() + " (" + strconv.Itoa(clk.Number()) + ")"}
	}
	return nil
}

func (b *Bus) Attach(id bus.ID, cfg bus.DeviceConfig) (bus.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.ports[id]
	if !ok {
		return 0, bus.ErrNotInitialized
	}
	c, err := p.Connect(cfg.ClockSpeed, cfg.Mode, 8)
	if err != nil {
		return 0, &bus.TransportError{Op: "attach", Bus: id, Err: err}
	}
	chunk := cfg.MaxTransferSize
	if l, ok := c.(conn.Limits); ok && chunk <= 0 {
		chunk = l.MaxTxSize()
	}

	b.next++
	h := b.next
	b.devices[h] = &device{
		id:    id,
		conn:  c,
		async: bus.NewAsync(func(w []byte) error { return c.Tx(w, nil) }, cfg.QueueDepth, chunk),
	}
	b.log.Info().Str("conn", c.String()).Stringer("clock", cfg.ClockSpeed).Int("chunk", chunk).Int("queue_depth", cfg.QueueDepth).Msg("device attached")
	return h, nil
}

func (b *Bus) device(h bus.Handle) (*device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.devices[h]
	if !ok {
		return nil, bus.ErrUnknownHandle
	}
	return d, nil
}

func (b *Bus) Submit(h bus.Handle, tx []byte) (bus.TransferID, error) {
	d, err := b.device(h)
	if err != nil {
		return 0, err
	}
	id, err := d.async.Submit(tx)
	if err != nil {
		return 0, &bus.TransportError{Op: "submit", Bus: d.id, Err: err}
	}
	return id, nil
}

func (b *Bus) Await(ctx context.Context, h bus.Handle, id bus.TransferID) error {
	d, err := b.device(h)
	if err != nil {
		return err
	}
	if err := d.async.Await(ctx, id); err != nil {
		if ctx.Err() != nil {
			return err
		}
		b.log.Error().Err(err).Str("conn", d.conn.String()).Uint64("transfer", uint64(id)).Msg("transfer failed")
		return &bus.TransportError{Op: "tx", Bus: d.id, Err: err}
	}
	return nil
}

func (b *Bus) Detach(h bus.Handle) error {
	b.mu.Lock()
	d, ok := b.devices[h]
	delete(b.devices, h)
	b.mu.Unlock()
	if !ok {
		return bus.ErrUnknownHandle
	}
	return d.async.Close()
}

func (b *Bus) Free(id bus.ID) error {
	b.mu.Lock()
	p, ok := b.ports[id]
	delete(b.ports, id)
	b.mu.Unlock()
	if !ok {
		return bus.ErrNotInitialized
	}
	b.log.Info().Str("bus", p.String()).Msg("bus released")
	return p.Close()
}

var (
	_ bus.Transport = (*Bus)(nil)
	_ bus.Releaser  = (*Bus)(nil)
)
