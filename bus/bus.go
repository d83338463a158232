// Package bus is the boundary between the strip driver and whatever moves
// bytes onto the clock and data lines. Transports follow the shape of a
// queued SPI peripheral: initialise a bus once, attach a device, then submit
// transfers and await their completion separately.
package bus

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// ID names a physical bus. The empty ID selects the transport's default.
type ID string

// Handle is an attached device. Its value is meaningful only to the
// transport that returned it.
type Handle uint32

// TransferID identifies one submitted transfer on a Handle.
type TransferID uint64

// DMAChannel selects the DMA channel a bus uses.
type DMAChannel int

const (
	DMAAuto     DMAChannel = -1
	DMADisabled DMAChannel = 0
)

func (d DMAChannel) String() string {
	switch d {
	case DMAAuto:
		return "auto"
	case DMADisabled:
		return "disabled"
	default:
		return fmt.Sprintf("ch%d", int(d))
	}
}

// NoPin marks a pin the caller leaves to the bus default.
const NoPin = -1

// Pins is the pin assignment for a bus. The chain has no input or chip
// select line.
type Pins struct {
	Data  int
	Clock int
}

// Mode is the clock mode the chain's shift registers require: clock idles
// high, data sampled on the trailing edge, no chip select.
const Mode = spi.Mode3 | spi.NoCS

// DeviceConfig describes a device attached to an initialised bus.
type DeviceConfig struct {
	ClockSpeed physic.Frequency
	Mode       spi.Mode

	// QueueDepth is the number of transfers the transport holds in flight
	// before Submit blocks.
	QueueDepth int

	// MaxTransferSize splits long buffers into chunks. 0 uses the transport
	// default.
	MaxTransferSize int
}

// Transport is the capability the driver needs from the bus peripheral.
//
// Init must be called once per bus ID. The slice passed to Submit is read
// asynchronously; the caller must not modify it until Await has returned
// for that transfer.
type Transport interface {
	Init(id ID, pins Pins, dma DMAChannel) error
	Attach(id ID, cfg DeviceConfig) (Handle, error)
	Submit(h Handle, tx []byte) (TransferID, error)
	Await(ctx context.Context, h Handle, id TransferID) error
}

// Releaser is implemented by transports that can give their resources back.
type Releaser interface {
	Detach(h Handle) error
	Free(id ID) error
}
