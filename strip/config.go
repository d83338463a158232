package strip

import (
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/sk9822/bus"
	"github.com/coreman2200/sk9822/frame"
	"github.com/coreman2200/sk9822/pixel"
)

const (
	DefaultLength     = 512
	DefaultDataPin    = 7
	DefaultClockPin   = 6
	DefaultClockSpeed = 10 * physic.MegaHertz
	DefaultQueueDepth = 1
)

// Config is fixed once the driver is built.
type Config struct {
	Length   int
	DataPin  int
	ClockPin int

	ClockSpeed physic.Frequency

	// MaxTransferSize splits frames into bus transfers of at most this many
	// bytes. 0 leaves it to the transport.
	MaxTransferSize int

	Bus        bus.ID
	QueueDepth int
	DMA        bus.DMAChannel

	// Timeout bounds how long Flush waits for the bus. 0 waits forever.
	Timeout time.Duration

	// DefaultBrightness is the percentage Draw encodes pixels with.
	DefaultBrightness int
}

func NewConfig(dataPin, clockPin int) Config {
	return Config{
		Length:            DefaultLength,
		DataPin:           dataPin,
		ClockPin:          clockPin,
		ClockSpeed:        DefaultClockSpeed,
		QueueDepth:        DefaultQueueDepth,
		DMA:               bus.DMAAuto,
		DefaultBrightness: pixel.DefaultBrightness,
	}
}

func DefaultConfig() Config {
	return NewConfig(DefaultDataPin, DefaultClockPin)
}

func (c Config) Validate() error {
	switch {
	case c.Length < 1:
		return &ConfigError{Field: "length", Reason: "must be at least 1"}
	case c.Length > frame.MaxPixels:
		return &ConfigError{Field: "length", Reason: "exceeds frame.MaxPixels"}
	case c.DataPin < bus.NoPin:
		return &ConfigError{Field: "data pin", Reason: "must be a pin number or bus.NoPin"}
	case c.ClockPin < bus.NoPin:
		return &ConfigError{Field: "clock pin", Reason: "must be a pin number or bus.NoPin"}
	case c.DataPin != bus.NoPin && c.DataPin == c.ClockPin:
		return &ConfigError{Field: "clock pin", Reason: "shares a pin with data"}
	case c.ClockSpeed <= 0:
		return &ConfigError{Field: "clock speed", Reason: "must be positive"}
	case c.MaxTransferSize < 0:
		return &ConfigError{Field: "max transfer size", Reason: "must not be negative"}
	case c.QueueDepth < 1:
		return &ConfigError{Field: "queue depth", Reason: "must be at least 1"}
	case c.DMA < bus.DMAAuto:
		return &ConfigError{Field: "dma", Reason: "unknown channel selection"}
	case c.Timeout < 0:
		return &ConfigError{Field: "timeout", Reason: "must not be negative"}
	}
	return nil
}

func (c Config) pins() bus.Pins {
	return bus.Pins{Data: c.DataPin, Clock: c.ClockPin}
}

func (c Config) device() bus.DeviceConfig {
	return bus.DeviceConfig{
		ClockSpeed:      c.ClockSpeed,
		Mode:            bus.Mode,
		QueueDepth:      c.QueueDepth,
		MaxTransferSize: c.MaxTransferSize,
	}
}
