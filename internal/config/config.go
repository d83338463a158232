package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/sk9822/bus"
	"github.com/coreman2200/sk9822/strip"
)

type Strip struct {
	Length          int           `yaml:"length"`
	DataPin         int           `yaml:"data_pin"`  // -1 leaves it to the bus
	ClockPin        int           `yaml:"clock_pin"` // -1 leaves it to the bus
	Clock           string        `yaml:"clock"`     // e.g. 10MHz
	MaxTransferSize int           `yaml:"max_transfer_size"`
	Bus             string        `yaml:"bus"` // e.g. SPI0.0; empty picks the first port
	QueueDepth      int           `yaml:"queue_depth"`
	DMA             string        `yaml:"dma"` // auto | disabled | channel number
	Timeout         time.Duration `yaml:"timeout"`
	Brightness      int           `yaml:"brightness"`
}

type Preview struct {
	Addr    string `yaml:"addr"` // websocket listen address, empty disables
	Console bool   `yaml:"console"`
}

type Config struct {
	Driver  string  `yaml:"driver"` // "spi" | "sim"
	Pattern string  `yaml:"pattern"`
	Color   string  `yaml:"color"` // hex, used by solid and chase
	FPS     int     `yaml:"fps"`
	Strip   Strip   `yaml:"strip"`
	Preview Preview `yaml:"preview,omitempty"`
}

// Default mirrors strip.DefaultConfig.
func Default() *Config {
	d := strip.DefaultConfig()
	return &Config{
		Driver:  "spi",
		Pattern: "chase",
		Color:   "ffffff",
		FPS:     30,
		Strip: Strip{
			Length:          d.Length,
			DataPin:         d.DataPin,
			ClockPin:        d.ClockPin,
			Clock:           d.ClockSpeed.String(),
			MaxTransferSize: d.MaxTransferSize,
			Bus:             string(d.Bus),
			QueueDepth:      d.QueueDepth,
			DMA:             d.DMA.String(),
			Timeout:         d.Timeout,
			Brightness:      d.DefaultBrightness,
		},
	}
}

// Load reads path over the defaults, so keys left out of the file keep their
// default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if _, err := c.StripConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// StripConfig converts the file form into a validated strip.Config.
func (c *Config) StripConfig() (strip.Config, error) {
	s := c.Strip
	out := strip.NewConfig(s.DataPin, s.ClockPin)
	out.Length = s.Length
	out.MaxTransferSize = s.MaxTransferSize
	out.Bus = bus.ID(s.Bus)
	out.QueueDepth = s.QueueDepth
	out.Timeout = s.Timeout
	out.DefaultBrightness = s.Brightness

	if s.Clock != "" {
		var f physic.Frequency
		if err := f.Set(s.Clock); err != nil {
			return out, &strip.ConfigError{Field: "clock speed", Err: err}
		}
		out.ClockSpeed = f
	}
	dma, err := ParseDMA(s.DMA)
	if err != nil {
		return out, &strip.ConfigError{Field: "dma", Err: err}
	}
	out.DMA = dma

	return out, out.Validate()
}

// ParseDMA accepts "auto", "disabled" or a channel number.
func ParseDMA(s string) (bus.DMAChannel, error) {
	switch s {
	case "", "auto":
		return bus.DMAAuto, nil
	case "disabled", "off":
		return bus.DMADisabled, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("unknown dma selection %q", s)
	}
	return bus.DMAChannel(n), nil
}
