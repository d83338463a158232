package preview

import (
	"image"
	"sync"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/sk9822/frame"
)

// Console draws each frame on a display, the terminal by default.
type Console struct {
	mu       sync.Mutex
	drawer   display.Drawer
	throttle time.Duration
	lastEmit time.Time
}

// NewConsole draws into d, or onto the terminal when d is nil. Frames closer
// together than throttle are dropped.
func NewConsole(d display.Drawer, throttle time.Duration) *Console {
	if d == nil {
		d = screen.New(100)
	}
	return &Console{drawer: d, throttle: throttle}
}

func (c *Console) Publish(wire []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.lastEmit.Add(c.throttle).After(now) {
		return nil
	}
	c.lastEmit = now

	px, err := frame.Parse(wire)
	if err != nil {
		return err
	}
	im := Image(px)
	return c.drawer.Draw(c.drawer.Bounds(), im, image.Point{})
}

func (c *Console) Halt() error {
	return c.drawer.Halt()
}
