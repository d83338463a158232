package bus

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized = errors.New("bus: not initialized")
	ErrInitialized    = errors.New("bus: already initialized")
	ErrUnknownHandle  = errors.New("bus: unknown device handle")
	ErrUnknownID      = errors.New("bus: unknown transfer id")
	ErrClosed         = errors.New("bus: device detached")
)

// ConfigError reports a pin or bus assignment the transport cannot honour.
type ConfigError struct {
	Bus    ID
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bus %q: invalid %s: %s", e.Bus, e.Field, e.Reason)
}

// TransportError wraps a failure reported by the bus hardware.
type TransportError struct {
	Op  string
	Bus ID
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bus %q: %s: %v", e.Bus, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
