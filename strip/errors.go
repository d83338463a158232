package strip

import (
	"errors"
	"fmt"
)

var ErrClosed = errors.New("strip: driver closed")

// ConfigError reports an unusable configuration. The driver is not created.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("strip: invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("strip: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
