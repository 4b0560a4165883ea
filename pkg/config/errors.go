package config

import (
	"fmt"
)

// ConfigError reports an invalid configuration value. It is fatal: the demo
// never starts a target while one is outstanding.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid config %s=%q: %s", e.Field, e.Value, e.Reason)
}
