package worker

import (
	"fmt"

	"github.com/kbukum/whisperjob/aggregate"
)

// Config configures the job handler.
type Config struct {
	// MaxMessageSize is the size ceiling of one outbound batch.
	MaxMessageSize int `mapstructure:"max_message_size"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = aggregate.DefaultMaxMessageSize
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("worker: max_message_size must be positive, got %d", c.MaxMessageSize)
	}
	return nil
}
