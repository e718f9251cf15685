package runtime

import (
	"fmt"
	"time"
)

// Ingress modes.
const (
	ModeHTTP  = "http"
	ModeKafka = "kafka"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config configures the local job runtime.
type Config struct {
	// Mode selects where jobs come from: "http" or "kafka".
	Mode string `mapstructure:"mode"`
	// QueueSize is the number of jobs that may wait behind the running one.
	QueueSize int `mapstructure:"queue_size"`
	// Store selects the record backend: "memory" or "redis".
	Store string `mapstructure:"store"`
	// ResultTTL is how long records are kept after their last update.
	ResultTTL time.Duration `mapstructure:"result_ttl"`
	// SyncTimeout bounds how long /runsync waits for a result.
	SyncTimeout time.Duration `mapstructure:"sync_timeout"`
	// KeyPrefix namespaces redis keys.
	KeyPrefix string `mapstructure:"key_prefix"`
	// ShutdownTimeout bounds graceful stop; zero keeps the process default.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeHTTP
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.Store == "" {
		c.Store = StoreMemory
	}
	if c.ResultTTL == 0 {
		c.ResultTTL = 30 * time.Minute
	}
	if c.SyncTimeout == 0 {
		c.SyncTimeout = 90 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "whisperjob:job"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeHTTP, ModeKafka:
	default:
		return fmt.Errorf("runtime: unknown mode %q", c.Mode)
	}
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("runtime: unknown store %q", c.Store)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("runtime: shutdown_timeout must not be negative")
	}
	return nil
}
