package main

import (
	"fmt"

	"github.com/kbukum/whisperjob/config"
	"github.com/kbukum/whisperjob/kafka"
	"github.com/kbukum/whisperjob/observability"
	"github.com/kbukum/whisperjob/redis"
	"github.com/kbukum/whisperjob/runtime"
	"github.com/kbukum/whisperjob/server"
	"github.com/kbukum/whisperjob/storage/s3"
	"github.com/kbukum/whisperjob/transcription/sidecar"
	"github.com/kbukum/whisperjob/worker"
)

// AuthConfig enables bearer auth on the job routes when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StorageConfig holds the object storage used to resolve audio urls.
type StorageConfig struct {
	S3 s3.Config `mapstructure:"s3"`
}

// Config is the process configuration, read from config.yml, .env and the
// environment.
type Config struct {
	config.ServiceConfig `mapstructure:",squash"`

	Worker  worker.Config               `mapstructure:"worker"`
	Sidecar sidecar.Config              `mapstructure:"sidecar"`
	Runtime runtime.Config              `mapstructure:"runtime"`
	Server  server.Config               `mapstructure:"server"`
	Redis   redis.Config                `mapstructure:"redis"`
	Kafka   kafka.Config                `mapstructure:"kafka"`
	Storage StorageConfig               `mapstructure:"storage"`
	Auth    AuthConfig                  `mapstructure:"auth"`
	Tracing observability.TracingConfig `mapstructure:"tracing"`
	Metrics observability.MetricsConfig `mapstructure:"metrics"`
}

// ApplyDefaults fills unset fields of every section. The redis section is
// switched on by runtime.store.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "whisperjob"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Worker.ApplyDefaults()
	c.Sidecar.ApplyDefaults()
	c.Runtime.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Storage.S3.ApplyDefaults()
	c.Tracing.ApplyDefaults()
	c.Metrics.ApplyDefaults()

	if c.Runtime.Store == runtime.StoreRedis {
		c.Redis.Enabled = true
	}
	if c.Redis.Enabled {
		c.Redis.ApplyDefaults()
	}
	if c.Runtime.Mode == runtime.ModeKafka {
		c.Kafka.ApplyDefaults()
	}
}

type sectionCheck struct {
	section string
	fn      func() error
}

// Validate checks every section in use.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	checks := []sectionCheck{
		{"worker", c.Worker.Validate},
		{"sidecar", c.Sidecar.Validate},
		{"runtime", c.Runtime.Validate},
		{"server", c.Server.Validate},
		{"storage.s3", c.Storage.S3.Validate},
		{"tracing", c.Tracing.Validate},
		{"metrics", c.Metrics.Validate},
		{"redis", c.Redis.Validate},
	}
	if c.Runtime.Mode == runtime.ModeKafka {
		checks = append(checks, sectionCheck{"kafka", c.Kafka.Validate})
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s: %w", check.section, err)
		}
	}
	return nil
}
