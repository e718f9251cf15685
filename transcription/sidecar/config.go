package sidecar

import (
	"fmt"
	"net/url"
	"time"
)

const (
	defaultBaseURL     = "http://localhost:8000"
	defaultLoadTimeout = 10 * time.Minute
	defaultTimeout     = 5 * time.Second
)

// Config holds configuration for the inference sidecar client.
type Config struct {
	// BaseURL of the sidecar HTTP API.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// APIKey is sent as a bearer token when set.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Timeout bounds health probes.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// LoadTimeout bounds model loads. Model downloads are slow, so the
	// default is generous.
	LoadTimeout time.Duration `yaml:"load_timeout" mapstructure:"load_timeout"`
	// LoadAttempts bounds model load attempts on connection errors and 5xx.
	LoadAttempts int `yaml:"load_attempts" mapstructure:"load_attempts"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = defaultLoadTimeout
	}
	if c.LoadAttempts <= 0 {
		c.LoadAttempts = 3
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("sidecar: base_url must be an absolute url (got: %q)", c.BaseURL)
	}
	return nil
}
