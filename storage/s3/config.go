package s3

import (
	"errors"
	"fmt"
	"time"
)

// DefaultRegion is the default AWS region.
const DefaultRegion = "us-east-1"

// DefaultURLExpiry is how long presigned audio urls stay valid.
const DefaultURLExpiry = 15 * time.Minute

// Config holds S3 settings used to presign s3:// audio urls.
type Config struct {
	// Enabled turns s3:// url rewriting on.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Region is the AWS region.
	Region string `mapstructure:"region" json:"region"`

	// Endpoint is a custom S3-compatible endpoint (e.g. MinIO).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// AccessKey and SecretKey are static credentials. When empty the default
	// AWS credential chain is used.
	AccessKey string `mapstructure:"access_key" json:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"-"`

	// ForcePathStyle forces path-style URLs instead of virtual-hosted-style.
	ForcePathStyle bool `mapstructure:"force_path_style" json:"force_path_style"`

	// URLExpiry is the lifetime of presigned urls.
	URLExpiry time.Duration `mapstructure:"url_expiry" json:"url_expiry"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.URLExpiry <= 0 {
		c.URLExpiry = DefaultURLExpiry
	}
}

// Validate checks that the S3 configuration is valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		errs = append(errs, errors.New("access_key and secret_key must be set together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("s3: invalid config: %w", errors.Join(errs...))
	}
	return nil
}
