package backup

import (
	"fmt"
	"time"
)

// Config configures snapshot uploads to S3 or an S3-compatible service.
type Config struct {
	// Bucket must already exist.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Region defaults to us-east-1.
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint overrides the AWS endpoint (MinIO, Localstack).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// Prefix is prepended to every object key. Default: "bankd/"
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// MaxRetries for transient S3 errors. Default: 3
	MaxRetries uint `mapstructure:"max_retries" yaml:"max_retries"`

	// InitialBackoff before the first retry. Default: 100ms
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Prefix == "" {
		c.Prefix = "bankd/"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
}

// Validate checks the settings needed to reach the bucket.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("backup bucket is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("backup access_key_id and secret_access_key must be set together")
	}
	return nil
}
