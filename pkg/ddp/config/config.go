// Package config loads client settings from an HCL file and the environment.
//
// Example file:
//
//	url          = "wss://example.com/websocket"
//	dial_timeout = "10s"
//	log_level    = "debug"
//	heartbeat    = "@every 25s"
//	headers = {
//	  "X-API-Key" = "key123"
//	}
//
// DDP_URL, DDP_DIAL_TIMEOUT, DDP_WRITE_CHANNEL_SIZE, DDP_READ_LIMIT,
// DDP_LOG_LEVEL and DDP_HEARTBEAT override the file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ClientConfig is the decoded form of a client configuration file.
type ClientConfig struct {
	URL              string            `hcl:"url,optional" env:"DDP_URL"`
	DialTimeout      string            `hcl:"dial_timeout,optional" env:"DDP_DIAL_TIMEOUT"`
	WriteChannelSize int               `hcl:"write_channel_size,optional" env:"DDP_WRITE_CHANNEL_SIZE"`
	ReadLimit        int64             `hcl:"read_limit,optional" env:"DDP_READ_LIMIT"`
	LogLevel         string            `hcl:"log_level,optional" env:"DDP_LOG_LEVEL"`
	Heartbeat        string            `hcl:"heartbeat,optional" env:"DDP_HEARTBEAT"`
	Headers          map[string]string `hcl:"headers,optional"`
}

// Load reads and validates a configuration. See Read.
func Load(path string) (*ClientConfig, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read decodes an HCL (or HCL JSON, by extension) file and applies
// environment overrides, without validating the result. An empty path uses
// the environment alone.
func Read(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}

	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Decode(path, src, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}

// Decode parses src into cfg. filename selects the syntax and is used in
// diagnostics.
func Decode(filename string, src []byte, cfg *ClientConfig) error {
	if err := hclsimple.Decode(filename, src, nil, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate checks values that cannot be checked by the decoder.
func (c *ClientConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.WriteChannelSize < 0 {
		return fmt.Errorf("write_channel_size must not be negative, got %d", c.WriteChannelSize)
	}
	if c.ReadLimit < 0 {
		return fmt.Errorf("read_limit must not be negative, got %d", c.ReadLimit)
	}
	return nil
}

// Timeout returns the dial timeout, or zero when unset.
func (c *ClientConfig) Timeout() (time.Duration, error) {
	if c.DialTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.DialTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid dial_timeout %q: %w", c.DialTimeout, err)
	}
	return d, nil
}

// Level returns the configured log level, defaulting to info.
func (c *ClientConfig) Level() (zapcore.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "", "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	}
	return zap.InfoLevel, fmt.Errorf("invalid log_level %q", c.LogLevel)
}

// Apply copies the settings onto a client builder. Unset values leave the
// builder's defaults alone.
func (c *ClientConfig) Apply(b *client.ClientBuilder) *client.ClientBuilder {
	b.WithURL(c.URL)
	if d, err := c.Timeout(); err == nil {
		b.WithDialTimeout(d)
	}
	b.WithWriteChannelSize(c.WriteChannelSize)
	b.WithReadLimit(c.ReadLimit)
	b.WithHeartbeat(c.Heartbeat)
	for key, value := range c.Headers {
		b.WithHeader(key, value)
	}
	return b
}
