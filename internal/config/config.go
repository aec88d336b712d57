package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds all bridge settings. Values come from defaults, then an
// optional YAML file, then environment variables, in that order.
type Config struct {
	// Host/Port the bridge listens on. Loopback by convention; the
	// execute-code tool grants full scripting access to anyone who can
	// connect. Port 0 binds an ephemeral port.
	Host string `yaml:"host" env:"WOODY_MCP_HOST"`
	Port int    `yaml:"port" env:"WOODY_MCP_PORT"`

	// AuthSecret enables the shared-secret gate when non-empty. Clients
	// must send {"secret": "<value>"} as their first line.
	AuthSecret string `yaml:"auth_secret" env:"WOODY_MCP_SECRET"`

	// AuthReplyOnFailure controls whether a failed authentication gets
	// an error response before the connection closes. Off by default:
	// unauthenticated callers learn nothing.
	AuthReplyOnFailure bool `yaml:"auth_reply_on_failure" env:"WOODY_MCP_AUTH_REPLY"`

	// PollIntervalMS is the accept-poll cadence of the serving loop.
	PollIntervalMS int `yaml:"poll_interval_ms" env:"WOODY_MCP_POLL_INTERVAL_MS"`

	// ReadTimeoutSec bounds how long a connection may take to deliver
	// its request (and auth line).
	ReadTimeoutSec int `yaml:"read_timeout_sec" env:"WOODY_MCP_READ_TIMEOUT_SEC"`

	// ExportDir receives exported files. Created on first export.
	ExportDir string `yaml:"export_dir" env:"WOODY_MCP_EXPORT_DIR"`

	// ExportRetention prunes the oldest export_* files beyond this
	// count after each successful export. 0 keeps everything.
	ExportRetention int `yaml:"export_retention" env:"WOODY_MCP_EXPORT_RETENTION"`

	DefaultImageWidth  int `yaml:"default_image_width" env:"WOODY_MCP_IMAGE_WIDTH"`
	DefaultImageHeight int `yaml:"default_image_height" env:"WOODY_MCP_IMAGE_HEIGHT"`
	MaxImageDimension  int `yaml:"max_image_dimension" env:"WOODY_MCP_MAX_IMAGE_DIMENSION"`

	LogLevel string `yaml:"log_level" env:"WOODY_MCP_LOG_LEVEL"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Host:               "127.0.0.1",
		Port:               9876,
		PollIntervalMS:     50,
		ReadTimeoutSec:     15,
		ExportDir:          filepath.Join(os.TempDir(), "woody-mcp-exports"),
		DefaultImageWidth:  1920,
		DefaultImageHeight: 1080,
		MaxImageDimension:  8192,
		LogLevel:           "info",
	}
}

// Load builds the effective configuration. path may be empty, in which
// case only defaults and environment variables apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the bridge cannot run with.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PollIntervalMS < 1 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMS)
	}
	if c.ReadTimeoutSec < 1 {
		return fmt.Errorf("read_timeout_sec must be positive, got %d", c.ReadTimeoutSec)
	}
	if c.ExportRetention < 0 {
		return fmt.Errorf("export_retention must not be negative, got %d", c.ExportRetention)
	}
	if c.MaxImageDimension < 1 {
		return fmt.Errorf("max_image_dimension must be positive, got %d", c.MaxImageDimension)
	}
	if c.DefaultImageWidth < 1 || c.DefaultImageWidth > c.MaxImageDimension {
		return fmt.Errorf("default_image_width %d out of range 1..%d", c.DefaultImageWidth, c.MaxImageDimension)
	}
	if c.DefaultImageHeight < 1 || c.DefaultImageHeight > c.MaxImageDimension {
		return fmt.Errorf("default_image_height %d out of range 1..%d", c.DefaultImageHeight, c.MaxImageDimension)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return nil
}

// PollInterval returns the poll cadence as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ReadTimeout returns the per-connection read deadline as a duration.
func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}
