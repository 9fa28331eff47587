// Package config loads the dvault command line configuration.
package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/internal/timeout"
)

// Environment variables overriding file settings.
const (
	EnvTimeout    = "DVAULT_TIMEOUT"
	EnvStorageDir = "DVAULT_STORAGE_DIR"
	EnvLogLevel   = "DVAULT_LOG_LEVEL"
)

// Config is the dvault configuration file.
type Config struct {
	// Timeout bounds each vault operation, as a Go duration string.
	Timeout string `yaml:"timeout" json:"timeout"`

	// StorageDir holds local replicas of vaults opened by address, one
	// directory per key. Empty keeps replicas in memory.
	StorageDir string `yaml:"storage_dir" json:"storage_dir"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Network NetworkConfig `yaml:"network" json:"network"`
}

// NetworkConfig controls peer replication.
type NetworkConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Timeout:  timeout.DefaultTimeout.String(),
		LogLevel: "warn",
		Network:  NetworkConfig{Enabled: true},
	}
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".dvault", "config.yaml")
	}
	return filepath.Join(dir, "dvault", "config.yaml")
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, verrors.WithContext(verrors.Wrap(err, verrors.CodeInternal, "failed to read config"), "path", path)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, verrors.WithContext(verrors.Wrap(err, verrors.CodeInvalidInput, "failed to parse config"), "path", path)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to write config")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvStorageDir); v != "" {
		c.StorageDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the timeout and log level parse.
func (c *Config) Validate() error {
	if _, err := c.parseTimeout(); err != nil {
		return err
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

// GetTimeout returns the operation timeout, falling back to the default
// when unset or invalid.
func (c *Config) GetTimeout() time.Duration {
	d, err := c.parseTimeout()
	if err != nil || d <= 0 {
		return timeout.DefaultTimeout
	}
	return d
}

func (c *Config) parseTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return timeout.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, verrors.WithContext(verrors.Wrap(err, verrors.CodeInvalidInput, "invalid timeout"), "timeout", c.Timeout)
	}
	return d, nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, verrors.WithContext(verrors.Wrap(err, verrors.CodeInvalidInput, "invalid log level"), "log_level", c.LogLevel)
	}
	return l, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	l, err := c.level()
	if err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// ReplicaDir returns the storage directory for a vault opened by key, or ""
// when replicas are kept in memory.
func (c *Config) ReplicaDir(key string) string {
	if c.StorageDir == "" {
		return ""
	}
	return filepath.Join(c.StorageDir, key)
}
