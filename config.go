package sandboxd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds daemon configuration. Values come from DefaultConfig,
// optionally overridden by a YAML config file and then by command-line
// flags.
type Config struct {
	// Dir is the runtime state directory. It holds the daemon's singleton
	// lock file and the task sockets handed to sandbox-manager callers.
	Dir string `yaml:"dir"`

	// Listen is the address the sandbox-manager service loop accepts
	// lifecycle calls on. The bootstrap itself never listens; the value is
	// carried here because the bootstrap must be running before that loop
	// starts.
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file or flags are
// given.
func DefaultConfig() *Config {
	return &Config{
		Dir:      "/run/sandboxd",
		Listen:   "unix:///run/sandboxd/sandboxd.sock",
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML config file and applies it over the defaults.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfigInvalid, path, err)
	}
	return cfg, nil
}

// Validate reports the first problem with the configuration.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("%w: dir must not be empty", ErrConfigInvalid)
	}
	if !filepath.IsAbs(c.Dir) {
		return fmt.Errorf("%w: dir %q must be an absolute path", ErrConfigInvalid, c.Dir)
	}
	if c.Listen == "" {
		return fmt.Errorf("%w: listen must not be empty", ErrConfigInvalid)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a config log level string onto a slog level. The empty
// string means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q", ErrConfigInvalid, s)
	}
}
