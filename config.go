package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const defaultSocketPath = "/tmp/streamedit.sock"

// Config holds the defaults that can be given in a YAML file. Command-line
// flags that are set explicitly take precedence.
type Config struct {
	NoAutoprint    bool          `yaml:"no_autoprint"`
	Color          string        `yaml:"color"`
	Debug          bool          `yaml:"debug"`
	Socket         string        `yaml:"socket"`
	MaxConnections int           `yaml:"max_connections"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Color:      "auto",
		Socket:     defaultSocketPath,
		RunTimeout: DefaultRunTimeout,
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults. An
// empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that have a fixed set of choices.
func (c Config) Validate() error {
	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("color must be auto, always or never, got %q", c.Color)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative")
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run_timeout must not be negative")
	}
	return nil
}

// newLogger returns a development logger on stderr when debug is set and a
// no-op logger otherwise.
func newLogger(debug bool) (*zap.Logger, error) {
	if !debug {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// configureColor decides whether colored output is used. In auto mode color
// is only used when f is a terminal.
func configureColor(mode string, f *os.File) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !term.IsTerminal(int(f.Fd()))
	}
}
