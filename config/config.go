// Package config loads the feedback widget configuration from YAML with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vgarvardt/fidebe/console"
)

// DefaultMaxEntries is the log buffer capacity of the widget.
// It is larger than console.DefaultMaxEntries, a widget usually runs for the whole process life.
const DefaultMaxEntries = 400

// Environment variables overriding the file configuration.
const (
	EnvEndpoint   = "FIDEBE_ENDPOINT"
	EnvMaxEntries = "FIDEBE_MAX_ENTRIES"
	EnvTimeout    = "FIDEBE_TIMEOUT"
)

// ErrInvalid is returned when the configuration does not validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the widget configuration.
type Config struct {
	// Endpoint receives the submissions, may be empty when the widget gets its own sink.
	Endpoint string `yaml:"endpoint"`
	// Timeout of a single submission request.
	Timeout time.Duration `yaml:"timeout"`
	// Headers are added to every submission request.
	Headers map[string]string `yaml:"headers,omitempty"`
	// Labels are attached to every submission.
	Labels map[string]string `yaml:"labels,omitempty"`

	Console ConsoleConfig `yaml:"console"`
	Env     EnvConfig     `yaml:"env"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ConsoleConfig configures the log recorder.
type ConsoleConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxEntries    int  `yaml:"max_entries"`
	CaptureStack  bool `yaml:"capture_stack"`
	Slog          bool `yaml:"slog"`
	StdLog        bool `yaml:"std_log"`
	Events        bool `yaml:"events"`
	ClearOnSubmit bool `yaml:"clear_on_submit"`
}

// EnvConfig configures the environment collection.
type EnvConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig configures the recorder metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Timeout: 30 * time.Second,
		Console: ConsoleConfig{
			Enabled:      true,
			MaxEntries:   DefaultMaxEntries,
			CaptureStack: true,
			Slog:         true,
			StdLog:       true,
			Events:       true,
		},
		Env:     EnvConfig{Enabled: true},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads the configuration file, applies the environment overrides and validates the result.
// An empty path means defaults with the environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("could not read configuration file %q: %w", path, err)
		}
		if cfg, err = decode(data); err != nil {
			return Config{}, fmt.Errorf("could not parse configuration file %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration, keys missing in data keep their defaults.
func Parse(data []byte) (Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return Config{}, fmt.Errorf("could not parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvEndpoint); ok && v != "" {
		c.Endpoint = v
	}
	if v, ok := lookup(EnvMaxEntries); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, EnvMaxEntries, v)
		}
		c.Console.MaxEntries = n
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, EnvTimeout, v)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: endpoint %q must be an absolute http(s) URL", ErrInvalid, c.Endpoint)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalid, c.Timeout)
	}
	if c.Console.Enabled && c.Console.MaxEntries < 1 {
		return fmt.Errorf("%w: console.max_entries must be positive, got %d", ErrInvalid, c.Console.MaxEntries)
	}
	return nil
}

// RecorderOptions translates the console section into recorder options.
func (c ConsoleConfig) RecorderOptions() []console.Option {
	return []console.Option{
		console.WithStack(c.CaptureStack),
		console.WithSlog(c.Slog),
		console.WithStdLog(c.StdLog),
		console.WithGlobalEvents(c.Events),
	}
}
