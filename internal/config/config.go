package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/bindery/internal/errors"
	"github.com/vango-dev/bindery/pkg/model"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "bindery.json"

	// DefaultLogLevel is the default slog level name.
	DefaultLogLevel = "info"

	// DefaultMaxPassDepth is the default nested-operation limit.
	DefaultMaxPassDepth = model.DefaultMaxPassDepth

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "bindery"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "bindery"
)

// Config represents bindery.json.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty"`

	// Scope configures the property graph.
	Scope ScopeConfig `json:"scope"`

	// Metrics configures the Prometheus observer.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing configures the OpenTelemetry observer.
	Tracing TracingConfig `json:"tracing"`

	configPath string
}

// ScopeConfig configures model.Scope.
type ScopeConfig struct {
	// MaxPassDepth bounds nested Set/Touch/Reassess calls.
	MaxPassDepth int `json:"maxPassDepth,omitempty"`

	// Strict panics at the limit instead of returning an error.
	Strict bool `json:"strict,omitempty"`
}

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Subsystem string `json:"subsystem,omitempty"`
}

// TracingConfig configures the OpenTelemetry observer.
type TracingConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Scope: ScopeConfig{
			MaxPassDepth: DefaultMaxPassDepth,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
	}
}

// Load reads bindery.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from path and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("C002").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("C001").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		e := errors.New("C001").WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
		var syntax *json.SyntaxError
		if stderrors.As(err, &syntax) {
			line, col := position(data, syntax.Offset)
			e.WithLocation(path, line, col)
		}
		return nil, e
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return New(), nil
	}
	return LoadFile(path)
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("C001").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("C001").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from or saved to.
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Scope.MaxPassDepth == 0 {
		c.Scope.MaxPassDepth = DefaultMaxPassDepth
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Scope.MaxPassDepth < 1 {
		return errors.New("C003").
			WithDetailf("scope.maxPassDepth must be at least 1, got %d", c.Scope.MaxPassDepth)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, errors.New("C003").
			WithDetailf("logLevel %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return level, nil
}

// ScopeOptions translates the scope settings into model options.
func (c *Config) ScopeOptions() []model.Option {
	return []model.Option{
		model.WithMaxPassDepth(c.Scope.MaxPassDepth),
		model.WithStrict(c.Scope.Strict),
	}
}

// Exists reports whether dir holds a config file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (line, col int) {
	line, col = 1, 1
	for i := int64(0); i < offset-1 && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// String summarizes the effective settings for logs.
func (c *Config) String() string {
	return fmt.Sprintf("logLevel=%s maxPassDepth=%d strict=%v metrics=%v tracing=%v",
		c.LogLevel, c.Scope.MaxPassDepth, c.Scope.Strict, c.Metrics.Enabled, c.Tracing.Enabled)
}
