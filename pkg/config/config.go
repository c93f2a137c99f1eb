// Package config loads tnpcheck settings from YAML on top of embedded
// defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/chazu/toponame/pkg/resolve"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Config is the full tnpcheck configuration.
type Config struct {
	Policy     Policy             `yaml:"policy"`
	Kernel     Kernel             `yaml:"kernel"`
	Tolerances resolve.Tolerances `yaml:"tolerances"`
	Store      Store              `yaml:"store"`
	Rebuild    Rebuild            `yaml:"rebuild"`
	Log        Log                `yaml:"log"`
}

// Policy selects the reference fallback policy.
type Policy struct {
	Strict bool `yaml:"strict"`
}

// Kernel names the geometry backend.
type Kernel struct {
	Backend string `yaml:"backend" validate:"required"`
}

// Store configures the badger repository.
type Store struct {
	Path       string `yaml:"path" validate:"required_without=InMemory"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// Rebuild configures the rebuild loop.
type Rebuild struct {
	Cycles int `yaml:"cycles" validate:"gte=1,lte=1000"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

var validate = validator.New()

// Default returns the embedded defaults.
func Default() (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(defaultYAML, &c); err != nil {
		return nil, fmt.Errorf("config: embedded defaults: %w", err)
	}
	return &c, nil
}

// Parse applies data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Validate checks every field constraint, tolerances included.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// NewLogger builds a zap logger writing to stderr at level.
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// Logger builds the logger described by c.
func (c *Config) Logger() (*zap.Logger, error) {
	return NewLogger(c.Log.Level, c.Log.Format)
}
