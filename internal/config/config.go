// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Generator() GeneratorConfig
	Database() DatabaseConfig
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger    LoggerConfig
	generator GeneratorConfig
	database  DatabaseConfig
}

// fileConfig mirrors Config with exported fields for decoding.
type fileConfig struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

func (c *Config) Logger() LoggerConfig       { return c.logger }
func (c *Config) Generator() GeneratorConfig { return c.generator }
func (c *Config) Database() DatabaseConfig   { return c.database }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// GeneratorConfig controls a generation run.
type GeneratorConfig struct {
	Pipeline  string `mapstructure:"pipeline" yaml:"pipeline"`
	Stats     string `mapstructure:"stats" yaml:"stats"`
	Count     int    `mapstructure:"count" yaml:"count"`
	Seed      int64  `mapstructure:"seed" yaml:"seed"`
	Workers   int    `mapstructure:"workers" yaml:"workers"`
	Format    string `mapstructure:"format" yaml:"format"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// DatabaseConfig holds the database connection details. An empty URL
// disables persistence.
type DatabaseConfig struct {
	URL         string `mapstructure:"url" yaml:"url"`
	AutoMigrate bool   `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// Enabled reports whether runs should be persisted.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "randfig")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Generator --
	v.SetDefault("generator.count", 1)
	v.SetDefault("generator.seed", 0)
	v.SetDefault("generator.workers", runtime.NumCPU())
	v.SetDefault("generator.format", "yaml")

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.auto_migrate", true)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var raw fileConfig

	// DATABASE_URL is the conventional name outside the RANDFIG_ prefix.
	_ = v.BindEnv("database.url", "RANDFIG_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg := &Config{logger: raw.Logger, generator: raw.Generator, database: raw.Database}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.generator.Pipeline, &c.generator.Stats, &c.generator.OutputDir, &c.logger.LogFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.generator.Validate(); err != nil {
		return fmt.Errorf("generator configuration invalid: %w", err)
	}
	switch c.logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logger.format must be console or json, got %q", ErrInvalid, c.logger.Format)
	}
	return nil
}

// Validate checks the generator settings.
func (g *GeneratorConfig) Validate() error {
	if g.Count <= 0 {
		return fmt.Errorf("%w: count must be a positive integer", ErrInvalid)
	}
	if g.Workers <= 0 {
		return fmt.Errorf("%w: workers must be a positive integer", ErrInvalid)
	}
	switch strings.ToLower(g.Format) {
	case "yaml", "yml", "json":
	default:
		return fmt.Errorf("%w: format must be yaml or json, got %q", ErrInvalid, g.Format)
	}
	return nil
}

// NewDefaultConfig returns the configuration produced by SetDefaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var raw fileConfig
	_ = v.Unmarshal(&raw)
	return &Config{logger: raw.Logger, generator: raw.Generator, database: raw.Database}
}

// New returns a Config built from explicit sections, validated.
func New(logger LoggerConfig, generator GeneratorConfig, database DatabaseConfig) (*Config, error) {
	cfg := &Config{logger: logger, generator: generator, database: database}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
