// Package config loads application configuration from an optional YAML
// file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Konsultn-Engineering/silence/connector"
	"github.com/Konsultn-Engineering/silence/logging"
)

// Config holds all configuration for silence.
// Environment variables always override YAML values. Secrets (the
// database password) must only come from environment variables.
type Config struct {
	Database connector.Config  `yaml:"database"`
	Log      logging.LogConfig `yaml:"log"`
	Schema   SchemaConfig      `yaml:"schema"`
	Template TemplateConfig    `yaml:"template"`
	Executor ExecutorConfig    `yaml:"executor"`
}

// SchemaConfig controls entity reflection.
type SchemaConfig struct {
	TagName      string `yaml:"tag_name" env:"SILENCE_SCHEMA_TAG" env-default:"db"`
	PluralTables bool   `yaml:"plural_tables" env:"SILENCE_SCHEMA_PLURAL_TABLES" env-default:"false"`
	CacheSize    int    `yaml:"cache_size" env:"SILENCE_SCHEMA_CACHE_SIZE" env-default:"256"`
}

// TemplateConfig controls the template engine.
type TemplateConfig struct {
	// CacheSize of zero disables the scan cache.
	CacheSize        int  `yaml:"cache_size" env:"SILENCE_TEMPLATE_CACHE_SIZE" env-default:"512"`
	InjectionGuard   bool `yaml:"injection_guard" env:"SILENCE_TEMPLATE_INJECTION_GUARD" env-default:"true"`
	StrictConditions bool `yaml:"strict_conditions" env:"SILENCE_TEMPLATE_STRICT_CONDITIONS" env-default:"false"`
}

// ExecutorConfig controls statement execution.
type ExecutorConfig struct {
	// StatementCacheSize of zero disables prepared statement caching.
	StatementCacheSize int `yaml:"statement_cache_size" env:"SILENCE_EXECUTOR_STATEMENT_CACHE_SIZE" env-default:"128"`
}

// Load reads path, when given, with environment overrides. An empty path
// reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Schema.TagName == "" {
		return errors.New("schema.tag_name must not be empty")
	}
	if c.Schema.CacheSize <= 0 {
		return fmt.Errorf("schema.cache_size must be positive, got %d", c.Schema.CacheSize)
	}
	if c.Template.CacheSize < 0 {
		return fmt.Errorf("template.cache_size must not be negative, got %d", c.Template.CacheSize)
	}
	if c.Executor.StatementCacheSize < 0 {
		return fmt.Errorf("executor.statement_cache_size must not be negative, got %d", c.Executor.StatementCacheSize)
	}
	return nil
}
