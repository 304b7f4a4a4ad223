// Package config loads engine configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the engine configuration.
// It can be loaded from typequery.yml with environment variable overrides.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Vectors  VectorConfig   `yaml:"vectors" mapstructure:"vectors"`
	Query    QueryConfig    `yaml:"query" mapstructure:"query"`
}

// DatabaseConfig selects the dialect and connection.
type DatabaseConfig struct {
	Dialect string `yaml:"dialect" mapstructure:"dialect"` // "sqlite" or "postgres"
	DSN     string `yaml:"dsn" mapstructure:"dsn"`         // path for sqlite, conninfo for postgres
}

// VectorConfig configures embedding fields.
type VectorConfig struct {
	Dimensions int `yaml:"dimensions" mapstructure:"dimensions"` // embedding vector dimensions
}

// QueryConfig tunes execution defaults.
type QueryConfig struct {
	DefaultPageSize int `yaml:"default_page_size" mapstructure:"default_page_size"`
	StreamBatchSize int `yaml:"stream_batch_size" mapstructure:"stream_batch_size"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: "sqlite",
			DSN:     ":memory:",
		},
		Vectors: VectorConfig{
			Dimensions: 384,
		},
		Query: QueryConfig{
			DefaultPageSize: 20,
			StreamBatchSize: 1000,
		},
	}
}

// Load reads configuration from the given directory (typequery.yml),
// applying defaults and TYPEQUERY_* environment overrides. A missing file
// yields the defaults.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("typequery")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath(".")
	}

	def := Default()
	v.SetDefault("database.dialect", def.Database.Dialect)
	v.SetDefault("database.dsn", def.Database.DSN)
	v.SetDefault("vectors.dimensions", def.Vectors.Dimensions)
	v.SetDefault("query.default_page_size", def.Query.DefaultPageSize)
	v.SetDefault("query.stream_batch_size", def.Query.StreamBatchSize)

	v.SetEnvPrefix("TYPEQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Database.Dialect != "sqlite" && cfg.Database.Dialect != "postgres" {
		return nil, fmt.Errorf("unknown dialect %q", cfg.Database.Dialect)
	}
	return &cfg, nil
}
