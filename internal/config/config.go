// Package config provides configuration management for the chip extraction service.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig  `envPrefix:"SERVER_"`
	Catalog CatalogConfig `envPrefix:"CATALOG_"`
	Geo     GeoConfig     `envPrefix:"GEO_"`
	Raster  RasterConfig  `envPrefix:"RASTER_"`
	Runner  RunnerConfig  `envPrefix:"RUNNER_"`
	Output  OutputConfig  `envPrefix:"OUTPUT_"`
	Logging LoggingConfig `envPrefix:"LOG_"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// CatalogConfig contains STAC catalog client configuration.
type CatalogConfig struct {
	URL         string        `env:"URL" envDefault:"https://planetarycomputer.microsoft.com/api/stac/v1"`
	Collection  string        `env:"COLLECTION" envDefault:"naip"`
	AssetKey    string        `env:"ASSET_KEY" envDefault:"image"`
	SearchLimit int           `env:"SEARCH_LIMIT" envDefault:"20"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// GeoConfig contains footprint preparation configuration.
type GeoConfig struct {
	// BufferMeters is the metric buffer applied to every input footprint.
	BufferMeters float64 `env:"BUFFER_METERS" envDefault:"100"`
}

// RasterConfig contains raster read configuration.
type RasterConfig struct {
	// Resampling is "bilinear" or "nearest".
	Resampling string `env:"RESAMPLING" envDefault:"bilinear"`
	// Boundless permits read windows overhanging the scene edge; the
	// overhang is filled with the nodata value.
	Boundless bool          `env:"BOUNDLESS" envDefault:"true"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

// RunnerConfig contains batch runner configuration.
type RunnerConfig struct {
	Workers        int           `env:"WORKERS" envDefault:"4"`
	FeatureTimeout time.Duration `env:"FEATURE_TIMEOUT" envDefault:"2m"`
}

// OutputConfig contains crop persistence configuration.
type OutputConfig struct {
	Dir string `env:"DIR" envDefault:"./chips"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	// Validate catalog config
	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog URL is required")
	}

	if c.Catalog.Collection == "" {
		return fmt.Errorf("catalog collection is required")
	}

	if c.Catalog.AssetKey == "" {
		return fmt.Errorf("catalog asset key is required")
	}

	if c.Catalog.SearchLimit < 1 {
		return fmt.Errorf("catalog search limit must be at least 1, got %d", c.Catalog.SearchLimit)
	}

	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", c.Catalog.Timeout)
	}

	// Validate geo config
	if c.Geo.BufferMeters < 0 {
		return fmt.Errorf("buffer distance must not be negative, got %g", c.Geo.BufferMeters)
	}

	// Validate raster config
	if c.Raster.Resampling != "bilinear" && c.Raster.Resampling != "nearest" {
		return fmt.Errorf("resampling must be 'bilinear' or 'nearest', got %q", c.Raster.Resampling)
	}

	if c.Raster.Timeout <= 0 {
		return fmt.Errorf("raster timeout must be positive, got %s", c.Raster.Timeout)
	}

	// Validate runner config
	if c.Runner.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Runner.Workers)
	}

	if c.Runner.FeatureTimeout < 0 {
		return fmt.Errorf("feature timeout must not be negative, got %s", c.Runner.FeatureTimeout)
	}

	// Validate output config
	if c.Output.Dir == "" {
		return fmt.Errorf("output directory is required")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// Address returns the server listen address in the format "host:port".
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
