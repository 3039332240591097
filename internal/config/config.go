package config

import (
	"fmt"
)

// Hash modes accepted by DedupConfig.Hash.
const (
	HashExact   = "exact"
	HashMurmur3 = "murmur3"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// DedupConfig is the contract consumed by the dedup engine.
type DedupConfig struct {
	// File is the optional target file. Empty means pure filter mode.
	File   string `mapstructure:"file"`
	Quiet  bool   `mapstructure:"quiet"`
	DryRun bool   `mapstructure:"dry_run"`
	Hash   string `mapstructure:"hash"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// ApplyDefaults fills zero values left by flags and environment.
func (c *Config) ApplyDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "error"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
	if len(c.Logger.OutputPaths) == 0 {
		c.Logger.OutputPaths = []string{"stderr"}
	}
	if c.Dedup.Hash == "" {
		c.Dedup.Hash = HashExact
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "anew"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1.0
	}
}

func (c *Config) Validate() error {
	switch c.Dedup.Hash {
	case HashExact, HashMurmur3:
	default:
		return fmt.Errorf("unsupported hash mode %q (want %s or %s)", c.Dedup.Hash, HashExact, HashMurmur3)
	}

	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logger.Format)
	}

	for _, p := range c.Logger.OutputPaths {
		if p == "stdout" {
			return fmt.Errorf("logger output cannot be stdout: it carries deduplicated lines")
		}
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate must be within [0, 1], got %v", c.Telemetry.SampleRate)
	}
	return nil
}
