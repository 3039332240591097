package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerConfig(t *testing.T) {
	config := LoggerConfig{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{"stderr"},
	}

	assert.Equal(t, "debug", config.Level)
	assert.Equal(t, "json", config.Format)
	assert.Contains(t, config.OutputPaths, "stderr")
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "error", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, []string{"stderr"}, cfg.Logger.OutputPaths)
	assert.Equal(t, HashExact, cfg.Dedup.Hash)
	assert.Equal(t, "anew", cfg.Telemetry.ServiceName)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.False(t, cfg.Dedup.Quiet)
	assert.False(t, cfg.Dedup.DryRun)
	assert.Empty(t, cfg.Dedup.File)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Logger: LoggerConfig{Level: "debug", Format: "json"},
		Dedup:  DedupConfig{Hash: HashMurmur3, File: "seen.txt"},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, HashMurmur3, cfg.Dedup.Hash)
	assert.Equal(t, "seen.txt", cfg.Dedup.File)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:   "murmur3 hash",
			mutate: func(c *Config) { c.Dedup.Hash = HashMurmur3 },
		},
		{
			name:    "unknown hash",
			mutate:  func(c *Config) { c.Dedup.Hash = "md5" },
			wantErr: "unsupported hash mode",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logger.Format = "xml" },
			wantErr: "unsupported log format",
		},
		{
			name:    "logging to stdout",
			mutate:  func(c *Config) { c.Logger.OutputPaths = []string{"stderr", "stdout"} },
			wantErr: "cannot be stdout",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 2 },
			wantErr: "sample rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
