package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.SegmentCount)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 0.20, cfg.ChurnCeiling)
	assert.Equal(t, 3.0, cfg.RatioTarget)
	assert.Equal(t, 0.50, cfg.GridSpan)
	assert.Equal(t, 0.05, cfg.GridStep)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PRICELAB_SEGMENTS", "6")
	t.Setenv("PRICELAB_SEED", "7")
	t.Setenv("PRICELAB_CHURN_CEILING", "0.30")
	t.Setenv("PRICELAB_PROGRESS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.SegmentCount)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 0.30, cfg.ChurnCeiling)
	assert.False(t, cfg.Progress)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero segments", mutate: func(c *Config) { c.SegmentCount = 0 }, wantErr: true},
		{name: "churn ceiling above 1", mutate: func(c *Config) { c.ChurnCeiling = 1.5 }, wantErr: true},
		{name: "churn ceiling zero", mutate: func(c *Config) { c.ChurnCeiling = 0 }, wantErr: true},
		{name: "grid span of 1 would hit zero price", mutate: func(c *Config) { c.GridSpan = 1.0 }, wantErr: true},
		{name: "step larger than span", mutate: func(c *Config) { c.GridStep = 0.9 }, wantErr: true},
		{name: "negative ratio target", mutate: func(c *Config) { c.RatioTarget = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				SegmentCount: 4,
				ChurnCeiling: 0.20,
				RatioTarget:  3.0,
				GridSpan:     0.50,
				GridStep:     0.05,
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
