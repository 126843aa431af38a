package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrylabs/cookbook/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("COOKBOOK_DB_URL", "postgres://localhost/cookbook")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, "/vol/web/media", cfg.Media.Root)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "@hourly", cfg.Auth.PurgeSchedule)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("COOKBOOK_DB_DRIVER", "sqlite3")
	t.Setenv("COOKBOOK_DB_URL", ":memory:")
	t.Setenv("COOKBOOK_PORT", "9999")
	t.Setenv("COOKBOOK_LOG_LEVEL", "debug")
	t.Setenv("COOKBOOK_READ_TIMEOUT", "3s")
	t.Setenv("COOKBOOK_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.URL)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing db url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "database URL is required",
		},
		{
			name:    "bad driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "invalid database driver",
		},
		{
			name: "port collision",
			mutate: func(c *Config) {
				c.Server.Port = "8080"
				c.Server.HealthPort = "8080"
			},
			wantErr: "must be different",
		},
		{
			name:    "missing media root",
			mutate:  func(c *Config) { c.Media.Root = "" },
			wantErr: "media root is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("COOKBOOK_DB_URL", "postgres://localhost/cookbook")
			cfg, err := LoadConfig()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("ERROR"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("bogus"))
}
