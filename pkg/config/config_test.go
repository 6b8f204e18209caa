package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SOFTDESK_JWT_SECRET", testSecret)
	t.Setenv("SOFTDESK_STORAGE_TYPE", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, Duration(15*time.Minute), cfg.Auth.AccessTTL)
	assert.Equal(t, "@hourly", cfg.Auth.TokenSweepSchedule)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SOFTDESK_JWT_SECRET", testSecret)
	t.Setenv("SOFTDESK_STORAGE_TYPE", "postgres")
	t.Setenv("SOFTDESK_POSTGRES_URL", "postgres://localhost/softdesk")
	t.Setenv("SOFTDESK_PORT", "8181")
	t.Setenv("SOFTDESK_ACCESS_TTL", "5m")
	t.Setenv("SOFTDESK_LOG_LEVEL", "debug")
	t.Setenv("SOFTDESK_OTEL_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, Duration(5*time.Minute), cfg.Auth.AccessTTL)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.OTelEnabled)

	pg := cfg.Storage.PostgresConfig()
	assert.Equal(t, "postgres://localhost/softdesk", pg.URL)
	assert.Equal(t, 25, pg.MaxConns)
}

func TestLoadConfigYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "8282"
  read_timeout: 5s
storage:
  type: memory
auth:
  issuer: support-staging
  refresh_ttl: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("SOFTDESK_CONFIG_FILE", path)
	t.Setenv("SOFTDESK_JWT_SECRET", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8282", cfg.Server.Port)
	assert.Equal(t, Duration(5*time.Second), cfg.Server.ReadTimeout)
	assert.Equal(t, "support-staging", cfg.Auth.Issuer)
	assert.Equal(t, Duration(48*time.Hour), cfg.Auth.RefreshTTL)

	t.Run("environment wins over the file", func(t *testing.T) {
		t.Setenv("SOFTDESK_PORT", "8383")
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "8383", cfg.Server.Port)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Storage.Type = "memory"
		cfg.Auth.JWTSecret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid memory config",
			mutate: func(c *Config) {},
		},
		{
			name:    "same port for api and health",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Storage.Type = "postgres" },
			wantErr: "postgres URL is required",
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage.Type = "cassandra" },
			wantErr: "invalid storage type",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "short" },
			wantErr: "at least 32 bytes",
		},
		{
			name:    "access outlives refresh",
			mutate:  func(c *Config) { c.Auth.AccessTTL = c.Auth.RefreshTTL },
			wantErr: "shorter than the refresh",
		},
		{
			name: "otel enabled without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "OpenTelemetry endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
