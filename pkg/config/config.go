package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/softdesk/support/pkg/observability"
	"github.com/softdesk/support/pkg/storage/postgres"
)

// Duration is a time.Duration that parses from YAML strings like "15s"
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Auth configuration
	Auth AuthConfig `yaml:"auth"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            string   `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// StorageConfig selects and configures the backing store
type StorageConfig struct {
	// Type is either "postgres" or "memory"
	Type string `yaml:"type"`

	PostgresURL         string   `yaml:"postgres_url"`
	PostgresMaxConns    int      `yaml:"postgres_max_conns"`
	PostgresMinConns    int      `yaml:"postgres_min_conns"`
	PostgresTimeout     Duration `yaml:"postgres_timeout"`
	PostgresMaxLifetime Duration `yaml:"postgres_max_lifetime"`
}

// PostgresConfig converts the storage section into pool settings
func (c StorageConfig) PostgresConfig() postgres.Config {
	return postgres.Config{
		URL:         c.PostgresURL,
		MaxConns:    c.PostgresMaxConns,
		MinConns:    c.PostgresMinConns,
		Timeout:     c.PostgresTimeout.Std(),
		MaxLifetime: c.PostgresMaxLifetime.Std(),
	}
}

// AuthConfig holds token issuance settings
type AuthConfig struct {
	// JWTSecret signs access tokens. Required, at least 32 bytes.
	JWTSecret  string   `yaml:"jwt_secret"`
	Issuer     string   `yaml:"issuer"`
	AccessTTL  Duration `yaml:"access_ttl"`
	RefreshTTL Duration `yaml:"refresh_ttl"`

	// TokenSweepSchedule is a cron expression for purging expired
	// refresh tokens.
	TokenSweepSchedule string `yaml:"token_sweep_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// ParsedLogLevel returns the configured level as a logger level
func (c ObservabilityConfig) ParsedLogLevel() observability.LogLevel {
	return observability.ParseLevel(c.LogLevel)
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// named by SOFTDESK_CONFIG_FILE, and environment overrides, in that order.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("SOFTDESK_CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Storage: StorageConfig{
			Type:                "postgres",
			PostgresMaxConns:    25,
			PostgresMinConns:    5,
			PostgresTimeout:     Duration(5 * time.Second),
			PostgresMaxLifetime: Duration(30 * time.Minute),
		},
		Auth: AuthConfig{
			Issuer:             "softdesk",
			AccessTTL:          Duration(15 * time.Minute),
			RefreshTTL:         Duration(7 * 24 * time.Hour),
			TokenSweepSchedule: "@hourly",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "softdesk-support",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays SOFTDESK_* environment variables onto the config
func applyEnv(cfg *Config) {
	setEnvString(&cfg.Server.Host, "SOFTDESK_HOST")
	setEnvString(&cfg.Server.Port, "SOFTDESK_PORT")
	setEnvDuration(&cfg.Server.ReadTimeout, "SOFTDESK_READ_TIMEOUT")
	setEnvDuration(&cfg.Server.WriteTimeout, "SOFTDESK_WRITE_TIMEOUT")
	setEnvDuration(&cfg.Server.IdleTimeout, "SOFTDESK_IDLE_TIMEOUT")
	setEnvDuration(&cfg.Server.ShutdownTimeout, "SOFTDESK_SHUTDOWN_TIMEOUT")
	setEnvInt64(&cfg.Server.MaxBodyBytes, "SOFTDESK_MAX_BODY_BYTES")
	setEnvString(&cfg.Server.HealthPort, "SOFTDESK_HEALTH_PORT")

	setEnvString(&cfg.Storage.Type, "SOFTDESK_STORAGE_TYPE")
	setEnvString(&cfg.Storage.PostgresURL, "SOFTDESK_POSTGRES_URL")
	setEnvInt(&cfg.Storage.PostgresMaxConns, "SOFTDESK_POSTGRES_MAX_CONNS")
	setEnvInt(&cfg.Storage.PostgresMinConns, "SOFTDESK_POSTGRES_MIN_CONNS")
	setEnvDuration(&cfg.Storage.PostgresTimeout, "SOFTDESK_POSTGRES_TIMEOUT")
	setEnvDuration(&cfg.Storage.PostgresMaxLifetime, "SOFTDESK_POSTGRES_MAX_LIFETIME")

	setEnvString(&cfg.Auth.JWTSecret, "SOFTDESK_JWT_SECRET")
	setEnvString(&cfg.Auth.Issuer, "SOFTDESK_JWT_ISSUER")
	setEnvDuration(&cfg.Auth.AccessTTL, "SOFTDESK_ACCESS_TTL")
	setEnvDuration(&cfg.Auth.RefreshTTL, "SOFTDESK_REFRESH_TTL")
	setEnvString(&cfg.Auth.TokenSweepSchedule, "SOFTDESK_TOKEN_SWEEP_SCHEDULE")

	setEnvString(&cfg.Observability.LogLevel, "SOFTDESK_LOG_LEVEL")
	setEnvBool(&cfg.Observability.MetricsEnabled, "SOFTDESK_METRICS_ENABLED")
	setEnvBool(&cfg.Observability.OTelEnabled, "SOFTDESK_OTEL_ENABLED")
	setEnvString(&cfg.Observability.OTelEndpoint, "SOFTDESK_OTEL_ENDPOINT")
	setEnvString(&cfg.Observability.OTelServiceName, "SOFTDESK_OTEL_SERVICE_NAME")
	setEnvString(&cfg.Observability.OTelServiceVersion, "SOFTDESK_OTEL_SERVICE_VERSION")
	setEnvBool(&cfg.Observability.OTelInsecure, "SOFTDESK_OTEL_INSECURE")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Storage.Type {
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage type: %s (must be postgres or memory)", c.Storage.Type)
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return fmt.Errorf("access token lifetime must be shorter than the refresh lifetime")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// setEnvString overwrites dst when the variable is set and non-empty
func setEnvString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

// setEnvBool overwrites dst when the variable is set
func setEnvBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		v := strings.ToLower(value)
		*dst = v == "true" || v == "1"
	}
}

// setEnvInt overwrites dst when the variable parses as an integer
func setEnvInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			*dst = intVal
		}
	}
}

// setEnvInt64 overwrites dst when the variable parses as an int64
func setEnvInt64(dst *int64, key string) {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dst = intVal
		}
	}
}

// setEnvDuration overwrites dst when the variable parses as a duration
func setEnvDuration(dst *Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			*dst = Duration(duration)
		}
	}
}
