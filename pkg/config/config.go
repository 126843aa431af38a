package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pantrylabs/cookbook/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Media         MediaConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite3"
	Driver   string
	URL      string
	MaxConns int
	MinConns int
	Timeout  time.Duration
}

// MediaConfig holds uploaded-file storage configuration
type MediaConfig struct {
	// Root is the directory recipe images are stored under
	Root string
	// MaxUploadBytes limits the size of a single image upload
	MaxUploadBytes int64
}

// AuthConfig holds token issuance settings
type AuthConfig struct {
	// TokenTTL is how long issued tokens stay valid; zero means no expiry
	TokenTTL time.Duration
	// PurgeSchedule is a cron expression for purging expired tokens
	PurgeSchedule string
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("COOKBOOK_HOST", "0.0.0.0"),
			Port:            getEnv("COOKBOOK_PORT", "8080"),
			ReadTimeout:     getEnvDuration("COOKBOOK_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("COOKBOOK_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("COOKBOOK_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("COOKBOOK_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    getEnvInt64("COOKBOOK_MAX_BODY_BYTES", 10*1024*1024),
			HealthPort:      getEnv("COOKBOOK_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("COOKBOOK_DB_DRIVER", "postgres"),
			URL:      getEnv("COOKBOOK_DB_URL", ""),
			MaxConns: getEnvInt("COOKBOOK_DB_MAX_CONNS", 25),
			MinConns: getEnvInt("COOKBOOK_DB_MIN_CONNS", 5),
			Timeout:  getEnvDuration("COOKBOOK_DB_TIMEOUT", 5*time.Second),
		},
		Media: MediaConfig{
			Root:           getEnv("COOKBOOK_MEDIA_ROOT", "/vol/web/media"),
			MaxUploadBytes: getEnvInt64("COOKBOOK_MAX_UPLOAD_BYTES", 5*1024*1024),
		},
		Auth: AuthConfig{
			TokenTTL:      getEnvDuration("COOKBOOK_TOKEN_TTL", 30*24*time.Hour),
			PurgeSchedule: getEnv("COOKBOOK_TOKEN_PURGE_SCHEDULE", "@hourly"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("COOKBOOK_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("COOKBOOK_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
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

	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
	case "sqlite3":
		if c.Database.URL == "" {
			return fmt.Errorf("database URL is required for sqlite3 (use :memory: for an in-memory database)")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}

	if c.Media.Root == "" {
		return fmt.Errorf("media root is required")
	}
	if c.Auth.PurgeSchedule == "" {
		return fmt.Errorf("token purge schedule is required")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
