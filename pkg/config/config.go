package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/trialstack/reportgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Engine configuration for the report export engine
	Engine EngineConfig

	// Relay configuration for the context re-entry hop
	Relay RelayConfig

	// Alerting configuration for security notifications
	Alerting AlertingConfig

	// Observability configuration
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

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds the connection settings for the records platform's
// database, which this gateway reads for settings, rights, and the
// project/report catalog.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// EngineConfig locates the report export engine and names the project
// execution context bound to this process, if any.
type EngineConfig struct {
	URL string
	// ContextProject is the project whose execution context this instance
	// holds. Zero means none; report fetches are then relayed.
	ContextProject int
}

// RelayConfig holds settings for the self-addressed secondary hop used when
// a report fetch needs a project execution context this process lacks.
type RelayConfig struct {
	// Endpoint is this gateway's own relay URL.
	Endpoint string
	// Timeout bounds the secondary round trip.
	Timeout time.Duration
	// CapabilityTTL bounds the lifetime of the hand-off token minted for
	// the secondary hop.
	CapabilityTTL time.Duration
}

// AlertingConfig holds settings for the best-effort security alert mailer.
type AlertingConfig struct {
	SMTPAddr string
	From     string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Engine:        loadEngineConfig(),
		Relay:         loadRelayConfig(),
		Alerting:      loadAlertingConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("REPORTGATE_HOST", "0.0.0.0"),
		Port:            getEnv("REPORTGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("REPORTGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("REPORTGATE_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("REPORTGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("REPORTGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("REPORTGATE_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("REPORTGATE_DATABASE_URL", ""),
		MaxOpenConns: getEnvInt("REPORTGATE_DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns: getEnvInt("REPORTGATE_DATABASE_MAX_IDLE_CONNS", 5),
		ConnLifetime: getEnvDuration("REPORTGATE_DATABASE_CONN_LIFETIME", 5*time.Minute),
	}
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		URL:            getEnv("REPORTGATE_ENGINE_URL", ""),
		ContextProject: getEnvInt("REPORTGATE_ENGINE_CONTEXT_PROJECT", 0),
	}
}

func loadRelayConfig() RelayConfig {
	return RelayConfig{
		Endpoint:      getEnv("REPORTGATE_RELAY_ENDPOINT", ""),
		Timeout:       getEnvDuration("REPORTGATE_RELAY_TIMEOUT", 10*time.Second),
		CapabilityTTL: getEnvDuration("REPORTGATE_RELAY_CAPABILITY_TTL", 30*time.Second),
	}
}

func loadAlertingConfig() AlertingConfig {
	return AlertingConfig{
		SMTPAddr: getEnv("REPORTGATE_SMTP_ADDR", ""),
		From:     getEnv("REPORTGATE_ALERT_FROM", "reportgate@localhost"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("REPORTGATE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("REPORTGATE_METRICS_ENABLED", true),
	}
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

	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Engine.URL == "" {
		return fmt.Errorf("engine URL is required")
	}

	if c.Relay.Timeout <= 0 {
		return fmt.Errorf("relay timeout must be positive")
	}
	if c.Relay.CapabilityTTL <= 0 {
		return fmt.Errorf("relay capability TTL must be positive")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}
