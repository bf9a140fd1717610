// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, security, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - Security-first approach with safe defaults
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Storage       StorageConfig       `yaml:"storage" json:"storage"`             // Account persistence settings
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Throttling and client gating
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Monitoring and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing configuration
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// SecurityConfig groups request throttling and mobile client gating.
type SecurityConfig struct {
	Throttle ThrottleConfig `yaml:"throttle" json:"throttle"`
	// MinAppVersion rejects requests from mobile clients older than this
	// semantic version (X-App-Version header). Empty disables the gate.
	MinAppVersion string `yaml:"min_app_version" json:"min_app_version"`
}

// ThrottleConfig configures the four guard instances. Each guard owns its own
// window store; CleanupInterval drives the shared reaper schedule.
type ThrottleConfig struct {
	Enabled         bool                 `yaml:"enabled" json:"enabled"`
	CleanupInterval time.Duration        `yaml:"cleanup_interval" json:"cleanup_interval"`
	General         ThrottlePolicyConfig `yaml:"general" json:"general"` // all API traffic, keyed by IP
	Auth            ThrottlePolicyConfig `yaml:"auth" json:"auth"`       // /auth routes, keyed by IP, strict
	Login           LoginThrottleConfig  `yaml:"login" json:"login"`     // login attempts, keyed by email
	Heavy           ThrottlePolicyConfig `yaml:"heavy" json:"heavy"`     // soundtrack generation, keyed by IP
}

type ThrottlePolicyConfig struct {
	Window      time.Duration `yaml:"window" json:"window"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	Message     string        `yaml:"message" json:"message"`
	// SkipSuccessful refunds the charge when the wrapped handler succeeds,
	// so only failed requests count toward the ceiling.
	SkipSuccessful bool `yaml:"skip_successful" json:"skip_successful"`
}

// LoginThrottleConfig limits login attempts per account email. A successful
// login clears the attempt counter. Requests without an email field bypass
// this policy entirely.
type LoginThrottleConfig struct {
	Window      time.Duration `yaml:"window" json:"window"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Message     string        `yaml:"message" json:"message"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // stdout or otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// Default Values Rationale:
// - Port 8080: Standard non-privileged HTTP port
// - 30-second timeouts: Balance between user experience and resource protection
// - Memory storage: Simple setup without external dependencies
// - Throttling enabled: Abuse protection from the start, the limits match the
//   mobile app's expected traffic (100 req/15min general, 5 login attempts)
// - Structured JSON logging: Better for log aggregation and analysis
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			Throttle: ThrottleConfig{
				Enabled:         true,
				CleanupInterval: 5 * time.Minute,
				General: ThrottlePolicyConfig{
					Window:      15 * time.Minute,
					MaxRequests: 100,
					Message:     "Too many requests, please try again later",
				},
				Auth: ThrottlePolicyConfig{
					Window:      15 * time.Minute,
					MaxRequests: 20,
					Message:     "Too many authentication requests, please try again later",
				},
				Login: LoginThrottleConfig{
					Window:      15 * time.Minute,
					MaxAttempts: 5,
					Message:     "Too many login attempts for this account, please try again later",
				},
				Heavy: ThrottlePolicyConfig{
					Window:      time.Hour,
					MaxRequests: 10,
					Message:     "Soundtrack generation limit reached, please try again later",
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "videoscore",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", stc.Type)
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
}

func (sec *SecurityConfig) Validate() error {
	if sec.MinAppVersion != "" {
		if _, err := semver.NewVersion(sec.MinAppVersion); err != nil {
			return fmt.Errorf("invalid min_app_version: %w", err)
		}
	}

	return sec.Throttle.Validate()
}

// Validate rejects misconfigured throttle policies at startup. A zero or
// negative ceiling would otherwise silently deny (or admit) all traffic.
func (tc *ThrottleConfig) Validate() error {
	if !tc.Enabled {
		return nil
	}

	if tc.CleanupInterval <= 0 {
		return errors.New("throttle cleanup interval must be positive")
	}

	for name, p := range map[string]ThrottlePolicyConfig{
		"general": tc.General,
		"auth":    tc.Auth,
		"heavy":   tc.Heavy,
	} {
		if p.Window <= 0 {
			return fmt.Errorf("throttle %s window must be positive", name)
		}
		if p.MaxRequests <= 0 {
			return fmt.Errorf("throttle %s max_requests must be positive", name)
		}
	}

	if tc.Login.Window <= 0 {
		return errors.New("throttle login window must be positive")
	}
	if tc.Login.MaxAttempts <= 0 {
		return errors.New("throttle login max_attempts must be positive")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	switch lc.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	switch lc.Output {
	case "stdout", "stderr":
	case "file":
		if lc.FilePath == "" {
			return errors.New("file path is required when log output is file")
		}
	default:
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	return nil
}
