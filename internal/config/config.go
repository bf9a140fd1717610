package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"videoscore/internal/models"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("VIDEOSCORE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("VIDEOSCORE_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("VIDEOSCORE_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("VIDEOSCORE_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("VIDEOSCORE_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	if tls := os.Getenv("VIDEOSCORE_TLS_ENABLED"); tls != "" {
		config.Server.TLSEnabled = strings.ToLower(tls) == "true"
	}

	if certFile := os.Getenv("VIDEOSCORE_TLS_CERT_FILE"); certFile != "" {
		config.Server.TLSCertFile = certFile
	}

	if keyFile := os.Getenv("VIDEOSCORE_TLS_KEY_FILE"); keyFile != "" {
		config.Server.TLSKeyFile = keyFile
	}

	// Storage configuration
	if storageType := os.Getenv("VIDEOSCORE_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}

	if dsn := os.Getenv("VIDEOSCORE_DATABASE_DSN"); dsn != "" {
		config.Storage.Database.DSN = dsn
	}

	if maxOpen := os.Getenv("VIDEOSCORE_DATABASE_MAX_OPEN_CONNS"); maxOpen != "" {
		if conns, err := strconv.Atoi(maxOpen); err == nil {
			config.Storage.Database.MaxOpenConns = conns
		}
	}

	if maxIdle := os.Getenv("VIDEOSCORE_DATABASE_MAX_IDLE_CONNS"); maxIdle != "" {
		if conns, err := strconv.Atoi(maxIdle); err == nil {
			config.Storage.Database.MaxIdleConns = conns
		}
	}

	// Security configuration
	if enabled := os.Getenv("VIDEOSCORE_THROTTLE_ENABLED"); enabled != "" {
		config.Security.Throttle.Enabled = strings.ToLower(enabled) == "true"
	}

	if interval := os.Getenv("VIDEOSCORE_THROTTLE_CLEANUP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Security.Throttle.CleanupInterval = d
		}
	}

	loadPolicyFromEnvironment(&config.Security.Throttle.General, "VIDEOSCORE_THROTTLE_GENERAL")
	loadPolicyFromEnvironment(&config.Security.Throttle.Auth, "VIDEOSCORE_THROTTLE_AUTH")
	loadPolicyFromEnvironment(&config.Security.Throttle.Heavy, "VIDEOSCORE_THROTTLE_HEAVY")

	if window := os.Getenv("VIDEOSCORE_THROTTLE_LOGIN_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			config.Security.Throttle.Login.Window = d
		}
	}

	if max := os.Getenv("VIDEOSCORE_THROTTLE_LOGIN_MAX_ATTEMPTS"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			config.Security.Throttle.Login.MaxAttempts = n
		}
	}

	if minVersion := os.Getenv("VIDEOSCORE_MIN_APP_VERSION"); minVersion != "" {
		config.Security.MinAppVersion = minVersion
	}

	// Logging configuration
	if level := os.Getenv("VIDEOSCORE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("VIDEOSCORE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("VIDEOSCORE_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("VIDEOSCORE_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("VIDEOSCORE_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("VIDEOSCORE_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("VIDEOSCORE_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	// Observability configuration
	if name := os.Getenv("VIDEOSCORE_SERVICE_NAME"); name != "" {
		config.Observability.ServiceName = name
	}

	if tracing := os.Getenv("VIDEOSCORE_TRACING_ENABLED"); tracing != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(tracing) == "true"
	}

	if exporter := os.Getenv("VIDEOSCORE_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv("VIDEOSCORE_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
}

// loadPolicyFromEnvironment overrides one throttle policy from env vars with
// the given prefix (e.g. VIDEOSCORE_THROTTLE_GENERAL_WINDOW).
func loadPolicyFromEnvironment(policy *models.ThrottlePolicyConfig, prefix string) {
	if window := os.Getenv(prefix + "_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			policy.Window = d
		}
	}

	if max := os.Getenv(prefix + "_MAX_REQUESTS"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			policy.MaxRequests = n
		}
	}

	if skip := os.Getenv(prefix + "_SKIP_SUCCESSFUL"); skip != "" {
		policy.SkipSuccessful = strings.ToLower(skip) == "true"
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	// Example storage and client gating values
	config.Storage.Type = models.StorageTypeSQLite
	config.Storage.Database.DSN = "./data/videoscore.db"
	config.Security.MinAppVersion = "1.4.0"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
