package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// Server defaults
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.False(t, config.Server.TLSEnabled)
	assert.True(t, config.Server.CORS.Enabled)

	// Storage defaults
	assert.Equal(t, StorageTypeMemory, config.Storage.Type)
	assert.Equal(t, 25, config.Storage.Database.MaxOpenConns)

	// Throttle defaults
	throttle := config.Security.Throttle
	assert.True(t, throttle.Enabled)
	assert.Equal(t, 5*time.Minute, throttle.CleanupInterval)
	assert.Equal(t, 15*time.Minute, throttle.General.Window)
	assert.Equal(t, 100, throttle.General.MaxRequests)
	assert.Equal(t, 20, throttle.Auth.MaxRequests)
	assert.Equal(t, 5, throttle.Login.MaxAttempts)
	assert.Equal(t, time.Hour, throttle.Heavy.Window)
	assert.Equal(t, 10, throttle.Heavy.MaxRequests)

	// Logging and metrics defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, 9090, config.Metrics.Port)
	assert.Equal(t, "videoscore", config.Observability.ServiceName)

	// Defaults must validate
	assert.NoError(t, config.Validate())
}

func TestConfigValidate_Server(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"negative read timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }},
		{"TLS without cert", func(c *Config) { c.Server.TLSEnabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestConfigValidate_Storage(t *testing.T) {
	config := NewDefaultConfig()
	config.Storage.Type = "cassandra"
	assert.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.Storage.Type = StorageTypePostgres
	assert.Error(t, config.Validate(), "postgres without DSN must be rejected")

	config.Storage.Database.DSN = "postgres://localhost/videoscore"
	assert.NoError(t, config.Validate())
}

func TestConfigValidate_Throttle(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero general ceiling", func(c *Config) { c.Security.Throttle.General.MaxRequests = 0 }},
		{"negative general ceiling", func(c *Config) { c.Security.Throttle.General.MaxRequests = -5 }},
		{"zero general window", func(c *Config) { c.Security.Throttle.General.Window = 0 }},
		{"zero auth ceiling", func(c *Config) { c.Security.Throttle.Auth.MaxRequests = 0 }},
		{"zero heavy window", func(c *Config) { c.Security.Throttle.Heavy.Window = 0 }},
		{"zero login attempts", func(c *Config) { c.Security.Throttle.Login.MaxAttempts = 0 }},
		{"negative login window", func(c *Config) { c.Security.Throttle.Login.Window = -time.Minute }},
		{"zero cleanup interval", func(c *Config) { c.Security.Throttle.CleanupInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestConfigValidate_ThrottleDisabledSkipsChecks(t *testing.T) {
	config := NewDefaultConfig()
	config.Security.Throttle.Enabled = false
	config.Security.Throttle.General.MaxRequests = 0
	assert.NoError(t, config.Validate())
}

func TestConfigValidate_MinAppVersion(t *testing.T) {
	config := NewDefaultConfig()
	config.Security.MinAppVersion = "1.4.0"
	assert.NoError(t, config.Validate())

	config.Security.MinAppVersion = "latest"
	assert.Error(t, config.Validate())
}

func TestConfigValidate_Logging(t *testing.T) {
	config := NewDefaultConfig()
	config.Logging.Level = "verbose"
	assert.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.Logging.Output = "file"
	assert.Error(t, config.Validate(), "file output without path must be rejected")

	config.Logging.FilePath = "/var/log/videoscore.log"
	assert.NoError(t, config.Validate())
}

func TestConfigValidate_Metrics(t *testing.T) {
	config := NewDefaultConfig()
	config.Metrics.Port = 0
	assert.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.Metrics.Enabled = false
	config.Metrics.Port = 0
	assert.NoError(t, config.Validate())
}
