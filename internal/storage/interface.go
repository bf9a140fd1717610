// Package storage provides account persistence for the videoscore service.
// It defines a backend-neutral Storage interface with in-memory, SQLite and
// PostgreSQL implementations behind a factory.
package storage

import (
	"context"

	"videoscore/internal/models"
)

// Storage defines the interface for account persistence and retrieval.
type Storage interface {
	// CreateUser stores a new user. Returns ErrEmailExists when the email
	// is already registered.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by ID. Returns ErrUserNotFound when absent.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// GetUserByEmail retrieves a user by normalized email.
	// Returns ErrUserNotFound when absent.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateSubscription replaces the subscription state for a user.
	// Returns ErrUserNotFound when the user does not exist.
	UpdateSubscription(ctx context.Context, userID string, sub models.Subscription) error

	// Ping verifies the backend is reachable, for health checks.
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources.
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (memory, sqlite, postgres)
	Type string `json:"type" yaml:"type"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// MaxOpenConns bounds the database connection pool
	MaxOpenConns int `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`

	// MaxIdleConns bounds idle pooled connections
	MaxIdleConns int `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
}
