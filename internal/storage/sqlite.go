package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"videoscore/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id                 TEXT PRIMARY KEY,
	email              TEXT NOT NULL UNIQUE,
	password_hash      TEXT NOT NULL,
	display_name       TEXT NOT NULL DEFAULT '',
	plan               TEXT NOT NULL,
	sub_status         TEXT NOT NULL,
	sub_expires_at     TIMESTAMP,
	created_at         TIMESTAMP NOT NULL,
	updated_at         TIMESTAMP NOT NULL
);
`

// SQLiteStorage implements the Storage interface on an embedded SQLite
// database (pure-Go driver, no cgo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance and ensures the
// schema exists.
func NewSQLiteStorage(config Config) (Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// CreateUser stores a new user
func (ss *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, plan, sub_status, sub_expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.DisplayName,
		user.Subscription.Plan, user.Subscription.Status, user.Subscription.ExpiresAt,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		// The unique email index is the source of truth for duplicates.
		if _, lookupErr := ss.GetUserByEmail(ctx, user.Email); lookupErr == nil {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (ss *SQLiteStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return ss.scanUser(ss.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, display_name, plan, sub_status, sub_expires_at, created_at, updated_at
		 FROM users WHERE id = ?`, id))
}

// GetUserByEmail retrieves a user by normalized email
func (ss *SQLiteStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return ss.scanUser(ss.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, display_name, plan, sub_status, sub_expires_at, created_at, updated_at
		 FROM users WHERE email = ?`, models.NormalizeEmail(email)))
}

// UpdateSubscription replaces the subscription state for a user
func (ss *SQLiteStorage) UpdateSubscription(ctx context.Context, userID string, sub models.Subscription) error {
	res, err := ss.db.ExecContext(ctx,
		`UPDATE users SET plan = ?, sub_status = ?, sub_expires_at = ?, updated_at = ? WHERE id = ?`,
		sub.Plan, sub.Status, sub.ExpiresAt, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Ping verifies the database is reachable
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

func (ss *SQLiteStorage) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var expiresAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.Subscription.Plan, &user.Subscription.Status, &expiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		user.Subscription.ExpiresAt = &t
	}
	return &user, nil
}
