package storage

import (
	"context"
	"sync"
	"time"

	"videoscore/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data
// structures. This provider is ideal for development and testing; data is
// lost on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	users   map[string]*models.User // keyed by ID
	byEmail map[string]string       // normalized email -> ID
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]string),
	}, nil
}

// CreateUser stores a new user
func (m *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[user.Email]; exists {
		return ErrEmailExists
	}

	// Store a copy to prevent external modification
	userCopy := *user
	m.users[user.ID] = &userCopy
	m.byEmail[user.Email] = user.ID

	return nil
}

// GetUser retrieves a user by ID
func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}

	// Return a copy
	userCopy := *user
	return &userCopy, nil
}

// GetUserByEmail retrieves a user by normalized email
func (m *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.byEmail[models.NormalizeEmail(email)]
	if !exists {
		return nil, ErrUserNotFound
	}

	userCopy := *m.users[id]
	return &userCopy, nil
}

// UpdateSubscription replaces the subscription state for a user
func (m *MemoryStorage) UpdateSubscription(ctx context.Context, userID string, sub models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[userID]
	if !exists {
		return ErrUserNotFound
	}

	user.Subscription = sub
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Ping always succeeds for memory storage
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}
