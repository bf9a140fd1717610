package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subscription plan and status constants. The billing provider is the source
// of truth; the backend only mirrors the state it reports.
const (
	PlanFree    = "free"
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"

	SubscriptionActive   = "active"
	SubscriptionExpired  = "expired"
	SubscriptionCanceled = "canceled"
)

// User represents a registered account. The raw password is never persisted;
// only its SHA-256 hex digest is stored.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	DisplayName  string       `json:"display_name"`
	Subscription Subscription `json:"subscription"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Subscription mirrors the billing provider's view of an account.
type Subscription struct {
	Plan      string     `json:"plan"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewUser creates a User from a normalized email and raw password.
func NewUser(email, rawPassword, displayName string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New().String(),
		Email:        NormalizeEmail(email),
		PasswordHash: HashPassword(rawPassword),
		DisplayName:  displayName,
		Subscription: Subscription{Plan: PlanFree, Status: SubscriptionActive},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeEmail lowercases and trims an email address so that lookups and
// limiter keys agree on a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword computes the SHA-256 hex digest of a raw password.
func HashPassword(rawPassword string) string {
	sum := sha256.Sum256([]byte(rawPassword))
	return hex.EncodeToString(sum[:])
}

// CheckPassword reports whether the raw password matches the stored digest.
func (u *User) CheckPassword(rawPassword string) bool {
	return subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(HashPassword(rawPassword))) == 1
}
