// Package models - API request types and input validation.
// This file defines all incoming API request structures with validation.
//
// Validation Philosophy:
// - Fail fast with clear error messages for invalid input
// - Normalize input data for consistent processing (lowercased emails, trimmed strings)
// - Separate validation from normalization for clear error reporting
package models

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest authenticates an existing account. The email field doubles as
// the identity key for per-account login throttling.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateSubscriptionRequest records a subscription state change reported by
// the billing SDK on the mobile client.
type UpdateSubscriptionRequest struct {
	Email  string `json:"email"`
	Plan   string `json:"plan"`
	Status string `json:"status"`
}

// GenerateRequest submits a video for soundtrack generation. The actual
// analysis and synthesis happen at external AI providers; the backend only
// validates and acknowledges the submission.
type GenerateRequest struct {
	Email    string `json:"email"`
	VideoURL string `json:"video_url"`
	Mood     string `json:"mood,omitempty"`
}

func (r *RegisterRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}

	if len(r.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	return nil
}

func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
}

func (r *LoginRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}

	if r.Password == "" {
		return errors.New("password is required")
	}

	return nil
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *UpdateSubscriptionRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}

	switch r.Plan {
	case PlanFree, PlanMonthly, PlanYearly:
	default:
		return fmt.Errorf("invalid plan: %s", r.Plan)
	}

	switch r.Status {
	case SubscriptionActive, SubscriptionExpired, SubscriptionCanceled:
	default:
		return fmt.Errorf("invalid status: %s", r.Status)
	}

	return nil
}

func (r *UpdateSubscriptionRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *GenerateRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}

	if r.VideoURL == "" {
		return errors.New("video_url is required")
	}

	u, err := url.Parse(r.VideoURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid video_url: %s", r.VideoURL)
	}

	return nil
}

func (r *GenerateRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.VideoURL = strings.TrimSpace(r.VideoURL)
	r.Mood = strings.TrimSpace(strings.ToLower(r.Mood))
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email: %s", email)
	}

	return nil
}
