// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Every response carries a top-level success flag the mobile client switches on
// - Errors are structured objects with the HTTP status code embedded
// - Throttled responses additionally carry a retry hint in seconds
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// APIError is the structured error object embedded in every error response.
type APIError struct {
	Message    string `json:"message"`              // Human-readable error description
	StatusCode int    `json:"statusCode"`           // HTTP status code, echoed in the body
	RetryAfter int    `json:"retryAfter,omitempty"` // Seconds until retry (throttled responses only)
}

// ErrorResponse is the error envelope returned by every failing endpoint,
// including throttle denials.
type ErrorResponse struct {
	Success bool     `json:"success"` // Always false
	Error   APIError `json:"error"`
}

// NewErrorResponse creates a standard error envelope.
func NewErrorResponse(message string, statusCode int) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error: APIError{
			Message:    message,
			StatusCode: statusCode,
		},
	}
}

// NewThrottledResponse creates the 429 envelope with a retry hint.
func NewThrottledResponse(message string, retryAfterSeconds int) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error: APIError{
			Message:    message,
			StatusCode: 429,
			RetryAfter: retryAfterSeconds,
		},
	}
}

// UserResponse is the account view returned by register, login and
// subscription endpoints.
type UserResponse struct {
	Success bool  `json:"success"`
	User    *User `json:"user"`
}

// GenerateResponse acknowledges a soundtrack generation submission. The job
// itself runs at the external AI providers.
type GenerateResponse struct {
	Success     bool      `json:"success"`
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"` // always "queued" on submission
	SubmittedAt time.Time `json:"submitted_at"`
}

// HealthCheckResponse reports service and component health.
type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health status constants.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// JobStatusQueued is the only job state this service reports; progress and
// completion are delivered by the provider callbacks, not this API.
const JobStatusQueued = "queued"

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:  status,
		Message: message,
	}
}
