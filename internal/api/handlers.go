package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"videoscore/internal/models"
	"videoscore/internal/storage"
	"videoscore/internal/version"
)

// Handlers contains HTTP handlers for the videoscore API
type Handlers struct {
	storage storage.Storage
}

// NewHandlers creates a new handlers instance
func NewHandlers(store storage.Storage) *Handlers {
	return &Handlers{
		storage: store,
	}
}

// Register handles account creation requests
// POST /api/v1/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	user := models.NewUser(req.Email, req.Password, req.DisplayName)
	if err := h.storage.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrEmailExists) {
			h.writeErrorResponse(w, http.StatusConflict, "An account with this email already exists")
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, models.UserResponse{Success: true, User: user})
}

// Login handles authentication requests. Wrong password and unknown account
// both return 401 with the same message; the login throttle counts either as
// a failed attempt.
// POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.storage.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.writeErrorResponse(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to look up account")
		return
	}

	if !user.CheckPassword(req.Password) {
		h.writeErrorResponse(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.UserResponse{Success: true, User: user})
}

// GetSubscription returns the subscription state for an account
// GET /api/v1/subscription?email=...
func (h *Handlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	user, err := h.storage.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, "Account not found")
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to look up account")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.UserResponse{Success: true, User: user})
}

// UpdateSubscription records a subscription change reported by the billing
// SDK on the mobile client
// PUT /api/v1/subscription
func (h *Handlers) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.storage.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, "Account not found")
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to look up account")
		return
	}

	sub := models.Subscription{
		Plan:   req.Plan,
		Status: req.Status,
	}
	if req.Plan != models.PlanFree {
		expires := subscriptionExpiry(req.Plan)
		sub.ExpiresAt = &expires
	}

	if err := h.storage.UpdateSubscription(r.Context(), user.ID, sub); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to update subscription")
		return
	}

	user.Subscription = sub
	h.writeJSONResponse(w, http.StatusOK, models.UserResponse{Success: true, User: user})
}

// Generate accepts a soundtrack generation submission. The analysis and
// synthesis run at external providers; this endpoint validates the request,
// assigns a job ID and acknowledges with 202.
// POST /api/v1/generate
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.storage.GetUserByEmail(r.Context(), req.Email); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, "Account not found")
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to look up account")
		return
	}

	response := models.GenerateResponse{
		Success:     true,
		JobID:       uuid.New().String(),
		Status:      models.JobStatusQueued,
		SubmittedAt: time.Now().UTC(),
	}

	h.writeJSONResponse(w, http.StatusAccepted, response)
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.GetInfo().Version

	status := http.StatusOK
	if err := h.storage.Ping(r.Context()); err != nil {
		response.Status = models.StatusDegraded
		response.AddComponent("storage", models.StatusUnhealthy, err.Error())
		status = http.StatusServiceUnavailable
	} else {
		response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
	}
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	h.writeJSONResponse(w, status, response)
}

// subscriptionExpiry derives the subscription term end from the plan. The
// billing provider is authoritative; this is only a display hint until the
// next sync.
func subscriptionExpiry(plan string) time.Time {
	now := time.Now().UTC()
	if plan == models.PlanYearly {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more to send.
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, statusCode))
}
