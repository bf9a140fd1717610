package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"valid", RegisterRequest{Email: "a@example.com", Password: "password123"}, false},
		{"missing email", RegisterRequest{Password: "password123"}, true},
		{"bad email", RegisterRequest{Email: "not-an-email", Password: "password123"}, true},
		{"short password", RegisterRequest{Email: "a@example.com", Password: "1234567"}, true},
		{"eight char password", RegisterRequest{Email: "a@example.com", Password: "12345678"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterRequestNormalize(t *testing.T) {
	req := RegisterRequest{Email: " A@Example.COM ", Password: "password123", DisplayName: "  Alice  "}
	req.Normalize()

	assert.Equal(t, "a@example.com", req.Email)
	assert.Equal(t, "Alice", req.DisplayName)
}

func TestLoginRequestValidate(t *testing.T) {
	assert.NoError(t, (&LoginRequest{Email: "a@example.com", Password: "x"}).Validate())
	assert.Error(t, (&LoginRequest{Email: "a@example.com"}).Validate())
	assert.Error(t, (&LoginRequest{Password: "x"}).Validate())
}

func TestUpdateSubscriptionRequestValidate(t *testing.T) {
	valid := UpdateSubscriptionRequest{Email: "a@example.com", Plan: PlanMonthly, Status: SubscriptionActive}
	assert.NoError(t, valid.Validate())

	invalidPlan := valid
	invalidPlan.Plan = "lifetime"
	assert.Error(t, invalidPlan.Validate())

	invalidStatus := valid
	invalidStatus.Status = "paused"
	assert.Error(t, invalidStatus.Validate())
}

func TestGenerateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     GenerateRequest
		wantErr bool
	}{
		{"valid https", GenerateRequest{Email: "a@example.com", VideoURL: "https://cdn.example.com/v.mp4"}, false},
		{"valid http", GenerateRequest{Email: "a@example.com", VideoURL: "http://cdn.example.com/v.mp4"}, false},
		{"missing url", GenerateRequest{Email: "a@example.com"}, true},
		{"ftp scheme", GenerateRequest{Email: "a@example.com", VideoURL: "ftp://cdn.example.com/v.mp4"}, true},
		{"no host", GenerateRequest{Email: "a@example.com", VideoURL: "https:///v.mp4"}, true},
		{"missing email", GenerateRequest{VideoURL: "https://cdn.example.com/v.mp4"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateRequestNormalize(t *testing.T) {
	req := GenerateRequest{Email: "A@Example.com", VideoURL: " https://cdn.example.com/v.mp4 ", Mood: " Chill "}
	req.Normalize()

	assert.Equal(t, "a@example.com", req.Email)
	assert.Equal(t, "https://cdn.example.com/v.mp4", req.VideoURL)
	assert.Equal(t, "chill", req.Mood)
}
