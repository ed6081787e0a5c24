package api

import (
	"time"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
)

type registerRequest struct {
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     string       `json:"role"`
	Profile  auth.Profile `json:"profile"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// nil fields are left unchanged
type updateDetailsRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type setStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

// TokenResponse is returned by register, login and password change
type TokenResponse struct {
	Success bool            `json:"success"`
	Token   string          `json:"token"`
	Data    auth.PublicUser `json:"data"`
}

// SearchResponse is returned by user search
type SearchResponse struct {
	Success bool              `json:"success"`
	Count   int               `json:"count"`
	Data    []auth.PublicUser `json:"data"`
}

// VerifyData is the payload of GET /api/auth/verify
type VerifyData struct {
	User  auth.PublicUser `json:"user"`
	Valid bool            `json:"valid"`
}

// WhoAmIData is the payload of GET /api/users/whoami
type WhoAmIData struct {
	Authenticated bool             `json:"authenticated"`
	User          *auth.PublicUser `json:"user,omitempty"`
}

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
