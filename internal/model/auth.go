package model

import (
	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignupRequest struct {
	Name           string `json:"name" binding:"required,max=200"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	Role           Role   `json:"role" binding:"required,oneof=patient doctor"`
	Region         string `json:"region" binding:"required"`
	Specialization string `json:"specialization" binding:"required_if=Role doctor"`
}

type AuthResponse struct {
	Token string         `json:"token"`
	User  *PublicProfile `json:"user"`
}

// Claims identify the caller of an authenticated request.
type Claims struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

// Caller is the authenticated principal passed into services.
type Caller struct {
	ID   uuid.UUID
	Role Role
}
