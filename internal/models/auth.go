package models

import "time"

// LoginRequest defines the structure for farmer login requests
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// OfficialLoginRequest is the username/password/role form used by officials.
type OfficialLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     Role   `json:"role" binding:"required"`
}

// RegisterRequest defines the structure for farmer registration requests
type RegisterRequest struct {
	FullName      string  `json:"fullName"`
	Email         string  `json:"email"`
	ContactNumber string  `json:"contactNumber"`
	AadharID      string  `json:"aadharId"`
	Address       string  `json:"address"`
	LandArea      float64 `json:"landArea"`
	LandType      string  `json:"landType"`
	Password      string  `json:"password"`
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
}

// FarmerRef is the ownership key for the actor's own claims.
func (a Actor) FarmerRef() FarmerRef {
	return FarmerRef{ID: a.ID, Contact: a.Contact}
}

// Session is returned on successful sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Actor     Actor     `json:"user"`
}
