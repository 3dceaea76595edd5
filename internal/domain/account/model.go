package account

import (
	"time"

	"github.com/google/uuid"
)

// Client is a lab organisation that owns one tenant schema.
type Client struct {
	ID           uuid.UUID `json:"id"`
	TenantID     string    `json:"tenantId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PinHash      *string   `json:"-"`
	HasPIN       bool      `json:"hasPin"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Client    *Client   `json:"client"`
}

type PasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type PinInput struct {
	CurrentPin *string `json:"currentPin"`
	NewPin     string  `json:"newPin"`
}

type VerifyPinInput struct {
	Pin string `json:"pin"`
}

type ClientInput struct {
	TenantID string  `json:"tenantId"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Pin      *string `json:"pin"`
	Role     string  `json:"role"`
}

type StatusInput struct {
	IsActive *bool `json:"isActive"`
}
