package auth

import (
	"errors"
	"strings"
	"time"
)

// Role represents an authorisation tier.
type Role string

const (
	// RoleUser is a household member. Users may operate the door.
	RoleUser Role = "user"

	// RoleAdmin may additionally read the door audit log.
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored role string to a Role.
// "admin" (any case) is RoleAdmin; everything else is RoleUser.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// User represents a household account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	DeviceToken  string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Sentinel errors for auth operations.
var (
	ErrNoAuthHeader       = errors.New("no authorization header")
	ErrInvalidAuthHeader  = errors.New("invalid authorization header")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrNoPermission       = errors.New("insufficient permissions")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrHash               = errors.New("malformed password hash")
)
