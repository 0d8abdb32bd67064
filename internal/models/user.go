package models

import "time"

// Role is the authorization role of a user
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents a user in the system
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not serialized
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the resolved identity performing an operation
type Principal struct {
	ID       int64
	Role     Role
	IsActive bool
}

// Principal returns the identity of u as seen by the core.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role, IsActive: u.IsActive}
}

// IsAdmin reports whether p carries the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
