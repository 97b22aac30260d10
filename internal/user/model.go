package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailAlreadyUsed   = errors.New("email already used")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrInvalidRole        = errors.New("invalid role")
)

// Role decides what a user may do with bookings.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether the role may approve, reject and override bookings.
func (r Role) Privileged() bool {
	return r == RoleAdmin
}

// User represents a user in the system.
type User struct {
	ID           string // UUID
	Email        string
	PasswordHash string
	DisplayName  string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// IsPrivileged is a shorthand for u.Role.Privileged().
func (u *User) IsPrivileged() bool {
	return u.Role.Privileged()
}
