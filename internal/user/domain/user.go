package domain

import (
	"errors"
	"fmt"
	"time"
)

// Role is the closed set of user roles. Authorization checkpoints match it
// exhaustively so adding a role forces a review of every call site.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole returns the Role for s, or an error if s is not a known role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User is the core user entity. PasswordHash is write-only from the client's
// point of view: it is never serialized into responses.
type User struct {
	ID           string
	Email        string // stored lower-cased
	PasswordHash string
	Name         string
	Role         Role
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
