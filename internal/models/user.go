package models

import "github.com/google/uuid"

// Role represents a user's platform role.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// Identity is the authenticated caller, as resolved from the request's bearer token.
type Identity struct {
	UserID      uuid.UUID `json:"user_id"`
	IsAdmin     bool      `json:"is_admin"`
	DisplayName string    `json:"display_name"`
}
