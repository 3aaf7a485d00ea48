package model

import "time"

// Role distinguishes ordinary users from admins
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// IsAdmin reports whether the role grants admin privilege.
// Role strings in the directory are not case-normalized.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == "admin" || r == "ADMIN"
}

// User is a directory record for a registered account
type User struct {
	ID              UserID
	Username        string
	Email           string
	PasswordHash    string
	Role            Role
	UsernameChanged bool // username may be changed exactly once
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
