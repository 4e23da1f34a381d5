package domain

import "time"

// Role enumerates the authorization roles a user may hold.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the identity resolved for an authenticated caller.
type User struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	Role            Role
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasRole reports whether the user holds any of the given roles.
// An empty role set means any authenticated user is accepted.
func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}
