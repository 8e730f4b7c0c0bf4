// Package identity defines the verified caller identity attached to every
// request after authentication.
package identity

import (
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// Role is the closed set of roles known to the system.
type Role string

const (
	// RoleAdmin can manage every task and the user directory.
	RoleAdmin Role = "admin"

	// RoleUser can only act on tasks assigned to them.
	RoleUser Role = "user"
)

// ParseRole parses a role string. Anything that is not "admin" maps to
// RoleUser, so an unknown role can never grant elevated access.
func ParseRole(s string) Role {
	if s == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// IsAdmin reports whether the role is the administrator role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Actor is the identity context of the current operation: the verified
// user id plus role, supplied by the authentication layer.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsZero reports whether the actor carries no identity.
func (a Actor) IsZero() bool {
	return a.ID.IsZero()
}
