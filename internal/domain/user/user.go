// Package user holds the user directory entity. Tasks reference users by id
// only; the live service tolerates references to users that no longer exist.
package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskops/taskboard/internal/domain/errs"
	"github.com/taskops/taskboard/internal/domain/identity"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// User is a member of the system.
type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Role      identity.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a user. An empty role defaults to the regular user role.
func New(name, email string, role identity.Role) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrInvalidInput)
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email is required", errs.ErrInvalidInput)
	}
	if role == "" {
		role = identity.RoleUser
	}

	return &User{
		ID:    uuid.NewUUID(),
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Role:  role,
	}, nil
}

// Actor returns the identity context this user acts as.
func (u *User) Actor() identity.Actor {
	return identity.Actor{ID: u.ID, Role: u.Role}
}
