// Package user implements the user directory operations: listing members
// for assignment and removing accounts. Credential handling lives outside
// this service; identities arrive already verified.
package user

import (
	"context"
	"fmt"
	"log/slog"

	userdomain "github.com/taskops/taskboard/internal/domain/user"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// Repository is the user store contract consumed by this package.
type Repository interface {
	// FindByID returns the user with the given id or errs.ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*userdomain.User, error)

	// List returns all users.
	List(ctx context.Context) ([]*userdomain.User, error)

	// DeleteByID permanently removes the user, or errs.ErrNotFound.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Service exposes the user directory.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a user directory service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns every user in the directory.
func (s *Service) List(ctx context.Context) ([]*userdomain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetByID returns a single user.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*userdomain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// Delete removes a user from the directory. Tasks referencing the user are
// left untouched: their assignedTo/createdBy become dangling references
// until the repair routine reassigns them.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user deleted",
		slog.String("user_id", id.String()),
	)
	return nil
}
