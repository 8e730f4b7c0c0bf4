package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskops/taskboard/internal/domain/errs"
	"github.com/taskops/taskboard/internal/domain/identity"
	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// CreateInput carries the fields of a new task. Status and Priority default
// to todo/medium when empty; a missing assignee defaults to the creator.
type CreateInput struct {
	Title       string
	Description string
	Status      taskdomain.Status
	Priority    taskdomain.Priority
	DueDate     *time.Time
	AssignedTo  *uuid.UUID
}

// Service decides, for every task mutation, who may perform it and what
// fields they may change, and issues the store call. Route-level gates
// (admin-only creation) live in the collaborator layer, not here.
type Service struct {
	repo      Repository
	directory UserDirectory
	cache     StatsCache
	clock     Clock
	logger    *slog.Logger
}

// ServiceConfig contains the dependencies of Service.
type ServiceConfig struct {
	Repo      Repository
	Directory UserDirectory

	// Cache is optional; nil disables stats caching.
	Cache StatsCache

	// Clock is optional; defaults to the system clock.
	Clock Clock

	Logger *slog.Logger
}

// NewService creates a task mutation service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:      cfg.Repo,
		directory: cfg.Directory,
		cache:     cfg.Cache,
		clock:     clock,
		logger:    logger,
	}
}

// Create persists a new task with createdBy fixed to the creator identity.
func (s *Service) Create(ctx context.Context, in CreateInput, creator identity.Actor) (*View, error) {
	t, err := taskdomain.New(
		in.Title,
		in.Description,
		in.Status,
		in.Priority,
		in.DueDate,
		in.AssignedTo,
		creator.ID,
	)
	if err != nil {
		return nil, err
	}

	if insertErr := s.repo.Insert(ctx, t); insertErr != nil {
		return nil, fmt.Errorf("failed to insert task: %w", insertErr)
	}

	s.invalidateStats(ctx, t.AssignedTo, nil)

	return s.view(ctx, t, false)
}

// Update applies a patch to the task identified by id on behalf of the actor.
//
// The patch is applied whole or not at all: authorization inspects the
// patch's field set before anything is written.
func (s *Service) Update(
	ctx context.Context,
	id uuid.UUID,
	patch *taskdomain.Patch,
	actor identity.Actor,
) (*View, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if normErr := patch.NormalizeAssignee(); normErr != nil {
		return nil, normErr
	}

	if d := taskdomain.CanUpdate(actor, t, patch.Fields()); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", errs.ErrForbidden, d.Reason)
	}

	updated, err := s.repo.UpdateByID(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, t.AssignedTo, updated.AssignedTo)

	return s.view(ctx, updated, false)
}

// Delete permanently removes the task; its comments go with it.
// Allowed for admins and the task's creator.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor identity.Actor) error {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if d := taskdomain.CanDelete(actor, t); !d.Allowed {
		return fmt.Errorf("%w: %s", errs.ErrForbidden, d.Reason)
	}

	if delErr := s.repo.DeleteByID(ctx, id); delErr != nil {
		return delErr
	}

	s.invalidateStats(ctx, t.AssignedTo, nil)

	return nil
}

// AddComment appends a comment authored by authorID to the task.
// Any authenticated identity may comment; there is deliberately no
// ownership restriction here.
func (s *Service) AddComment(
	ctx context.Context,
	id uuid.UUID,
	text string,
	authorID uuid.UUID,
) (*View, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	comment, err := taskdomain.NewComment(text, authorID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	t, err := s.repo.AppendComment(ctx, id, comment)
	if err != nil {
		return nil, err
	}

	// Comments do not change the aggregate counts, so no invalidation.
	return s.view(ctx, t, true)
}

// view resolves a single task into a View.
func (s *Service) view(ctx context.Context, t *taskdomain.Task, withComments bool) (*View, error) {
	views, err := resolveViews(ctx, s.directory, []*taskdomain.Task{t}, withComments)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve task references: %w", err)
	}
	return &views[0], nil
}

// invalidateStats drops the cached stats for every scope a mutation could
// have touched: the admin scope plus the previous and new assignee scopes.
// Best-effort: a cache failure is logged, never surfaced.
func (s *Service) invalidateStats(ctx context.Context, before, after *uuid.UUID) {
	if s.cache == nil {
		return
	}

	scopes := []string{ScopeAll}
	if before != nil {
		scopes = append(scopes, UserScope(*before))
	}
	if after != nil && (before == nil || *after != *before) {
		scopes = append(scopes, UserScope(*after))
	}

	if err := s.cache.Invalidate(ctx, scopes...); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate stats cache",
			slog.String("error", err.Error()),
		)
	}
}
