package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskops/taskboard/internal/domain/identity"
	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ScopeAll is the stats cache scope of the unrestricted (admin) base filter.
const ScopeAll = "all"

// UserScope returns the stats cache scope of a user's own-assigned tasks.
func UserScope(id uuid.UUID) string {
	return "user:" + id.String()
}

// StatsScope returns the stats cache scope for the actor's base filter.
func StatsScope(actor identity.Actor) string {
	if actor.Role.IsAdmin() {
		return ScopeAll
	}
	return UserScope(actor.ID)
}

// ListQuery narrows a task listing. Status and Priority are optional
// equality constraints; Page and Limit fall back to 1 and 10.
type ListQuery struct {
	Status   *taskdomain.Status
	Priority *taskdomain.Priority
	Page     int
	Limit    int
}

// Aggregator computes role-scoped task listings and the scope-wide
// aggregate counts.
//
// Two filters are in play: the base filter is the actor's visibility scope
// (everything for admins, own-assigned for everyone else); the list filter
// is the base filter narrowed by the query. Pagination metadata reflects the
// list filter; the stats always reflect the base filter only, so "what you
// are viewing" and "your overall workload" stay decoupled.
type Aggregator struct {
	repo      Repository
	directory UserDirectory
	cache     StatsCache
	logger    *slog.Logger
}

// AggregatorConfig contains the dependencies of Aggregator.
type AggregatorConfig struct {
	Repo      Repository
	Directory UserDirectory

	// Cache is optional; nil disables stats caching.
	Cache StatsCache

	Logger *slog.Logger
}

// NewAggregator creates a list & stats aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		repo:      cfg.Repo,
		directory: cfg.Directory,
		cache:     cfg.Cache,
		logger:    logger,
	}
}

// List returns one page of tasks visible to the actor, ordered by creation
// time descending, plus pagination metadata and the actor's stats.
func (a *Aggregator) List(ctx context.Context, actor identity.Actor, q ListQuery) (*ListResult, error) {
	page := q.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := q.Limit
	if limit < 1 {
		limit = DefaultLimit
	}

	base := a.baseFilter(actor)

	list := base
	list.Status = q.Status
	list.Priority = q.Priority

	tasks, err := a.repo.Find(ctx, list, Page{Offset: (page - 1) * limit, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	total, err := a.repo.Count(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	stats, err := a.stats(ctx, actor, base)
	if err != nil {
		return nil, err
	}

	views, err := resolveViews(ctx, a.directory, tasks, false)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve task references: %w", err)
	}

	return &ListResult{
		Tasks: views,
		Total: total,
		Page:  page,
		Pages: (total + limit - 1) / limit,
		Stats: stats,
	}, nil
}

// GetByID returns a single task with assignee, creator and comment authors
// resolved. No role filtering happens here: visibility of single tasks is
// enforced at the routing layer only.
func (a *Aggregator) GetByID(ctx context.Context, id uuid.UUID) (*View, error) {
	t, err := a.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	views, err := resolveViews(ctx, a.directory, []*taskdomain.Task{t}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve task references: %w", err)
	}

	return &views[0], nil
}

// Stats returns the aggregate counts over the actor's base filter,
// independent of any list narrowing.
func (a *Aggregator) Stats(ctx context.Context, actor identity.Actor) (Stats, error) {
	return a.stats(ctx, actor, a.baseFilter(actor))
}

func (a *Aggregator) baseFilter(actor identity.Actor) Filter {
	var base Filter
	if !actor.Role.IsAdmin() {
		id := actor.ID
		base.AssignedTo = &id
	}
	return base
}

func (a *Aggregator) stats(ctx context.Context, actor identity.Actor, base Filter) (Stats, error) {
	scope := StatsScope(actor)

	if a.cache != nil {
		cached, cacheErr := a.cache.Get(ctx, scope)
		if cacheErr != nil {
			a.logger.WarnContext(ctx, "stats cache read failed",
				slog.String("scope", scope),
				slog.String("error", cacheErr.Error()),
			)
		} else if cached != nil {
			return *cached, nil
		}
	}

	total, err := a.repo.Count(ctx, base)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count tasks: %w", err)
	}

	done := taskdomain.StatusDone

	pendingFilter := base
	pendingFilter.StatusNot = &done
	pending, err := a.repo.Count(ctx, pendingFilter)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count pending tasks: %w", err)
	}

	doneFilter := base
	doneFilter.Status = &done
	doneCount, err := a.repo.Count(ctx, doneFilter)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count done tasks: %w", err)
	}

	stats := Stats{Total: total, Pending: pending, Done: doneCount}

	if a.cache != nil {
		if setErr := a.cache.Set(ctx, scope, stats); setErr != nil {
			a.logger.WarnContext(ctx, "stats cache write failed",
				slog.String("scope", scope),
				slog.String("error", setErr.Error()),
			)
		}
	}

	return stats, nil
}
