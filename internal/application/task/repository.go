package task

import (
	"context"
	"time"

	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// Filter selects tasks in the store. Zero-value fields are not applied.
type Filter struct {
	// AssignedTo restricts to tasks assigned to the given user.
	AssignedTo *uuid.UUID

	// Status restricts to tasks with the given status.
	Status *taskdomain.Status

	// StatusNot restricts to tasks whose status differs from the given one.
	StatusNot *taskdomain.Status

	// Priority restricts to tasks with the given priority.
	Priority *taskdomain.Priority
}

// Page is an offset/limit paging window.
type Page struct {
	Offset int
	Limit  int
}

// Repository is the task store contract consumed by this package.
// Declared on the consumer side per project guidelines.
type Repository interface {
	// Insert persists a new task and sets its storage timestamps.
	Insert(ctx context.Context, t *taskdomain.Task) error

	// FindByID returns the task with the given id or errs.ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*taskdomain.Task, error)

	// Find returns one page of tasks matching the filter,
	// ordered by creation time descending.
	Find(ctx context.Context, f Filter, p Page) ([]*taskdomain.Task, error)

	// Count returns the number of tasks matching the filter.
	Count(ctx context.Context, f Filter) (int, error)

	// UpdateByID applies the patch in a single update and returns the
	// refreshed task, or errs.ErrNotFound.
	UpdateByID(ctx context.Context, id uuid.UUID, patch *taskdomain.Patch) (*taskdomain.Task, error)

	// DeleteByID permanently removes the task, comments included.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// AppendComment appends a comment to the task's comment sequence and
	// returns the refreshed task, or errs.ErrNotFound.
	AppendComment(ctx context.Context, id uuid.UUID, c taskdomain.Comment) (*taskdomain.Task, error)
}

// UserDirectory resolves user ids to display references. Missing users are
// simply absent from the result; callers must not assume resolution succeeds.
type UserDirectory interface {
	FindRefs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]UserRef, error)
}

// StatsCache caches per-scope aggregate counts. Implementations are
// best-effort: a failing cache must never fail the request.
type StatsCache interface {
	// Get returns the cached stats for the scope, or nil on a miss.
	Get(ctx context.Context, scope string) (*Stats, error)

	// Set stores the stats for the scope.
	Set(ctx context.Context, scope string, stats Stats) error

	// Invalidate drops the cached stats for the given scopes.
	Invalidate(ctx context.Context, scopes ...string) error
}

// Clock supplies the current time. Injected so comment timestamps are
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns a Clock backed by the system time in UTC.
func SystemClock() Clock {
	return systemClock{}
}
