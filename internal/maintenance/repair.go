// Package maintenance implements offline consistency repair for task data.
//
// Deleting a user leaves dangling creator and assignee references behind.
// The repair routine scans every task, points dangling references at an
// existing admin account and gives tasks without a due date a default one.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskops/taskboard/internal/domain/errs"
	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	userdomain "github.com/taskops/taskboard/internal/domain/user"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// ErrNoAdmin is returned when no admin account exists to take over the
// dangling references.
var ErrNoAdmin = errors.New("no admin user exists to adopt orphaned tasks")

// scanBatchSize is how many tasks are loaded per scan round.
const scanBatchSize = 100

// defaultDueDateOffset is the due date given to tasks that have none.
const defaultDueDateOffset = 24 * time.Hour

// Fix is the set of corrections to apply to one task. Nil fields are left
// untouched.
type Fix struct {
	CreatedBy  *uuid.UUID
	AssignedTo *uuid.UUID
	DueDate    *time.Time
}

// IsEmpty reports whether the fix changes nothing.
func (f Fix) IsEmpty() bool {
	return f.CreatedBy == nil && f.AssignedTo == nil && f.DueDate == nil
}

// TaskStore is the task access the repairer needs.
type TaskStore interface {
	// Scan returns one batch of tasks ordered by creation time.
	Scan(ctx context.Context, offset, limit int) ([]*taskdomain.Task, error)

	// ApplyFix writes the corrections for one task.
	ApplyFix(ctx context.Context, id uuid.UUID, fix Fix) error
}

// UserStore is the user access the repairer needs.
type UserStore interface {
	// ExistingIDs reports which of the given ids belong to existing users.
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)

	// FindAnyAdmin returns an arbitrary admin user or errs.ErrNotFound.
	FindAnyAdmin(ctx context.Context) (*userdomain.User, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Report summarizes one repair run.
type Report struct {
	Scanned           int
	CreatorsReset     int
	AssigneesReset    int
	DueDatesDefaulted int
	TasksFixed        int
}

// Repairer scans tasks and repairs dangling references.
type Repairer struct {
	tasks  TaskStore
	users  UserStore
	clock  Clock
	logger *slog.Logger
}

// RepairerConfig contains the dependencies of Repairer.
type RepairerConfig struct {
	Tasks TaskStore
	Users UserStore

	// Clock is optional; defaults to the system clock.
	Clock Clock

	Logger *slog.Logger
}

// NewRepairer creates a repairer.
func NewRepairer(cfg RepairerConfig) *Repairer {
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{
		tasks:  cfg.Tasks,
		users:  cfg.Users,
		clock:  clock,
		logger: logger,
	}
}

// Run scans all tasks and applies fixes. It fails before touching anything
// when no admin account exists.
func (r *Repairer) Run(ctx context.Context) (*Report, error) {
	admin, err := r.users.FindAnyAdmin(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, ErrNoAdmin
		}
		return nil, fmt.Errorf("failed to look up admin user: %w", err)
	}

	r.logger.InfoContext(ctx, "starting task repair",
		slog.String("fallback_admin", admin.ID.String()),
	)

	report := &Report{}
	offset := 0
	for {
		batch, scanErr := r.tasks.Scan(ctx, offset, scanBatchSize)
		if scanErr != nil {
			return report, fmt.Errorf("failed to scan tasks: %w", scanErr)
		}
		if len(batch) == 0 {
			break
		}

		if batchErr := r.repairBatch(ctx, batch, admin.ID, report); batchErr != nil {
			return report, batchErr
		}

		report.Scanned += len(batch)
		offset += len(batch)
	}

	r.logger.InfoContext(ctx, "task repair finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("tasks_fixed", report.TasksFixed),
		slog.Int("creators_reset", report.CreatorsReset),
		slog.Int("assignees_reset", report.AssigneesReset),
		slog.Int("due_dates_defaulted", report.DueDatesDefaulted),
	)
	return report, nil
}

// repairBatch checks one batch of tasks against the user directory and
// applies the needed fixes.
func (r *Repairer) repairBatch(
	ctx context.Context,
	batch []*taskdomain.Task,
	adminID uuid.UUID,
	report *Report,
) error {
	refs := collectUserRefs(batch)
	existing, err := r.users.ExistingIDs(ctx, refs)
	if err != nil {
		return fmt.Errorf("failed to resolve user references: %w", err)
	}

	for _, t := range batch {
		fix := r.buildFix(t, adminID, existing, report)
		if fix.IsEmpty() {
			continue
		}

		if applyErr := r.tasks.ApplyFix(ctx, t.ID, fix); applyErr != nil {
			return fmt.Errorf("failed to fix task %s: %w", t.ID, applyErr)
		}
		report.TasksFixed++

		r.logger.InfoContext(ctx, "task repaired",
			slog.String("task_id", t.ID.String()),
			slog.Bool("creator_reset", fix.CreatedBy != nil),
			slog.Bool("assignee_reset", fix.AssignedTo != nil),
			slog.Bool("due_date_defaulted", fix.DueDate != nil),
		)
	}
	return nil
}

// buildFix decides what corrections one task needs.
func (r *Repairer) buildFix(
	t *taskdomain.Task,
	adminID uuid.UUID,
	existing map[uuid.UUID]bool,
	report *Report,
) Fix {
	var fix Fix

	if !t.CreatedBy.IsZero() && !existing[t.CreatedBy] {
		id := adminID
		fix.CreatedBy = &id
		report.CreatorsReset++
	}
	if t.AssignedTo != nil && !existing[*t.AssignedTo] {
		id := adminID
		fix.AssignedTo = &id
		report.AssigneesReset++
	}
	if t.DueDate == nil {
		dueDate := r.clock.Now().Add(defaultDueDateOffset)
		fix.DueDate = &dueDate
		report.DueDatesDefaulted++
	}

	return fix
}

// collectUserRefs gathers the unique creator and assignee ids of a batch.
func collectUserRefs(batch []*taskdomain.Task) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(batch)*2)
	ids := make([]uuid.UUID, 0, len(batch)*2)
	collect := func(id uuid.UUID) {
		if id.IsZero() {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, t := range batch {
		collect(t.CreatedBy)
		if t.AssignedTo != nil {
			collect(*t.AssignedTo)
		}
	}
	return ids
}
