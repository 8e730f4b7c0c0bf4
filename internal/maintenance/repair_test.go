package maintenance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskops/taskboard/internal/domain/identity"
	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	userdomain "github.com/taskops/taskboard/internal/domain/user"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/internal/maintenance"
	"github.com/taskops/taskboard/tests/mocks"
)

type repairClock struct {
	now time.Time
}

func (c repairClock) Now() time.Time { return c.now }

type repairFixture struct {
	repairer *maintenance.Repairer
	tasks    *mocks.MockTaskRepository
	users    *mocks.MockUserRepository
	clock    repairClock
	admin    *userdomain.User
}

func newRepairFixture(t *testing.T, withAdmin bool) *repairFixture {
	t.Helper()

	tasks := mocks.NewMockTaskRepository()
	users := mocks.NewMockUserRepository()
	clock := repairClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}

	f := &repairFixture{tasks: tasks, users: users, clock: clock}
	if withAdmin {
		f.admin = users.AddUser("Admin", "admin@example.com", identity.RoleAdmin)
	}

	f.repairer = maintenance.NewRepairer(maintenance.RepairerConfig{
		Tasks: tasks,
		Users: users,
		Clock: clock,
	})
	return f
}

func (f *repairFixture) seed(
	t *testing.T,
	creator uuid.UUID,
	assignee *uuid.UUID,
	dueDate *time.Time,
) *taskdomain.Task {
	t.Helper()
	created, err := taskdomain.New("Task", "", "", "", dueDate, assignee, creator)
	require.NoError(t, err)
	f.tasks.Seed(created)
	return created
}

func TestRepairer_Run(t *testing.T) {
	ctx := context.Background()
	future := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("fails without an admin before touching anything", func(t *testing.T) {
		f := newRepairFixture(t, false)
		ghost := uuid.NewUUID()
		f.seed(t, ghost, &ghost, nil)

		_, err := f.repairer.Run(ctx)

		require.ErrorIs(t, err, maintenance.ErrNoAdmin)
		assert.Equal(t, 0, f.tasks.CallCount("ApplyFix"))
	})

	t.Run("healthy tasks are left alone", func(t *testing.T) {
		f := newRepairFixture(t, true)
		worker := f.users.AddUser("Worker", "worker@example.com", identity.RoleUser)
		f.seed(t, f.admin.ID, &worker.ID, &future)

		report, err := f.repairer.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Scanned)
		assert.Equal(t, 0, report.TasksFixed)
		assert.Equal(t, 0, f.tasks.CallCount("ApplyFix"))
	})

	t.Run("dangling creator is reassigned to the admin", func(t *testing.T) {
		f := newRepairFixture(t, true)
		worker := f.users.AddUser("Worker", "worker@example.com", identity.RoleUser)
		ghost := uuid.NewUUID()
		seeded := f.seed(t, ghost, &worker.ID, &future)

		report, err := f.repairer.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.CreatorsReset)
		assert.Equal(t, 0, report.AssigneesReset)
		assert.Equal(t, 1, report.TasksFixed)

		fixed := f.tasks.Get(seeded.ID)
		assert.Equal(t, f.admin.ID, fixed.CreatedBy)
		require.NotNil(t, fixed.AssignedTo)
		assert.Equal(t, worker.ID, *fixed.AssignedTo)
	})

	t.Run("dangling assignee is reassigned to the admin", func(t *testing.T) {
		f := newRepairFixture(t, true)
		ghost := uuid.NewUUID()
		seeded := f.seed(t, f.admin.ID, &ghost, &future)

		report, err := f.repairer.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 0, report.CreatorsReset)
		assert.Equal(t, 1, report.AssigneesReset)

		fixed := f.tasks.Get(seeded.ID)
		require.NotNil(t, fixed.AssignedTo)
		assert.Equal(t, f.admin.ID, *fixed.AssignedTo)
	})

	t.Run("missing due date gets a default a day out", func(t *testing.T) {
		f := newRepairFixture(t, true)
		seeded := f.seed(t, f.admin.ID, &f.admin.ID, nil)

		report, err := f.repairer.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.DueDatesDefaulted)

		fixed := f.tasks.Get(seeded.ID)
		require.NotNil(t, fixed.DueDate)
		assert.Equal(t, f.clock.now.Add(24*time.Hour), *fixed.DueDate)
	})

	t.Run("unassigned tasks stay unassigned", func(t *testing.T) {
		f := newRepairFixture(t, true)
		seeded := f.seed(t, f.admin.ID, &f.admin.ID, &future)
		seeded.AssignedTo = nil
		f.tasks.Seed(seeded)

		report, err := f.repairer.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 0, report.AssigneesReset)

		fixed := f.tasks.Get(seeded.ID)
		assert.Nil(t, fixed.AssignedTo)
	})

	t.Run("one task can need every fix at once", func(t *testing.T) {
		f := newRepairFixture(t, true)
		ghostCreator := uuid.NewUUID()
		ghostAssignee := uuid.NewUUID()
		seeded := f.seed(t, ghostCreator, &ghostAssignee, nil)

		report, err := f.repairer.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.TasksFixed)
		assert.Equal(t, 1, report.CreatorsReset)
		assert.Equal(t, 1, report.AssigneesReset)
		assert.Equal(t, 1, report.DueDatesDefaulted)

		fixed := f.tasks.Get(seeded.ID)
		assert.Equal(t, f.admin.ID, fixed.CreatedBy)
		require.NotNil(t, fixed.AssignedTo)
		assert.Equal(t, f.admin.ID, *fixed.AssignedTo)
		require.NotNil(t, fixed.DueDate)
	})

	t.Run("scans more tasks than one batch holds", func(t *testing.T) {
		f := newRepairFixture(t, true)
		ghost := uuid.NewUUID()
		for range 250 {
			f.seed(t, ghost, &f.admin.ID, &future)
		}

		report, err := f.repairer.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 250, report.Scanned)
		assert.Equal(t, 250, report.CreatorsReset)
		assert.GreaterOrEqual(t, f.tasks.CallCount("Scan"), 3)
	})

	t.Run("running twice changes nothing the second time", func(t *testing.T) {
		f := newRepairFixture(t, true)
		ghost := uuid.NewUUID()
		f.seed(t, ghost, &ghost, nil)

		first, err := f.repairer.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, first.TasksFixed)

		second, err := f.repairer.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, second.TasksFixed)
	})
}
