package mongodb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskapp "github.com/taskops/taskboard/internal/application/task"
	"github.com/taskops/taskboard/internal/domain/errs"
	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/internal/infrastructure/repository/mongodb"
	"github.com/taskops/taskboard/internal/maintenance"
	"github.com/taskops/taskboard/tests/testutil"
)

// insertDelay keeps created_at timestamps strictly ordered between inserts.
const insertDelay = 5 * time.Millisecond

func setupTaskRepository(t *testing.T) *mongodb.MongoTaskRepository {
	t.Helper()
	db := testutil.SetupTestMongoDB(t)
	return mongodb.NewMongoTaskRepository(db.Collection(mongodb.TasksCollection))
}

func insertTask(
	t *testing.T,
	repo *mongodb.MongoTaskRepository,
	title string,
	status taskdomain.Status,
	priority taskdomain.Priority,
	assignee *uuid.UUID,
) *taskdomain.Task {
	t.Helper()

	created, err := taskdomain.New(title, "", status, priority, nil, assignee, uuid.NewUUID())
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), created))
	time.Sleep(insertDelay)
	return created
}

func TestMongoTaskRepository_InsertAndFindByID(t *testing.T) {
	repo := setupTaskRepository(t)
	ctx := context.Background()

	creator := uuid.NewUUID()
	assignee := uuid.NewUUID()
	due := time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC)

	created, err := taskdomain.New(
		"Full task", "with every field",
		taskdomain.StatusInProgress, taskdomain.PriorityHigh,
		&due, &assignee, creator,
	)
	require.NoError(t, err)

	require.NoError(t, repo.Insert(ctx, created))
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Full task", found.Title)
	assert.Equal(t, "with every field", found.Description)
	assert.Equal(t, taskdomain.StatusInProgress, found.Status)
	assert.Equal(t, taskdomain.PriorityHigh, found.Priority)
	require.NotNil(t, found.DueDate)
	assert.Equal(t, due.Unix(), found.DueDate.Unix())
	require.NotNil(t, found.AssignedTo)
	assert.Equal(t, assignee, *found.AssignedTo)
	assert.Equal(t, creator, found.CreatedBy)
	assert.Empty(t, found.Comments)
}

func TestMongoTaskRepository_FindByID_NotFound(t *testing.T) {
	repo := setupTaskRepository(t)

	_, err := repo.FindByID(context.Background(), uuid.NewUUID())

	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMongoTaskRepository_Find(t *testing.T) {
	repo := setupTaskRepository(t)
	ctx := context.Background()

	worker := uuid.NewUUID()
	other := uuid.NewUUID()

	insertTask(t, repo, "oldest todo", taskdomain.StatusTodo, taskdomain.PriorityLow, &worker)
	insertTask(t, repo, "done task", taskdomain.StatusDone, taskdomain.PriorityMedium, &worker)
	insertTask(t, repo, "other persons task", taskdomain.StatusTodo, taskdomain.PriorityHigh, &other)
	insertTask(t, repo, "newest todo", taskdomain.StatusTodo, taskdomain.PriorityHigh, &worker)

	page := taskapp.Page{Offset: 0, Limit: 10}

	t.Run("unfiltered returns everything newest first", func(t *testing.T) {
		tasks, err := repo.Find(ctx, taskapp.Filter{}, page)

		require.NoError(t, err)
		require.Len(t, tasks, 4)
		assert.Equal(t, "newest todo", tasks[0].Title)
		assert.Equal(t, "oldest todo", tasks[3].Title)
	})

	t.Run("by assignee", func(t *testing.T) {
		tasks, err := repo.Find(ctx, taskapp.Filter{AssignedTo: &worker}, page)

		require.NoError(t, err)
		require.Len(t, tasks, 3)
		for _, task := range tasks {
			require.NotNil(t, task.AssignedTo)
			assert.Equal(t, worker, *task.AssignedTo)
		}
	})

	t.Run("by status", func(t *testing.T) {
		status := taskdomain.StatusDone
		tasks, err := repo.Find(ctx, taskapp.Filter{Status: &status}, page)

		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "done task", tasks[0].Title)
	})

	t.Run("by status-not", func(t *testing.T) {
		done := taskdomain.StatusDone
		tasks, err := repo.Find(ctx, taskapp.Filter{StatusNot: &done}, page)

		require.NoError(t, err)
		assert.Len(t, tasks, 3)
	})

	t.Run("by priority and assignee combined", func(t *testing.T) {
		high := taskdomain.PriorityHigh
		tasks, err := repo.Find(ctx, taskapp.Filter{AssignedTo: &worker, Priority: &high}, page)

		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "newest todo", tasks[0].Title)
	})

	t.Run("pagination window", func(t *testing.T) {
		tasks, err := repo.Find(ctx, taskapp.Filter{}, taskapp.Page{Offset: 2, Limit: 2})

		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, "done task", tasks[0].Title)
		assert.Equal(t, "oldest todo", tasks[1].Title)
	})
}

func TestMongoTaskRepository_Count(t *testing.T) {
	repo := setupTaskRepository(t)
	ctx := context.Background()

	worker := uuid.NewUUID()
	insertTask(t, repo, "one", taskdomain.StatusTodo, "", &worker)
	insertTask(t, repo, "two", taskdomain.StatusDone, "", &worker)
	insertTask(t, repo, "three", taskdomain.StatusDone, "", nil)

	total, err := repo.Count(ctx, taskapp.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	done := taskdomain.StatusDone
	doneCount, err := repo.Count(ctx, taskapp.Filter{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, 2, doneCount)

	pending, err := repo.Count(ctx, taskapp.Filter{StatusNot: &done})
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	assigned, err := repo.Count(ctx, taskapp.Filter{AssignedTo: &worker})
	require.NoError(t, err)
	assert.Equal(t, 2, assigned)
}

func TestMongoTaskRepository_UpdateByID(t *testing.T) {
	repo := setupTaskRepository(t)
	ctx := context.Background()

	t.Run("applies the patch and returns the refreshed task", func(t *testing.T) {
		worker := uuid.NewUUID()
		created := insertTask(t, repo, "before", taskdomain.StatusTodo, taskdomain.PriorityLow, &worker)

		patch := taskdomain.NewPatch().
			SetTitle("after").
			SetStatus(taskdomain.StatusDone).
			SetPriority(taskdomain.PriorityHigh)

		updated, err := repo.UpdateByID(ctx, created.ID, patch)

		require.NoError(t, err)
		assert.Equal(t, "after", updated.Title)
		assert.Equal(t, taskdomain.StatusDone, updated.Status)
		assert.Equal(t, taskdomain.PriorityHigh, updated.Priority)
		require.NotNil(t, updated.AssignedTo)
		assert.Equal(t, worker, *updated.AssignedTo)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))
	})

	t.Run("clears assignee and due date", func(t *testing.T) {
		worker := uuid.NewUUID()
		created := insertTask(t, repo, "assigned", taskdomain.StatusTodo, "", &worker)

		patch := taskdomain.NewPatch().SetAssignee(nil).SetDueDate(nil)
		updated, err := repo.UpdateByID(ctx, created.ID, patch)

		require.NoError(t, err)
		assert.Nil(t, updated.AssignedTo)
		assert.Nil(t, updated.DueDate)

		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, found.AssignedTo)
	})

	t.Run("missing task", func(t *testing.T) {
		patch := taskdomain.NewPatch().SetTitle("ghost")

		_, err := repo.UpdateByID(ctx, uuid.NewUUID(), patch)

		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestMongoTaskRepository_DeleteByID(t *testing.T) {
	repo := setupTaskRepository(t)
	ctx := context.Background()

	created := insertTask(t, repo, "doomed", "", "", nil)

	require.NoError(t, repo.DeleteByID(ctx, created.ID))

	_, err := repo.FindByID(ctx, created.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.ErrorIs(t, repo.DeleteByID(ctx, created.ID), errs.ErrNotFound)
}

func TestMongoTaskRepository_AppendComment(t *testing.T) {
	repo := setupTaskRepository(t)
	ctx := context.Background()

	created := insertTask(t, repo, "discussed", "", "", nil)
	author := uuid.NewUUID()

	first, err := taskdomain.NewComment("first", author, time.Now().UTC())
	require.NoError(t, err)
	second, err := taskdomain.NewComment("second", author, time.Now().UTC())
	require.NoError(t, err)

	updated, err := repo.AppendComment(ctx, created.ID, first)
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)

	updated, err = repo.AppendComment(ctx, created.ID, second)
	require.NoError(t, err)
	require.Len(t, updated.Comments, 2)
	assert.Equal(t, "first", updated.Comments[0].Text)
	assert.Equal(t, "second", updated.Comments[1].Text)
	assert.Equal(t, author, updated.Comments[0].UserID)

	_, err = repo.AppendComment(ctx, uuid.NewUUID(), first)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMongoTaskRepository_ScanAndApplyFix(t *testing.T) {
	repo := setupTaskRepository(t)
	ctx := context.Background()

	first := insertTask(t, repo, "first", "", "", nil)
	insertTask(t, repo, "second", "", "", nil)
	insertTask(t, repo, "third", "", "", nil)

	t.Run("scan walks oldest first", func(t *testing.T) {
		batch, err := repo.Scan(ctx, 0, 2)

		require.NoError(t, err)
		require.Len(t, batch, 2)
		assert.Equal(t, "first", batch[0].Title)
		assert.Equal(t, "second", batch[1].Title)

		rest, err := repo.Scan(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "third", rest[0].Title)
	})

	t.Run("apply fix rewrites creator, assignee and due date", func(t *testing.T) {
		admin := uuid.NewUUID()
		due := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

		err := repo.ApplyFix(ctx, first.ID, maintenance.Fix{
			CreatedBy:  &admin,
			AssignedTo: &admin,
			DueDate:    &due,
		})
		require.NoError(t, err)

		fixed, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, admin, fixed.CreatedBy)
		require.NotNil(t, fixed.AssignedTo)
		assert.Equal(t, admin, *fixed.AssignedTo)
		require.NotNil(t, fixed.DueDate)
		assert.Equal(t, due.Unix(), fixed.DueDate.Unix())
	})

	t.Run("apply fix tolerates a vanished task", func(t *testing.T) {
		admin := uuid.NewUUID()

		err := repo.ApplyFix(ctx, uuid.NewUUID(), maintenance.Fix{CreatedBy: &admin})

		require.NoError(t, err)
	})
}
