package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskapp "github.com/taskops/taskboard/internal/application/task"
	"github.com/taskops/taskboard/internal/domain/errs"
	"github.com/taskops/taskboard/internal/domain/identity"
	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/tests/mocks"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type serviceFixture struct {
	service *taskapp.Service
	repo    *mocks.MockTaskRepository
	users   *mocks.MockUserRepository
	cache   *mocks.MockStatsCache
	clock   fixedClock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	repo := mocks.NewMockTaskRepository()
	users := mocks.NewMockUserRepository()
	cache := mocks.NewMockStatsCache()
	clock := fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	service := taskapp.NewService(taskapp.ServiceConfig{
		Repo:      repo,
		Directory: users,
		Cache:     cache,
		Clock:     clock,
	})

	return &serviceFixture{service: service, repo: repo, users: users, cache: cache, clock: clock}
}

func (f *serviceFixture) admin(t *testing.T) identity.Actor {
	t.Helper()
	u := f.users.AddUser("Boss", "boss@example.com", identity.RoleAdmin)
	return u.Actor()
}

func (f *serviceFixture) user(t *testing.T, name string) identity.Actor {
	t.Helper()
	u := f.users.AddUser(name, name+"@example.com", identity.RoleUser)
	return u.Actor()
}

func (f *serviceFixture) seedTask(
	t *testing.T,
	creator identity.Actor,
	assignee *uuid.UUID,
) *taskdomain.Task {
	t.Helper()
	created, err := taskdomain.New("Seeded task", "", "", "", nil, assignee, creator.ID)
	require.NoError(t, err)
	f.repo.Seed(created)
	return created
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and resolves the creator", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)

		view, err := f.service.Create(ctx, taskapp.CreateInput{Title: "Write docs"}, admin)

		require.NoError(t, err)
		assert.Equal(t, "Write docs", view.Title)
		assert.Equal(t, taskdomain.StatusTodo, view.Status)
		assert.Equal(t, admin.ID, view.CreatedBy.ID)
		assert.Equal(t, "Boss", view.CreatedBy.Name)
		assert.Equal(t, 1, f.repo.Len())
	})

	t.Run("assignee defaults to creator", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)

		view, err := f.service.Create(ctx, taskapp.CreateInput{Title: "Self-assigned"}, admin)

		require.NoError(t, err)
		require.NotNil(t, view.AssignedTo)
		assert.Equal(t, admin.ID, view.AssignedTo.ID)
	})

	t.Run("explicit assignee may be any id, even a dangling one", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		ghost := uuid.NewUUID()

		view, err := f.service.Create(ctx, taskapp.CreateInput{
			Title:      "Orphan from birth",
			AssignedTo: &ghost,
		}, admin)

		require.NoError(t, err)
		require.NotNil(t, view.AssignedTo)
		assert.Equal(t, ghost, view.AssignedTo.ID)
		assert.Empty(t, view.AssignedTo.Name)
	})

	t.Run("invalid input writes nothing", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)

		_, err := f.service.Create(ctx, taskapp.CreateInput{Title: "   "}, admin)

		require.ErrorIs(t, err, errs.ErrInvalidInput)
		assert.Equal(t, 0, f.repo.Len())
	})

	t.Run("invalidates admin and assignee scopes", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		assignee := f.user(t, "worker")

		_, err := f.service.Create(ctx, taskapp.CreateInput{
			Title:      "Cache buster",
			AssignedTo: &assignee.ID,
		}, admin)

		require.NoError(t, err)
		assert.Contains(t, f.cache.Invalidated(), taskapp.ScopeAll)
		assert.Contains(t, f.cache.Invalidated(), taskapp.UserScope(assignee.ID))
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("missing task reports not found before authorization", func(t *testing.T) {
		f := newServiceFixture(t)
		actor := f.user(t, "worker")

		patch := taskdomain.NewPatch().SetStatus(taskdomain.StatusDone)
		_, err := f.service.Update(ctx, uuid.NewUUID(), patch, actor)

		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("admin may change every field", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		seeded := f.seedTask(t, admin, nil)
		next := f.user(t, "worker")
		due := time.Now().Add(72 * time.Hour).UTC()

		patch := taskdomain.NewPatch().
			SetTitle("Retitled").
			SetDescription("new body").
			SetStatus(taskdomain.StatusInProgress).
			SetPriority(taskdomain.PriorityHigh).
			SetDueDate(&due).
			SetAssignee(&next.ID)

		view, err := f.service.Update(ctx, seeded.ID, patch, admin)

		require.NoError(t, err)
		assert.Equal(t, "Retitled", view.Title)
		assert.Equal(t, taskdomain.StatusInProgress, view.Status)
		assert.Equal(t, taskdomain.PriorityHigh, view.Priority)
		require.NotNil(t, view.AssignedTo)
		assert.Equal(t, next.ID, view.AssignedTo.ID)
		assert.Equal(t, "worker", view.AssignedTo.Name)
	})

	t.Run("assignee may update status", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		actor := f.user(t, "worker")
		seeded := f.seedTask(t, admin, &actor.ID)

		patch := taskdomain.NewPatch().SetStatus(taskdomain.StatusDone)
		view, err := f.service.Update(ctx, seeded.ID, patch, actor)

		require.NoError(t, err)
		assert.Equal(t, taskdomain.StatusDone, view.Status)
	})

	t.Run("assignee touching another field is rejected whole", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		actor := f.user(t, "worker")
		seeded := f.seedTask(t, admin, &actor.ID)

		patch := taskdomain.NewPatch().
			SetStatus(taskdomain.StatusDone).
			SetTitle("sneaky rename")

		_, err := f.service.Update(ctx, seeded.ID, patch, actor)

		require.ErrorIs(t, err, errs.ErrForbidden)
		assert.ErrorContains(t, err, "users can only update task status")
		assert.Equal(t, 0, f.repo.CallCount("UpdateByID"))

		stored := f.repo.Get(seeded.ID)
		assert.Equal(t, "Seeded task", stored.Title)
		assert.Equal(t, taskdomain.StatusTodo, stored.Status)
	})

	t.Run("non-assignee is rejected", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		assignee := f.user(t, "worker")
		other := f.user(t, "bystander")
		seeded := f.seedTask(t, admin, &assignee.ID)

		patch := taskdomain.NewPatch().SetStatus(taskdomain.StatusDone)
		_, err := f.service.Update(ctx, seeded.ID, patch, other)

		require.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("unassigned task rejects non-admin updates", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		actor := f.user(t, "worker")
		seeded := f.seedTask(t, admin, &actor.ID)
		seeded.AssignedTo = nil
		f.repo.Seed(seeded)

		patch := taskdomain.NewPatch().SetStatus(taskdomain.StatusDone)
		_, err := f.service.Update(ctx, seeded.ID, patch, actor)

		require.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("admin clears assignment with a null value", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		assignee := f.user(t, "worker")
		seeded := f.seedTask(t, admin, &assignee.ID)

		patch := taskdomain.NewPatch().SetAssigneeRaw(nil)
		view, err := f.service.Update(ctx, seeded.ID, patch, admin)

		require.NoError(t, err)
		assert.Nil(t, view.AssignedTo)
	})

	t.Run("malformed assignee id is invalid input", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		seeded := f.seedTask(t, admin, nil)

		raw := "definitely-not-a-uuid"
		patch := taskdomain.NewPatch().SetAssigneeRaw(&raw)
		_, err := f.service.Update(ctx, seeded.ID, patch, admin)

		require.ErrorIs(t, err, errs.ErrInvalidInput)
		assert.Equal(t, 0, f.repo.CallCount("UpdateByID"))
	})

	t.Run("reassignment invalidates both assignee scopes", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		before := f.user(t, "before")
		after := f.user(t, "after")
		seeded := f.seedTask(t, admin, &before.ID)

		patch := taskdomain.NewPatch().SetAssignee(&after.ID)
		_, err := f.service.Update(ctx, seeded.ID, patch, admin)

		require.NoError(t, err)
		invalidated := f.cache.Invalidated()
		assert.Contains(t, invalidated, taskapp.ScopeAll)
		assert.Contains(t, invalidated, taskapp.UserScope(before.ID))
		assert.Contains(t, invalidated, taskapp.UserScope(after.ID))
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("admin may delete", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		creator := f.user(t, "author")
		seeded := f.seedTask(t, creator, nil)

		require.NoError(t, f.service.Delete(ctx, seeded.ID, admin))
		assert.Equal(t, 0, f.repo.Len())
	})

	t.Run("creator may delete", func(t *testing.T) {
		f := newServiceFixture(t)
		creator := f.user(t, "author")
		assignee := f.user(t, "worker")
		seeded := f.seedTask(t, creator, &assignee.ID)

		require.NoError(t, f.service.Delete(ctx, seeded.ID, creator))
		assert.Equal(t, 0, f.repo.Len())
	})

	t.Run("assignee may not delete", func(t *testing.T) {
		f := newServiceFixture(t)
		creator := f.user(t, "author")
		assignee := f.user(t, "worker")
		seeded := f.seedTask(t, creator, &assignee.ID)

		err := f.service.Delete(ctx, seeded.ID, assignee)

		require.ErrorIs(t, err, errs.ErrForbidden)
		assert.Equal(t, 1, f.repo.Len())
	})

	t.Run("missing task reports not found", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)

		require.ErrorIs(t, f.service.Delete(ctx, uuid.NewUUID(), admin), errs.ErrNotFound)
	})

	t.Run("invalidates the assignee scope", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		assignee := f.user(t, "worker")
		seeded := f.seedTask(t, admin, &assignee.ID)

		require.NoError(t, f.service.Delete(ctx, seeded.ID, admin))
		assert.Contains(t, f.cache.Invalidated(), taskapp.UserScope(assignee.ID))
	})
}

func TestService_AddComment(t *testing.T) {
	ctx := context.Background()

	t.Run("any identity may comment", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		bystander := f.user(t, "bystander")
		seeded := f.seedTask(t, admin, nil)

		view, err := f.service.AddComment(ctx, seeded.ID, "drive-by remark", bystander.ID)

		require.NoError(t, err)
		require.Len(t, view.Comments, 1)
		assert.Equal(t, "drive-by remark", view.Comments[0].Text)
		assert.Equal(t, bystander.ID, view.Comments[0].User.ID)
		assert.Equal(t, "bystander", view.Comments[0].User.Name)
		assert.Equal(t, f.clock.now, view.Comments[0].CreatedAt)
	})

	t.Run("comments accumulate in order", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		seeded := f.seedTask(t, admin, nil)

		_, err := f.service.AddComment(ctx, seeded.ID, "first", admin.ID)
		require.NoError(t, err)
		view, err := f.service.AddComment(ctx, seeded.ID, "second", admin.ID)
		require.NoError(t, err)

		require.Len(t, view.Comments, 2)
		assert.Equal(t, "first", view.Comments[0].Text)
		assert.Equal(t, "second", view.Comments[1].Text)
	})

	t.Run("empty text is invalid", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		seeded := f.seedTask(t, admin, nil)

		_, err := f.service.AddComment(ctx, seeded.ID, "  ", admin.ID)

		require.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("missing task reports not found", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)

		_, err := f.service.AddComment(ctx, uuid.NewUUID(), "hello", admin.ID)

		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("does not invalidate stats", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := f.admin(t)
		seeded := f.seedTask(t, admin, nil)

		_, err := f.service.AddComment(ctx, seeded.ID, "note", admin.ID)

		require.NoError(t, err)
		assert.Empty(t, f.cache.Invalidated())
	})
}

func TestService_CacheFailuresAreSilent(t *testing.T) {
	ctx := context.Background()

	f := newServiceFixture(t)
	admin := f.admin(t)
	f.cache.SetErrors(nil, nil, assert.AnError)

	_, err := f.service.Create(ctx, taskapp.CreateInput{Title: "Still works"}, admin)

	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.Len())
}
