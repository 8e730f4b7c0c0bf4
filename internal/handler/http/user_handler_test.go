package httphandler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskops/taskboard/internal/domain/identity"
	"github.com/taskops/taskboard/internal/domain/uuid"
	httphandler "github.com/taskops/taskboard/internal/handler/http"
)

func TestUserHandler_List(t *testing.T) {
	t.Run("admin lists the directory", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.addActor(t, "boss", identity.RoleAdmin)
		f.addActor(t, "worker", identity.RoleUser)

		rec, env := f.do(t, http.MethodGet, "/api/v1/users", token, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp httphandler.UserListResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, 2, resp.Total)
		require.Len(t, resp.Users, 2)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.addActor(t, "worker", identity.RoleUser)

		rec, _ := f.do(t, http.MethodGet, "/api/v1/users", token, nil)

		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unauthenticated is rejected", func(t *testing.T) {
		f := newAPIFixture(t)

		rec, _ := f.do(t, http.MethodGet, "/api/v1/users", "", nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserHandler_Get(t *testing.T) {
	t.Run("returns the user", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.addActor(t, "boss", identity.RoleAdmin)
		worker, _ := f.addActor(t, "worker", identity.RoleUser)

		rec, env := f.do(t, http.MethodGet, "/api/v1/users/"+worker.ID.String(), token, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp httphandler.UserResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, worker.ID.String(), resp.ID)
		assert.Equal(t, "worker", resp.Name)
		assert.Equal(t, "user", resp.Role)
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.addActor(t, "boss", identity.RoleAdmin)

		rec, env := f.do(t, http.MethodGet, "/api/v1/users/not-a-uuid", token, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_USER_ID", env.Error.Code)
	})

	t.Run("missing user", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.addActor(t, "boss", identity.RoleAdmin)

		rec, _ := f.do(t, http.MethodGet, "/api/v1/users/"+uuid.NewUUID().String(), token, nil)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUserHandler_Delete(t *testing.T) {
	t.Run("admin deletes another user", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.addActor(t, "boss", identity.RoleAdmin)
		worker, _ := f.addActor(t, "worker", identity.RoleUser)

		rec, _ := f.do(t, http.MethodDelete, "/api/v1/users/"+worker.ID.String(), token, nil)

		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("self-deletion is rejected", func(t *testing.T) {
		f := newAPIFixture(t)
		admin, token := f.addActor(t, "boss", identity.RoleAdmin)

		rec, env := f.do(t, http.MethodDelete, "/api/v1/users/"+admin.ID.String(), token, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "cannot delete your own account", env.Error.Message)
	})

	t.Run("deletion leaves task references dangling", func(t *testing.T) {
		f := newAPIFixture(t)
		admin, token := f.addActor(t, "boss", identity.RoleAdmin)
		worker, _ := f.addActor(t, "worker", identity.RoleUser)
		seeded := f.seedTask(t, admin, &worker.ID)

		rec, _ := f.do(t, http.MethodDelete, "/api/v1/users/"+worker.ID.String(), token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		// The task still points at the deleted user; only the id survives.
		getRec, env := f.do(t, http.MethodGet, "/api/v1/tasks/"+seeded.ID.String(), token, nil)
		require.Equal(t, http.StatusOK, getRec.Code)

		var resp httphandler.TaskResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		require.NotNil(t, resp.AssignedTo)
		assert.Equal(t, worker.ID.String(), resp.AssignedTo.ID)
		assert.Empty(t, resp.AssignedTo.Name)
	})

	t.Run("missing user", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.addActor(t, "boss", identity.RoleAdmin)

		rec, _ := f.do(t, http.MethodDelete, "/api/v1/users/"+uuid.NewUUID().String(), token, nil)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
