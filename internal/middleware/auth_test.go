package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskops/taskboard/internal/domain/identity"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/internal/middleware"
)

// stubValidator maps fixed token strings to actors.
type stubValidator struct {
	actors map[string]identity.Actor
	err    error
}

func (v *stubValidator) ValidateToken(_ context.Context, token string) (identity.Actor, error) {
	if v.err != nil {
		return identity.Actor{}, v.err
	}
	actor, ok := v.actors[token]
	if !ok {
		return identity.Actor{}, middleware.ErrInvalidToken
	}
	return actor, nil
}

func newAuthEcho(validator middleware.TokenValidator) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Auth(middleware.AuthConfig{
		TokenValidator: validator,
		SkipPaths:      []string{"/health"},
	}))
	e.GET("/protected", func(c echo.Context) error {
		actor := middleware.GetActor(c)
		return c.JSON(http.StatusOK, map[string]string{
			"user_id": actor.ID.String(),
			"role":    actor.Role.String(),
		})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/admin-only", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, middleware.RequireAdmin())
	return e
}

func TestAuth(t *testing.T) {
	actor := identity.Actor{ID: uuid.NewUUID(), Role: identity.RoleUser}
	validator := &stubValidator{actors: map[string]identity.Actor{"good-token": actor}}
	e := newAuthEcho(validator)

	t.Run("valid token passes and sets the actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer good-token")
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), actor.ID.String())
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing authorization header")
	})

	t.Run("non-bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid authorization header format")
	})

	t.Run("empty bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer ")
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer bad-token")
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	})

	t.Run("expired token gets its own code", func(t *testing.T) {
		expired := &stubValidator{err: middleware.ErrTokenExpired}
		expiredEcho := newAuthEcho(expired)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer anything")
		rec := httptest.NewRecorder()

		expiredEcho.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")
	})

	t.Run("skip paths bypass authentication", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	admin := identity.Actor{ID: uuid.NewUUID(), Role: identity.RoleAdmin}
	user := identity.Actor{ID: uuid.NewUUID(), Role: identity.RoleUser}
	validator := &stubValidator{actors: map[string]identity.Actor{
		"admin-token": admin,
		"user-token":  user,
	}}
	e := newAuthEcho(validator)

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer admin-token")
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("user is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer user-token")
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "Insufficient permissions")
	})

	t.Run("unauthenticated request is forbidden before reaching the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetActor(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.True(t, middleware.GetActor(c).IsZero())

	actor := identity.Actor{ID: uuid.NewUUID(), Role: identity.RoleUser}
	c.Set(string(middleware.ContextKeyActor), actor)
	assert.Equal(t, actor, middleware.GetActor(c))
}
