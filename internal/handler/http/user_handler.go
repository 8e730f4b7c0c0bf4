package httphandler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	userdomain "github.com/taskops/taskboard/internal/domain/user"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/internal/infrastructure/httpserver"
	"github.com/taskops/taskboard/internal/middleware"
)

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// UserListResponse represents the user directory in API responses.
type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
}

// UserService defines the directory operations consumed by the handler.
type UserService interface {
	List(ctx context.Context) ([]*userdomain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*userdomain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserHandler handles user directory HTTP requests. All routes are
// admin-only.
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterRoutes registers user routes with the router.
func (h *UserHandler) RegisterRoutes(r *httpserver.Router) {
	r.Admin().GET("/users", h.List)
	r.Admin().GET("/users/:id", h.Get)
	r.Admin().DELETE("/users/:id", h.Delete)
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.service.List(c.Request().Context())
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	resp := UserListResponse{
		Users: make([]UserResponse, 0, len(users)),
		Total: len(users),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}

	return httpserver.RespondOK(c, resp)
}

// Get handles GET /api/v1/users/:id.
func (h *UserHandler) Get(c echo.Context) error {
	userID, parseErr := uuid.ParseUUID(c.Param("id"))
	if parseErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_USER_ID", "invalid user ID format")
	}

	u, err := h.service.GetByID(c.Request().Context(), userID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, toUserResponse(u))
}

// Delete handles DELETE /api/v1/users/:id.
// Deleting a user leaves their task references dangling on purpose.
func (h *UserHandler) Delete(c echo.Context) error {
	userID, parseErr := uuid.ParseUUID(c.Param("id"))
	if parseErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_USER_ID", "invalid user ID format")
	}

	if actor := middleware.GetActor(c); actor.ID == userID {
		return httpserver.RespondErrorWithCode(
			c, http.StatusBadRequest, "VALIDATION_ERROR", "cannot delete your own account")
	}

	if err := h.service.Delete(c.Request().Context(), userID); err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondNoContent(c)
}

func toUserResponse(u *userdomain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role.String(),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}
