// Package httphandler contains the HTTP handlers for the API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	taskapp "github.com/taskops/taskboard/internal/application/task"
	"github.com/taskops/taskboard/internal/domain/identity"
	"github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/internal/infrastructure/httpserver"
	"github.com/taskops/taskboard/internal/middleware"
)

// Validation constants for the task handler.
const (
	maxTaskTitleLength       = 200
	maxTaskDescriptionLength = 5000
	maxTaskListLimit         = 100
	maxCommentLength         = 2000
)

// Task handler errors.
var (
	ErrTaskTitleRequired      = errors.New("task title is required")
	ErrTaskTitleTooLong       = errors.New("task title is too long")
	ErrTaskDescriptionTooLong = errors.New("task description is too long")
	ErrCommentTextRequired    = errors.New("comment text is required")
	ErrCommentTextTooLong     = errors.New("comment text is too long")
)

// CreateTaskRequest represents the request to create a task.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"dueDate"`
	AssignedTo  *string `json:"assignedTo"`
}

// AddCommentRequest represents the request to add a comment.
type AddCommentRequest struct {
	Text string `json:"text"`
}

// UserRefResponse represents a resolved user reference in API responses.
// A dangling reference carries only the id.
type UserRefResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// CommentResponse represents a comment in API responses.
type CommentResponse struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	User      UserRefResponse `json:"user"`
	CreatedAt string          `json:"createdAt"`
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status"`
	Priority    string            `json:"priority"`
	DueDate     *string           `json:"dueDate,omitempty"`
	AssignedTo  *UserRefResponse  `json:"assignedTo,omitempty"`
	CreatedBy   UserRefResponse   `json:"createdBy"`
	Comments    []CommentResponse `json:"comments,omitempty"`
	CreatedAt   string            `json:"createdAt"`
	UpdatedAt   string            `json:"updatedAt,omitempty"`
}

// StatsResponse represents the aggregate counts in API responses.
type StatsResponse struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Done    int `json:"done"`
}

// TaskListResponse represents a task listing in API responses.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
	Stats StatsResponse  `json:"stats"`
}

// TaskService defines the mutation operations consumed by the handler.
// Declared on the consumer side per project guidelines.
type TaskService interface {
	Create(ctx context.Context, in taskapp.CreateInput, creator identity.Actor) (*taskapp.View, error)
	Update(ctx context.Context, id uuid.UUID, patch *task.Patch, actor identity.Actor) (*taskapp.View, error)
	Delete(ctx context.Context, id uuid.UUID, actor identity.Actor) error
	AddComment(ctx context.Context, id uuid.UUID, text string, authorID uuid.UUID) (*taskapp.View, error)
}

// TaskQueries defines the read operations consumed by the handler.
type TaskQueries interface {
	List(ctx context.Context, actor identity.Actor, q taskapp.ListQuery) (*taskapp.ListResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*taskapp.View, error)
	Stats(ctx context.Context, actor identity.Actor) (taskapp.Stats, error)
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	service TaskService
	queries TaskQueries
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service TaskService, queries TaskQueries) *TaskHandler {
	return &TaskHandler{
		service: service,
		queries: queries,
	}
}

// RegisterRoutes registers task routes with the router.
func (h *TaskHandler) RegisterRoutes(r *httpserver.Router) {
	// Creation is an admin operation; everything else is authorized per task
	// inside the service.
	r.Admin().POST("/tasks", h.Create)

	r.Auth().GET("/tasks", h.List)
	r.Auth().GET("/tasks/stats", h.Stats)
	r.Auth().GET("/tasks/:id", h.Get)
	r.Auth().PUT("/tasks/:id", h.Update)
	r.Auth().DELETE("/tasks/:id", h.Delete)
	r.Auth().POST("/tasks/:id/comments", h.AddComment)
}

// Create handles POST /api/v1/tasks.
func (h *TaskHandler) Create(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor.IsZero() {
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}

	var req CreateTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	if valErr := validateCreateTaskRequest(&req); valErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", valErr.Error())
	}

	in := taskapp.CreateInput{
		Title:       req.Title,
		Description: req.Description,
	}

	if req.Status != "" {
		status, parseErr := task.ParseStatus(req.Status)
		if parseErr != nil {
			return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_STATUS", "invalid task status")
		}
		in.Status = status
	}
	if req.Priority != "" {
		priority, parseErr := task.ParsePriority(req.Priority)
		if parseErr != nil {
			return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_PRIORITY", "invalid task priority")
		}
		in.Priority = priority
	}
	if req.DueDate != nil && *req.DueDate != "" {
		dueDate, parseErr := parseDueDate(*req.DueDate)
		if parseErr != nil {
			return httpserver.RespondErrorWithCode(
				c, http.StatusBadRequest, "INVALID_DUE_DATE", "invalid due date format, expected RFC 3339 or YYYY-MM-DD")
		}
		in.DueDate = &dueDate
	}
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		assignee, parseErr := uuid.ParseUUID(*req.AssignedTo)
		if parseErr != nil {
			return httpserver.RespondErrorWithCode(
				c, http.StatusBadRequest, "INVALID_ASSIGNEE_ID", "invalid assignee ID format")
		}
		in.AssignedTo = &assignee
	}

	view, err := h.service.Create(c.Request().Context(), in, actor)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, toTaskResponse(view, false))
}

// List handles GET /api/v1/tasks.
// Supports status, priority, page and limit query parameters.
func (h *TaskHandler) List(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor.IsZero() {
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}

	var q taskapp.ListQuery

	if raw := c.QueryParam("status"); raw != "" {
		status, parseErr := task.ParseStatus(raw)
		if parseErr != nil {
			return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_STATUS", "invalid task status")
		}
		q.Status = &status
	}
	if raw := c.QueryParam("priority"); raw != "" {
		priority, parseErr := task.ParsePriority(raw)
		if parseErr != nil {
			return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_PRIORITY", "invalid task priority")
		}
		q.Priority = &priority
	}

	q.Page = parseIntParam(c.QueryParam("page"), taskapp.DefaultPage)
	q.Limit = parseIntParam(c.QueryParam("limit"), taskapp.DefaultLimit)
	if q.Limit > maxTaskListLimit {
		q.Limit = maxTaskListLimit
	}

	result, err := h.queries.List(c.Request().Context(), actor, q)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	resp := TaskListResponse{
		Tasks: make([]TaskResponse, 0, len(result.Tasks)),
		Total: result.Total,
		Page:  result.Page,
		Pages: result.Pages,
		Stats: StatsResponse(result.Stats),
	}
	for i := range result.Tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(&result.Tasks[i], false))
	}

	return httpserver.RespondOK(c, resp)
}

// Stats handles GET /api/v1/tasks/stats.
func (h *TaskHandler) Stats(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor.IsZero() {
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}

	stats, err := h.queries.Stats(c.Request().Context(), actor)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, StatsResponse(stats))
}

// Get handles GET /api/v1/tasks/:id.
func (h *TaskHandler) Get(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor.IsZero() {
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}

	taskID, parseErr := uuid.ParseUUID(c.Param("id"))
	if parseErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_TASK_ID", "invalid task ID format")
	}

	view, err := h.queries.GetByID(c.Request().Context(), taskID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, toTaskResponse(view, true))
}

// Update handles PUT /api/v1/tasks/:id.
//
// The body is decoded key by key so the patch carries exactly the fields the
// client sent. "assignedTo": null, "" and "null" all clear the assignment.
func (h *TaskHandler) Update(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor.IsZero() {
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}

	taskID, parseErr := uuid.ParseUUID(c.Param("id"))
	if parseErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_TASK_ID", "invalid task ID format")
	}

	var body map[string]json.RawMessage
	if decodeErr := json.NewDecoder(c.Request().Body).Decode(&body); decodeErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	patch, patchErr := buildPatch(body)
	if patchErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", patchErr.Error())
	}

	view, err := h.service.Update(c.Request().Context(), taskID, patch, actor)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, toTaskResponse(view, false))
}

// Delete handles DELETE /api/v1/tasks/:id.
func (h *TaskHandler) Delete(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor.IsZero() {
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}

	taskID, parseErr := uuid.ParseUUID(c.Param("id"))
	if parseErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_TASK_ID", "invalid task ID format")
	}

	if err := h.service.Delete(c.Request().Context(), taskID, actor); err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondNoContent(c)
}

// AddComment handles POST /api/v1/tasks/:id/comments.
func (h *TaskHandler) AddComment(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor.IsZero() {
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}

	taskID, parseErr := uuid.ParseUUID(c.Param("id"))
	if parseErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_TASK_ID", "invalid task ID format")
	}

	var req AddCommentRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}
	if req.Text == "" {
		return httpserver.RespondErrorWithCode(
			c, http.StatusBadRequest, "VALIDATION_ERROR", ErrCommentTextRequired.Error())
	}
	if len(req.Text) > maxCommentLength {
		return httpserver.RespondErrorWithCode(
			c, http.StatusBadRequest, "VALIDATION_ERROR", ErrCommentTextTooLong.Error())
	}

	view, err := h.service.AddComment(c.Request().Context(), taskID, req.Text, actor.ID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, toTaskResponse(view, true))
}

// buildPatch converts the raw JSON body into a typed patch. Only known
// fields are accepted; the field set drives per-role authorization.
func buildPatch(body map[string]json.RawMessage) (*task.Patch, error) {
	patch := task.NewPatch()

	for key, raw := range body {
		switch key {
		case "title":
			var title string
			if err := json.Unmarshal(raw, &title); err != nil {
				return nil, errors.New("title must be a string")
			}
			if title == "" {
				return nil, ErrTaskTitleRequired
			}
			if len(title) > maxTaskTitleLength {
				return nil, ErrTaskTitleTooLong
			}
			patch.SetTitle(title)

		case "description":
			var description string
			if err := json.Unmarshal(raw, &description); err != nil {
				return nil, errors.New("description must be a string")
			}
			if len(description) > maxTaskDescriptionLength {
				return nil, ErrTaskDescriptionTooLong
			}
			patch.SetDescription(description)

		case "status":
			var rawStatus string
			if err := json.Unmarshal(raw, &rawStatus); err != nil {
				return nil, errors.New("status must be a string")
			}
			status, err := task.ParseStatus(rawStatus)
			if err != nil {
				return nil, errors.New("invalid task status")
			}
			patch.SetStatus(status)

		case "priority":
			var rawPriority string
			if err := json.Unmarshal(raw, &rawPriority); err != nil {
				return nil, errors.New("priority must be a string")
			}
			priority, err := task.ParsePriority(rawPriority)
			if err != nil {
				return nil, errors.New("invalid task priority")
			}
			patch.SetPriority(priority)

		case "dueDate":
			var rawDate *string
			if err := json.Unmarshal(raw, &rawDate); err != nil {
				return nil, errors.New("dueDate must be a string or null")
			}
			if rawDate == nil || *rawDate == "" {
				patch.SetDueDate(nil)
			} else {
				dueDate, err := parseDueDate(*rawDate)
				if err != nil {
					return nil, errors.New("invalid due date format, expected RFC 3339 or YYYY-MM-DD")
				}
				patch.SetDueDate(&dueDate)
			}

		case "assignedTo":
			var rawAssignee *string
			if err := json.Unmarshal(raw, &rawAssignee); err != nil {
				return nil, errors.New("assignedTo must be a string or null")
			}
			patch.SetAssigneeRaw(rawAssignee)

		default:
			return nil, errors.New("unknown field: " + key)
		}
	}

	return patch, nil
}

// parseDueDate accepts RFC 3339 timestamps and plain dates.
func parseDueDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// parseIntParam parses a positive integer query parameter with a fallback.
func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// validateCreateTaskRequest validates the create request fields.
func validateCreateTaskRequest(req *CreateTaskRequest) error {
	if req.Title == "" {
		return ErrTaskTitleRequired
	}
	if len(req.Title) > maxTaskTitleLength {
		return ErrTaskTitleTooLong
	}
	if len(req.Description) > maxTaskDescriptionLength {
		return ErrTaskDescriptionTooLong
	}
	return nil
}

// toTaskResponse converts a resolved view into its API shape.
func toTaskResponse(v *taskapp.View, withComments bool) TaskResponse {
	resp := TaskResponse{
		ID:          v.ID.String(),
		Title:       v.Title,
		Description: v.Description,
		Status:      v.Status.String(),
		Priority:    v.Priority.String(),
		CreatedBy:   toUserRefResponse(v.CreatedBy),
		CreatedAt:   v.CreatedAt.Format(time.RFC3339),
	}
	if v.DueDate != nil {
		dueDate := v.DueDate.Format(time.RFC3339)
		resp.DueDate = &dueDate
	}
	if v.AssignedTo != nil {
		ref := toUserRefResponse(*v.AssignedTo)
		resp.AssignedTo = &ref
	}
	if !v.UpdatedAt.IsZero() {
		resp.UpdatedAt = v.UpdatedAt.Format(time.RFC3339)
	}
	if withComments {
		resp.Comments = make([]CommentResponse, 0, len(v.Comments))
		for _, comment := range v.Comments {
			resp.Comments = append(resp.Comments, CommentResponse{
				ID:        comment.ID.String(),
				Text:      comment.Text,
				User:      toUserRefResponse(comment.User),
				CreatedAt: comment.CreatedAt.Format(time.RFC3339),
			})
		}
	}
	return resp
}

func toUserRefResponse(ref taskapp.UserRef) UserRefResponse {
	return UserRefResponse{
		ID:    ref.ID.String(),
		Name:  ref.Name,
		Email: ref.Email,
	}
}
