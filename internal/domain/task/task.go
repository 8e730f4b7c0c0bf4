package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskops/taskboard/internal/domain/errs"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// Status is the lifecycle state of a task.
type Status string

// Task statuses.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// ParseStatus parses a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusTodo, StatusInProgress, StatusDone:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: invalid status %q", errs.ErrInvalidInput, s)
	}
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// Priority is the urgency level of a task.
type Priority string

// Task priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority parses a priority string.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s), nil
	default:
		return "", fmt.Errorf("%w: invalid priority %q", errs.ErrInvalidInput, s)
	}
}

// String returns the string representation.
func (p Priority) String() string {
	return string(p)
}

// Comment is a sub-entity owned by its parent task. Comments are append-only:
// the service never edits or removes them.
type Comment struct {
	ID        uuid.UUID
	Text      string
	UserID    uuid.UUID
	CreatedAt time.Time
}

// NewComment creates a comment authored by userID at the given time.
func NewComment(text string, userID uuid.UUID, now time.Time) (Comment, error) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, fmt.Errorf("%w: comment text is required", errs.ErrInvalidInput)
	}
	return Comment{
		ID:        uuid.NewUUID(),
		Text:      text,
		UserID:    userID,
		CreatedAt: now,
	}, nil
}

// Task is one unit of work.
//
// AssignedTo and CreatedBy are weak references: the referenced user may have
// been deleted, and nothing at this layer guarantees resolution succeeds.
type Task struct {
	ID          uuid.UUID
	Title       string
	Description string
	Status      Status
	Priority    Priority
	DueDate     *time.Time
	AssignedTo  *uuid.UUID
	CreatedBy   uuid.UUID
	Comments    []Comment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a task with createdBy fixed to the creator. When no assignee is
// given the creator becomes the default assignee.
func New(
	title, description string,
	status Status,
	priority Priority,
	dueDate *time.Time,
	assignedTo *uuid.UUID,
	createdBy uuid.UUID,
) (*Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", errs.ErrInvalidInput)
	}
	if createdBy.IsZero() {
		return nil, fmt.Errorf("%w: creator is required", errs.ErrInvalidInput)
	}

	if status == "" {
		status = StatusTodo
	} else if _, err := ParseStatus(status.String()); err != nil {
		return nil, err
	}

	if priority == "" {
		priority = PriorityMedium
	} else if _, err := ParsePriority(priority.String()); err != nil {
		return nil, err
	}

	if assignedTo == nil {
		self := createdBy
		assignedTo = &self
	}

	return &Task{
		ID:          uuid.NewUUID(),
		Title:       strings.TrimSpace(title),
		Description: description,
		Status:      status,
		Priority:    priority,
		DueDate:     dueDate,
		AssignedTo:  assignedTo,
		CreatedBy:   createdBy,
		Comments:    []Comment{},
	}, nil
}

// IsAssignedTo reports whether the task is assigned to the given user.
// An unassigned task is assigned to nobody, so the check fails closed.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	if t.AssignedTo == nil || userID.IsZero() {
		return false
	}
	return *t.AssignedTo == userID
}

// IsCreatedBy reports whether the task was created by the given user.
func (t *Task) IsCreatedBy(userID uuid.UUID) bool {
	return !userID.IsZero() && t.CreatedBy == userID
}
