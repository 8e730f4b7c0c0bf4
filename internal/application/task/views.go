package task

import (
	"context"
	"time"

	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// UserRef is a resolved weak reference to a user. When the referenced user
// no longer exists only the id is populated.
type UserRef struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	ID        uuid.UUID
	Text      string
	User      UserRef
	CreatedAt time.Time
}

// View is a task with its user references resolved for rendering.
type View struct {
	ID          uuid.UUID
	Title       string
	Description string
	Status      taskdomain.Status
	Priority    taskdomain.Priority
	DueDate     *time.Time
	AssignedTo  *UserRef
	CreatedBy   UserRef
	Comments    []CommentView
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stats are the aggregate counts over a visibility scope, independent of any
// list narrowing: total count, count of not-done tasks, count of done tasks.
type Stats struct {
	Total   int
	Pending int
	Done    int
}

// ListResult is one page of tasks plus pagination metadata and the
// scope-wide stats.
type ListResult struct {
	Tasks []View
	Total int
	Page  int
	Pages int
	Stats Stats
}

// resolveViews builds views for the given tasks, resolving assignee, creator
// and (optionally) comment authors through the directory in one lookup.
func resolveViews(
	ctx context.Context,
	dir UserDirectory,
	tasks []*taskdomain.Task,
	withCommentAuthors bool,
) ([]View, error) {
	ids := make([]uuid.UUID, 0, len(tasks)*2)
	seen := make(map[uuid.UUID]struct{})
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

	for _, t := range tasks {
		collect(t.CreatedBy)
		if t.AssignedTo != nil {
			collect(*t.AssignedTo)
		}
		if withCommentAuthors {
			for _, c := range t.Comments {
				collect(c.UserID)
			}
		}
	}

	refs := map[uuid.UUID]UserRef{}
	if len(ids) > 0 {
		var err error
		refs, err = dir.FindRefs(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	ref := func(id uuid.UUID) UserRef {
		if r, ok := refs[id]; ok {
			return r
		}
		// Dangling reference: keep the id, leave display fields empty.
		return UserRef{ID: id}
	}

	views := make([]View, 0, len(tasks))
	for _, t := range tasks {
		v := View{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			Priority:    t.Priority,
			DueDate:     t.DueDate,
			CreatedBy:   ref(t.CreatedBy),
			Comments:    []CommentView{},
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		}
		if t.AssignedTo != nil {
			r := ref(*t.AssignedTo)
			v.AssignedTo = &r
		}
		if withCommentAuthors {
			for _, c := range t.Comments {
				v.Comments = append(v.Comments, CommentView{
					ID:        c.ID,
					Text:      c.Text,
					User:      ref(c.UserID),
					CreatedAt: c.CreatedAt,
				})
			}
		}
		views = append(views, v)
	}

	return views, nil
}
