package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	taskapp "github.com/taskops/taskboard/internal/application/task"
	"github.com/taskops/taskboard/internal/domain/errs"
	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// TasksCollection is the name of the tasks collection.
const TasksCollection = "tasks"

// Compile-time assertion that the repository satisfies the application
// contract.
var _ taskapp.Repository = (*MongoTaskRepository)(nil)

// commentDocument is the storage shape of a task comment.
type commentDocument struct {
	ID        string    `bson:"comment_id"`
	Text      string    `bson:"text"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// taskDocument is the storage shape of a task.
type taskDocument struct {
	ID           string            `bson:"_id"`
	Title        string            `bson:"title"`
	Description  string            `bson:"description,omitempty"`
	Status       string            `bson:"status"`
	Priority     string            `bson:"priority"`
	DueDate      *time.Time        `bson:"due_date,omitempty"`
	AssignedTo   *string           `bson:"assigned_to,omitempty"`
	CreatedBy    string            `bson:"created_by"`
	Comments     []commentDocument `bson:"comments"`
	BaseDocument `bson:",inline"`
}

// MongoTaskRepository implements taskapp.Repository on a MongoDB collection.
type MongoTaskRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// TaskRepoOption configures MongoTaskRepository.
type TaskRepoOption func(*MongoTaskRepository)

// WithTaskRepoLogger sets the logger for the task repository.
func WithTaskRepoLogger(logger *slog.Logger) TaskRepoOption {
	return func(r *MongoTaskRepository) {
		r.logger = logger
	}
}

// NewMongoTaskRepository creates a new MongoDB task repository.
func NewMongoTaskRepository(collection *mongo.Collection, opts ...TaskRepoOption) *MongoTaskRepository {
	r := &MongoTaskRepository{
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert persists a new task and stamps its storage timestamps.
func (r *MongoTaskRepository) Insert(ctx context.Context, t *taskdomain.Task) error {
	if t == nil || t.ID.IsZero() {
		return errs.ErrInvalidInput
	}

	doc := taskToDocument(t)
	doc.SetTimestamps()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.ErrorContext(ctx, "failed to insert task",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
		return HandleMongoError(err, "task")
	}

	t.CreatedAt = doc.CreatedAt
	t.UpdatedAt = doc.UpdatedAt
	return nil
}

// FindByID returns the task with the given id.
func (r *MongoTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*taskdomain.Task, error) {
	if id.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	var doc taskDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.ErrorContext(ctx, "failed to find task",
				slog.String("task_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, HandleMongoError(err, "task")
	}

	return documentToTask(&doc)
}

// Find returns one page of tasks matching the filter, newest first.
func (r *MongoTaskRepository) Find(
	ctx context.Context,
	f taskapp.Filter,
	p taskapp.Page,
) ([]*taskdomain.Task, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = taskapp.DefaultLimit
	}

	cursor, err := r.collection.Find(ctx, buildTaskFilter(f), FindWithPaginationDesc(p.Offset, limit))
	if err != nil {
		return nil, HandleMongoError(err, "task")
	}
	defer cursor.Close(ctx)

	tasks := make([]*taskdomain.Task, 0, limit)
	for cursor.Next(ctx) {
		var doc taskDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue // skip documents that do not decode
		}
		t, docErr := documentToTask(&doc)
		if docErr != nil {
			continue
		}
		tasks = append(tasks, t)
	}

	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return tasks, nil
}

// Count returns the number of tasks matching the filter.
func (r *MongoTaskRepository) Count(ctx context.Context, f taskapp.Filter) (int, error) {
	count, err := CountFilter(ctx, r.collection, buildTaskFilter(f))
	if err != nil {
		return 0, HandleMongoError(err, "task")
	}
	return count, nil
}

// UpdateByID applies the patch in a single update and returns the
// refreshed task. There is no version check: concurrent writers are
// last-write-wins at this layer.
func (r *MongoTaskRepository) UpdateByID(
	ctx context.Context,
	id uuid.UUID,
	patch *taskdomain.Patch,
) (*taskdomain.Task, error) {
	if id.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	update := buildPatchUpdate(patch)

	var doc taskDocument
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id.String()},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.ErrorContext(ctx, "failed to update task",
				slog.String("task_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, HandleMongoError(err, "task")
	}

	return documentToTask(&doc)
}

// DeleteByID permanently removes the task; its embedded comments go with it.
func (r *MongoTaskRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if id.IsZero() {
		return errs.ErrInvalidInput
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return HandleMongoError(err, "task")
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// AppendComment pushes a comment onto the task's comment sequence and
// returns the refreshed task.
func (r *MongoTaskRepository) AppendComment(
	ctx context.Context,
	id uuid.UUID,
	c taskdomain.Comment,
) (*taskdomain.Task, error) {
	if id.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	update := bson.M{
		"$push": bson.M{"comments": commentToDocument(c)},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	var doc taskDocument
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id.String()},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "task")
	}

	return documentToTask(&doc)
}

// buildTaskFilter converts an application filter into a MongoDB filter.
func buildTaskFilter(f taskapp.Filter) bson.M {
	filter := bson.M{}
	if f.AssignedTo != nil {
		filter["assigned_to"] = f.AssignedTo.String()
	}
	switch {
	case f.Status != nil:
		filter["status"] = f.Status.String()
	case f.StatusNot != nil:
		filter["status"] = bson.M{"$ne": f.StatusNot.String()}
	}
	if f.Priority != nil {
		filter["priority"] = f.Priority.String()
	}
	return filter
}

// buildPatchUpdate converts a normalized patch into a MongoDB update
// document. Cleared optional fields become $unset.
func buildPatchUpdate(patch *taskdomain.Patch) bson.M {
	sets := bson.M{"updated_at": time.Now().UTC()}
	unsets := bson.M{}

	if title, ok := patch.Title(); ok {
		sets["title"] = title
	}
	if description, ok := patch.Description(); ok {
		sets["description"] = description
	}
	if status, ok := patch.Status(); ok {
		sets["status"] = status.String()
	}
	if priority, ok := patch.Priority(); ok {
		sets["priority"] = priority.String()
	}
	if dueDate, ok := patch.DueDate(); ok {
		if dueDate != nil {
			sets["due_date"] = *dueDate
		} else {
			unsets["due_date"] = ""
		}
	}
	if assignee, ok := patch.Assignee(); ok {
		if assignee != nil {
			sets["assigned_to"] = assignee.String()
		} else {
			unsets["assigned_to"] = ""
		}
	}

	update := bson.M{"$set": sets}
	if len(unsets) > 0 {
		update["$unset"] = unsets
	}
	return update
}

func taskToDocument(t *taskdomain.Task) *taskDocument {
	doc := &taskDocument{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status.String(),
		Priority:    t.Priority.String(),
		DueDate:     t.DueDate,
		CreatedBy:   t.CreatedBy.String(),
		Comments:    make([]commentDocument, 0, len(t.Comments)),
		BaseDocument: BaseDocument{
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		},
	}
	if t.AssignedTo != nil {
		s := t.AssignedTo.String()
		doc.AssignedTo = &s
	}
	for _, c := range t.Comments {
		doc.Comments = append(doc.Comments, commentToDocument(c))
	}
	return doc
}

func commentToDocument(c taskdomain.Comment) commentDocument {
	return commentDocument{
		ID:        c.ID.String(),
		Text:      c.Text,
		UserID:    c.UserID.String(),
		CreatedAt: c.CreatedAt,
	}
}

func documentToTask(doc *taskDocument) (*taskdomain.Task, error) {
	id, err := uuid.ParseUUID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", doc.ID, err)
	}

	t := &taskdomain.Task{
		ID:          id,
		Title:       doc.Title,
		Description: doc.Description,
		Status:      taskdomain.Status(doc.Status),
		Priority:    taskdomain.Priority(doc.Priority),
		DueDate:     doc.DueDate,
		// CreatedBy is stored as an opaque reference: the user it points at
		// may no longer exist, so it is not validated here.
		CreatedBy: uuid.UUID(doc.CreatedBy),
		Comments:  make([]taskdomain.Comment, 0, len(doc.Comments)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.AssignedTo != nil {
		assignee := uuid.UUID(*doc.AssignedTo)
		t.AssignedTo = &assignee
	}
	for _, c := range doc.Comments {
		t.Comments = append(t.Comments, taskdomain.Comment{
			ID:        uuid.UUID(c.ID),
			Text:      c.Text,
			UserID:    uuid.UUID(c.UserID),
			CreatedAt: c.CreatedAt,
		})
	}
	return t, nil
}
