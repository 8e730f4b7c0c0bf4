package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/internal/maintenance"
)

var (
	_ maintenance.TaskStore = (*MongoTaskRepository)(nil)
	_ maintenance.UserStore = (*MongoUserRepository)(nil)
)

// Scan returns one batch of tasks ordered by creation time ascending, so a
// repair run visits every task exactly once.
func (r *MongoTaskRepository) Scan(ctx context.Context, offset, limit int) ([]*taskdomain.Task, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, FindWithPagination(offset, limit, "created_at", 1))
	if err != nil {
		return nil, HandleMongoError(err, "task")
	}
	defer cursor.Close(ctx)

	tasks := make([]*taskdomain.Task, 0, limit)
	for cursor.Next(ctx) {
		var doc taskDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue
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

// ApplyFix writes reference and due date corrections for one task.
// Unlike UpdateByID this may rewrite created_by, which is not patchable
// through the regular update path.
func (r *MongoTaskRepository) ApplyFix(ctx context.Context, id uuid.UUID, fix maintenance.Fix) error {
	sets := bson.M{"updated_at": time.Now().UTC()}
	if fix.CreatedBy != nil {
		sets["created_by"] = fix.CreatedBy.String()
	}
	if fix.AssignedTo != nil {
		sets["assigned_to"] = fix.AssignedTo.String()
	}
	if fix.DueDate != nil {
		sets["due_date"] = *fix.DueDate
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": sets})
	if err != nil {
		return HandleMongoError(err, "task")
	}
	if res.MatchedCount == 0 {
		// The task vanished between scan and fix; nothing left to repair.
		return nil
	}
	return nil
}
