// Package mongodb provides MongoDB infrastructure components including
// connection setup and index management.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	CollectionTasks = "tasks"
	CollectionUsers = "users"
)

// IndexDefinition describes a MongoDB index to be created.
type IndexDefinition struct {
	Collection string
	Keys       bson.D
	Options    *options.IndexOptionsBuilder
}

// EnsureIndexes creates all indexes the application queries rely on.
// Idempotent: calling it on every startup is safe.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, idx := range AllIndexDefinitions() {
		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: idx.Options,
		}
		if _, err := db.Collection(idx.Collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on collection %s: %w", idx.Collection, err)
		}
	}
	return nil
}

// AllIndexDefinitions returns the index definitions for all collections.
func AllIndexDefinitions() []IndexDefinition {
	var indexes []IndexDefinition
	indexes = append(indexes, TaskIndexes()...)
	indexes = append(indexes, UserIndexes()...)
	return indexes
}

// TaskIndexes returns index definitions for the tasks collection.
func TaskIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Base filter for non-admin listings and stats.
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "assigned_to", Value: 1}, {Key: "created_at", Value: -1}},
			Options:    options.Index().SetName("idx_tasks_assignee_time"),
		},
		{
			// Status narrowing plus the pending/done stat counts.
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "assigned_to", Value: 1}, {Key: "status", Value: 1}},
			Options:    options.Index().SetName("idx_tasks_assignee_status"),
		},
		{
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "status", Value: 1}},
			Options:    options.Index().SetName("idx_tasks_status"),
		},
		{
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "priority", Value: 1}},
			Options:    options.Index().SetName("idx_tasks_priority"),
		},
		{
			// Listing order.
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "created_at", Value: -1}},
			Options:    options.Index().SetName("idx_tasks_created_at"),
		},
		{
			// Creator lookups for the repair routine.
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "created_by", Value: 1}},
			Options:    options.Index().SetName("idx_tasks_created_by"),
		},
		{
			// Sparse: not all tasks carry a due date.
			Collection: CollectionTasks,
			Keys:       bson.D{{Key: "due_date", Value: 1}},
			Options:    options.Index().SetSparse(true).SetName("idx_tasks_due_date"),
		},
	}
}

// UserIndexes returns index definitions for the users collection.
func UserIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			Collection: CollectionUsers,
			Keys:       bson.D{{Key: "email", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_users_email_unique"),
		},
		{
			// Admin lookups by the repair routine.
			Collection: CollectionUsers,
			Keys:       bson.D{{Key: "role", Value: 1}},
			Options:    options.Index().SetName("idx_users_role"),
		},
	}
}
