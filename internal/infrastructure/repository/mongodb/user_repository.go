package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	taskapp "github.com/taskops/taskboard/internal/application/task"
	userapp "github.com/taskops/taskboard/internal/application/user"
	"github.com/taskops/taskboard/internal/domain/errs"
	"github.com/taskops/taskboard/internal/domain/identity"
	userdomain "github.com/taskops/taskboard/internal/domain/user"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// UsersCollection is the name of the users collection.
const UsersCollection = "users"

var (
	_ userapp.Repository    = (*MongoUserRepository)(nil)
	_ taskapp.UserDirectory = (*MongoUserRepository)(nil)
)

// userDocument is the storage shape of a user.
type userDocument struct {
	ID           string `bson:"_id"`
	Name         string `bson:"name"`
	Email        string `bson:"email"`
	Role         string `bson:"role"`
	BaseDocument `bson:",inline"`
}

// MongoUserRepository implements the user store and the task layer's user
// directory on a MongoDB collection.
type MongoUserRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// UserRepoOption configures MongoUserRepository.
type UserRepoOption func(*MongoUserRepository)

// WithUserRepoLogger sets the logger for the user repository.
func WithUserRepoLogger(logger *slog.Logger) UserRepoOption {
	return func(r *MongoUserRepository) {
		r.logger = logger
	}
}

// NewMongoUserRepository creates a new MongoDB user repository.
func NewMongoUserRepository(collection *mongo.Collection, opts ...UserRepoOption) *MongoUserRepository {
	r := &MongoUserRepository{
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save upserts a user by id. Used by seeding and account provisioning.
func (r *MongoUserRepository) Save(ctx context.Context, u *userdomain.User) error {
	if u == nil || u.ID.IsZero() {
		return errs.ErrInvalidInput
	}

	doc := userToDocument(u)
	doc.SetTimestamps()

	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": u.ID.String()},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to save user",
			slog.String("user_id", u.ID.String()),
			slog.String("error", err.Error()),
		)
		return HandleMongoError(err, "user")
	}

	u.CreatedAt = doc.CreatedAt
	u.UpdatedAt = doc.UpdatedAt
	return nil
}

// FindByID returns the user with the given id.
func (r *MongoUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userdomain.User, error) {
	if id.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	var doc userDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.ErrorContext(ctx, "failed to find user",
				slog.String("user_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, HandleMongoError(err, "user")
	}

	return documentToUser(&doc)
}

// List returns all users, newest first.
func (r *MongoUserRepository) List(ctx context.Context) ([]*userdomain.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, HandleMongoError(err, "user")
	}
	defer cursor.Close(ctx)

	var users []*userdomain.User
	for cursor.Next(ctx) {
		var doc userDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue
		}
		u, docErr := documentToUser(&doc)
		if docErr != nil {
			continue
		}
		users = append(users, u)
	}

	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return users, nil
}

// DeleteByID permanently removes the user. Tasks referencing them keep their
// now-dangling references.
func (r *MongoUserRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if id.IsZero() {
		return errs.ErrInvalidInput
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return HandleMongoError(err, "user")
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// FindRefs resolves user ids into lightweight references in one query.
// Ids that match no user are simply absent from the result; callers decide
// how to render dangling references.
func (r *MongoUserRepository) FindRefs(
	ctx context.Context,
	ids []uuid.UUID,
) (map[uuid.UUID]taskapp.UserRef, error) {
	refs := make(map[uuid.UUID]taskapp.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": raw}})
	if err != nil {
		return nil, HandleMongoError(err, "user")
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc userDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue
		}
		id := uuid.UUID(doc.ID)
		refs[id] = taskapp.UserRef{
			ID:    id,
			Name:  doc.Name,
			Email: doc.Email,
		}
	}

	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return refs, nil
}

// FindAnyAdmin returns an arbitrary admin user, or errs.ErrNotFound when
// none exists. Used by the repair routine as the fallback owner.
func (r *MongoUserRepository) FindAnyAdmin(ctx context.Context) (*userdomain.User, error) {
	var doc userDocument
	err := r.collection.FindOne(ctx, bson.M{"role": identity.RoleAdmin.String()}).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "user")
	}
	return documentToUser(&doc)
}

// ExistingIDs returns which of the given ids belong to existing users.
func (r *MongoUserRepository) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	existing := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": raw}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, HandleMongoError(err, "user")
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue
		}
		existing[uuid.UUID(doc.ID)] = true
	}

	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return existing, nil
}

func userToDocument(u *userdomain.User) *userDocument {
	return &userDocument{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role.String(),
		BaseDocument: BaseDocument{
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		},
	}
}

func documentToUser(doc *userDocument) (*userdomain.User, error) {
	id, err := uuid.ParseUUID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", doc.ID, err)
	}

	return &userdomain.User{
		ID:        id,
		Name:      doc.Name,
		Email:     doc.Email,
		Role:      identity.Role(doc.Role),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
