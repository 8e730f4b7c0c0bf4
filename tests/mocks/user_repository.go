package mocks

import (
	"context"
	"sort"
	"sync"

	taskapp "github.com/taskops/taskboard/internal/application/task"
	userapp "github.com/taskops/taskboard/internal/application/user"
	"github.com/taskops/taskboard/internal/domain/errs"
	"github.com/taskops/taskboard/internal/domain/identity"
	userdomain "github.com/taskops/taskboard/internal/domain/user"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/internal/maintenance"
)

var (
	_ userapp.Repository    = (*MockUserRepository)(nil)
	_ taskapp.UserDirectory = (*MockUserRepository)(nil)
	_ maintenance.UserStore = (*MockUserRepository)(nil)
)

// MockUserRepository implements the user store, directory and repair
// contracts in memory.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*userdomain.User
	fail  map[string]error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[uuid.UUID]*userdomain.User),
		fail:  make(map[string]error),
	}
}

// AddUser stores a user with the given display fields and role and returns it.
func (r *MockUserRepository) AddUser(name, email string, role identity.Role) *userdomain.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := &userdomain.User{
		ID:    uuid.NewUUID(),
		Name:  name,
		Email: email,
		Role:  role,
	}
	r.users[u.ID] = u
	return u
}

// FindByID returns the user with the given id or errs.ErrNotFound.
func (r *MockUserRepository) FindByID(_ context.Context, id uuid.UUID) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure("FindByID"); err != nil {
		return nil, err
	}

	u, ok := r.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

// List returns all users sorted by name for deterministic assertions.
func (r *MockUserRepository) List(_ context.Context) ([]*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure("List"); err != nil {
		return nil, err
	}

	users := make([]*userdomain.User, 0, len(r.users))
	for _, u := range r.users {
		clone := *u
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})
	return users, nil
}

// DeleteByID removes the user or returns errs.ErrNotFound.
func (r *MockUserRepository) DeleteByID(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure("DeleteByID"); err != nil {
		return err
	}

	if _, ok := r.users[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// FindRefs resolves the given ids to display references. Missing ids are
// absent from the result.
func (r *MockUserRepository) FindRefs(
	_ context.Context,
	ids []uuid.UUID,
) (map[uuid.UUID]taskapp.UserRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure("FindRefs"); err != nil {
		return nil, err
	}

	refs := make(map[uuid.UUID]taskapp.UserRef, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			refs[id] = taskapp.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
		}
	}
	return refs, nil
}

// ExistingIDs reports which of the given ids belong to stored users.
func (r *MockUserRepository) ExistingIDs(
	_ context.Context,
	ids []uuid.UUID,
) (map[uuid.UUID]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure("ExistingIDs"); err != nil {
		return nil, err
	}

	existing := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.users[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}

// FindAnyAdmin returns an arbitrary admin user or errs.ErrNotFound.
func (r *MockUserRepository) FindAnyAdmin(_ context.Context) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure("FindAnyAdmin"); err != nil {
		return nil, err
	}

	for _, u := range r.users {
		if u.Role.IsAdmin() {
			clone := *u
			return &clone, nil
		}
	}
	return nil, errs.ErrNotFound
}

// FailNext makes the next call to the named method return err.
func (r *MockUserRepository) FailNext(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[method] = err
}

// Reset clears all stored users.
func (r *MockUserRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[uuid.UUID]*userdomain.User)
	r.fail = make(map[string]error)
}

func (r *MockUserRepository) takeFailure(method string) error {
	err, ok := r.fail[method]
	if !ok {
		return nil
	}
	delete(r.fail, method)
	return err
}
