// Package mocks provides in-memory implementations of the application layer
// contracts for unit testing.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	taskapp "github.com/taskops/taskboard/internal/application/task"
	"github.com/taskops/taskboard/internal/domain/errs"
	taskdomain "github.com/taskops/taskboard/internal/domain/task"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/internal/maintenance"
)

var (
	_ taskapp.Repository    = (*MockTaskRepository)(nil)
	_ maintenance.TaskStore = (*MockTaskRepository)(nil)
)

// MockTaskRepository implements taskapp.Repository in memory.
// Find returns tasks in insertion order reversed, matching the stores's
// creation-time-descending ordering.
type MockTaskRepository struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*storedTask
	seq   int
	calls map[string]int
	fail  map[string]error
}

type storedTask struct {
	task *taskdomain.Task
	seq  int
}

// NewMockTaskRepository creates a new mock task repository.
func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{
		tasks: make(map[uuid.UUID]*storedTask),
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

// Insert persists a new task and stamps its timestamps.
func (r *MockTaskRepository) Insert(_ context.Context, t *taskdomain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["Insert"]++
	if err := r.takeFailure("Insert"); err != nil {
		return err
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	r.seq++
	r.tasks[t.ID] = &storedTask{task: cloneTask(t), seq: r.seq}
	return nil
}

// FindByID returns the task with the given id or errs.ErrNotFound.
func (r *MockTaskRepository) FindByID(_ context.Context, id uuid.UUID) (*taskdomain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["FindByID"]++
	if err := r.takeFailure("FindByID"); err != nil {
		return nil, err
	}

	st, ok := r.tasks[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneTask(st.task), nil
}

// Find returns one page of matching tasks, newest first.
func (r *MockTaskRepository) Find(
	_ context.Context,
	f taskapp.Filter,
	p taskapp.Page,
) ([]*taskdomain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["Find"]++
	if err := r.takeFailure("Find"); err != nil {
		return nil, err
	}

	matched := r.matching(f)
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].seq > matched[j].seq
	})

	result := make([]*taskdomain.Task, 0, p.Limit)
	for i := p.Offset; i < len(matched) && len(result) < p.Limit; i++ {
		result = append(result, cloneTask(matched[i].task))
	}
	return result, nil
}

// Count returns the number of matching tasks.
func (r *MockTaskRepository) Count(_ context.Context, f taskapp.Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["Count"]++
	if err := r.takeFailure("Count"); err != nil {
		return 0, err
	}

	return len(r.matching(f)), nil
}

// UpdateByID applies the patch and returns the refreshed task.
func (r *MockTaskRepository) UpdateByID(
	_ context.Context,
	id uuid.UUID,
	patch *taskdomain.Patch,
) (*taskdomain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["UpdateByID"]++
	if err := r.takeFailure("UpdateByID"); err != nil {
		return nil, err
	}

	st, ok := r.tasks[id]
	if !ok {
		return nil, errs.ErrNotFound
	}

	patch.ApplyTo(st.task)
	st.task.UpdatedAt = time.Now().UTC()
	return cloneTask(st.task), nil
}

// DeleteByID removes the task or returns errs.ErrNotFound.
func (r *MockTaskRepository) DeleteByID(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["DeleteByID"]++
	if err := r.takeFailure("DeleteByID"); err != nil {
		return err
	}

	if _, ok := r.tasks[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

// AppendComment appends the comment and returns the refreshed task.
func (r *MockTaskRepository) AppendComment(
	_ context.Context,
	id uuid.UUID,
	c taskdomain.Comment,
) (*taskdomain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["AppendComment"]++
	if err := r.takeFailure("AppendComment"); err != nil {
		return nil, err
	}

	st, ok := r.tasks[id]
	if !ok {
		return nil, errs.ErrNotFound
	}

	st.task.Comments = append(st.task.Comments, c)
	st.task.UpdatedAt = time.Now().UTC()
	return cloneTask(st.task), nil
}

// Scan returns one batch of tasks in insertion order, oldest first.
func (r *MockTaskRepository) Scan(_ context.Context, offset, limit int) ([]*taskdomain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["Scan"]++
	if err := r.takeFailure("Scan"); err != nil {
		return nil, err
	}

	all := make([]*storedTask, 0, len(r.tasks))
	for _, st := range r.tasks {
		all = append(all, st)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].seq < all[j].seq
	})

	result := make([]*taskdomain.Task, 0, limit)
	for i := offset; i < len(all) && len(result) < limit; i++ {
		result = append(result, cloneTask(all[i].task))
	}
	return result, nil
}

// ApplyFix writes reference and due date corrections for one task.
func (r *MockTaskRepository) ApplyFix(_ context.Context, id uuid.UUID, fix maintenance.Fix) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["ApplyFix"]++
	if err := r.takeFailure("ApplyFix"); err != nil {
		return err
	}

	st, ok := r.tasks[id]
	if !ok {
		return nil
	}
	if fix.CreatedBy != nil {
		st.task.CreatedBy = *fix.CreatedBy
	}
	if fix.AssignedTo != nil {
		a := *fix.AssignedTo
		st.task.AssignedTo = &a
	}
	if fix.DueDate != nil {
		d := *fix.DueDate
		st.task.DueDate = &d
	}
	st.task.UpdatedAt = time.Now().UTC()
	return nil
}

// Seed stores a task directly, bypassing timestamp stamping. Useful for
// arranging fixtures with specific states.
func (r *MockTaskRepository) Seed(t *taskdomain.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.tasks[t.ID] = &storedTask{task: cloneTask(t), seq: r.seq}
}

// Get returns the stored task by id, or nil.
func (r *MockTaskRepository) Get(id uuid.UUID) *taskdomain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.tasks[id]
	if !ok {
		return nil
	}
	return cloneTask(st.task)
}

// Len returns the number of stored tasks.
func (r *MockTaskRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// CallCount returns how many times the named method was called.
func (r *MockTaskRepository) CallCount(method string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls[method]
}

// FailNext makes the next call to the named method return err.
func (r *MockTaskRepository) FailNext(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[method] = err
}

// Reset clears all stored tasks and counters.
func (r *MockTaskRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = make(map[uuid.UUID]*storedTask)
	r.calls = make(map[string]int)
	r.fail = make(map[string]error)
	r.seq = 0
}

func (r *MockTaskRepository) matching(f taskapp.Filter) []*storedTask {
	matched := make([]*storedTask, 0, len(r.tasks))
	for _, st := range r.tasks {
		if matchesFilter(st.task, f) {
			matched = append(matched, st)
		}
	}
	return matched
}

func (r *MockTaskRepository) takeFailure(method string) error {
	err, ok := r.fail[method]
	if !ok {
		return nil
	}
	delete(r.fail, method)
	return err
}

func matchesFilter(t *taskdomain.Task, f taskapp.Filter) bool {
	if f.AssignedTo != nil {
		if t.AssignedTo == nil || *t.AssignedTo != *f.AssignedTo {
			return false
		}
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.StatusNot != nil && t.Status == *f.StatusNot {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	return true
}

func cloneTask(t *taskdomain.Task) *taskdomain.Task {
	clone := *t
	if t.DueDate != nil {
		d := *t.DueDate
		clone.DueDate = &d
	}
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		clone.AssignedTo = &a
	}
	clone.Comments = make([]taskdomain.Comment, len(t.Comments))
	copy(clone.Comments, t.Comments)
	return &clone
}
