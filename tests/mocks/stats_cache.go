package mocks

import (
	"context"
	"sync"

	taskapp "github.com/taskops/taskboard/internal/application/task"
)

var _ taskapp.StatsCache = (*MockStatsCache)(nil)

// MockStatsCache implements taskapp.StatsCache in memory and records every
// invalidated scope so tests can assert on cache traffic.
type MockStatsCache struct {
	mu          sync.Mutex
	entries     map[string]taskapp.Stats
	invalidated []string
	getErr      error
	setErr      error
	invErr      error
}

// NewMockStatsCache creates a new mock stats cache.
func NewMockStatsCache() *MockStatsCache {
	return &MockStatsCache{
		entries: make(map[string]taskapp.Stats),
	}
}

// Get returns the cached stats for the scope, or nil on a miss.
func (c *MockStatsCache) Get(_ context.Context, scope string) (*taskapp.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return nil, c.getErr
	}

	stats, ok := c.entries[scope]
	if !ok {
		return nil, nil
	}
	return &stats, nil
}

// Set stores the stats for the scope.
func (c *MockStatsCache) Set(_ context.Context, scope string, stats taskapp.Stats) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.setErr != nil {
		return c.setErr
	}

	c.entries[scope] = stats
	return nil
}

// Invalidate drops the cached stats for the given scopes and records them.
func (c *MockStatsCache) Invalidate(_ context.Context, scopes ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.invErr != nil {
		return c.invErr
	}

	for _, scope := range scopes {
		delete(c.entries, scope)
	}
	c.invalidated = append(c.invalidated, scopes...)
	return nil
}

// Invalidated returns every scope passed to Invalidate, in order.
func (c *MockStatsCache) Invalidated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.invalidated))
	copy(out, c.invalidated)
	return out
}

// Contains reports whether the scope currently holds cached stats.
func (c *MockStatsCache) Contains(scope string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[scope]
	return ok
}

// SetErrors configures the errors returned by Get, Set and Invalidate.
func (c *MockStatsCache) SetErrors(getErr, setErr, invErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getErr = getErr
	c.setErr = setErr
	c.invErr = invErr
}

// Reset clears entries and recorded invalidations.
func (c *MockStatsCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]taskapp.Stats)
	c.invalidated = nil
	c.getErr = nil
	c.setErr = nil
	c.invErr = nil
}
