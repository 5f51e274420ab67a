package service

import (
	"context"
	"sync"
	"time"

	"todoapp/internal/clock"
	"todoapp/internal/domain/models"
	"todoapp/internal/notify"
	"todoapp/internal/stats"
	storage "todoapp/repository/inmemory"

	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, to notify.Recipient, kind notify.Kind, params notify.Params) error {
	args := m.Called(ctx, to, kind, params)
	return args.Error(0)
}

type memEntry struct {
	version int64
	snap    stats.Snapshot
}

// memCache is a StatsCache backed by a map, counting invalidations.
type memCache struct {
	mu          sync.Mutex
	entries     map[string]memEntry
	generations map[string]int64
	invalidated map[string]int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]memEntry{}, generations: map[string]int64{}, invalidated: map[string]int{}}
}

func (c *memCache) Get(_ context.Context, ownerID string) (*stats.Snapshot, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generations[ownerID]
	e, ok := c.entries[ownerID]
	if !ok || e.version != gen {
		return nil, gen, nil
	}
	return &e.snap, gen, nil
}

func (c *memCache) Set(_ context.Context, ownerID string, version int64, s stats.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ownerID] = memEntry{version: version, snap: s}
	return nil
}

func (c *memCache) Invalidate(_ context.Context, ownerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ownerID)
	c.generations[ownerID]++
	c.invalidated[ownerID]++
	return nil
}

// movableClock is a clock tests can advance.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ clock.Clock = (*movableClock)(nil)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newUser(store *storage.Storage, username string) *models.User {
	user := &models.User{Username: username, Email: username + "@example.com", Password: "hash", CreatedAt: t0}
	if err := store.CreateUser(context.Background(), user); err != nil {
		panic(err)
	}
	return user
}
