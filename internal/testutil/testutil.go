// Package testutil provides fixtures shared by store-backed tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tracker/internal/auth"
	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
)

// T0 is the instant every test clock starts at.
var T0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewStore opens a migrated store in a temporary directory, driven by a fake clock.
func NewStore(t *testing.T, opts ...sqlite.Option) (*sqlite.Store, *Clock) {
	t.Helper()

	clock := NewClock(T0)
	opts = append([]sqlite.Option{sqlite.WithClock(clock.Now)}, opts...)
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "tracker.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

// Users returns an auth service over store that accepts new accounts.
func Users(store *sqlite.Store) *auth.Service {
	return auth.NewService(store, auth.NewScryptHasher("test-salt"), true)
}

// CreateUser registers username with a fixed password.
func CreateUser(t *testing.T, store *sqlite.Store, username string) models.User {
	t.Helper()

	user, err := Users(store).CreateUser(context.Background(), username, []byte("password"))
	require.NoError(t, err)
	return user
}
