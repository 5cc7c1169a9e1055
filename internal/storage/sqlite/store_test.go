package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/migrate"
	"tracker/internal/models"
	"tracker/internal/schema"
	"tracker/internal/storage/sqlite"
	"tracker/internal/testutil"
)

func countRows(t *testing.T, store *sqlite.Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, store.Do(context.Background(), func(tx *sqlx.Tx) error {
		return tx.Get(&n, `SELECT COUNT(1) FROM `+table)
	}))
	return n
}

func createScratch(t *testing.T, store *sqlite.Store) {
	t.Helper()
	require.NoError(t, store.Do(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`CREATE TABLE scratch (n INTEGER NOT NULL)`)
		return err
	}))
}

func TestOpenAppliesSchema(t *testing.T) {
	store, _ := testutil.NewStore(t)

	applied, err := migrate.New(nil).Applied(context.Background(), store)
	require.NoError(t, err)

	want := make([]string, 0, len(schema.Migrations))
	for _, m := range schema.Migrations {
		want = append(want, m.Label())
	}
	assert.Equal(t, want, applied)
	assert.Equal(t, 3, countRows(t, store, "roles"))
}

func TestOpenTwiceIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tracker.db")

	first, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, len(schema.Migrations), countRows(t, second, "migrations"))
	assert.Equal(t, 3, countRows(t, second, "roles"))
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), "")
	require.Error(t, err)
}

func TestDoCommits(t *testing.T) {
	store, _ := testutil.NewStore(t)
	createScratch(t, store)

	require.NoError(t, store.Do(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO scratch(n) VALUES (1), (2)`)
		return err
	}))
	assert.Equal(t, 2, countRows(t, store, "scratch"))
}

func TestDoRollsBackOnError(t *testing.T) {
	store, _ := testutil.NewStore(t)
	createScratch(t, store)
	boom := errors.New("boom")

	err := store.Do(context.Background(), func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO scratch(n) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, store, "scratch"))
}

func TestDoRollsBackOnPanicAndReleases(t *testing.T) {
	store, _ := testutil.NewStore(t)
	createScratch(t, store)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = store.Do(context.Background(), func(tx *sqlx.Tx) error {
			_, _ = tx.Exec(`INSERT INTO scratch(n) VALUES (1)`)
			panic("kaboom")
		})
	})

	// The gate must be free again.
	assert.Equal(t, 0, countRows(t, store, "scratch"))
}

func TestDoTimesOutWithResourceExhausted(t *testing.T) {
	store, _ := testutil.NewStore(t, sqlite.WithMutexTimeout(50*time.Millisecond))

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.Do(context.Background(), func(tx *sqlx.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := store.Do(context.Background(), func(tx *sqlx.Tx) error {
		t.Error("unit of work must not run while the gate is held")
		return nil
	})
	require.ErrorIs(t, err, models.ErrResourceExhausted)
	assert.True(t, models.IsRetryable(err))

	close(release)
	require.NoError(t, <-done)
}

func TestDoReturnsContextErrorOnCancel(t *testing.T) {
	store, _ := testutil.NewStore(t)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.Do(context.Background(), func(tx *sqlx.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := store.Do(ctx, func(tx *sqlx.Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, models.IsRetryable(err))

	close(release)
	require.NoError(t, <-done)
}

func TestDoSerializesWriters(t *testing.T) {
	store, _ := testutil.NewStore(t)
	require.NoError(t, store.Do(context.Background(), func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`CREATE TABLE counter (n INTEGER NOT NULL)`); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO counter(n) VALUES (0)`)
		return err
	}))

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Do(context.Background(), func(tx *sqlx.Tx) error {
				var n int
				if err := tx.Get(&n, `SELECT n FROM counter`); err != nil {
					return err
				}
				_, err := tx.Exec(`UPDATE counter SET n = ?`, n+1)
				return err
			}))
		}()
	}
	wg.Wait()

	var n int
	require.NoError(t, store.Do(context.Background(), func(tx *sqlx.Tx) error {
		return tx.Get(&n, `SELECT n FROM counter`)
	}))
	assert.Equal(t, workers, n)
}

func TestNowUsesClock(t *testing.T) {
	store, clock := testutil.NewStore(t)
	assert.Equal(t, testutil.T0.Unix(), store.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, testutil.T0.Unix()+90, store.Now())
}

func TestIsUniqueViolation(t *testing.T) {
	store, _ := testutil.NewStore(t)

	err := store.Do(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO roles(name) VALUES ('manager')`)
		return err
	})
	require.Error(t, err)
	assert.True(t, sqlite.IsUniqueViolation(err))
	assert.False(t, sqlite.IsUniqueViolation(errors.New("other")))
}
