package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"tracker/internal/migrate"
	"tracker/internal/models"
	"tracker/internal/schema"
)

// DefaultMutexTimeout bounds how long a unit of work waits for the connection.
const DefaultMutexTimeout = 30 * time.Second

// Store owns the single database connection. Every unit of work runs through Do,
// which serializes access process-wide.
type Store struct {
	db      *sqlx.DB
	gate    *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	migrations   []migrate.Migration
	migrationsFS fs.FS
}

// Option customizes a Store at Open.
type Option func(*Store)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMutexTimeout sets the acquisition timeout of the storage gate.
func WithMutexTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMigrations replaces the schema migrations applied at Open.
func WithMigrations(fsys fs.FS, list []migrate.Migration) Option {
	return func(s *Store) {
		s.migrationsFS = fsys
		s.migrations = list
	}
}

// Open connects to the SQLite database and applies pending migrations before
// returning, so callers never observe a partially migrated schema.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	s := &Store{
		gate:         semaphore.NewWeighted(1),
		timeout:      DefaultMutexTimeout,
		logger:       zap.NewNop(),
		now:          time.Now,
		migrations:   schema.Migrations,
		migrationsFS: schema.FS,
	}
	for _, opt := range opts {
		opt(s)
	}
	base := s.logger
	s.logger = base.With(zap.String("component", "gate"))

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)
	s.db = conn

	runner := migrate.New(base)
	if _, err := runner.Apply(ctx, s, s.migrationsFS, s.migrations); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Now returns the current time as epoch seconds, UTC.
func (s *Store) Now() int64 {
	return s.now().UTC().Unix()
}

// Do runs fn as one unit of work: it acquires the gate within the configured
// timeout, opens a transaction, and commits when fn succeeds. Any error or panic
// rolls the transaction back. The gate is released on every path.
//
// fn must not call Do; the gate is not reentrant.
func (s *Store) Do(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.gate.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("storage gate acquisition timed out", zap.Duration("timeout", s.timeout))
		return models.ResourceExhausted("acquire storage gate", err)
	}
	defer s.gate.Release(1)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
