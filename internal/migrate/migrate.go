// Package migrate replays schema and data change scripts against the store,
// each exactly once, in the order the caller declares them.
package migrate

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const statementMarker = "-- name:"

const createTrackingTable = `CREATE TABLE IF NOT EXISTS migrations (
    filename TEXT UNIQUE NOT NULL,
    applied INTEGER NOT NULL
)`

// Migration identifies one script by the module that owns it and its file name.
type Migration struct {
	Module   string
	Filename string
}

// Label is the persisted key of the migration and its path inside the script FS.
func (m Migration) Label() string {
	return path.Join(m.Module, "migrations", m.Filename)
}

// Executor runs a unit of work in a single transaction.
type Executor interface {
	Do(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// Statement is one named block of a migration script.
type Statement struct {
	Name string
	SQL  string
}

// Runner applies migrations and records them in the tracking table.
type Runner struct {
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Runner. A nil logger discards output.
func New(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger: logger.With(zap.String("component", "migrate")),
		now:    time.Now,
	}
}

// Apply ensures the tracking table exists, then applies every migration not yet
// recorded, in the given order. Each migration file runs in one transaction
// together with its tracking row, so a failing statement leaves the file
// unapplied. It returns the labels applied by this call.
func (r *Runner) Apply(ctx context.Context, exec Executor, fsys fs.FS, migrations []Migration) ([]string, error) {
	if err := exec.Do(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, createTrackingTable)
		return err
	}); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}

	var applied []string
	for _, m := range migrations {
		label := m.Label()
		ran := false
		err := exec.Do(ctx, func(tx *sqlx.Tx) error {
			done, err := isApplied(ctx, tx, label)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

			raw, err := fs.ReadFile(fsys, label)
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			for _, stmt := range ParseStatements(string(raw)) {
				if _, err := tx.ExecContext(ctx, stmt.SQL); err != nil {
					return fmt.Errorf("statement %q: %w", stmt.Name, err)
				}
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO migrations(filename, applied) VALUES(?, ?)`,
				label, r.now().UTC().Unix(),
			); err != nil {
				return fmt.Errorf("record migration: %w", err)
			}
			ran = true
			return nil
		})
		if err != nil {
			r.logger.Error("migration failed", zap.String("label", label), zap.Error(err))
			return applied, fmt.Errorf("apply migration %s: %w", label, err)
		}

		if ran {
			r.logger.Info("migration applied", zap.String("label", label))
			applied = append(applied, label)
		} else {
			r.logger.Debug("migration already applied", zap.String("label", label))
		}
	}
	return applied, nil
}

// Applied lists recorded labels in the order they were applied.
func (r *Runner) Applied(ctx context.Context, exec Executor) ([]string, error) {
	var labels []string
	err := exec.Do(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, createTrackingTable); err != nil {
			return err
		}
		return tx.SelectContext(ctx, &labels, `SELECT filename FROM migrations ORDER BY rowid`)
	})
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	return labels, nil
}

func isApplied(ctx context.Context, tx *sqlx.Tx, label string) (bool, error) {
	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(1) FROM migrations WHERE filename = ?`, label); err != nil {
		return false, fmt.Errorf("check migration: %w", err)
	}
	return count > 0, nil
}

// ParseStatements splits a script into blocks, each starting at a line of the
// form "-- name: <name>". A script without markers is one statement. Blocks
// holding only whitespace or comments are dropped.
func ParseStatements(script string) []Statement {
	var (
		stmts   []Statement
		current = Statement{Name: "preamble"}
		body    strings.Builder
	)

	flush := func() {
		sql := strings.TrimSpace(body.String())
		if hasCode(sql) {
			current.SQL = sql
			stmts = append(stmts, current)
		}
		body.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(script))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, statementMarker) {
			flush()
			current = Statement{Name: strings.TrimSpace(strings.TrimPrefix(trimmed, statementMarker))}
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()
	return stmts
}

func hasCode(sql string) bool {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return true
		}
	}
	return false
}
