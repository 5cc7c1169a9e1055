package migrate

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dbExecutor runs units of work directly on a database handle.
type dbExecutor struct {
	db *sqlx.DB
}

func (e dbExecutor) Do(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func newMock(t *testing.T) (dbExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return dbExecutor{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func fixedRunner() *Runner {
	r := New(nil)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func TestLabel(t *testing.T) {
	m := Migration{Module: "auth", Filename: "0000_initial_tables.sql"}
	assert.Equal(t, "auth/migrations/0000_initial_tables.sql", m.Label())
}

func TestParseStatements(t *testing.T) {
	script := `-- name: create-a
CREATE TABLE a (id INTEGER);

-- name: comment-only
-- nothing to run here

-- name: create-b
CREATE TABLE b (
    id INTEGER
);
`
	stmts := ParseStatements(script)
	require.Len(t, stmts, 2)
	assert.Equal(t, "create-a", stmts[0].Name)
	assert.Equal(t, "CREATE TABLE a (id INTEGER);", stmts[0].SQL)
	assert.Equal(t, "create-b", stmts[1].Name)
	assert.Contains(t, stmts[1].SQL, "CREATE TABLE b (")
}

func TestParseStatementsWithoutMarkers(t *testing.T) {
	stmts := ParseStatements("CREATE TABLE a (id INTEGER);\n")
	require.Len(t, stmts, 1)
	assert.Equal(t, "preamble", stmts[0].Name)
}

func TestParseStatementsDropsBlankPreamble(t *testing.T) {
	stmts := ParseStatements("\n\n-- name: only\nSELECT 1;\n")
	require.Len(t, stmts, 1)
	assert.Equal(t, "only", stmts[0].Name)
}

func TestApplySkipsRecordedMigration(t *testing.T) {
	exec, mock := newMock(t)
	fsys := fstest.MapFS{"auth/migrations/0000.sql": {Data: []byte("-- name: x\nCREATE TABLE x (id INTEGER);\n")}}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM migrations WHERE filename = \?`).
		WithArgs("auth/migrations/0000.sql").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	applied, err := fixedRunner().Apply(context.Background(), exec, fsys, []Migration{{Module: "auth", Filename: "0000.sql"}})
	require.NoError(t, err)
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRecordsInSameTransaction(t *testing.T) {
	exec, mock := newMock(t)
	fsys := fstest.MapFS{"auth/migrations/0000.sql": {Data: []byte("-- name: x\nCREATE TABLE x (id INTEGER);\n")}}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`CREATE TABLE x`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO migrations\(filename, applied\) VALUES\(\?, \?\)`).
		WithArgs("auth/migrations/0000.sql", int64(1700000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := fixedRunner().Apply(context.Background(), exec, fsys, []Migration{{Module: "auth", Filename: "0000.sql"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"auth/migrations/0000.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRollsBackFailedScript(t *testing.T) {
	exec, mock := newMock(t)
	fsys := fstest.MapFS{"auth/migrations/0000.sql": {Data: []byte(
		"-- name: good\nCREATE TABLE x (id INTEGER);\n-- name: bad\nCREATE TABLE broken;\n",
	)}}
	boom := errors.New("syntax error")

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`CREATE TABLE x`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE broken`).WillReturnError(boom)
	mock.ExpectRollback()

	applied, err := fixedRunner().Apply(context.Background(), exec, fsys, []Migration{
		{Module: "auth", Filename: "0000.sql"},
		{Module: "auth", Filename: "0001.sql"},
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "auth/migrations/0000.sql")
	assert.Contains(t, err.Error(), `"bad"`)
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyFailsOnMissingScript(t *testing.T) {
	exec, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	_, err := fixedRunner().Apply(context.Background(), exec, fstest.MapFS{}, []Migration{{Module: "auth", Filename: "missing.sql"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read script")
	require.NoError(t, mock.ExpectationsWereMet())
}
