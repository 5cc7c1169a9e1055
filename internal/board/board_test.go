package board_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/board"
	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
	"tracker/internal/task"
	"tracker/internal/testutil"
)

func setup(t *testing.T) (*sqlite.Store, *testutil.Clock, *board.Registry) {
	t.Helper()
	store, clock := testutil.NewStore(t)
	return store, clock, board.NewRegistry(store)
}

func TestCreateBoardSeedsFixture(t *testing.T) {
	store, _, boards := setup(t)
	alice := testutil.CreateUser(t, store, "alice")

	b, err := boards.CreateBoard(context.Background(), "TST", "test board", alice)
	require.NoError(t, err)

	assert.NotZero(t, b.ID)
	assert.Equal(t, "TST", b.Symbol)
	assert.Equal(t, "test board", b.Name)
	assert.Equal(t, alice.ID, b.CreatorID)
	assert.Equal(t, "alice", b.Creator)
	assert.Equal(t, testutil.T0.Unix(), b.Created)
	assert.Equal(t, "todo", b.CurrentStatus.Name)
	require.Len(t, b.PossibleStatuses, 2)
	assert.Equal(t, "in-progress", b.PossibleStatuses[0].Name)
	assert.Equal(t, "completed", b.PossibleStatuses[1].Name)

	role, err := boards.GetUserRole(context.Background(), b.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, role.Role)
	assert.Equal(t, models.StateAccepted, role.State)
	assert.Equal(t, alice.ID, role.InvitedBy)
}

func TestCreateBoardDuplicateSymbol(t *testing.T) {
	store, _, boards := setup(t)
	alice := testutil.CreateUser(t, store, "alice")
	bob := testutil.CreateUser(t, store, "bob")

	_, err := boards.CreateBoard(context.Background(), "TST", "one", alice)
	require.NoError(t, err)

	_, err = boards.CreateBoard(context.Background(), "TST", "two", alice)
	require.ErrorIs(t, err, models.ErrConflict)

	// Symbols are unique per creator only.
	_, err = boards.CreateBoard(context.Background(), "TST", "bob's", bob)
	require.NoError(t, err)
}

func TestCreateBoardValidation(t *testing.T) {
	store, _, boards := setup(t)
	alice := testutil.CreateUser(t, store, "alice")

	_, err := boards.CreateBoard(context.Background(), "", "name", alice)
	require.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = boards.CreateBoard(context.Background(), "SYM", " ", alice)
	require.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestGetBoard(t *testing.T) {
	store, _, boards := setup(t)
	alice := testutil.CreateUser(t, store, "alice")
	created, err := boards.CreateBoard(context.Background(), "TST", "test board", alice)
	require.NoError(t, err)

	got, err := boards.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	bySymbol, err := boards.GetByCreatorSymbol(context.Background(), alice.ID, "TST")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySymbol.ID)

	_, err = boards.Get(context.Background(), 999)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = boards.GetByCreatorSymbol(context.Background(), alice.ID, "NOPE")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestRenameAndSetSymbol(t *testing.T) {
	store, clock, boards := setup(t)
	alice := testutil.CreateUser(t, store, "alice")
	b, err := boards.CreateBoard(context.Background(), "TST", "test board", alice)
	require.NoError(t, err)
	_, err = boards.CreateBoard(context.Background(), "OTH", "other", alice)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	renamed, err := boards.Rename(context.Background(), b.ID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.Name)
	require.NotNil(t, renamed.Modified)
	assert.Equal(t, testutil.T0.Add(time.Minute).Unix(), *renamed.Modified)

	moved, err := boards.SetSymbol(context.Background(), b.ID, "NEW")
	require.NoError(t, err)
	assert.Equal(t, "NEW", moved.Symbol)

	_, err = boards.SetSymbol(context.Background(), b.ID, "OTH")
	require.ErrorIs(t, err, models.ErrConflict)

	_, err = boards.Rename(context.Background(), 999, "x")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetBoardStatus(t *testing.T) {
	store, _, boards := setup(t)
	alice := testutil.CreateUser(t, store, "alice")
	b, err := boards.CreateBoard(context.Background(), "TST", "test board", alice)
	require.NoError(t, err)

	updated, err := boards.SetStatus(context.Background(), b.ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, "completed", updated.CurrentStatus.Name)
	require.Len(t, updated.PossibleStatuses, 2)

	_, err = boards.SetStatus(context.Background(), b.ID, "archived")
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestUserBoardsSummary(t *testing.T) {
	store, clock, boards := setup(t)
	alice := testutil.CreateUser(t, store, "alice")
	bob := testutil.CreateUser(t, store, "bob")
	tasks := task.NewEngine(store)

	b, err := boards.CreateBoard(context.Background(), "TST", "test board", alice)
	require.NoError(t, err)
	_, err = boards.SetUserRole(context.Background(), alice, b.ID, bob.ID, models.RoleViewer)
	require.NoError(t, err)

	// Pending invitations do not list the board.
	listed, err := boards.UserBoards(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = boards.AcceptUserRole(context.Background(), b.ID, bob.ID)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = tasks.Create(context.Background(), b.ID, alice, "first", "", nil)
	require.NoError(t, err)

	listed, err = boards.UserBoards(context.Background(), bob.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	s := listed[0]
	assert.Equal(t, b.ID, s.ID)
	assert.Equal(t, "TST", s.Symbol)
	assert.Equal(t, "todo", s.Status)
	assert.Equal(t, "alice", s.Creator)
	assert.Equal(t, models.RoleViewer, s.Role)
	assert.Equal(t, int64(1), s.TaskCount)
	assert.Equal(t, int64(2), s.UserCount)
	assert.Equal(t, testutil.T0.Add(time.Hour).Unix(), s.LastUpdated)

	names, err := boards.BoardUsers(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func countWhere(t *testing.T, store *sqlite.Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, store.Do(context.Background(), func(tx *sqlx.Tx) error {
		return tx.Get(&n, query, args...)
	}))
	return n
}

func TestDeleteBoardCascades(t *testing.T) {
	store, _, boards := setup(t)
	alice := testutil.CreateUser(t, store, "alice")
	bob := testutil.CreateUser(t, store, "bob")
	tasks := task.NewEngine(store)

	b, err := boards.CreateBoard(context.Background(), "TST", "test board", alice)
	require.NoError(t, err)
	_, err = boards.SetUserRole(context.Background(), alice, b.ID, bob.ID, models.RoleCollaborator)
	require.NoError(t, err)
	tk, err := tasks.Create(context.Background(), b.ID, alice, "first", "body", nil)
	require.NoError(t, err)
	_, err = tasks.NewComment(context.Background(), alice, tk.ID, "hello")
	require.NoError(t, err)
	_, err = tasks.AddTag(context.Background(), alice, tk.ID, "bug")
	require.NoError(t, err)

	require.NoError(t, boards.Delete(context.Background(), b.ID))

	_, err = boards.Get(context.Background(), b.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, countWhere(t, store, `SELECT COUNT(1) FROM board_statuses WHERE board_id = ?`, b.ID))
	assert.Zero(t, countWhere(t, store, `SELECT COUNT(1) FROM board_users WHERE board_id = ?`, b.ID))
	assert.Zero(t, countWhere(t, store, `SELECT COUNT(1) FROM tasks WHERE board_id = ?`, b.ID))
	for _, table := range []string{"task_comments", "task_statuses", "task_tags", "task_events"} {
		assert.Zero(t, countWhere(t, store, `SELECT COUNT(1) FROM `+table+` WHERE task_id = ?`, tk.ID), table)
	}

	require.ErrorIs(t, boards.Delete(context.Background(), b.ID), models.ErrNotFound)
}
