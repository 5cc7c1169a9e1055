package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/models"
	"tracker/internal/task"
	"tracker/internal/testutil"
)

func TestBoardTasksSummary(t *testing.T) {
	f := newFixture(t)
	bob := testutil.CreateUser(t, f.store, "bob")

	first := f.create(t, "first")
	_, err := f.tasks.AddTag(context.Background(), f.alice, first.ID, "bug")
	require.NoError(t, err)
	_, err = f.tasks.NewComment(context.Background(), f.alice, first.ID, "a")
	require.NoError(t, err)
	_, err = f.tasks.NewComment(context.Background(), f.alice, first.ID, "b")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.tasks.SetAssignee(context.Background(), f.alice, first.ID, &bob.ID)
	require.NoError(t, err)
	f.create(t, "second")

	rows, err := f.tasks.BoardTasks(context.Background(), f.board.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, models.TaskSummary{
		TaskID:       first.ID,
		BoardCreator: "alice",
		Symbol:       "TST",
		Number:       1,
		Title:        "first",
		Status:       "todo",
		Creator:      "alice",
		Assignee:     models.StringPtr("bob"),
		TagCount:     1,
		CommentCount: 2,
		LastUpdated:  testutil.T0.Add(time.Hour).Unix(),
	}, rows[0])
	assert.Equal(t, int64(2), rows[1].Number)
	assert.Nil(t, rows[1].Assignee)
}

func TestUserTasksOnlyVisibleBoards(t *testing.T) {
	f := newFixture(t)
	bob := testutil.CreateUser(t, f.store, "bob")

	assigned := f.create(t, "visible")
	_, err := f.tasks.SetAssignee(context.Background(), f.alice, assigned.ID, &bob.ID)
	require.NoError(t, err)

	// Bob has not accepted yet, so nothing is visible.
	rows, err := f.tasks.UserTasks(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = f.boards.SetUserRole(context.Background(), f.alice, f.board.ID, bob.ID, models.RoleViewer)
	require.NoError(t, err)
	_, err = f.boards.AcceptUserRole(context.Background(), f.board.ID, bob.ID)
	require.NoError(t, err)

	rows, err = f.tasks.UserTasks(context.Background(), bob.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, assigned.ID, rows[0].TaskID)
}

func TestSummariesByStatus(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "first")
	f.create(t, "second")
	_, err := f.tasks.SetStatus(context.Background(), f.alice, first.ID, "completed")
	require.NoError(t, err)

	rows, err := f.tasks.Summaries(context.Background(), task.Filter{BoardID: f.board.ID, Status: "completed"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].TaskID)
}
