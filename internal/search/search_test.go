package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/board"
	"tracker/internal/models"
	"tracker/internal/search"
	"tracker/internal/task"
	"tracker/internal/testutil"
)

func TestSearchFiltersToVisibleBoards(t *testing.T) {
	store, _ := testutil.NewStore(t)
	boards := board.NewRegistry(store)
	tasks := task.NewEngine(store)
	svc := search.NewService(store)
	alice := testutil.CreateUser(t, store, "alice")
	bob := testutil.CreateUser(t, store, "bob")

	shared, err := boards.CreateBoard(context.Background(), "SHR", "shared", alice)
	require.NoError(t, err)
	private, err := boards.CreateBoard(context.Background(), "PRV", "private", alice)
	require.NoError(t, err)
	_, err = boards.SetUserRole(context.Background(), alice, shared.ID, bob.ID, models.RoleViewer)
	require.NoError(t, err)

	visible, err := tasks.Create(context.Background(), shared.ID, alice, "Fix login widget", "", nil)
	require.NoError(t, err)
	hidden, err := tasks.Create(context.Background(), private.ID, alice, "Another widget", "", nil)
	require.NoError(t, err)

	// Invited but not accepted sees nothing.
	results, err := svc.Search(context.Background(), bob, "widget")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)

	_, err = boards.AcceptUserRole(context.Background(), shared.ID, bob.ID)
	require.NoError(t, err)

	results, err = svc.Search(context.Background(), bob, "widget")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.SearchResult{
		TaskID:       visible.ID,
		BoardCreator: "alice",
		Symbol:       "SHR",
		Number:       1,
		Title:        "Fix login widget",
	}, results[0])

	results, err = svc.Search(context.Background(), alice, "WIDGET")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, visible.ID, results[0].TaskID)
	assert.Equal(t, hidden.ID, results[1].TaskID)
}

func TestSearchMatchesBodyAndComments(t *testing.T) {
	store, _ := testutil.NewStore(t)
	boards := board.NewRegistry(store)
	tasks := task.NewEngine(store)
	svc := search.NewService(store)
	alice := testutil.CreateUser(t, store, "alice")

	b, err := boards.CreateBoard(context.Background(), "TST", "test board", alice)
	require.NoError(t, err)
	byBody, err := tasks.Create(context.Background(), b.ID, alice, "one", "the database is slow", nil)
	require.NoError(t, err)
	byComment, err := tasks.Create(context.Background(), b.ID, alice, "two", "", nil)
	require.NoError(t, err)
	_, err = tasks.NewComment(context.Background(), alice, byComment.ID, "probably the database again")
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), alice, "database")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, byBody.ID, results[0].TaskID)
	assert.Equal(t, byComment.ID, results[1].TaskID)

	results, err = svc.Search(context.Background(), alice, "database slow")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, byBody.ID, results[0].TaskID)

	// LIKE wildcards are matched literally.
	results, err = svc.Search(context.Background(), alice, "%")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchBlankQuery(t *testing.T) {
	store, _ := testutil.NewStore(t)
	svc := search.NewService(store)
	alice := testutil.CreateUser(t, store, "alice")

	for _, q := range []string{"", "   ", "\t\n"} {
		results, err := svc.Search(context.Background(), alice, q)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	}
}
