package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tracker/internal/events"
	"tracker/internal/models"
)

const taskColumns = `id, number, board_id, creator_id, assignee_id, status_id, title, body, created, modified`

type taskRow struct {
	ID         int64         `db:"id"`
	Number     int64         `db:"number"`
	BoardID    int64         `db:"board_id"`
	CreatorID  int64         `db:"creator_id"`
	AssigneeID sql.NullInt64 `db:"assignee_id"`
	StatusID   sql.NullInt64 `db:"status_id"`
	Title      string        `db:"title"`
	Body       string        `db:"body"`
	Created    int64         `db:"created"`
	Modified   sql.NullInt64 `db:"modified"`
}

type statusRow struct {
	ID     int64  `db:"id"`
	TaskID int64  `db:"task_id"`
	Name   string `db:"name"`
}

type tagRow struct {
	ID     int64  `db:"id"`
	TaskID int64  `db:"task_id"`
	Value  string `db:"value"`
}

type commentRow struct {
	ID       int64         `db:"id"`
	TaskID   int64         `db:"task_id"`
	Number   int64         `db:"number"`
	UserID   int64         `db:"user_id"`
	Username string        `db:"username"`
	Contents string        `db:"contents"`
	Created  int64         `db:"created"`
	Modified sql.NullInt64 `db:"modified"`
}

func (r commentRow) toModel() models.TaskComment {
	return models.TaskComment{
		ID:       r.ID,
		TaskID:   r.TaskID,
		Number:   r.Number,
		UserID:   r.UserID,
		Username: r.Username,
		Contents: r.Contents,
		Created:  r.Created,
		Modified: nullInt(r.Modified),
	}
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// load reads the full task aggregate: statuses, tags, comments (newest first) and events.
func load(ctx context.Context, q sqlx.QueryerContext, taskID int64) (models.Task, error) {
	var row taskRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, models.NotFound("get task", "task")
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}

	t := models.Task{
		ID:         row.ID,
		Number:     row.Number,
		BoardID:    row.BoardID,
		CreatorID:  row.CreatorID,
		AssigneeID: nullInt(row.AssigneeID),
		Title:      row.Title,
		Body:       row.Body,
		Created:    row.Created,
		Modified:   nullInt(row.Modified),
	}

	statuses, err := loadStatuses(ctx, q, taskID)
	if err != nil {
		return models.Task{}, err
	}
	t.PossibleStatuses = make([]models.TaskStatus, 0, len(statuses))
	for _, s := range statuses {
		if row.StatusID.Valid && s.ID == row.StatusID.Int64 {
			t.Status = s
			continue
		}
		t.PossibleStatuses = append(t.PossibleStatuses, s)
	}

	var tags []tagRow
	if err := sqlx.SelectContext(ctx, q, &tags,
		`SELECT id, task_id, value FROM task_tags WHERE task_id = ? ORDER BY value`, taskID); err != nil {
		return models.Task{}, fmt.Errorf("select task tags: %w", err)
	}
	t.Tags = make([]models.TaskTag, 0, len(tags))
	for _, tag := range tags {
		t.Tags = append(t.Tags, models.TaskTag{ID: tag.ID, TaskID: tag.TaskID, Value: tag.Value})
	}

	var comments []commentRow
	if err := sqlx.SelectContext(ctx, q, &comments,
		`SELECT c.id, c.task_id, c.number, c.user_id, u.username, c.contents, c.created, c.modified
         FROM task_comments c
         JOIN users u ON u.id = c.user_id
         WHERE c.task_id = ?
         ORDER BY c.created DESC, c.number DESC`, taskID); err != nil {
		return models.Task{}, fmt.Errorf("select task comments: %w", err)
	}
	t.Comments = make([]models.TaskComment, 0, len(comments))
	for _, c := range comments {
		t.Comments = append(t.Comments, c.toModel())
	}

	if t.Events, err = events.ForTask(ctx, q, taskID); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

func loadStatuses(ctx context.Context, q sqlx.QueryerContext, taskID int64) ([]models.TaskStatus, error) {
	var rows []statusRow
	if err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT id, task_id, name FROM task_statuses WHERE task_id = ? ORDER BY id`, taskID); err != nil {
		return nil, fmt.Errorf("select task statuses: %w", err)
	}
	out := make([]models.TaskStatus, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.TaskStatus{ID: r.ID, TaskID: r.TaskID, Name: r.Name})
	}
	return out, nil
}

func loadComment(ctx context.Context, q sqlx.QueryerContext, taskID, number int64) (models.TaskComment, error) {
	var row commentRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT c.id, c.task_id, c.number, c.user_id, u.username, c.contents, c.created, c.modified
         FROM task_comments c
         JOIN users u ON u.id = c.user_id
         WHERE c.task_id = ? AND c.number = ?`, taskID, number)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TaskComment{}, models.NotFound("get comment", "comment")
	}
	if err != nil {
		return models.TaskComment{}, fmt.Errorf("get comment: %w", err)
	}
	return row.toModel(), nil
}
