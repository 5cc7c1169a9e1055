package task

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"tracker/internal/events"
	"tracker/internal/models"
)

// NewComment appends a comment under the task's next comment number. Numbers
// are never reused, even after deletion.
func (e *Engine) NewComment(ctx context.Context, actor models.User, taskID int64, contents string) (models.Task, error) {
	return e.mutate(ctx, taskID, func(tx *sqlx.Tx, _ models.Task, now int64) error {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET comment_seq = comment_seq + 1 WHERE id = ?`, taskID); err != nil {
			return fmt.Errorf("increment comment sequence: %w", err)
		}
		var number int64
		if err := tx.GetContext(ctx, &number, `SELECT comment_seq FROM tasks WHERE id = ?`, taskID); err != nil {
			return fmt.Errorf("select comment sequence: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_comments(task_id, number, user_id, contents, created) VALUES(?, ?, ?, ?, ?)`,
			taskID, number, actor.ID, contents, now,
		); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return appendChange(ctx, tx, taskID, actor.ID, now, events.DescNew, FieldComment,
			models.StringPtr(""), models.StringPtr(contents))
	})
}

// EditComment replaces the contents of comment number.
func (e *Engine) EditComment(ctx context.Context, actor models.User, taskID, number int64, contents string) (models.Task, error) {
	return e.mutate(ctx, taskID, func(tx *sqlx.Tx, _ models.Task, now int64) error {
		prev, err := loadComment(ctx, tx, taskID, number)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE task_comments SET contents = ?, modified = ? WHERE id = ?`, contents, now, prev.ID,
		); err != nil {
			return fmt.Errorf("edit comment: %w", err)
		}
		return appendChange(ctx, tx, taskID, actor.ID, now, events.DescEdit, FieldComment,
			models.StringPtr(prev.Contents), models.StringPtr(contents))
	})
}

// DeleteComment removes comment number. A missing comment is not an error.
func (e *Engine) DeleteComment(ctx context.Context, actor models.User, taskID, number int64) (models.Task, error) {
	return e.mutate(ctx, taskID, func(tx *sqlx.Tx, _ models.Task, now int64) error {
		prev, err := loadComment(ctx, tx, taskID, number)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_comments WHERE id = ?`, prev.ID); err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		return appendChange(ctx, tx, taskID, actor.ID, now, events.DescDelete, FieldComment,
			models.StringPtr(strconv.FormatInt(number, 10)), nil)
	})
}

// NormalizeTag lower-cases and trims a tag value.
func NormalizeTag(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// AddTag attaches a tag. Tags compare case-insensitively, so adding an existing
// tag in any case leaves a single row.
func (e *Engine) AddTag(ctx context.Context, actor models.User, taskID int64, value string) (models.Task, error) {
	value = NormalizeTag(value)
	if value == "" {
		return models.Task{}, models.InvalidArgument("add tag", "tag must not be empty")
	}
	return e.mutate(ctx, taskID, func(tx *sqlx.Tx, _ models.Task, now int64) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_tags(task_id, value) VALUES(?, ?)`, taskID, value,
		); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
		return appendChange(ctx, tx, taskID, actor.ID, now, events.DescNew, FieldTag, nil, models.StringPtr(value))
	})
}

// RemoveTag detaches a tag. Removing an absent tag is a no-op.
func (e *Engine) RemoveTag(ctx context.Context, actor models.User, taskID int64, value string) (models.Task, error) {
	value = NormalizeTag(value)
	return e.mutate(ctx, taskID, func(tx *sqlx.Tx, _ models.Task, now int64) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ? AND value = ?`, taskID, value)
		if err != nil {
			return fmt.Errorf("delete tag: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		return appendChange(ctx, tx, taskID, actor.ID, now, events.DescDelete, FieldTag, models.StringPtr(value), nil)
	})
}
