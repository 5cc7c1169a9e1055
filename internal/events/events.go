// Package events is the append-only audit history of task mutations.
package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
)

// Descriptions recorded by the task engine.
const (
	DescCreated = "created task"
	DescUpdate  = "update"
	DescNew     = "new"
	DescEdit    = "edit"
	DescDelete  = "delete"
)

const eventColumns = `id, task_id, user_id, created, description, change_field, change_old, change_new`

type eventRow struct {
	ID          int64          `db:"id"`
	TaskID      int64          `db:"task_id"`
	UserID      int64          `db:"user_id"`
	Created     int64          `db:"created"`
	Description string         `db:"description"`
	ChangeField sql.NullString `db:"change_field"`
	ChangeOld   sql.NullString `db:"change_old"`
	ChangeNew   sql.NullString `db:"change_new"`
}

func (r eventRow) toModel() models.TaskEvent {
	return models.TaskEvent{
		ID:          r.ID,
		TaskID:      r.TaskID,
		UserID:      r.UserID,
		Created:     r.Created,
		Description: r.Description,
		ChangeField: nullable(r.ChangeField),
		ChangeOld:   nullable(r.ChangeOld),
		ChangeNew:   nullable(r.ChangeNew),
	}
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// Append records one event inside the caller's unit of work. ev.ID is ignored.
func Append(ctx context.Context, tx sqlx.ExecerContext, ev models.TaskEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO task_events(task_id, user_id, created, description, change_field, change_old, change_new)
         VALUES(?, ?, ?, ?, ?, ?, ?)`,
		ev.TaskID, ev.UserID, ev.Created, ev.Description, ev.ChangeField, ev.ChangeOld, ev.ChangeNew,
	)
	if err != nil {
		return fmt.Errorf("insert task event: %w", err)
	}
	return nil
}

// ForTask returns the task's events oldest first; ties keep insertion order.
func ForTask(ctx context.Context, q sqlx.QueryerContext, taskID int64) ([]models.TaskEvent, error) {
	var rows []eventRow
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+eventColumns+` FROM task_events WHERE task_id = ? ORDER BY created, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("select task events: %w", err)
	}
	return toModels(rows), nil
}

// DeleteForTask removes a task's history. Only task deletion calls it.
func DeleteForTask(ctx context.Context, tx sqlx.ExecerContext, taskID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_events WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete task events: %w", err)
	}
	return nil
}

func toModels(rows []eventRow) []models.TaskEvent {
	out := make([]models.TaskEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}

// Log reads history through the storage gate.
type Log struct {
	store *sqlite.Store
}

// NewLog builds a reader over store.
func NewLog(store *sqlite.Store) *Log {
	return &Log{store: store}
}

// ForTask returns the chronological history of one task.
func (l *Log) ForTask(ctx context.Context, taskID int64) ([]models.TaskEvent, error) {
	var out []models.TaskEvent
	err := l.store.Do(ctx, func(tx *sqlx.Tx) error {
		var err error
		out, err = ForTask(ctx, tx, taskID)
		return err
	})
	return out, err
}

// ForBoard returns the history of every task on a board, oldest first.
func (l *Log) ForBoard(ctx context.Context, boardID int64) ([]models.TaskEvent, error) {
	var out []models.TaskEvent
	err := l.store.Do(ctx, func(tx *sqlx.Tx) error {
		var rows []eventRow
		err := tx.SelectContext(ctx, &rows,
			`SELECT e.id, e.task_id, e.user_id, e.created, e.description, e.change_field, e.change_old, e.change_new
             FROM task_events e
             JOIN tasks t ON t.id = e.task_id
             WHERE t.board_id = ?
             ORDER BY e.created, e.id`, boardID)
		if err != nil {
			return fmt.Errorf("select board events: %w", err)
		}
		out = toModels(rows)
		return nil
	})
	return out, err
}
