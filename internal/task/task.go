// Package task owns task identity, status, assignment, comments and tags, and
// records an audit event for every mutation.
//
// The engine enforces referential and uniqueness rules only. Callers check
// permissions with the access guard before mutating.
package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"tracker/internal/auth"
	"tracker/internal/events"
	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
)

// Event field names.
const (
	FieldStatus   = "status"
	FieldAssignee = "assignee"
	FieldTitle    = "title"
	FieldBody     = "body"
	FieldComment  = "comment"
	FieldTag      = "tag"
)

// Engine performs task mutations, each as a single unit of work that returns
// the refreshed aggregate.
type Engine struct {
	store *sqlite.Store
}

// NewEngine builds an engine over store.
func NewEngine(store *sqlite.Store) *Engine {
	return &Engine{store: store}
}

// Create allocates the board's next task number and persists the task with its
// status set, current status todo, and a "created task" event.
func (e *Engine) Create(ctx context.Context, boardID int64, creator models.User, title, body string, assigneeID *int64) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, models.InvalidArgument("create task", "title must not be empty")
	}

	var out models.Task
	err := e.store.Do(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE boards SET task_seq = task_seq + 1 WHERE id = ?`, boardID)
		if err != nil {
			return fmt.Errorf("increment task sequence: %w", err)
		}
		if err := mustAffect(res, "create task", "board"); err != nil {
			return err
		}
		var number int64
		if err := tx.GetContext(ctx, &number, `SELECT task_seq FROM boards WHERE id = ?`, boardID); err != nil {
			return fmt.Errorf("select task sequence: %w", err)
		}

		if assigneeID != nil {
			if _, err := auth.UserByID(ctx, tx, *assigneeID); err != nil {
				return err
			}
		}

		now := e.store.Now()
		res, err = tx.ExecContext(ctx,
			`INSERT INTO tasks(number, board_id, creator_id, assignee_id, title, body, created)
             VALUES(?, ?, ?, ?, ?, ?, ?)`,
			number, boardID, creator.ID, assigneeID, title, body, now,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		taskID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("task id: %w", err)
		}

		var initial int64
		for i, name := range models.DefaultStatuses {
			res, err := tx.ExecContext(ctx, `INSERT INTO task_statuses(task_id, name) VALUES(?, ?)`, taskID, name)
			if err != nil {
				return fmt.Errorf("insert task status: %w", err)
			}
			if i == 0 {
				if initial, err = res.LastInsertId(); err != nil {
					return fmt.Errorf("task status id: %w", err)
				}
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status_id = ? WHERE id = ?`, initial, taskID); err != nil {
			return fmt.Errorf("set initial task status: %w", err)
		}

		if err := events.Append(ctx, tx, models.TaskEvent{
			TaskID:      taskID,
			UserID:      creator.ID,
			Created:     now,
			Description: events.DescCreated,
		}); err != nil {
			return err
		}

		out, err = load(ctx, tx, taskID)
		return err
	})
	return out, err
}

// Get loads a task by id.
func (e *Engine) Get(ctx context.Context, taskID int64) (models.Task, error) {
	var out models.Task
	err := e.store.Do(ctx, func(tx *sqlx.Tx) error {
		var err error
		out, err = load(ctx, tx, taskID)
		return err
	})
	return out, err
}

// GetByBoardNumber loads a task by its board and per-board number.
func (e *Engine) GetByBoardNumber(ctx context.Context, boardID, number int64) (models.Task, error) {
	var out models.Task
	err := e.store.Do(ctx, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.GetContext(ctx, &id, `SELECT id FROM tasks WHERE board_id = ? AND number = ?`, boardID, number)
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFound("get task", "task")
		}
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		out, err = load(ctx, tx, id)
		return err
	})
	return out, err
}

// ListByBoard loads every task of a board ordered by number.
func (e *Engine) ListByBoard(ctx context.Context, boardID int64) ([]models.Task, error) {
	var out []models.Task
	err := e.store.Do(ctx, func(tx *sqlx.Tx) error {
		var ids []int64
		if err := tx.SelectContext(ctx, &ids, `SELECT id FROM tasks WHERE board_id = ? ORDER BY number`, boardID); err != nil {
			return fmt.Errorf("list board tasks: %w", err)
		}
		out = make([]models.Task, 0, len(ids))
		for _, id := range ids {
			t, err := load(ctx, tx, id)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

// Statuses returns the task's whole status set.
func (e *Engine) Statuses(ctx context.Context, taskID int64) ([]models.TaskStatus, error) {
	var out []models.TaskStatus
	err := e.store.Do(ctx, func(tx *sqlx.Tx) error {
		var err error
		out, err = loadStatuses(ctx, tx, taskID)
		return err
	})
	return out, err
}

// mutate runs fn against the current aggregate and returns the reloaded task.
func (e *Engine) mutate(ctx context.Context, taskID int64, fn func(tx *sqlx.Tx, current models.Task, now int64) error) (models.Task, error) {
	var out models.Task
	err := e.store.Do(ctx, func(tx *sqlx.Tx) error {
		current, err := load(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := fn(tx, current, e.store.Now()); err != nil {
			return err
		}
		out, err = load(ctx, tx, taskID)
		return err
	})
	return out, err
}

func appendChange(ctx context.Context, tx *sqlx.Tx, taskID, userID, now int64, desc, field string, oldVal, newVal *string) error {
	return events.Append(ctx, tx, models.TaskEvent{
		TaskID:      taskID,
		UserID:      userID,
		Created:     now,
		Description: desc,
		ChangeField: models.StringPtr(field),
		ChangeOld:   oldVal,
		ChangeNew:   newVal,
	})
}

// SetStatus points the task at the named status of its own set. Any status in
// the set is reachable from any other.
func (e *Engine) SetStatus(ctx context.Context, actor models.User, taskID int64, name string) (models.Task, error) {
	return e.mutate(ctx, taskID, func(tx *sqlx.Tx, current models.Task, now int64) error {
		var statusID int64
		err := tx.GetContext(ctx, &statusID, `SELECT id FROM task_statuses WHERE task_id = ? AND name = ?`, taskID, name)
		if errors.Is(err, sql.ErrNoRows) {
			return models.InvalidState("set task status", "no such status %q", name)
		}
		if err != nil {
			return fmt.Errorf("get task status: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status_id = ?, modified = ? WHERE id = ?`, statusID, now, taskID); err != nil {
			return fmt.Errorf("set task status: %w", err)
		}
		var old *string
		if current.Status.ID != 0 {
			old = models.StringPtr(strconv.FormatInt(current.Status.ID, 10))
		}
		return appendChange(ctx, tx, taskID, actor.ID, now, events.DescUpdate, FieldStatus,
			old, models.StringPtr(strconv.FormatInt(statusID, 10)))
	})
}

// SetAssignee assigns the task to assigneeID, or unassigns it when nil. The
// event records usernames rather than ids.
func (e *Engine) SetAssignee(ctx context.Context, actor models.User, taskID int64, assigneeID *int64) (models.Task, error) {
	return e.mutate(ctx, taskID, func(tx *sqlx.Tx, current models.Task, now int64) error {
		var oldName, newName *string
		if current.AssigneeID != nil {
			if prev, err := auth.UserByID(ctx, tx, *current.AssigneeID); err == nil {
				oldName = models.StringPtr(prev.Username)
			} else if !errors.Is(err, models.ErrNotFound) {
				return err
			}
		}
		if assigneeID != nil {
			next, err := auth.UserByID(ctx, tx, *assigneeID)
			if err != nil {
				return err
			}
			newName = models.StringPtr(next.Username)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET assignee_id = ?, modified = ? WHERE id = ?`, assigneeID, now, taskID); err != nil {
			return fmt.Errorf("set task assignee: %w", err)
		}
		return appendChange(ctx, tx, taskID, actor.ID, now, events.DescUpdate, FieldAssignee, oldName, newName)
	})
}

// SetTitle replaces the title.
func (e *Engine) SetTitle(ctx context.Context, actor models.User, taskID int64, title string) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, models.InvalidArgument("set task title", "title must not be empty")
	}
	return e.mutate(ctx, taskID, func(tx *sqlx.Tx, current models.Task, now int64) error {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET title = ?, modified = ? WHERE id = ?`, title, now, taskID); err != nil {
			return fmt.Errorf("set task title: %w", err)
		}
		return appendChange(ctx, tx, taskID, actor.ID, now, events.DescUpdate, FieldTitle,
			models.StringPtr(current.Title), models.StringPtr(title))
	})
}

// SetBody replaces the main text.
func (e *Engine) SetBody(ctx context.Context, actor models.User, taskID int64, body string) (models.Task, error) {
	return e.mutate(ctx, taskID, func(tx *sqlx.Tx, current models.Task, now int64) error {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET body = ?, modified = ? WHERE id = ?`, body, now, taskID); err != nil {
			return fmt.Errorf("set task body: %w", err)
		}
		return appendChange(ctx, tx, taskID, actor.ID, now, events.DescUpdate, FieldBody,
			models.StringPtr(current.Body), models.StringPtr(body))
	})
}

// Delete removes the task with its comments, statuses, tags and events. No event
// is kept for the deletion itself.
func (e *Engine) Delete(ctx context.Context, actor models.User, taskID int64) error {
	return e.store.Do(ctx, func(tx *sqlx.Tx) error {
		if _, err := load(ctx, tx, taskID); err != nil {
			return err
		}
		for _, step := range []string{
			`DELETE FROM task_comments WHERE task_id = ?`,
			`DELETE FROM task_statuses WHERE task_id = ?`,
			`DELETE FROM task_tags WHERE task_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, step, taskID); err != nil {
				return fmt.Errorf("delete task: %w", err)
			}
		}
		if err := events.DeleteForTask(ctx, tx, taskID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

func mustAffect(res sql.Result, op, entity string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.NotFound(op, entity)
	}
	return nil
}
