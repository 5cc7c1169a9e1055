package task

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"tracker/internal/access"
	"tracker/internal/models"
)

// Filter narrows a summary listing. Zero fields are ignored.
type Filter struct {
	BoardID    int64
	AssigneeID int64
	Status     string

	// VisibleTo restricts results to tasks on boards this user created or holds
	// an accepted role on.
	VisibleTo int64
}

type summaryRow struct {
	TaskID       int64          `db:"task_id"`
	BoardCreator string         `db:"board_creator"`
	Symbol       string         `db:"symbol"`
	Number       int64          `db:"number"`
	Title        string         `db:"title"`
	Status       sql.NullString `db:"status"`
	Creator      string         `db:"creator"`
	Assignee     sql.NullString `db:"assignee"`
	TagCount     int64          `db:"tag_count"`
	CommentCount int64          `db:"comment_count"`
	LastUpdated  int64          `db:"last_updated"`
}

func summaryQuery(f Filter) sq.SelectBuilder {
	q := sq.Select(
		"t.id AS task_id",
		"bc.username AS board_creator",
		"b.symbol AS symbol",
		"t.number AS number",
		"t.title AS title",
		"s.name AS status",
		"c.username AS creator",
		"a.username AS assignee",
		"(SELECT COUNT(1) FROM task_tags tt WHERE tt.task_id = t.id) AS tag_count",
		"(SELECT COUNT(1) FROM task_comments tc WHERE tc.task_id = t.id) AS comment_count",
		"COALESCE(t.modified, t.created) AS last_updated",
	).
		From("tasks t").
		Join("boards b ON b.id = t.board_id").
		Join("users bc ON bc.id = b.creator_id").
		Join("users c ON c.id = t.creator_id").
		LeftJoin("users a ON a.id = t.assignee_id").
		LeftJoin("task_statuses s ON s.id = t.status_id").
		OrderBy("b.id", "t.number")

	if f.BoardID != 0 {
		q = q.Where(sq.Eq{"t.board_id": f.BoardID})
	}
	if f.AssigneeID != 0 {
		q = q.Where(sq.Eq{"t.assignee_id": f.AssigneeID})
	}
	if f.VisibleTo != 0 {
		q = q.Where(access.VisibleTo("t", "b", f.VisibleTo))
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"s.name": f.Status})
	}
	return q
}

// Summaries lists denormalized task rows matching f, ordered by board then number.
func (e *Engine) Summaries(ctx context.Context, f Filter) ([]models.TaskSummary, error) {
	query, args, err := summaryQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build summary query: %w", err)
	}

	var rows []summaryRow
	err = e.store.Do(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("select task summaries: %w", err)
	}

	out := make([]models.TaskSummary, 0, len(rows))
	for _, r := range rows {
		s := models.TaskSummary{
			TaskID:       r.TaskID,
			BoardCreator: r.BoardCreator,
			Symbol:       r.Symbol,
			Number:       r.Number,
			Title:        r.Title,
			Status:       r.Status.String,
			Creator:      r.Creator,
			TagCount:     r.TagCount,
			CommentCount: r.CommentCount,
			LastUpdated:  r.LastUpdated,
		}
		if r.Assignee.Valid {
			s.Assignee = models.StringPtr(r.Assignee.String)
		}
		out = append(out, s)
	}
	return out, nil
}

// BoardTasks lists the summaries of one board's tasks.
func (e *Engine) BoardTasks(ctx context.Context, boardID int64) ([]models.TaskSummary, error) {
	return e.Summaries(ctx, Filter{BoardID: boardID})
}

// UserTasks lists the tasks assigned to userID that the user can still see.
func (e *Engine) UserTasks(ctx context.Context, userID int64) ([]models.TaskSummary, error) {
	return e.Summaries(ctx, Filter{AssigneeID: userID, VisibleTo: userID})
}
