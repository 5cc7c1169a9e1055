// Package board owns board identity, each board's status set, and the
// board-user role and invitation table.
package board

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"tracker/internal/auth"
	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
)

type boardRow struct {
	ID        int64         `db:"id"`
	CreatorID int64         `db:"creator_id"`
	Creator   string        `db:"creator"`
	Symbol    string        `db:"symbol"`
	TaskSeq   int64         `db:"task_seq"`
	StatusID  sql.NullInt64 `db:"status_id"`
	Name      string        `db:"name"`
	Created   int64         `db:"created"`
	Modified  sql.NullInt64 `db:"modified"`
}

type statusRow struct {
	ID      int64  `db:"id"`
	BoardID int64  `db:"board_id"`
	Name    string `db:"name"`
}

// Registry creates, loads and mutates boards and their memberships.
type Registry struct {
	store *sqlite.Store
}

// NewRegistry builds a registry over store.
func NewRegistry(store *sqlite.Store) *Registry {
	return &Registry{store: store}
}

// CreateBoard persists a board as one unit of work:
//  1. insert the board row, failing with Conflict if the creator already owns symbol;
//  2. seed the status set (todo, in-progress, completed);
//  3. point the current status at todo;
//  4. grant the creator an accepted manager role.
func (r *Registry) CreateBoard(ctx context.Context, symbol, name string, creator models.User) (models.Board, error) {
	symbol, name = strings.TrimSpace(symbol), strings.TrimSpace(name)
	if symbol == "" {
		return models.Board{}, models.InvalidArgument("create board", "symbol must not be empty")
	}
	if name == "" {
		return models.Board{}, models.InvalidArgument("create board", "name must not be empty")
	}

	var board models.Board
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		now := r.store.Now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO boards(creator_id, symbol, name, created) VALUES(?, ?, ?, ?)`,
			creator.ID, symbol, name, now,
		)
		if sqlite.IsUniqueViolation(err) {
			return models.Conflict("create board", "symbol", err)
		}
		if err != nil {
			return fmt.Errorf("insert board: %w", err)
		}
		boardID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("board id: %w", err)
		}

		var initial int64
		for i, status := range models.DefaultStatuses {
			res, err := tx.ExecContext(ctx, `INSERT INTO board_statuses(board_id, name) VALUES(?, ?)`, boardID, status)
			if err != nil {
				return fmt.Errorf("insert board status: %w", err)
			}
			if i == 0 {
				if initial, err = res.LastInsertId(); err != nil {
					return fmt.Errorf("board status id: %w", err)
				}
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE boards SET status_id = ? WHERE id = ?`, initial, boardID); err != nil {
			return fmt.Errorf("set initial board status: %w", err)
		}

		managerID, err := roleID(ctx, tx, models.RoleManager)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO board_users(board_id, user_id, role_id, state, invitation_from, created)
             VALUES(?, ?, ?, 'accepted', ?, ?)`,
			boardID, creator.ID, managerID, creator.ID, now,
		); err != nil {
			return fmt.Errorf("grant creator role: %w", err)
		}

		board, err = Load(ctx, tx, boardID)
		return err
	})
	return board, err
}

// Get loads a board by id.
func (r *Registry) Get(ctx context.Context, boardID int64) (models.Board, error) {
	var board models.Board
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		var err error
		board, err = Load(ctx, tx, boardID)
		return err
	})
	return board, err
}

// GetByCreatorSymbol loads a board by its natural key.
func (r *Registry) GetByCreatorSymbol(ctx context.Context, creatorID int64, symbol string) (models.Board, error) {
	var board models.Board
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.GetContext(ctx, &id, `SELECT id FROM boards WHERE creator_id = ? AND symbol = ?`, creatorID, symbol)
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFound("get board", "board")
		}
		if err != nil {
			return fmt.Errorf("get board: %w", err)
		}
		board, err = Load(ctx, tx, id)
		return err
	})
	return board, err
}

// Rename changes the board's display name.
func (r *Registry) Rename(ctx context.Context, boardID int64, name string) (models.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Board{}, models.InvalidArgument("rename board", "name must not be empty")
	}
	return r.update(ctx, "rename board", boardID, `UPDATE boards SET name = ?, modified = ? WHERE id = ?`, name)
}

// SetSymbol changes the board's symbol. The creator may not own two boards with the same symbol.
func (r *Registry) SetSymbol(ctx context.Context, boardID int64, symbol string) (models.Board, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return models.Board{}, models.InvalidArgument("set board symbol", "symbol must not be empty")
	}
	return r.update(ctx, "set board symbol", boardID, `UPDATE boards SET symbol = ?, modified = ? WHERE id = ?`, symbol)
}

func (r *Registry) update(ctx context.Context, op string, boardID int64, query string, value string) (models.Board, error) {
	var board models.Board
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, value, r.store.Now(), boardID)
		if sqlite.IsUniqueViolation(err) {
			return models.Conflict(op, "symbol", err)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := mustAffect(res, op, "board"); err != nil {
			return err
		}
		board, err = Load(ctx, tx, boardID)
		return err
	})
	return board, err
}

// SetStatus moves the board's current status pointer. Status rows are never deleted.
func (r *Registry) SetStatus(ctx context.Context, boardID int64, status string) (models.Board, error) {
	var board models.Board
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		if _, err := Load(ctx, tx, boardID); err != nil {
			return err
		}
		var statusID int64
		err := tx.GetContext(ctx, &statusID,
			`SELECT id FROM board_statuses WHERE board_id = ? AND name = ?`, boardID, status)
		if errors.Is(err, sql.ErrNoRows) {
			return models.InvalidState("set board status", "no such status %q", status)
		}
		if err != nil {
			return fmt.Errorf("get board status: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE boards SET status_id = ?, modified = ? WHERE id = ?`,
			statusID, r.store.Now(), boardID); err != nil {
			return fmt.Errorf("set board status: %w", err)
		}
		board, err = Load(ctx, tx, boardID)
		return err
	})
	return board, err
}

// Delete removes the board with its tasks, statuses and roles. It is irreversible.
func (r *Registry) Delete(ctx context.Context, boardID int64) error {
	return r.store.Do(ctx, func(tx *sqlx.Tx) error {
		if _, err := Load(ctx, tx, boardID); err != nil {
			return err
		}
		for _, step := range deleteBoardSteps {
			if _, err := tx.ExecContext(ctx, step, boardID); err != nil {
				return fmt.Errorf("delete board: %w", err)
			}
		}
		return nil
	})
}

// BoardUsers lists the usernames of active members with an accepted role.
func (r *Registry) BoardUsers(ctx context.Context, boardID int64) ([]string, error) {
	var names []string
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &names, boardUsersQuery, boardID); err != nil {
			return fmt.Errorf("list board users: %w", err)
		}
		return nil
	})
	return names, err
}

type summaryRow struct {
	ID          int64  `db:"id"`
	Symbol      string `db:"symbol"`
	Name        string `db:"name"`
	Status      string `db:"status"`
	CreatorID   int64  `db:"creator_id"`
	Creator     string `db:"creator"`
	Role        string `db:"role"`
	LastUpdated int64  `db:"last_updated"`
	TaskCount   int64  `db:"task_count"`
	UserCount   int64  `db:"user_count"`
}

// UserBoards summarizes the boards on which userID holds an accepted role.
func (r *Registry) UserBoards(ctx context.Context, userID int64) ([]models.BoardSummary, error) {
	var out []models.BoardSummary
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		var rows []summaryRow
		if err := tx.SelectContext(ctx, &rows, userBoardsQuery, userID); err != nil {
			return fmt.Errorf("list user boards: %w", err)
		}
		out = make([]models.BoardSummary, 0, len(rows))
		for _, row := range rows {
			out = append(out, models.BoardSummary{
				ID:          row.ID,
				Symbol:      row.Symbol,
				Name:        row.Name,
				Status:      row.Status,
				CreatorID:   row.CreatorID,
				Creator:     row.Creator,
				Role:        models.Role(row.Role),
				LastUpdated: row.LastUpdated,
				TaskCount:   row.TaskCount,
				UserCount:   row.UserCount,
			})
		}
		return nil
	})
	return out, err
}

// Load reads the full board aggregate inside an existing unit of work.
func Load(ctx context.Context, q sqlx.QueryerContext, boardID int64) (models.Board, error) {
	var row boardRow
	err := sqlx.GetContext(ctx, q, &row, selectBoardQuery+`WHERE b.id = ?`, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, models.NotFound("get board", "board")
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("get board: %w", err)
	}

	var statuses []statusRow
	if err := sqlx.SelectContext(ctx, q, &statuses,
		`SELECT id, board_id, name FROM board_statuses WHERE board_id = ? ORDER BY id`, boardID); err != nil {
		return models.Board{}, fmt.Errorf("select board statuses: %w", err)
	}

	board := models.Board{
		ID:               row.ID,
		Symbol:           row.Symbol,
		Name:             row.Name,
		CreatorID:        row.CreatorID,
		Creator:          row.Creator,
		Created:          row.Created,
		TaskSeq:          row.TaskSeq,
		PossibleStatuses: make([]models.BoardStatus, 0, len(statuses)),
	}
	if row.Modified.Valid {
		v := row.Modified.Int64
		board.Modified = &v
	}
	for _, st := range statuses {
		status := models.BoardStatus{ID: st.ID, BoardID: st.BoardID, Name: st.Name}
		if row.StatusID.Valid && st.ID == row.StatusID.Int64 {
			board.CurrentStatus = status
			continue
		}
		board.PossibleStatuses = append(board.PossibleStatuses, status)
	}
	return board, nil
}

func roleID(ctx context.Context, q sqlx.QueryerContext, role models.Role) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM roles WHERE name = ?`, string(role))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.NotFound("get role", "role")
	}
	if err != nil {
		return 0, fmt.Errorf("get role: %w", err)
	}
	return id, nil
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

// ensureUser fails with NotFound when id does not exist.
func ensureUser(ctx context.Context, q sqlx.QueryerContext, id int64) error {
	_, err := auth.UserByID(ctx, q, id)
	return err
}
