// Package access answers whether a user may act on a board.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
)

// Guard resolves effective roles and evaluates permissions.
type Guard struct {
	store *sqlite.Store
}

// NewGuard builds a guard over store.
func NewGuard(store *sqlite.Store) *Guard {
	return &Guard{store: store}
}

// RoleOf returns the user's accepted role on the board. Invited or declined
// rows grant nothing and report ok == false.
func (g *Guard) RoleOf(ctx context.Context, boardID, userID int64) (role models.Role, ok bool, err error) {
	err = g.store.Do(ctx, func(tx *sqlx.Tx) error {
		role, ok, err = AcceptedRole(ctx, tx, boardID, userID)
		return err
	})
	return role, ok, err
}

// Can reports whether userID may perform action on board. The creator passes
// every check without consulting the role table.
func (g *Guard) Can(ctx context.Context, board models.Board, userID int64, action models.Action) (bool, error) {
	if userID != 0 && userID == board.CreatorID {
		return true, nil
	}
	role, ok, err := g.RoleOf(ctx, board.ID, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return role.Permits(action), nil
}

// Require is Can that turns a refusal into a PermissionDenied error.
func (g *Guard) Require(ctx context.Context, board models.Board, userID int64, action models.Action) error {
	allowed, err := g.Can(ctx, board, userID, action)
	if err != nil {
		return err
	}
	if !allowed {
		return models.PermissionDenied("authorize", string(action))
	}
	return nil
}

// AcceptedRole looks up the accepted role inside an existing unit of work.
func AcceptedRole(ctx context.Context, q sqlx.QueryerContext, boardID, userID int64) (models.Role, bool, error) {
	var name string
	err := sqlx.GetContext(ctx, q, &name,
		`SELECT r.name FROM board_users bu
         JOIN roles r ON r.id = bu.role_id
         WHERE bu.board_id = ? AND bu.user_id = ? AND bu.state = 'accepted'`,
		boardID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get accepted role: %w", err)
	}
	return models.Role(name), true, nil
}

// VisibleTaskIDs selects the ids of every task userID may view: tasks on boards
// the user created or holds an accepted role on.
func VisibleTaskIDs(userID int64) sq.SelectBuilder {
	return sq.Select("t.id").
		From("tasks t").
		Join("boards b ON b.id = t.board_id").
		Where(VisibleTo("t", "b", userID))
}

// VisibleTo is the predicate behind VisibleTaskIDs for callers that build their
// own task query. taskAlias and boardAlias name the tasks and boards tables.
func VisibleTo(taskAlias, boardAlias string, userID int64) sq.Sqlizer {
	return sq.Or{
		sq.Eq{boardAlias + ".creator_id": userID},
		sq.Expr(taskAlias+".board_id IN (SELECT board_id FROM board_users WHERE user_id = ? AND state = ?)",
			userID, string(models.StateAccepted)),
	}
}
