package board

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tracker/internal/models"
)

type userRoleRow struct {
	ID             int64         `db:"id"`
	BoardID        int64         `db:"board_id"`
	UserID         int64         `db:"user_id"`
	Role           string        `db:"role"`
	State          string        `db:"state"`
	InvitationFrom int64         `db:"invitation_from"`
	Created        int64         `db:"created"`
	Modified       sql.NullInt64 `db:"modified"`
}

func (r userRoleRow) toModel() models.UserRole {
	ur := models.UserRole{
		ID:        r.ID,
		BoardID:   r.BoardID,
		UserID:    r.UserID,
		Role:      models.Role(r.Role),
		State:     models.InvitationState(r.State),
		InvitedBy: r.InvitationFrom,
		Created:   r.Created,
	}
	if r.Modified.Valid {
		v := r.Modified.Int64
		ur.Modified = &v
	}
	return ur
}

// SetUserRole grants role to grantee on the board. An existing row is
// overwritten and its state reset to invited, so every change needs a fresh
// acceptance. Authorization is the caller's responsibility.
func (r *Registry) SetUserRole(ctx context.Context, actor models.User, boardID, granteeID int64, role models.Role) (models.UserRole, error) {
	var out models.UserRole
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		if _, err := Load(ctx, tx, boardID); err != nil {
			return err
		}
		if err := ensureUser(ctx, tx, granteeID); err != nil {
			return err
		}
		rid, err := roleID(ctx, tx, role)
		if err != nil {
			return err
		}

		now := r.store.Now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO board_users(board_id, user_id, role_id, state, invitation_from, created)
             VALUES(?, ?, ?, 'invited', ?, ?)
             ON CONFLICT(board_id, user_id) DO UPDATE SET
               role_id = excluded.role_id,
               state = 'invited',
               invitation_from = excluded.invitation_from,
               modified = excluded.created`,
			boardID, granteeID, rid, actor.ID, now,
		); err != nil {
			return fmt.Errorf("set board user role: %w", err)
		}

		out, err = loadUserRole(ctx, tx, boardID, granteeID)
		return err
	})
	return out, err
}

// AcceptUserRole moves the user's own pending invitation to accepted.
func (r *Registry) AcceptUserRole(ctx context.Context, boardID, userID int64) (models.UserRole, error) {
	return r.answer(ctx, "accept user role", boardID, userID, models.StateAccepted)
}

// DeclineUserRole moves the user's own pending invitation to declined.
func (r *Registry) DeclineUserRole(ctx context.Context, boardID, userID int64) (models.UserRole, error) {
	return r.answer(ctx, "decline user role", boardID, userID, models.StateDeclined)
}

func (r *Registry) answer(ctx context.Context, op string, boardID, userID int64, state models.InvitationState) (models.UserRole, error) {
	var out models.UserRole
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		current, err := loadUserRole(ctx, tx, boardID, userID)
		if err != nil {
			return err
		}
		if current.State != models.StateInvited {
			return models.InvalidState(op, "invitation is %s, not pending", current.State)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE board_users SET state = ?, modified = ? WHERE board_id = ? AND user_id = ?`,
			string(state), r.store.Now(), boardID, userID,
		); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		out, err = loadUserRole(ctx, tx, boardID, userID)
		return err
	})
	return out, err
}

// GetUserRole returns the user's row on the board whatever its state.
func (r *Registry) GetUserRole(ctx context.Context, boardID, userID int64) (models.UserRole, error) {
	var out models.UserRole
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		var err error
		out, err = loadUserRole(ctx, tx, boardID, userID)
		return err
	})
	return out, err
}

// DeleteUserRole removes a user from the board.
func (r *Registry) DeleteUserRole(ctx context.Context, boardID, userID int64) error {
	return r.store.Do(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM board_users WHERE board_id = ? AND user_id = ?`, boardID, userID)
		if err != nil {
			return fmt.Errorf("delete board user role: %w", err)
		}
		return mustAffect(res, "delete user role", "role")
	})
}

type shareRequestRow struct {
	BoardCreator string `db:"board_creator"`
	BoardSymbol  string `db:"board_symbol"`
	BoardName    string `db:"board_name"`
	Role         string `db:"role"`
}

// ShareRequests lists pending invitations received by userID.
func (r *Registry) ShareRequests(ctx context.Context, userID int64) ([]models.ShareRequest, error) {
	var out []models.ShareRequest
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		var rows []shareRequestRow
		if err := tx.SelectContext(ctx, &rows, shareRequestsQuery, userID); err != nil {
			return fmt.Errorf("list share requests: %w", err)
		}
		out = make([]models.ShareRequest, 0, len(rows))
		for _, row := range rows {
			out = append(out, models.ShareRequest{
				BoardCreator: row.BoardCreator,
				BoardSymbol:  row.BoardSymbol,
				BoardName:    row.BoardName,
				Role:         models.Role(row.Role),
			})
		}
		return nil
	})
	return out, err
}

type memberRow struct {
	BoardCreator string `db:"board_creator"`
	BoardSymbol  string `db:"board_symbol"`
	Username     string `db:"username"`
	Role         string `db:"role"`
	IsActive     bool   `db:"is_active"`
	State        string `db:"state"`
}

// BoardUserRoles lists every member row of the board with its invitation state.
func (r *Registry) BoardUserRoles(ctx context.Context, boardID int64) ([]models.BoardUserRoleSummary, error) {
	var out []models.BoardUserRoleSummary
	err := r.store.Do(ctx, func(tx *sqlx.Tx) error {
		var rows []memberRow
		if err := tx.SelectContext(ctx, &rows, boardUserRolesQuery, boardID); err != nil {
			return fmt.Errorf("list board user roles: %w", err)
		}
		out = make([]models.BoardUserRoleSummary, 0, len(rows))
		for _, row := range rows {
			out = append(out, models.BoardUserRoleSummary{
				BoardCreator: row.BoardCreator,
				BoardSymbol:  row.BoardSymbol,
				Username:     row.Username,
				Role:         models.Role(row.Role),
				IsActive:     row.IsActive,
				State:        models.InvitationState(row.State),
			})
		}
		return nil
	})
	return out, err
}

func loadUserRole(ctx context.Context, q sqlx.QueryerContext, boardID, userID int64) (models.UserRole, error) {
	var row userRoleRow
	err := sqlx.GetContext(ctx, q, &row, selectUserRoleQuery, boardID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserRole{}, models.NotFound("get user role", "role")
	}
	if err != nil {
		return models.UserRole{}, fmt.Errorf("get user role: %w", err)
	}
	return row.toModel(), nil
}
