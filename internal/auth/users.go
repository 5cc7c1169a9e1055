// Package auth resolves users and verifies their passwords.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
)

const userColumns = `id, username, password, is_admin, is_active, created, modified`

type userRow struct {
	ID       int64         `db:"id"`
	Username string        `db:"username"`
	Password []byte        `db:"password"`
	IsAdmin  bool          `db:"is_admin"`
	IsActive bool          `db:"is_active"`
	Created  int64         `db:"created"`
	Modified sql.NullInt64 `db:"modified"`
}

func (r userRow) toModel() models.User {
	u := models.User{
		ID:       r.ID,
		Username: r.Username,
		Password: r.Password,
		IsAdmin:  r.IsAdmin,
		IsActive: r.IsActive,
		Created:  r.Created,
	}
	if r.Modified.Valid {
		v := r.Modified.Int64
		u.Modified = &v
	}
	return u
}

// Service owns user accounts.
type Service struct {
	store            *sqlite.Store
	hasher           Hasher
	allowNewAccounts bool
}

// NewService builds the account service. allowNewAccounts gates CreateUser.
func NewService(store *sqlite.Store, hasher Hasher, allowNewAccounts bool) *Service {
	return &Service{store: store, hasher: hasher, allowNewAccounts: allowNewAccounts}
}

// AllowsNewAccounts reports whether self sign-up is enabled.
func (s *Service) AllowsNewAccounts() bool {
	return s.allowNewAccounts
}

// CreateUser registers a regular, active account.
func (s *Service) CreateUser(ctx context.Context, username string, password []byte) (models.User, error) {
	if !s.allowNewAccounts {
		return models.User{}, models.PermissionDenied("create user", "sign up")
	}
	return s.create(ctx, username, password, false)
}

// CreateAdmin registers an administrator. It ignores the new-account switch.
func (s *Service) CreateAdmin(ctx context.Context, username string, password []byte) (models.User, error) {
	return s.create(ctx, username, password, true)
}

func (s *Service) create(ctx context.Context, username string, password []byte, admin bool) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, models.InvalidArgument("create user", "username must not be empty")
	}
	if len(password) == 0 {
		return models.User{}, models.InvalidArgument("create user", "password must not be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	err = s.store.Do(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users(username, password, is_admin, is_active, created) VALUES(?, ?, ?, 1, ?)`,
			username, hash, admin, s.store.Now(),
		)
		if sqlite.IsUniqueViolation(err) {
			return models.Conflict("create user", "username", err)
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("user id: %w", err)
		}
		user, err = UserByID(ctx, tx, id)
		return err
	})
	return user, err
}

// ByID loads a user by primary key.
func (s *Service) ByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := s.store.Do(ctx, func(tx *sqlx.Tx) error {
		var err error
		user, err = UserByID(ctx, tx, id)
		return err
	})
	return user, err
}

// ByUsername loads a user by unique username.
func (s *Service) ByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.store.Do(ctx, func(tx *sqlx.Tx) error {
		var err error
		user, err = UserByUsername(ctx, tx, username)
		return err
	})
	return user, err
}

// Resolve returns the active user for username. Inactive accounts are reported as not found.
func (s *Service) Resolve(ctx context.Context, username string) (models.User, error) {
	user, err := s.ByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if !user.IsActive {
		return models.User{}, models.NotFound("resolve user", "user")
	}
	return user, nil
}

// Authenticate resolves username and checks the password. Every failure looks the same
// to the caller.
func (s *Service) Authenticate(ctx context.Context, username string, password []byte) (models.User, error) {
	user, err := s.Resolve(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return models.User{}, models.NotFound("authenticate", "user")
	}
	if err != nil {
		return models.User{}, err
	}
	if !s.hasher.Verify(user.Password, password) {
		return models.User{}, models.NotFound("authenticate", "user")
	}
	return user, nil
}

// ListUsers returns every account ordered by username, for administrators.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.store.Do(ctx, func(tx *sqlx.Tx) error {
		var rows []userRow
		if err := tx.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY username`); err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		users = make([]models.User, 0, len(rows))
		for _, row := range rows {
			users = append(users, row.toModel())
		}
		return nil
	})
	return users, err
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (models.User, error) {
	var user models.User
	err := s.store.Do(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET is_active = ?, modified = ? WHERE id = ?`, active, s.store.Now(), id)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return models.NotFound("set user active", "user")
		}
		user, err = UserByID(ctx, tx, id)
		return err
	})
	return user, err
}

// UserByID loads a user inside an existing unit of work.
func UserByID(ctx context.Context, q sqlx.QueryerContext, id int64) (models.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.NotFound("get user", "user")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return row.toModel(), nil
}

// UserByUsername loads a user inside an existing unit of work.
func UserByUsername(ctx context.Context, q sqlx.QueryerContext, username string) (models.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.NotFound("get user", "user")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return row.toModel(), nil
}
