package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sleepsupervisor/internal/common"
	"github.com/dmitrijs2005/sleepsupervisor/internal/dbx"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func isUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqlErr.Error(), "UNIQUE")
	}
	return false
}

// SQLiteRepository stores timestamps as unix milliseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, user *models.User) error {
	profile, err := encodeProfile(user.Profile)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, salt, profile, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.PasswordHash, user.Salt, string(profile), user.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("failed to insert user %s: %w", user.Username, err)
	}
	return nil
}

func (r *SQLiteRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var (
		user      models.User
		profile   string
		createdAt int64
		lastLogin sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, salt, profile, created_at, last_login
		FROM users WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Salt, &profile, &createdAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}

	if user.Profile, err = decodeProfile([]byte(profile)); err != nil {
		return nil, err
	}
	user.CreatedAt = time.UnixMilli(createdAt)
	if lastLogin.Valid {
		t := time.UnixMilli(lastLogin.Int64)
		user.LastLogin = &t
	}
	return &user, nil
}

func (r *SQLiteRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE username = ?`, at.UnixMilli(), username)
	if err != nil {
		return fmt.Errorf("failed to update last login for %s: %w", username, err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, username string, profile map[string]any) error {
	b, err := encodeProfile(profile)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET profile = ? WHERE username = ?`, string(b), username)
	if err != nil {
		return fmt.Errorf("failed to update profile for %s: %w", username, err)
	}
	return requireAffected(res)
}
