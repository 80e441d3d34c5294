package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sleepsupervisor/internal/common"
	"github.com/dmitrijs2005/sleepsupervisor/internal/dbx"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, user *models.User) error {
	profile, err := encodeProfile(user.Profile)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO users (id, username, password_hash, salt, profile, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `

	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Salt, string(profile), user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, salt, profile, created_at, last_login FROM users
		 WHERE username = $1
		 `

	user := &models.User{}
	var (
		profile   []byte
		lastLogin sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Salt, &profile, &user.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if user.Profile, err = decodeProfile(profile); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}

	return user, nil
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	query := `UPDATE users SET last_login = $1 WHERE username = $2`

	res, err := r.db.ExecContext(ctx, query, at, username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, username string, profile map[string]any) error {
	b, err := encodeProfile(profile)
	if err != nil {
		return err
	}

	query := `UPDATE users SET profile = $1 WHERE username = $2`

	res, err := r.db.ExecContext(ctx, query, string(b), username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
