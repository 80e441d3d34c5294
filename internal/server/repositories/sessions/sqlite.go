package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sleepsupervisor/internal/common"
	"github.com/dmitrijs2005/sleepsupervisor/internal/dbx"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
)

// SQLiteRepository stores timestamps as unix milliseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, s *models.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, username, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, s.ID, s.Username, s.CreatedAt.UnixMilli(), s.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert session for %s: %w", s.Username, err)
	}
	return nil
}

func (r *SQLiteRepository) Find(ctx context.Context, id string) (*models.Session, error) {
	var (
		s                    models.Session
		createdAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, created_at, expires_at FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.Username, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s.CreatedAt = time.UnixMilli(createdAt)
	s.ExpiresAt = time.UnixMilli(expiresAt)
	return &s, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpired(ctx context.Context, username string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE username = ? AND expires_at <= ?`, username, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to purge sessions for %s: %w", username, err)
	}
	return nil
}
