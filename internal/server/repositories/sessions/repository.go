// Package sessions stores login sessions: a session id bound to one username
// until its expiry.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	// Find returns common.ErrorNotFound for unknown ids. Expired sessions are
	// still returned; the caller decides.
	Find(ctx context.Context, id string) (*models.Session, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	// DeleteExpired drops every session of username that expired before now.
	DeleteExpired(ctx context.Context, username string, now time.Time) error
}
