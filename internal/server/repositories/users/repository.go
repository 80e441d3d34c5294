// Package users is the credential store: persisted user records keyed by
// username, with memory, SQLite and PostgreSQL implementations.
package users

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
)

// Repository is safe for concurrent use. Reads may run in parallel; writes to
// the same username are serialized by the implementation.
type Repository interface {
	// FindByUsername returns common.ErrorNotFound when no such user exists.
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// Insert stores a new user. It returns common.ErrConflict if the username
	// is already taken; the existing record is left untouched.
	Insert(ctx context.Context, user *models.User) error

	// UpdateLastLogin and UpdateProfile return common.ErrorNotFound for unknown users.
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
	UpdateProfile(ctx context.Context, username string, profile map[string]any) error
}

func encodeProfile(profile map[string]any) ([]byte, error) {
	if profile == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return b, nil
}

func decodeProfile(b []byte) (map[string]any, error) {
	profile := map[string]any{}
	if len(b) == 0 {
		return profile, nil
	}
	if err := json.Unmarshal(b, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}
