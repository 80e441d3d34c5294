// Package services contains the supervisor's business logic. AuthService
// owns registration, login and the session table.
package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/sleepsupervisor/internal/common"
	"github.com/dmitrijs2005/sleepsupervisor/internal/cryptox"
	"github.com/dmitrijs2005/sleepsupervisor/internal/logging"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/auth"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/config"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/users"
	"github.com/google/uuid"
)

// hashing seams; tests swap in cheaper functions
var (
	hashPassword   = cryptox.HashPassword
	verifyPassword = cryptox.VerifyPassword
)

// Session is what a successful login hands to the presentation layer.
// Token is opaque to callers.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type AuthService struct {
	repomanager repomanager.RepositoryManager
	jwtSecret   []byte
	sessionTTL  time.Duration
	log         logging.Logger
	now         func() time.Time
}

func NewAuthService(m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *AuthService {
	return &AuthService{
		repomanager: m,
		jwtSecret:   []byte(cfg.SecretKey),
		sessionTTL:  cfg.SessionTTL,
		log:         log.With("module", "auth"),
		now:         time.Now,
	}
}

func validateCredentials(username, password string) error {
	if utf8.RuneCountInString(username) < common.MinUsernameLength {
		return fmt.Errorf("%w: username must be at least %d characters", common.ErrValidation, common.MinUsernameLength)
	}
	if utf8.RuneCountInString(password) < common.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, common.MinPasswordLength)
	}
	return nil
}

// Register creates a user. Input is validated before storage is touched.
// A taken username yields common.ErrUsernameTaken and leaves the existing
// record as it was.
func (s *AuthService) Register(ctx context.Context, username, password string, profile map[string]any) (*models.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users()

	_, err := repo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, common.ErrUsernameTaken
	case !errors.Is(err, common.ErrorNotFound):
		s.log.Error(ctx, "user lookup failed", "username", username, "error", err)
		return nil, common.ErrorInternal
	}

	salt := cryptox.NewSalt()
	if profile == nil {
		profile = map[string]any{}
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hashPassword([]byte(password), salt),
		Salt:         salt,
		Profile:      maps.Clone(profile),
		CreatedAt:    s.now().UTC(),
	}

	if err := repo.Insert(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.ErrUsernameTaken
		}
		s.log.Error(ctx, "user insert failed", "username", username, "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user registered", "username", username)
	return user, nil
}

// Login verifies the password and opens a new session. Unknown users and
// wrong passwords both yield common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	// The lookup and the hash check stay outside the transaction: argon2id
	// is slow, and on SQLite the transaction owns the only connection.
	user, err := s.repomanager.Users().FindByUsername(ctx, username)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		// keep the timing of unknown users close to a wrong password
		verifyPassword([]byte(password), cryptox.NewSalt(), nil)
		s.log.Info(ctx, "login rejected", "username", username)
		return nil, common.ErrInvalidCredentials
	case err != nil:
		s.log.Error(ctx, "login failed", "username", username, "error", err)
		return nil, common.ErrorInternal
	}
	if !verifyPassword([]byte(password), user.Salt, user.PasswordHash) {
		s.log.Info(ctx, "login rejected", "username", username)
		return nil, common.ErrInvalidCredentials
	}

	now := s.now().UTC()
	row := &models.Session{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	err = s.repomanager.WithinTx(ctx, func(ctx context.Context, u users.Repository, sr sessions.Repository) error {
		if err := u.UpdateLastLogin(ctx, username, now); err != nil {
			return err
		}
		if err := sr.DeleteExpired(ctx, username, now); err != nil {
			return err
		}
		return sr.Create(ctx, row)
	})
	if err != nil {
		s.log.Error(ctx, "login failed", "username", username, "error", err)
		return nil, common.ErrorInternal
	}

	token, err := auth.GenerateToken(row.ID, username, s.jwtSecret, row.CreatedAt, row.ExpiresAt)
	if err != nil {
		s.log.Error(ctx, "login failed", "username", username, "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user logged in", "username", username)
	return &Session{Token: token, Username: username, CreatedAt: row.CreatedAt, ExpiresAt: row.ExpiresAt}, nil
}

// Logout invalidates the session behind token. Unknown, expired or
// malformed tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil
	}
	if err := s.repomanager.Sessions().Delete(ctx, claims.ID); err != nil {
		s.log.Error(ctx, "session delete failed", "error", err)
		return common.ErrorInternal
	}
	s.log.Info(ctx, "user logged out", "username", claims.Subject)
	return nil
}

// CurrentUser resolves token to its user. It returns (nil, nil) whenever the
// token does not identify a live session; errors are storage failures only.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, nil
	}

	sr := s.repomanager.Sessions()
	session, err := sr.Find(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		s.log.Error(ctx, "session lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if session.Username != claims.Subject {
		return nil, nil
	}
	if session.Expired(s.now()) {
		if err := sr.Delete(ctx, session.ID); err != nil {
			s.log.Warn(ctx, "expired session cleanup failed", "error", err)
		}
		return nil, nil
	}

	user, err := s.repomanager.Users().FindByUsername(ctx, session.Username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		s.log.Error(ctx, "user lookup failed", "username", session.Username, "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

// UpdateProfile merges the given keys into the stored profile and returns
// the updated user.
func (s *AuthService) UpdateProfile(ctx context.Context, username string, profile map[string]any) (*models.User, error) {
	var updated *models.User

	err := s.repomanager.WithinTx(ctx, func(ctx context.Context, u users.Repository, _ sessions.Repository) error {
		user, err := u.FindByUsername(ctx, username)
		if err != nil {
			return err
		}
		if user.Profile == nil {
			user.Profile = map[string]any{}
		}
		maps.Copy(user.Profile, profile)
		if err := u.UpdateProfile(ctx, username, user.Profile); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		s.log.Error(ctx, "profile update failed", "username", username, "error", err)
		return nil, common.ErrorInternal
	}
	return updated, nil
}
