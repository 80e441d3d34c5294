package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/services"
)

type credentialsRequest struct {
	Username string         `json:"username"`
	Password string         `json:"password"`
	Profile  map[string]any `json:"profile"`
}

type userResponse struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Profile   map[string]any `json:"profile"`
	CreatedAt time.Time      `json:"created_at"`
	LastLogin *time.Time     `json:"last_login"`
}

func newUserResponse(u *models.User) userResponse {
	profile := u.Profile
	if profile == nil {
		profile = map[string]any{}
	}
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Profile:   profile,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

type sessionResponse struct {
	Success   bool         `json:"success"`
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func newSessionResponse(u *models.User, sess *services.Session) sessionResponse {
	return sessionResponse{
		Success:   true,
		User:      newUserResponse(u),
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in credentialsRequest
	if err := decodeBody(r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request")
		return
	}

	u, err := s.auth.Register(ctx, in.Username, in.Password, in.Profile)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}

	// Enrollment is bounded by the worker client's deadline and must not
	// hold up the sign-up response.
	go s.dash.EnrollUser(context.WithoutCancel(ctx), u.Username)

	sess, err := s.auth.Login(ctx, in.Username, in.Password)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}

	s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	s.logger.Info(ctx, "user registered", "username", u.Username)
	writeJSON(w, http.StatusCreated, newSessionResponse(u, sess))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in credentialsRequest
	if err := decodeBody(r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request")
		return
	}

	sess, err := s.auth.Login(ctx, in.Username, in.Password)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}

	u, err := s.dash.CurrentUser(ctx, sess.Token)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}

	s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	s.logger.Info(ctx, "user logged in", "username", u.Username)
	writeJSON(w, http.StatusOK, newSessionResponse(u, sess))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.auth.Logout(ctx, tokenFrom(r)); err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u, err := s.dash.CurrentUser(ctx, tokenFrom(r))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": newUserResponse(u)})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u, err := s.dash.CurrentUser(ctx, tokenFrom(r))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": u.Username,
		"profile": newUserResponse(u).Profile,
	})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u, err := s.dash.CurrentUser(ctx, tokenFrom(r))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}

	var in struct {
		Profile map[string]any `json:"profile"`
	}
	if err := decodeBody(r, &in, false); err != nil || in.Profile == nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request")
		return
	}

	updated, err := s.auth.UpdateProfile(ctx, u.Username, in.Profile)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user_id": updated.Username,
		"profile": newUserResponse(updated).Profile,
	})
}
