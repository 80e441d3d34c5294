// Package httpapi is the JSON presentation surface. It resolves the session
// token from the "session" cookie or an Authorization bearer header and
// delegates everything else to the auth service and the orchestrator.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sleepsupervisor/internal/logging"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/config"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/dashboard"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/services"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/worker"
)

const shutdownTimeout = 10 * time.Second

type AuthService interface {
	Register(ctx context.Context, username, password string, profile map[string]any) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.Session, error)
	Logout(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, username string, profile map[string]any) (*models.User, error)
}

type Dashboard interface {
	CurrentUser(ctx context.Context, token string) (*models.User, error)
	GetDashboardView(ctx context.Context, token string) (*dashboard.DashboardView, error)
	Refresh(ctx context.Context, token string) (*dashboard.RefreshResult, error)
	TriggerAnalysis(ctx context.Context, token string, profile map[string]any, sleepSessions []map[string]any) (*worker.AnalysisAck, error)
	Memory(ctx context.Context, token string) (*dashboard.MemoryView, error)
	RegisterWithWorker(ctx context.Context, token string) (*worker.Ack, error)
	EnrollUser(ctx context.Context, username string)
	WorkerHealth(ctx context.Context) worker.WorkerHealth
}

type Server struct {
	address      string
	agentID      string
	agentName    string
	cookieSecure bool
	auth         AuthService
	dash         Dashboard
	logger       logging.Logger
	handler      http.Handler
}

func NewServer(cfg *config.Config, l logging.Logger, as AuthService, ds Dashboard) *Server {
	s := &Server{
		address:      cfg.ListenAddr,
		agentID:      cfg.AgentID,
		agentName:    cfg.AgentName,
		cookieSecure: cfg.CookieSecure,
		auth:         as,
		dash:         ds,
		logger:       l.With("module", "http"),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled. It returns only
// after in-flight requests have drained or shutdownTimeout has passed.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		serveErr <- srv.Serve(listen)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	<-serveErr
	if err != nil {
		s.logger.Error(ctx, "shutdown failed", "error", err)
		return err
	}
	return nil
}
