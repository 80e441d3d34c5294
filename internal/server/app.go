// Package server wires the supervisor together: storage, the auth service,
// the Worker Agent client, the orchestrator and the HTTP API. It also owns
// signal handling and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/sleepsupervisor/internal/logging"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/config"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/dashboard"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/httpapi"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/services"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/worker"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	authService *services.AuthService
	dashboard   *dashboard.Orchestrator
}

// NewApp opens storage (running migrations) and builds the services.
// Logs go to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {

	logger := logging.New(w, c.LogLevel, c.LogFormat)

	rm, err := repomanager.Open(ctx, c.StorageDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	as := services.NewAuthService(rm, c, logger)
	wc := worker.NewClient(c, logger)
	orch := dashboard.NewOrchestrator(as, wc, logger)

	return &App{config: c, logger: logger, repomanager: rm, authService: as, dashboard: orch}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(app.config, app.logger, app.authService, app.dashboard)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a termination signal arrives or the
// HTTP server fails, then closes storage.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"storage", app.config.StorageDriver,
		"worker_agent_url", app.config.WorkerAgentURL,
	)

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repomanager.Close(); err != nil {
		app.logger.Error(ctx, "storage close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
