// Package dashboard composes authentication, the Worker Agent client and
// the recommendation extractor per request. Worker trouble only ever
// degrades the result; the one failure a caller sees is an unauthenticated
// session (or a storage fault while resolving it).
package dashboard

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sleepsupervisor/internal/common"
	"github.com/dmitrijs2005/sleepsupervisor/internal/logging"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/recommendation"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/worker"
)

type Authenticator interface {
	CurrentUser(ctx context.Context, token string) (*models.User, error)
}

type WorkerClient interface {
	HealthCheck(ctx context.Context) worker.WorkerHealth
	RegisterUser(ctx context.Context, username string) (*worker.Ack, error)
	TriggerAnalysis(ctx context.Context, username string, profile map[string]any, sleepSessions []map[string]any) (*worker.AnalysisAck, error)
	FetchMemory(ctx context.Context, username string) (*worker.MemorySnapshot, error)
}

// DataStatus is the outcome of the memory fetch step.
type DataStatus string

const (
	NotChecked  DataStatus = "not_checked"
	HasData     DataStatus = "has_data"
	NoData      DataStatus = "no_data"
	FetchFailed DataStatus = "fetch_failed"
)

type DashboardView struct {
	User           *models.User
	WorkerHealth   worker.WorkerHealth
	DataStatus     DataStatus
	Recommendation recommendation.Recommendation
}

// WorkerStatus is the health classification shown on the dashboard.
func (v *DashboardView) WorkerStatus() worker.HealthStatus { return v.WorkerHealth.Status }

type RefreshResult struct {
	DataStatus     DataStatus
	Recommendation recommendation.Recommendation
}

// MemoryView is the raw STM/LTM pass-through. Sections are empty objects,
// never nil, when nothing could be fetched.
type MemoryView struct {
	Username   string
	DataStatus DataStatus
	STM        map[string]any
	LTM        map[string]any
	Raw        map[string]any
}

type Orchestrator struct {
	auth   Authenticator
	worker WorkerClient
	log    logging.Logger
}

func NewOrchestrator(auth Authenticator, wc WorkerClient, log logging.Logger) *Orchestrator {
	return &Orchestrator{auth: auth, worker: wc, log: log.With("module", "dashboard")}
}

// CurrentUser returns common.ErrUnauthenticated when token resolves to no user.
func (o *Orchestrator) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	u, err := o.auth.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, common.ErrUnauthenticated
	}
	return u, nil
}

// GetDashboardView checks worker health and, only when healthy, fetches and
// extracts the user's memory.
func (o *Orchestrator) GetDashboardView(ctx context.Context, token string) (*DashboardView, error) {
	u, err := o.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	view := &DashboardView{
		User:         u,
		WorkerHealth: o.worker.HealthCheck(ctx),
		DataStatus:   NotChecked,
	}
	if !view.WorkerHealth.Healthy() {
		o.log.Info(ctx, "dashboard degraded", "username", u.Username, "worker_status", view.WorkerHealth.Status)
		return view, nil
	}

	view.DataStatus, view.Recommendation = o.fetch(ctx, u.Username)
	return view, nil
}

// Refresh re-runs fetch and extract. It does not start a new analysis.
func (o *Orchestrator) Refresh(ctx context.Context, token string) (*RefreshResult, error) {
	u, err := o.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	status, rec := o.fetch(ctx, u.Username)
	return &RefreshResult{DataStatus: status, Recommendation: rec}, nil
}

func (o *Orchestrator) fetch(ctx context.Context, username string) (DataStatus, recommendation.Recommendation) {
	snap, err := o.worker.FetchMemory(ctx, username)
	switch {
	case err == nil:
		return HasData, recommendation.Extract(snap)
	case errors.Is(err, worker.ErrNotFound):
		return NoData, recommendation.Extract(nil)
	default:
		o.log.Warn(ctx, "memory fetch failed", "username", username, "error", err)
		return FetchFailed, recommendation.Extract(nil)
	}
}

// TriggerAnalysis sends an explicit analysis request. A nil profile means
// the stored one. Worker errors are returned as *worker.Error.
func (o *Orchestrator) TriggerAnalysis(ctx context.Context, token string, profile map[string]any, sleepSessions []map[string]any) (*worker.AnalysisAck, error) {
	u, err := o.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = u.Profile
	}
	return o.worker.TriggerAnalysis(ctx, u.Username, profile, sleepSessions)
}

// Memory never fails on worker trouble; DataStatus says what happened.
func (o *Orchestrator) Memory(ctx context.Context, token string) (*MemoryView, error) {
	u, err := o.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	view := &MemoryView{Username: u.Username, STM: map[string]any{}, LTM: map[string]any{}}
	snap, err := o.worker.FetchMemory(ctx, u.Username)
	switch {
	case err == nil:
		view.DataStatus = HasData
		view.Raw = snap.Raw
		if snap.STM != nil {
			view.STM = snap.STM
		}
		if snap.LTM != nil {
			view.LTM = snap.LTM
		}
	case errors.Is(err, worker.ErrNotFound):
		view.DataStatus = NoData
	default:
		o.log.Warn(ctx, "memory fetch failed", "username", u.Username, "error", err)
		view.DataStatus = FetchFailed
	}
	return view, nil
}

// RegisterWithWorker registers the current user's identity on demand.
func (o *Orchestrator) RegisterWithWorker(ctx context.Context, token string) (*worker.Ack, error) {
	u, err := o.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	return o.worker.RegisterUser(ctx, u.Username)
}

// EnrollUser is the best-effort registration run after sign-up. Failures
// are logged only; the user can still log in and the worker learns the
// identity on the first analysis.
func (o *Orchestrator) EnrollUser(ctx context.Context, username string) {
	ack, err := o.worker.RegisterUser(ctx, username)
	if err != nil {
		o.log.Warn(ctx, "worker enrollment failed", "username", username, "error", err)
		return
	}
	o.log.Debug(ctx, "worker enrollment done", "username", username, "already_known", ack.AlreadyKnown)
}

func (o *Orchestrator) WorkerHealth(ctx context.Context) worker.WorkerHealth {
	return o.worker.HealthCheck(ctx)
}
