package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/sleepsupervisor/internal/buildinfo"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/dashboard"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/recommendation"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/worker"
)

type dashboardResponse struct {
	User           userResponse                  `json:"user"`
	WorkerStatus   worker.HealthStatus           `json:"worker_status"`
	Worker         worker.WorkerHealth           `json:"worker"`
	DataStatus     dashboard.DataStatus          `json:"data_status"`
	Recommendation recommendation.Recommendation `json:"recommendation"`
}

type recommendationsResponse struct {
	recommendation.Recommendation
	DataStatus dashboard.DataStatus `json:"data_status"`
	Available  bool                 `json:"available"`
}

type analyzeRequest struct {
	Profile       map[string]any   `json:"profile"`
	SleepSessions []map[string]any `json:"sleep_sessions"`
}

type analyzeResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Result  any    `json:"result"`
}

type memoryResponse struct {
	UserID     string               `json:"user_id"`
	DataStatus dashboard.DataStatus `json:"data_status"`
	Available  bool                 `json:"available"`
	STM        map[string]any       `json:"stm"`
	LTM        map[string]any       `json:"ltm"`
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := s.dash.GetDashboardView(ctx, tokenFrom(r))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		User:           newUserResponse(view.User),
		WorkerStatus:   view.WorkerStatus(),
		Worker:         view.WorkerHealth,
		DataStatus:     view.DataStatus,
		Recommendation: view.Recommendation,
	})
}

// getRecommendations re-reads memory; it never starts an analysis.
func (s *Server) getRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := s.dash.Refresh(ctx, tokenFrom(r))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{
		Recommendation: res.Recommendation,
		DataStatus:     res.DataStatus,
		Available:      res.DataStatus == dashboard.HasData,
	})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in analyzeRequest
	if err := decodeBody(r, &in, true); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request")
		return
	}

	ack, err := s.dash.TriggerAnalysis(ctx, tokenFrom(r), in.Profile, in.SleepSessions)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Success: true,
		TaskID:  ack.TaskID,
		Status:  ack.Status,
		Result:  ack.Result,
	})
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := s.dash.Memory(ctx, tokenFrom(r))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, memoryResponse{
		UserID:     view.Username,
		DataStatus: view.DataStatus,
		Available:  view.DataStatus == dashboard.HasData,
		STM:        view.STM,
		LTM:        view.LTM,
	})
}

func (s *Server) workerHealth(w http.ResponseWriter, r *http.Request) {
	h := s.dash.WorkerHealth(r.Context())

	status := http.StatusOK
	if !h.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) workerRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ack, err := s.dash.RegisterWithWorker(ctx, tokenFrom(r))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"user_id":       ack.Username,
		"already_known": ack.AlreadyKnown,
	})
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  s.agentName,
		"agent_id": s.agentID,
		"version":  buildinfo.Version,
		"endpoints": []string{
			"POST /register",
			"POST /login",
			"POST /logout",
			"GET /current-user",
			"GET /api/dashboard",
			"GET /api/recommendations",
			"POST /api/analyze",
			"GET /api/memory",
			"GET /api/profile",
			"PUT /api/profile",
			"GET /api/worker/health",
			"POST /api/worker/register",
			"GET /metrics",
		},
	})
}
