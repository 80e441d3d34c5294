// Package worker is the supervisor's only door to the Worker Agent. Every
// call is time-boxed, retried at most once on a transient failure, and
// returns either a value or an *Error of one of three kinds.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/sleepsupervisor/internal/common"
	"github.com/dmitrijs2005/sleepsupervisor/internal/logging"
	"github.com/dmitrijs2005/sleepsupervisor/internal/netx"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/config"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	opHealth   = "health_check"
	opRegister = "register_user"
	opTask     = "trigger_analysis"
	opMemory   = "fetch_memory"
)

// Client is safe for concurrent use and keeps no per-user state.
type Client struct {
	http           *resty.Client
	timeout        time.Duration
	attemptTimeout time.Duration
	retryBackoff   time.Duration
	agentID      string
	log          logging.Logger
	now          func() time.Time
}

const defaultTimeout = 3 * time.Second

func NewClient(cfg *config.Config, log logging.Logger) *Client {
	timeout := cfg.WorkerTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// Each attempt gets half of what is left after the backoff pause, so a
	// timed-out first attempt still leaves room for the retry.
	attemptTimeout := (timeout - cfg.WorkerRetryBackoff) / 2
	if attemptTimeout <= 0 {
		attemptTimeout = timeout / 2
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.WorkerAgentURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:           c,
		timeout:        timeout,
		attemptTimeout: attemptTimeout,
		retryBackoff:   cfg.WorkerRetryBackoff,
		agentID:        cfg.AgentID,
		log:            log.With("module", "worker_client"),
		now:            time.Now,
	}
}

// retryableStatus marks a gateway response worth one more attempt.
type retryableStatus struct{ code int }

func (e *retryableStatus) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

// do runs send under a deadline of c.timeout that survives cancellation of
// ctx, retrying once after c.retryBackoff when the failure is transient.
// Every attempt is further bounded by c.attemptTimeout.
// A non-nil error is always an Unreachable *Error; any received status that
// is not a gateway error is left to the caller to classify.
func (c *Client) do(ctx context.Context, op string, send func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryBackoff), 1), ctx)

	attempt := func() (*resty.Response, error) {
		attemptCtx, cancelAttempt := context.WithTimeout(ctx, c.attemptTimeout)
		defer cancelAttempt()

		resp, err := send(c.http.R().SetContext(attemptCtx))
		if err != nil {
			if netx.IsTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if netx.IsTransientStatus(resp.StatusCode()) {
			return resp, &retryableStatus{code: resp.StatusCode()}
		}
		return resp, nil
	}
	notify := func(err error, wait time.Duration) {
		retriesTotal.WithLabelValues(op).Inc()
		c.log.Warn(ctx, "worker call failed, retrying", "op", op, "error", err, "wait", wait)
	}

	resp, err := backoff.RetryNotifyWithData(attempt, b, notify)
	if err != nil {
		we := &Error{Kind: KindUnreachable, Op: op, Err: err}
		var rs *retryableStatus
		if errors.As(err, &rs) {
			we.StatusCode = rs.code
			we.Err = nil
		} else if resp != nil {
			we.StatusCode = resp.StatusCode()
		}
		return nil, we
	}
	return resp, nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if kind, ok := KindOf(err); ok {
		outcome = kind.String()
	}
	requestsTotal.WithLabelValues(op, outcome).Inc()
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// HealthCheck never fails: every outcome is expressed as a WorkerHealth.
func (c *Client) HealthCheck(ctx context.Context) WorkerHealth {
	start := time.Now()
	h := WorkerHealth{CheckedAt: c.now().UTC()}

	resp, err := c.do(ctx, opHealth, func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/health")
	})
	switch {
	case err != nil:
		h.Status = HealthUnreachable
		h.Message = "worker agent is not responding"
	case !resp.IsSuccess():
		h.Status = HealthUnreachable
		h.Message = fmt.Sprintf("worker agent answered HTTP %d", resp.StatusCode())
		err = &Error{Kind: KindUnreachable, Op: opHealth, StatusCode: resp.StatusCode()}
	default:
		body, derr := decodeObject(resp.Body())
		status, _ := body["status"].(string)
		if derr != nil || status == "" {
			h.Status = HealthError
			h.Message = "unexpected health response"
			err = &Error{Kind: KindRejected, Op: opHealth, StatusCode: resp.StatusCode(), Err: derr}
			break
		}
		h.Status = HealthHealthy
		h.Details = body
	}

	c.observe(opHealth, start, err)
	if err != nil {
		c.log.Warn(ctx, "worker health check failed", "status", h.Status, "error", err)
	}
	return h
}

// RegisterUser tells the worker about username. Registering a known
// identity succeeds with AlreadyKnown set.
func (c *Client) RegisterUser(ctx context.Context, username string) (ack *Ack, err error) {
	start := time.Now()
	defer func() { c.observe(opRegister, start, err) }()

	body := map[string]any{"user_id": username, "agent_id": c.agentID}
	resp, err := c.do(ctx, opRegister, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).Post("/register")
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusConflict {
		return &Ack{Username: username, AlreadyKnown: true}, nil
	}
	if !resp.IsSuccess() {
		return nil, rejected(opRegister, resp)
	}

	ack = &Ack{Username: username}
	if len(strings.TrimSpace(resp.String())) > 0 {
		raw, derr := decodeObject(resp.Body())
		if derr != nil {
			return nil, &Error{Kind: KindRejected, Op: opRegister, StatusCode: resp.StatusCode(), Err: derr}
		}
		ack.Raw = raw
		if s, _ := raw["status"].(string); strings.EqualFold(s, "already_registered") || strings.EqualFold(s, "exists") {
			ack.AlreadyKnown = true
		}
	}
	c.log.Info(ctx, "user registered with worker", "username", username, "already_known", ack.AlreadyKnown)
	return ack, nil
}

// TriggerAnalysis asks the worker to (re)analyse username. New sleep
// sessions are optional; the worker merges them with what it already holds.
func (c *Client) TriggerAnalysis(ctx context.Context, username string, profile map[string]any, sleepSessions []map[string]any) (ack *AnalysisAck, err error) {
	start := time.Now()
	defer func() { c.observe(opTask, start, err) }()

	if sleepSessions == nil {
		sleepSessions = []map[string]any{}
	}
	if profile == nil {
		profile = map[string]any{}
	}
	taskID := NewTaskID()
	body := map[string]any{
		"task_id": taskID,
		"user_id": username,
		"payload": map[string]any{
			"sleep_sessions": sleepSessions,
			"profile":        profile,
		},
	}
	c.log.Info(ctx, "sending analysis task", "task_id", taskID, "username", username, "new_sessions", len(sleepSessions))
	c.log.Debug(ctx, "analysis task payload", "task_id", taskID, "payload", body)

	resp, err := c.do(ctx, opTask, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).Post("/task")
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rejected(opTask, resp)
	}

	raw, derr := decodeObject(resp.Body())
	if derr != nil {
		return nil, &Error{Kind: KindRejected, Op: opTask, StatusCode: resp.StatusCode(), Err: derr}
	}
	c.log.Debug(ctx, "analysis task response", "task_id", taskID, "response", raw)

	ack = &AnalysisAck{TaskID: taskID, Result: raw["result"], Raw: raw}
	if id, ok := raw["task_id"].(string); ok && id != "" {
		ack.TaskID = id
	}
	ack.Status, _ = raw["status"].(string)
	if ack.Status == "error" {
		return nil, &Error{Kind: KindRejected, Op: opTask, StatusCode: resp.StatusCode(), Message: messageOf(raw)}
	}
	c.log.Info(ctx, "analysis task acknowledged", "task_id", ack.TaskID, "status", ack.Status)
	return ack, nil
}

// FetchMemory returns the user's STM/LTM. A user the worker knows nothing
// about yields an ErrNotFound *Error, distinct from the worker being down.
func (c *Client) FetchMemory(ctx context.Context, username string) (snap *MemorySnapshot, err error) {
	start := time.Now()
	defer func() { c.observe(opMemory, start, err) }()

	resp, err := c.do(ctx, opMemory, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("user_id", username).Get("/memory")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, &Error{Kind: KindNotFound, Op: opMemory, StatusCode: http.StatusNotFound}
	}
	if !resp.IsSuccess() {
		return nil, rejected(opMemory, resp)
	}

	raw, derr := decodeObject(resp.Body())
	if derr != nil {
		return nil, &Error{Kind: KindRejected, Op: opMemory, StatusCode: resp.StatusCode(), Err: derr}
	}
	c.log.Debug(ctx, "memory fetched", "username", username, "response", raw)

	snap = &MemorySnapshot{Raw: raw}
	snap.STM, _ = raw["stm"].(map[string]any)
	snap.LTM, _ = raw["ltm"].(map[string]any)
	if snap.Empty() {
		return nil, &Error{Kind: KindNotFound, Op: opMemory, StatusCode: resp.StatusCode()}
	}
	return snap, nil
}

// NewTaskID returns an id of the form task_<8 hex>.
func NewTaskID() string {
	s, err := common.MakeRandHexString(4)
	if err != nil {
		s = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return "task_" + s
}

func decodeObject(b []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if m == nil {
		return nil, errors.New("decode response: not a JSON object")
	}
	return m, nil
}

func rejected(op string, resp *resty.Response) *Error {
	e := &Error{Kind: KindRejected, Op: op, StatusCode: resp.StatusCode()}
	if m, err := decodeObject(resp.Body()); err == nil {
		e.Message = messageOf(m)
	} else {
		e.Message = truncate(strings.TrimSpace(resp.String()), 200)
	}
	return e
}

func messageOf(m map[string]any) string {
	for _, k := range []string{"error", "detail", "message"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
