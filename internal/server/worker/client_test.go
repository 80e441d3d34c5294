package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/sleepsupervisor/internal/logging"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	cfg := &config.Config{
		WorkerAgentURL:     url,
		WorkerTimeout:      timeout,
		WorkerRetryBackoff: 10 * time.Millisecond,
		AgentID:            "supervisor-test",
	}
	return NewClient(cfg, logging.Nop())
}

func newServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, newTestClient(t, srv.URL, time.Second)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// closedURL returns the address of a server that is no longer listening.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

// --- HealthCheck ---

func TestHealthCheck_Healthy(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "version": "2.1", "agents": 3})
	})

	h := c.HealthCheck(context.Background())
	assert.Equal(t, HealthHealthy, h.Status)
	assert.True(t, h.Healthy())
	assert.Equal(t, "2.1", h.Details["version"])
	assert.False(t, h.CheckedAt.IsZero())
}

func TestHealthCheck_UnexpectedShapeIsError(t *testing.T) {
	for name, body := range map[string]string{
		"array":        `[1,2,3]`,
		"no status":    `{"ok":true}`,
		"empty status": `{"status":""}`,
		"not json":     `pong`,
	} {
		t.Run(name, func(t *testing.T) {
			_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(body))
			})
			assert.Equal(t, HealthError, c.HealthCheck(context.Background()).Status)
		})
	}
}

func TestHealthCheck_NonSuccessIsUnreachable(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "broken"})
	})
	assert.Equal(t, HealthUnreachable, c.HealthCheck(context.Background()).Status)
}

func TestHealthCheck_ConnectionRefused(t *testing.T) {
	c := newTestClient(t, closedURL(t), time.Second)
	h := c.HealthCheck(context.Background())
	assert.Equal(t, HealthUnreachable, h.Status)
	assert.NotEmpty(t, h.Message)
}

func TestHealthCheck_HungWorkerIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL, 150*time.Millisecond)

	start := time.Now()
	h := c.HealthCheck(context.Background())
	assert.Equal(t, HealthUnreachable, h.Status)
	assert.Less(t, time.Since(start), time.Second)
}

// --- retry policy ---

func TestRetry_OnceOnGatewayErrorThenSuccess(t *testing.T) {
	var calls atomic.Int32
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stm": map[string]any{"sleep_score": 70}})
	})

	snap, err := c.FetchMemory(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(70), snap.STM["sleep_score"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetry_OnceAfterAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL, 600*time.Millisecond)

	start := time.Now()
	h := c.HealthCheck(context.Background())
	assert.Equal(t, HealthHealthy, h.Status)
	assert.Equal(t, int32(2), calls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetry_AtMostOnce(t *testing.T) {
	var calls atomic.Int32
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.FetchMemory(context.Background(), "alice")
	require.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int32(2), calls.Load())

	var we *Error
	require.ErrorAs(t, err, &we)
	assert.Equal(t, http.StatusBadGateway, we.StatusCode)
	assert.Equal(t, opMemory, we.Op)
}

func TestRetry_NotOnRejection(t *testing.T) {
	var calls atomic.Int32
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "payload missing profile"})
	})

	_, err := c.TriggerAnalysis(context.Background(), "alice", nil, nil)
	require.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "payload missing profile")
}

func TestCallerCancellationDoesNotCutCall(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]any{"ltm": map[string]any{"sleep_score": 60}})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := c.FetchMemory(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(60), snap.LTM["sleep_score"])
}

// --- RegisterUser ---

func TestRegisterUser_SendsIdentity(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/register", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["user_id"])
		assert.Equal(t, "supervisor-test", body["agent_id"])
		writeJSON(w, http.StatusCreated, map[string]any{"status": "registered", "extra": true})
	})

	ack, err := c.RegisterUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", ack.Username)
	assert.False(t, ack.AlreadyKnown)
	assert.Equal(t, "registered", ack.Raw["status"])
}

func TestRegisterUser_ConflictIsSuccess(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "user exists"})
	})

	ack, err := c.RegisterUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ack.AlreadyKnown)
}

func TestRegisterUser_EmptyBodyIsFine(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := c.RegisterUser(context.Background(), "alice")
	require.NoError(t, err)
}

func TestRegisterUser_Unreachable(t *testing.T) {
	c := newTestClient(t, closedURL(t), time.Second)

	_, err := c.RegisterUser(context.Background(), "alice")
	require.ErrorIs(t, err, ErrUnreachable)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnreachable, kind)
}

// --- TriggerAnalysis ---

func TestTriggerAnalysis_PayloadAndAck(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/task", r.URL.Path)
		var body struct {
			TaskID  string `json:"task_id"`
			UserID  string `json:"user_id"`
			Payload struct {
				SleepSessions []map[string]any `json:"sleep_sessions"`
				Profile       map[string]any   `json:"profile"`
			} `json:"payload"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, strings.HasPrefix(body.TaskID, "task_"))
		assert.Len(t, body.TaskID, len("task_")+8)
		assert.Equal(t, "alice", body.UserID)
		assert.Len(t, body.Payload.SleepSessions, 1)
		assert.Equal(t, "owl", body.Payload.Profile["chronotype"])

		writeJSON(w, http.StatusOK, map[string]any{
			"task_id":     body.TaskID,
			"status":      "completed",
			"result":      map[string]any{"sleep_score": 81},
			"new_feature": []int{1, 2},
		})
	})

	ack, err := c.TriggerAnalysis(context.Background(), "alice",
		map[string]any{"chronotype": "owl"},
		[]map[string]any{{"date": "2025-01-01", "duration_hours": 7.5}})
	require.NoError(t, err)
	assert.Equal(t, "completed", ack.Status)
	assert.True(t, strings.HasPrefix(ack.TaskID, "task_"))
	assert.NotNil(t, ack.Result)
}

func TestTriggerAnalysis_NilSessionsSentAsEmptyList(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Payload map[string]any `json:"payload"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{}, body.Payload["sleep_sessions"])
		assert.Equal(t, map[string]any{}, body.Payload["profile"])
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
	})

	ack, err := c.TriggerAnalysis(context.Background(), "alice", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "queued", ack.Status)
}

func TestTriggerAnalysis_StatusErrorIsRejected(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "error": "not enough sessions"})
	})

	_, err := c.TriggerAnalysis(context.Background(), "alice", nil, nil)
	require.ErrorIs(t, err, ErrRejected)

	var we *Error
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "not enough sessions", we.Message)
}

// --- FetchMemory ---

func TestFetchMemory_Success(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/memory", r.URL.Path)
		assert.Equal(t, "al ice", r.URL.Query().Get("user_id"))
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id": "al ice",
			"stm":     map[string]any{"sleep_score": 72},
			"ltm":     map[string]any{"sleep_score": 68},
			"schema":  "v3",
		})
	})

	snap, err := c.FetchMemory(context.Background(), "al ice")
	require.NoError(t, err)
	assert.Equal(t, float64(72), snap.STM["sleep_score"])
	assert.Equal(t, float64(68), snap.LTM["sleep_score"])
	assert.Equal(t, "v3", snap.Raw["schema"])
}

func TestFetchMemory_NotFoundIsDistinct(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "unknown user"})
	})

	_, err := c.FetchMemory(context.Background(), "alice")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnreachable)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestFetchMemory_EmptyMemoryIsNotFound(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"stm": map[string]any{}, "ltm": nil})
	})

	_, err := c.FetchMemory(context.Background(), "alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetchMemory_GarbageBodyIsRejected(t *testing.T) {
	_, c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>oops</html>"))
	})

	_, err := c.FetchMemory(context.Background(), "alice")
	require.ErrorIs(t, err, ErrRejected)
}

func TestFetchMemory_Unreachable(t *testing.T) {
	c := newTestClient(t, closedURL(t), time.Second)

	_, err := c.FetchMemory(context.Background(), "alice")
	require.ErrorIs(t, err, ErrUnreachable)
}

// --- errors ---

func TestError_Formatting(t *testing.T) {
	err := &Error{Kind: KindRejected, Op: opTask, StatusCode: 422, Message: "bad", Err: errors.New("x")}
	assert.Equal(t, "worker trigger_analysis: rejected (HTTP 422): bad: x", err.Error())
	assert.Equal(t, "unknown(9)", Kind(9).String())

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestNewTaskID(t *testing.T) {
	a, b := NewTaskID(), NewTaskID()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^task_[0-9a-f]{8}$`, a)
}
