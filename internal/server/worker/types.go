package worker

import "time"

type HealthStatus string

const (
	HealthHealthy     HealthStatus = "healthy"
	HealthUnreachable HealthStatus = "unreachable"
	HealthError       HealthStatus = "error"
)

// WorkerHealth is recomputed on every check and never stored.
type WorkerHealth struct {
	Status    HealthStatus   `json:"status"`
	CheckedAt time.Time      `json:"checked_at"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func (h WorkerHealth) Healthy() bool { return h.Status == HealthHealthy }

// Ack acknowledges a registration. AlreadyKnown is set when the worker
// answered that the identity exists.
type Ack struct {
	Username     string         `json:"user_id"`
	AlreadyKnown bool           `json:"already_known"`
	Raw          map[string]any `json:"response,omitempty"`
}

// AnalysisAck acknowledges an analysis task. Result is whatever the worker
// returned under "result" and is passed through untouched.
type AnalysisAck struct {
	TaskID string         `json:"task_id"`
	Status string         `json:"status"`
	Result any            `json:"result,omitempty"`
	Raw    map[string]any `json:"-"`
}

// MemorySnapshot is the worker's view of a user. It is read-only: the
// maps are decoded fresh per call and must not be mutated.
type MemorySnapshot struct {
	STM map[string]any `json:"stm"`
	LTM map[string]any `json:"ltm"`
	Raw map[string]any `json:"-"`
}

// Empty reports whether neither STM nor LTM carries anything.
func (m *MemorySnapshot) Empty() bool {
	return m == nil || (len(m.STM) == 0 && len(m.LTM) == 0)
}
