package worker

import (
	"errors"
	"fmt"
)

// Kind classifies every failed Worker Agent call.
type Kind int

const (
	// KindUnreachable covers transport failures, timeouts and gateway errors.
	KindUnreachable Kind = iota + 1
	// KindRejected is an explicit application-level refusal. Never retried.
	KindRejected
	// KindNotFound means the worker holds no memory for the user yet.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

var (
	ErrUnreachable = errors.New("worker agent unreachable")
	ErrRejected    = errors.New("worker agent rejected the request")
	ErrNotFound    = errors.New("no data for user")
)

// Error is the only error type the Client returns.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int    // 0 when no response was received
	Message    string // worker-supplied reason, if any
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("worker %s: %s", e.Op, e.Kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// KindOf reports the Kind of a worker error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind, true
	}
	return 0, false
}
