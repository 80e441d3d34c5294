package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/sleepsupervisor/internal/common"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/worker"
)

const (
	codeInvalidRequest   = "INVALID_REQUEST"
	codeValidation       = "VALIDATION_ERROR"
	codeUsernameTaken    = "USERNAME_TAKEN"
	codeAuthentication   = "AUTHENTICATION_ERROR"
	codeNotAuthenticated = "NOT_AUTHENTICATED"
	codeWorkerAgent      = "WORKER_AGENT_ERROR"
	codeAnalysis         = "ANALYSIS_ERROR"
	codeNoData           = "NO_DATA"
	codeNotFound         = "NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeInternal         = "INTERNAL_ERROR"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeServiceError maps a service or worker error onto a status and code.
// Anything unrecognised is logged and reported as a bare 500.
func (s *Server) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var we *worker.Error

	switch {
	case errors.Is(err, common.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, common.ErrUsernameTaken):
		writeError(w, http.StatusConflict, codeUsernameTaken, err.Error())
	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, codeAuthentication, err.Error())
	case errors.Is(err, common.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, codeNotAuthenticated, "Not authenticated")
	case errors.As(err, &we):
		s.logger.Warn(ctx, "worker call failed", "error", err)
		switch we.Kind {
		case worker.KindNotFound:
			writeError(w, http.StatusNotFound, codeNoData, "No data for user")
		case worker.KindRejected:
			msg := we.Message
			if msg == "" {
				msg = "Analysis failed"
			}
			writeError(w, http.StatusBadGateway, codeAnalysis, msg)
		default:
			writeError(w, http.StatusServiceUnavailable, codeWorkerAgent, "Worker agent is unavailable")
		}
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
	}
}

// decodeBody decodes a JSON object body. An empty body is allowed when
// optional is set and leaves dst untouched.
func decodeBody(r *http.Request, dst any, optional bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if optional {
			return nil
		}
		return errors.New("empty body")
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
