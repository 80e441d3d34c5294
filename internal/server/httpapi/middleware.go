package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	requestIDHeader = "X-Request-ID"
	unmatchedRoute  = "unmatched"
)

type routeKey struct{}

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sleepsupervisor",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route, method and status code.",
}, []string{"route", "method", "code"})

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// accessLog tags the request with an id and logs one line per request.
// Headers and bodies are not logged; they may carry session tokens.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		route := unmatchedRoute
		r = r.WithContext(context.WithValue(r.Context(), routeKey{}, &route))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()

		s.logger.Info(r.Context(), "request",
			"request_id", id,
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// routeLabel reports the matched path template back to accessLog. It runs
// only for matched routes, so anything else keeps the unmatched label.
func routeLabel(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label, ok := r.Context().Value(routeKey{}).(*string)
		if cr := mux.CurrentRoute(r); ok && cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				*label = tpl
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error(r.Context(), "panic recovered",
					"panic", p,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
