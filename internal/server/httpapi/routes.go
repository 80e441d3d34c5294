package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "Method not allowed")
	})

	r.Use(routeLabel)

	// Auth
	r.HandleFunc("/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	r.HandleFunc("/current-user", s.currentUser).Methods(http.MethodGet)

	r.HandleFunc("/api", s.index).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.getDashboard).Methods(http.MethodGet)
	api.HandleFunc("/recommendations", s.getRecommendations).Methods(http.MethodGet)
	api.HandleFunc("/analyze", s.analyze).Methods(http.MethodPost)
	api.HandleFunc("/memory", s.getMemory).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.updateProfile).Methods(http.MethodPut)
	api.HandleFunc("/worker/health", s.workerHealth).Methods(http.MethodGet)
	api.HandleFunc("/worker/register", s.workerRegister).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Wrapping the router rather than using r.Use keeps the not-found and
	// method-not-allowed responses logged and counted.
	return s.accessLog(s.recoverer(r))
}
