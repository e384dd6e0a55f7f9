// Package httpapi exposes the companion REST surface: health, settings,
// provider checks, tasks and session history. It runs alongside the bridge so
// external tools can reach the same state the shell sees.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"deskmate/internal/storage"
)

type Server struct {
	db          *storage.Store
	httpClient  *http.Client
	healthPath  string
	metricsPath string
	logger      zerolog.Logger
}

type Config struct {
	DB            *storage.Store
	ClientTimeout time.Duration
	HealthPath    string
	MetricsPath   string
	Logger        zerolog.Logger
}

func NewServer(cfg Config) *Server {
	timeout := cfg.ClientTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/api/health"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	return &Server{
		db:          cfg.DB,
		httpClient:  &http.Client{Timeout: timeout},
		healthPath:  cfg.HealthPath,
		metricsPath: cfg.MetricsPath,
		logger:      cfg.Logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.healthPath, s.health)
	mux.Handle("GET "+s.metricsPath, promhttp.Handler())

	mux.HandleFunc("GET /api/config", s.configGet)
	mux.HandleFunc("POST /api/config", s.configUpdate)
	mux.HandleFunc("POST /api/config/reset", s.configReset)
	mux.HandleFunc("POST /api/check", s.check)

	mux.HandleFunc("GET /api/tasks", s.tasksList)
	mux.HandleFunc("POST /api/tasks", s.tasksCreate)
	mux.HandleFunc("PUT /api/tasks/{id}", s.tasksUpdate)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.tasksDelete)

	mux.HandleFunc("GET /api/sessions", s.sessionsList)
	mux.HandleFunc("GET /api/sessions/{id}", s.sessionsGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.sessionsDelete)
	return mux
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("http api request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
