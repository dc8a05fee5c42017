// Package api serves the read surface over stored readiness, findings and insights,
// plus the single write the core accepts from outside: the athlete's response.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"n1core/app"
	"n1core/domain/core"
	"n1core/internal"
	"n1core/internal/errors"
	"n1core/internal/findings"
	"n1core/internal/metrics"
	"n1core/ports"
)

// Deps are the collaborators the server reads from
type Deps struct {
	Readiness ports.ReadinessRepository
	Findings  *findings.Store
	Insights  *app.InsightService
	Clock     core.Clock
	Logger    *internal.Logger
	Metrics   *metrics.Registry
	// Ready reports backend health for /healthz; nil means always healthy
	Ready func(r *http.Request) error
}

// Server is the HTTP read API
type Server struct {
	router   *chi.Mux
	deps     Deps
	validate *validator.Validate
}

// NewServer builds the router
func NewServer(deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = core.SystemClock{}
	}
	deps.Logger = deps.Logger.Or()
	s := &Server{
		router:   chi.NewRouter(),
		deps:     deps,
		validate: validator.New(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.deps.Metrics.Handler())

	s.router.Route("/athletes/{athleteID}", func(r chi.Router) {
		r.Get("/readiness/{date}", s.handleReadiness)
		r.Get("/findings", s.handleFindings)
		r.Get("/insights", s.handleInsights)
	})
	s.router.Post("/insights/{insightID}/response", s.handleResponse)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Logger.Err(err, "encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.With("path", r.URL.Path, "request_id", middleware.GetReqID(r.Context())).Err(err, "request failed")
	}
	s.writeJSON(w, status, errorBody{Error: err.Error(), Code: errors.GetCode(err)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
