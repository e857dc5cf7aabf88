package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/metrics"
	"github.com/lazypower/keepstreak/internal/scanner"
	"github.com/lazypower/keepstreak/internal/tracker"
)

// Server is the keepstreak HTTP API server.
type Server struct {
	repo    habit.Repository
	tracker *tracker.Tracker
	scanner *scanner.Scanner
	logger  *zap.Logger

	version   string
	jwtSecret []byte
	loc       *time.Location
	now       func() time.Time

	router  chi.Router
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// WithJWTSecret enables bearer token auth on /api routes other than health.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.jwtSecret = []byte(secret)
		}
	}
}

// WithLocation sets the zone used to derive today's date.
func WithLocation(loc *time.Location) Option { return func(s *Server) { s.loc = loc } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New creates a Server. sc may be nil, in which case POST /api/scan answers 503.
func New(repo habit.Repository, tr *tracker.Tracker, sc *scanner.Scanner, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		repo:    repo,
		tracker: tr,
		scanner: sc,
		logger:  logger,
		version: "dev",
		loc:     time.Local,
		now:     time.Now,
		started: time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/habits", s.handleListHabits)
			r.Post("/habits", s.handleCreateHabit)
			r.Route("/habits/{habitID}", func(r chi.Router) {
				r.Get("/", s.handleGetHabit)
				r.Put("/", s.handleUpdateHabit)
				r.Delete("/", s.handleDeleteHabit)
				r.Get("/logs", s.handleListLogs)
				r.Get("/stats", s.handleStats)
				r.Post("/complete", s.handleComplete)
				r.Post("/undo", s.handleUndo)
			})

			r.Get("/notifications", s.handleListNotifications)
			r.Post("/notifications/read-all", s.handleMarkAllRead)
			r.Post("/notifications/{notificationID}/read", s.handleMarkRead)

			r.Post("/scan", s.handleScan)
		})
	})

	s.router = r
}

// instrument records request latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if p, ok := s.repo.(pinger); ok {
		if err := p.PingContext(r.Context()); err != nil {
			dbOK = false
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"today":   s.today().String(),
	})
}

func (s *Server) today() date.Date {
	return date.FromTime(s.now().In(s.loc))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and reported as 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, habit.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tracker.ErrInvalid):
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
