package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/surugaya-watcher/internal/metrics"
	"github.com/JakeFAU/surugaya-watcher/internal/scheduler"
	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

// Watcher is the part of the scheduler the API drives.
type Watcher interface {
	Topics() []scheduler.TopicInfo
	Ready() bool
	LastReport() (watch.CycleReport, bool)
	Trigger(ctx context.Context) error
}

// Server wires HTTP handlers to the scheduler.
type Server struct {
	router  chi.Router
	watcher Watcher
	baseCtx context.Context
	logger  *zap.Logger
}

// cycleReport is the wire form of a watch.CycleReport.
type cycleReport struct {
	watch.CycleReport
	Status   watch.CycleStatus `json:"status"`
	Notified int               `json:"notified"`
}

// NewServer constructs a Server with middleware and routes. Cycles started through the API
// run under baseCtx so they outlive the request and stop on shutdown.
func NewServer(baseCtx context.Context, watcher Watcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		watcher: watcher,
		baseCtx: baseCtx,
		logger:  logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/topics", s.listTopics)
		r.Post("/cycles", s.startCycle)
		r.Get("/cycles/last", s.lastCycle)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.watcher.Ready() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listTopics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"topics": s.watcher.Topics()})
}

func (s *Server) lastCycle(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.watcher.LastReport()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no cycle has finished yet")
		return
	}
	s.writeJSON(w, http.StatusOK, cycleReport{
		CycleReport: report,
		Status:      report.Status(),
		Notified:    report.Notified(),
	})
}

func (s *Server) startCycle(w http.ResponseWriter, _ *http.Request) {
	if !s.watcher.Ready() {
		s.writeError(w, http.StatusServiceUnavailable, "startup baseline still running")
		return
	}
	if err := s.watcher.Trigger(s.baseCtx); err != nil {
		if errors.Is(err, scheduler.ErrCycleInProgress) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", RequestID(r.Context())),
					zap.Any("error", rec),
				)
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
