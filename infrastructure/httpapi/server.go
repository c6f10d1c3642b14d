package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appselection "segment-selector/application/selection"
	"segment-selector/domain/selection"
	"segment-selector/infrastructure/config"
)

// Sessions is the part of the session registry the API drives
type Sessions interface {
	Open(ctx context.Context, source, plan string) (appselection.Snapshot, error)
	Get(id string) (appselection.Snapshot, error)
	Dispatch(id string, ev selection.Event) (appselection.Snapshot, error)
	Reset(id string) (appselection.Snapshot, error)
	Proceed(ctx context.Context, id string) (selection.Submission, appselection.Snapshot, error)
	Close(id string) error
	Subscribe(id string) (<-chan appselection.Snapshot, func(), error)
	Len() int
}

// ConfigSource returns the live configuration
type ConfigSource interface {
	Current() *config.Config
}

// Server exposes selection sessions over HTTP and WebSocket
type Server struct {
	sessions Sessions
	configs  ConfigSource
	logger   *zap.Logger
	origins  []string
}

// NewServer creates a new API server
func NewServer(sessions Sessions, configs ConfigSource, logger *zap.Logger, allowedOrigins []string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Server{
		sessions: sessions,
		configs:  configs,
		logger:   logger,
		origins:  allowedOrigins,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/plans", s.listPlans)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.openSession)
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.closeSession)
				r.Post("/events", s.dispatchEvent)
				r.Post("/reset", s.resetSession)
				r.Post("/proceed", s.proceed)
				r.Get("/ws", s.stream)
			})
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

type openRequest struct {
	Source string `json:"source"`
	Plan   string `json:"plan"`
}

type proceedResponse struct {
	Submission selection.Submission  `json:"submission"`
	Session    appselection.Snapshot `json:"session"`
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Span    float64                `json:"span,omitempty"`
	Limit   float64                `json:"limit,omitempty"`
	Session *appselection.Snapshot `json:"session,omitempty"`
}

// health handles GET /healthz
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

// listPlans handles GET /v1/plans
func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	plans := config.NewConfigManager(s.configs.Current(), "").ListPlans()
	writeJSON(w, http.StatusOK, plans)
}

// openSession handles POST /v1/sessions
func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "source is required"})
		return
	}

	snap, err := s.sessions.Open(r.Context(), req.Source, req.Plan)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// getSession handles GET /v1/sessions/{sessionId}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// closeSession handles DELETE /v1/sessions/{sessionId}
func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "sessionId")); err != nil {
		s.writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dispatchEvent handles POST /v1/sessions/{sessionId}/events
func (s *Server) dispatchEvent(w http.ResponseWriter, r *http.Request) {
	var ev selection.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid event body"})
		return
	}

	snap, err := s.sessions.Dispatch(chi.URLParam(r, "sessionId"), ev)
	if err != nil {
		s.writeError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// resetSession handles POST /v1/sessions/{sessionId}/reset
func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Reset(chi.URLParam(r, "sessionId"))
	if err != nil {
		s.writeError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// proceed handles POST /v1/sessions/{sessionId}/proceed
func (s *Server) proceed(w http.ResponseWriter, r *http.Request) {
	sub, snap, err := s.sessions.Proceed(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		s.writeError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, proceedResponse{Submission: sub, Session: snap})
}

// writeError maps domain errors onto status codes. snap is attached when the
// session exists so clients can re-render after a rejection
func (s *Server) writeError(w http.ResponseWriter, err error, snap *appselection.Snapshot) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	if snap != nil && snap.ID != "" {
		resp.Session = snap
	}

	var spanErr *selection.SpanError
	if errors.As(err, &spanErr) {
		resp.Span = spanErr.Span
		resp.Limit = spanErr.Limit
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, appselection.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, selection.ErrInvalidEvent),
		errors.Is(err, config.ErrPlanNotFound):
		return http.StatusBadRequest
	case errors.Is(err, selection.ErrSelectionTooShort),
		errors.Is(err, selection.ErrSelectionTooLong),
		errors.Is(err, selection.ErrInvalidMedia):
		return http.StatusUnprocessableEntity
	case errors.Is(err, selection.ErrMediaNotReady),
		errors.Is(err, selection.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, selection.ErrConsumerFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
