package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/pipeline"
)

// SignalProcessor runs one raw payload through the full pipeline
type SignalProcessor interface {
	ProcessSignal(ctx context.Context, raw *pipeline.RawPayload) *pipeline.Result
}

// PositionLister reads open positions for the GET endpoint
type PositionLister interface {
	GetOpenPositions(ctx context.Context) ([]*domain.Position, error)
}

// Server is the webhook ingress and read-only query surface
type Server struct {
	router    *mux.Router
	server    *http.Server
	processor SignalProcessor
	positions PositionLister
	startedAt time.Time
}

// NewServer creates the HTTP server. The metrics handler may be nil, in
// which case no /metrics route is registered.
func NewServer(addr string, processor SignalProcessor, positions PositionLister, metricsHandler http.Handler) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		processor: processor,
		positions: positions,
		startedAt: time.Now(),
	}

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/webhook/signal", s.handleSignal).Methods("POST")
	s.router.HandleFunc("/positions", s.handlePositions).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if metricsHandler != nil {
		s.router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving requests until the listener fails or Shutdown is
// called
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleSignal accepts one raw signal payload and runs the pipeline
// synchronously, returning the structured result. Expected rejections are
// 200s with success=false; only malformed JSON is a client error.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var raw pipeline.RawPayload
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON payload"})
		return
	}

	result := s.processor.ProcessSignal(r.Context(), &raw)

	status := http.StatusOK
	if result.Success && result.Position != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	open, err := s.positions.GetOpenPositions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("open positions query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "position store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(open),
		"positions": open,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"timestamp":      time.Now().UTC(),
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}
