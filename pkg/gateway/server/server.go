// Package server assembles the gateway: routes, middleware chain, and
// the dispatcher-to-connection event wiring.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/voxbrief/voxbrief/pkg/core/intent"
	"github.com/voxbrief/voxbrief/pkg/gateway/config"
	"github.com/voxbrief/voxbrief/pkg/gateway/handlers"
	"github.com/voxbrief/voxbrief/pkg/gateway/live"
	"github.com/voxbrief/voxbrief/pkg/gateway/live/sessions"
	"github.com/voxbrief/voxbrief/pkg/gateway/metrics"
	"github.com/voxbrief/voxbrief/pkg/gateway/mw"
	"github.com/voxbrief/voxbrief/pkg/shadow"
	"github.com/voxbrief/voxbrief/pkg/store"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	store      *store.Store
	dispatcher *shadow.Dispatcher
	tracker    *sessions.Tracker
	metrics    *metrics.Metrics
	unwire     func()
}

func New(cfg config.Config, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	dispatcher := shadow.New(shadow.Config{
		Store:               st,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		ProcessInterim:      cfg.ProcessInterim,
		Logger:              logger,
	})
	tracker := sessions.NewTracker()

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mux:        http.NewServeMux(),
		store:      st,
		dispatcher: dispatcher,
		tracker:    tracker,
		metrics:    metrics.NewMetrics("voxbrief"),
	}
	s.unwire = live.WireDispatcher(dispatcher, tracker)
	s.wireMetrics()

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Store: s.store})
	s.mux.Handle("/metrics", s.metrics.Handler())

	sessionsHandler := handlers.SessionsHandler{
		Config:  s.cfg,
		Store:   s.store,
		Metrics: s.metrics,
		Logger:  s.logger,
	}
	s.mux.Handle("/v1/sessions", sessionsHandler)
	s.mux.Handle("/v1/sessions/", sessionsHandler)
	s.mux.Handle("/v1/users/", handlers.UserSessionsHandler{
		Store:   s.store,
		Metrics: s.metrics,
		Logger:  s.logger,
	})

	s.mux.Handle("/v1/live", live.Handler{
		Config:     s.cfg,
		Store:      s.store,
		Dispatcher: s.dispatcher,
		Sessions:   s.tracker,
		Metrics:    s.metrics,
		Logger:     s.logger,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// wireMetrics observes dispatcher emissions without touching the
// transcript hot path. Apply latency is measured from the event's
// client timestamp.
func (s *Server) wireMetrics() {
	s.dispatcher.OnCommandDetected(func(_ string, detection intent.Detection, event shadow.TranscriptEvent) {
		s.metrics.RecordCommand(string(detection.Type), time.Since(event.Timestamp))
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Dispatcher exposes the shadow dispatcher for handler registration and
// runtime pattern management.
func (s *Server) Dispatcher() *shadow.Dispatcher {
	return s.dispatcher
}

// Sessions exposes the connection tracker, used at shutdown to close
// live connections and wait for them to drain.
func (s *Server) Sessions() *sessions.Tracker {
	return s.tracker
}

// Close removes the dispatcher wiring and cancels live connections.
func (s *Server) Close() {
	if s.unwire != nil {
		s.unwire()
	}
	s.tracker.CancelAll()
}
