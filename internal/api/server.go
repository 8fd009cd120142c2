package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server plus the spectator WebSocket hub.
//
// Background workers do not start until Start is called, so tests can
// construct a Server and use Router() with httptest.
type Server struct {
	engine       EngineInterface
	router       *chi.Mux
	wsHub        *WebSocketHub
	rateLimiter  *IPRateLimiter
	pushInterval time.Duration

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates an API server from a router configuration
func NewServer(cfg RouterConfig, pushInterval time.Duration) *Server {
	s := &Server{
		engine:       cfg.Engine,
		wsHub:        NewWebSocketHub(cfg.CORSOrigins),
		pushInterval: pushInterval,
	}

	if cfg.RateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		cfg.RateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	s.rateLimiter = cfg.RateLimiter

	stats := make(map[string]StatsProvider, len(cfg.Stats)+1)
	for name, p := range cfg.Stats {
		stats[name] = p
	}
	stats["spectators"] = s.wsHub
	cfg.Stats = stats

	s.router = NewRouter(cfg)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
	return s
}

// Start launches the hub and serves addr. Blocks until the server stops;
// a clean Stop returns nil.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, s.pushInterval)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	log.Printf("🌐 API server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the spectator hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Stop shuts down the listener, spectators and the rate limiter
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("⚠️ API shutdown error: %v", err)
		}
	}
	s.wsHub.Stop()
	s.rateLimiter.Stop()
}
