// Package api serves the HTTP spectator and admin surface of the arena:
// read-only JSON views, a minimap, a WebSocket feed and Prometheus metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"flag-arena/internal/game"
	"flag-arena/internal/game/ranking"
)

// EngineInterface is the slice of the game engine the API reads.
// Keep this minimal so tests can supply a fake.
type EngineInterface interface {
	// Snapshot returns the latest published pre-tick state (lock-free)
	Snapshot() *game.GameState
	// GetPlayer returns a copy of a live player
	GetPlayer(id uint32) (game.Player, bool)
	// Leaderboard returns the top n players by score
	Leaderboard(n int) []ranking.Entry
	// Stats returns match counters
	Stats() game.EngineStats
	// EventLogStats returns event log counters
	EventLogStats() map[string]interface{}
}

// StatsProvider is any component that reports counters for /api/stats
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
//	cfg := api.RouterConfig{
//	    Engine: engine,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	}
//	ts := httptest.NewServer(api.NewRouter(cfg))
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Stats are extra counters merged into /api/stats, keyed by section name
	Stats map[string]StatsProvider

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	// If both are nil, DefaultRateLimitConfig applies.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to DefaultCORSOrigins
	CORSOrigins []string

	// DisableLogging disables the request logger middleware
	DisableLogging bool
}

type routerHandlers struct {
	engine      EngineInterface
	stats       map[string]StatsProvider
	rateLimiter *IPRateLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// NewRouter is pure: it starts no goroutines beyond the rate limiter's
// cleanup loop and opens no listeners, so it is safe with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		engine:      cfg.Engine,
		stats:       cfg.Stats,
		rateLimiter: rateLimiter,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/leaderboard", h.handleGetLeaderboard)
		r.Get("/players/{id}", h.handleGetPlayer)
		r.Get("/minimap.png", h.handleGetMinimap)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}

// metricsMiddleware records latency per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
