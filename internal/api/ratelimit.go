package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"flag-arena/internal/metrics"
	"flag-arena/internal/ratelimit"
)

// RateLimitConfig configures the IP-based rate limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // Requests allowed per second per IP
	Burst             int           // Maximum burst size
	CleanupInterval   time.Duration // How often to clean up stale limiters
}

// DefaultRateLimitConfig returns production-safe defaults
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CleanupInterval:   5 * time.Minute,
}

// IPRateLimiter is HTTP middleware over a per-IP token bucket
type IPRateLimiter struct {
	keyed *ratelimit.Keyed[string]
}

// NewIPRateLimiter creates a new IP-based rate limiter
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	return &IPRateLimiter{
		keyed: ratelimit.New[string](ratelimit.Config{
			PerSecond:       cfg.RequestsPerSecond,
			Burst:           cfg.Burst,
			CleanupInterval: cfg.CleanupInterval,
		}),
	}
}

// Stop stops the cleanup goroutine
func (rl *IPRateLimiter) Stop() {
	rl.keyed.Stop()
}

// Allow checks if a request from the given IP should be allowed
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.keyed.Allow(ip)
}

// Middleware returns an HTTP middleware for rate limiting
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			metrics.RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetStats returns rate limiter statistics
func (rl *IPRateLimiter) GetStats() map[string]uint64 {
	return rl.keyed.Stats()
}

// GetClientIP extracts the client IP from an HTTP request.
// X-Forwarded-For is trusted, so only deploy behind a proxy that sets it.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// SpectatorLimiter caps concurrent WebSocket spectators per IP
type SpectatorLimiter struct {
	connections sync.Map // map[string]*atomic.Int32
	maxPerIP    int

	rejected atomic.Uint64
}

// NewSpectatorLimiter creates a spectator connection limiter
func NewSpectatorLimiter(maxPerIP int) *SpectatorLimiter {
	return &SpectatorLimiter{maxPerIP: maxPerIP}
}

// Allow reserves a slot for ip, or reports false when it is full
func (sl *SpectatorLimiter) Allow(ip string) bool {
	actual, _ := sl.connections.LoadOrStore(ip, new(atomic.Int32))
	counter := actual.(*atomic.Int32)

	for {
		current := counter.Load()
		if int(current) >= sl.maxPerIP {
			sl.rejected.Add(1)
			return false
		}
		if counter.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release frees a slot for ip
func (sl *SpectatorLimiter) Release(ip string) {
	if val, ok := sl.connections.Load(ip); ok {
		val.(*atomic.Int32).Add(-1)
	}
}

// Count returns the current spectator count for ip
func (sl *SpectatorLimiter) Count(ip string) int {
	if val, ok := sl.connections.Load(ip); ok {
		return int(val.(*atomic.Int32).Load())
	}
	return 0
}

// GetStats returns spectator limiter statistics
func (sl *SpectatorLimiter) GetStats() map[string]uint64 {
	return map[string]uint64{
		"rejected": sl.rejected.Load(),
	}
}

// DefaultCORSOrigins are used when none are configured
var DefaultCORSOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
}

// IsAllowedOrigin reports whether a spectator origin is acceptable.
// Local pages and origins listed in allowed pass; patterns ending in "*" match
// by prefix.
func IsAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
		if strings.HasSuffix(a, "*") && strings.HasPrefix(origin, strings.TrimSuffix(a, "*")) {
			return true
		}
	}
	return false
}
