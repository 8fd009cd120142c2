// Package ratelimit provides per-key token buckets with idle cleanup.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a Keyed limiter
type Config struct {
	PerSecond       float64       // Sustained events per second per key
	Burst           int           // Bucket size
	CleanupInterval time.Duration // Zero disables the cleanup goroutine
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// Keyed holds one token bucket per key, created lazily.
type Keyed[K comparable] struct {
	cfg      Config
	limiters sync.Map // map[K]*entry

	stopChan chan struct{}
	stopOnce sync.Once

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// New creates a keyed limiter and starts its cleanup loop if configured.
func New[K comparable](cfg Config) *Keyed[K] {
	k := &Keyed[K]{
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go k.cleanupLoop()
	}
	return k
}

// Stop ends the cleanup loop. Safe to call more than once.
func (k *Keyed[K]) Stop() {
	k.stopOnce.Do(func() {
		close(k.stopChan)
	})
}

func (k *Keyed[K]) get(key K) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := k.limiters.Load(key); ok {
		e := v.(*entry)
		e.lastSeen.Store(now)
		return e.limiter
	}

	e := &entry{limiter: rate.NewLimiter(rate.Limit(k.cfg.PerSecond), k.cfg.Burst)}
	e.lastSeen.Store(now)
	actual, _ := k.limiters.LoadOrStore(key, e)
	return actual.(*entry).limiter
}

// Allow consumes one token for key
func (k *Keyed[K]) Allow(key K) bool {
	if k.get(key).Allow() {
		k.allowed.Add(1)
		return true
	}
	k.rejected.Add(1)
	return false
}

// Forget drops the bucket for key, e.g. when a connection closes.
func (k *Keyed[K]) Forget(key K) {
	k.limiters.Delete(key)
}

func (k *Keyed[K]) cleanupLoop() {
	ticker := time.NewTicker(k.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stopChan:
			return
		case <-ticker.C:
			k.cleanup(time.Now().Add(-2 * k.cfg.CleanupInterval))
		}
	}
}

func (k *Keyed[K]) cleanup(cutoff time.Time) {
	limit := cutoff.UnixNano()
	k.limiters.Range(func(key, value any) bool {
		if value.(*entry).lastSeen.Load() < limit {
			k.limiters.Delete(key)
		}
		return true
	})
}

// Stats returns allowed/rejected totals
func (k *Keyed[K]) Stats() map[string]uint64 {
	return map[string]uint64{
		"allowed":  k.allowed.Load(),
		"rejected": k.rejected.Load(),
	}
}
