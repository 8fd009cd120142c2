// Package metrics holds the Prometheus collectors for the simulation and the
// TCP transport. The HTTP surface in internal/api exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"flag-arena/internal/game"
)

// Metrics with bounded cardinality (no per-player labels)
var (
	// Simulation
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.042},
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_players",
		Help: "Players currently in the arena",
	})

	bulletCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_bullets",
		Help: "Bullets currently in flight",
	})

	boxHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_box_hits_total",
		Help: "Bullets that destroyed a wooden box",
	})

	playerHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_player_hits_total",
		Help: "Bullets that hit a player",
	})

	flagCaptures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_flag_captures_total",
		Help: "Times the flag changed hands",
	})

	// Transport
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_connections_active",
		Help: "Registered TCP client connections",
	})

	connectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_connections_accepted_total",
		Help: "TCP clients that completed the handshake",
	})

	broadcastBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_broadcast_bytes_total",
		Help: "Encoded snapshot bytes produced for broadcast",
	})

	writeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_write_failures_total",
		Help: "Snapshot writes that failed or timed out",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_commands_total",
		Help: "Client commands accepted by kind",
	}, []string{"kind"}) // Bounded: "player", "bullet"

	commandsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_commands_dropped_total",
		Help: "Client commands discarded by reason",
	}, []string{"reason"}) // Bounded: "malformed", "rate_limit", "id_mismatch", "stale", "unknown_player", "bullet_cap"

	// DoS detection - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by a limit or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "max_players", "ws_limit", "origin"
)

// RecordTick records one simulation tick. Suitable as Engine.OnTick.
func RecordTick(stats game.TickStats) {
	tickDuration.Observe(stats.Duration.Seconds())
	playerCount.Set(float64(stats.Players))
	bulletCount.Set(float64(stats.Bullets))
	if stats.BoxHits > 0 {
		boxHits.Add(float64(stats.BoxHits))
	}
	if stats.PlayerHits > 0 {
		playerHits.Add(float64(stats.PlayerHits))
	}
	if stats.Captures > 0 {
		flagCaptures.Add(float64(stats.Captures))
	}
}

// UpdateConnectionCount sets the registered connection gauge
func UpdateConnectionCount(count int) {
	connectionsActive.Set(float64(count))
}

// RecordConnectionAccepted counts a completed handshake
func RecordConnectionAccepted() {
	connectionsAccepted.Inc()
}

// RecordBroadcast counts one encoded snapshot
func RecordBroadcast(size int) {
	broadcastBytes.Add(float64(size))
}

// RecordWriteFailure counts a failed snapshot write
func RecordWriteFailure() {
	writeFailures.Inc()
}

// RecordCommand counts an accepted command; kind is "player" or "bullet"
func RecordCommand(kind string) {
	commandsTotal.WithLabelValues(kind).Inc()
}

// RecordCommandDropped counts a discarded command
func RecordCommandDropped(reason string) {
	commandsDropped.WithLabelValues(reason).Inc()
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "max_players", "ws_limit", "origin"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}
