package server

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"flag-arena/internal/game"
	"flag-arena/internal/metrics"
	"flag-arena/internal/protocol"
)

// Registry maps player ids to their live connections and fans snapshots out
// to all of them.
type Registry struct {
	codec        protocol.Codec
	writeTimeout time.Duration

	conns   map[uint32]net.Conn
	connsMu sync.RWMutex

	snapshotsSent atomic.Int64
	writeFailures atomic.Int64
}

// NewRegistry creates an empty registry. A zero writeTimeout disables write
// deadlines.
func NewRegistry(codec protocol.Codec, writeTimeout time.Duration) *Registry {
	return &Registry{
		codec:        codec,
		writeTimeout: writeTimeout,
		conns:        make(map[uint32]net.Conn),
	}
}

// Add registers conn under id, replacing any previous entry
func (r *Registry) Add(id uint32, conn net.Conn) {
	r.connsMu.Lock()
	old, existed := r.conns[id]
	r.conns[id] = conn
	count := len(r.conns)
	r.connsMu.Unlock()

	if existed && old != conn {
		old.Close()
	}
	metrics.UpdateConnectionCount(count)
}

// Remove unregisters and closes the connection for id.
// Returns false if id was not registered.
func (r *Registry) Remove(id uint32) bool {
	r.connsMu.Lock()
	conn, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	count := len(r.conns)
	r.connsMu.Unlock()

	if !ok {
		return false
	}
	conn.Close()
	metrics.UpdateConnectionCount(count)
	return true
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	r.connsMu.RLock()
	defer r.connsMu.RUnlock()
	return len(r.conns)
}

// Broadcast encodes state once and writes it to every connection.
// The lock is only held while copying the connection list, so a slow client
// never blocks Add or Remove. Failed writes are logged and counted; cleanup is
// left to the connection's reader.
func (r *Registry) Broadcast(state *game.GameState) {
	data, err := r.codec.EncodeState(state)
	if err != nil {
		log.Printf("⚠️ Failed to encode snapshot: %v", err)
		return
	}

	r.connsMu.RLock()
	targets := make(map[uint32]net.Conn, len(r.conns))
	for id, conn := range r.conns {
		targets[id] = conn
	}
	r.connsMu.RUnlock()

	for id, conn := range targets {
		if r.writeTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
		}
		if _, err := conn.Write(data); err != nil {
			r.writeFailures.Add(1)
			metrics.RecordWriteFailure()
			log.Printf("⚠️ Snapshot write to player %d failed: %v", id, err)
			continue
		}
		r.snapshotsSent.Add(1)
	}
	metrics.RecordBroadcast(len(data))
}

// CloseAll closes every registered connection without unregistering it.
// Readers observe the closed socket and clean up through Remove.
func (r *Registry) CloseAll() {
	r.connsMu.RLock()
	defer r.connsMu.RUnlock()
	for _, conn := range r.conns {
		conn.Close()
	}
}

// GetStats returns broadcast counters
func (r *Registry) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"connections":    r.Len(),
		"snapshots_sent": r.snapshotsSent.Load(),
		"write_failures": r.writeFailures.Load(),
	}
}
