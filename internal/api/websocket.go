package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"flag-arena/internal/game"
	"flag-arena/internal/metrics"
)

const (
	// MaxWSConnectionsTotal is the maximum number of spectators
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum spectators per IP
	MaxWSConnectionsPerIP = 10

	// DefaultPushInterval is how often spectators receive the snapshot
	DefaultPushInterval = 100 * time.Millisecond

	wsWriteTimeout = time.Second
)

// spectatorEvent is the envelope pushed to spectators
type spectatorEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// spectatorFrame holds one event encoded for both client formats
type spectatorFrame struct {
	text   []byte
	binary []byte
}

// wsClient tracks a spectator with its source IP and preferred format
type wsClient struct {
	conn    *websocket.Conn
	ip      string
	msgpack bool
}

// WebSocketHub fans snapshots out to spectators
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan spectatorFrame
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	limiter  *SpectatorLimiter
	upgrader websocket.Upgrader

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWebSocketHub creates a hub accepting the given origins
func NewWebSocketHub(origins []string) *WebSocketHub {
	if origins == nil {
		origins = DefaultCORSOrigins
	}
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan spectatorFrame, 16),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		limiter:    NewSpectatorLimiter(MaxWSConnectionsPerIP),
		stopChan:   make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || IsAllowedOrigin(origin, origins) {
				return true
			}
			log.Printf("⚠️ Spectator rejected from origin: %s", origin)
			metrics.RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run processes registrations and broadcasts until Stop
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("👀 Spectator connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.remove(conn)

		case frame := <-h.broadcast:
			h.deliver(frame)

		case <-h.stopChan:
			h.mu.Lock()
			for conn, client := range h.clients {
				h.limiter.Release(client.ip)
				conn.Close()
			}
			h.clients = make(map[*websocket.Conn]*wsClient)
			h.mu.Unlock()
			UpdateWSConnections(0)
			return
		}
	}
}

// Stop ends Run and the broadcast loop, closing all spectators
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		h.limiter.Release(client.ip)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		conn.Close()
		log.Printf("👀 Spectator disconnected (%d remaining)", count)
		UpdateWSConnections(count)
	}
}

// deliver writes frame to every spectator in its format
func (h *WebSocketHub) deliver(frame spectatorFrame) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		msgType, data := websocket.TextMessage, frame.text
		if c.msgpack {
			msgType, data = websocket.BinaryMessage, frame.binary
		}
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(msgType, data); err != nil {
			h.remove(c.conn)
			continue
		}
		IncrementWSMessages()
	}
}

// Publish encodes an event in both formats and queues it.
// Drops the event if the hub is backed up.
func (h *WebSocketHub) Publish(event string, data interface{}) error {
	frame, err := encodeSpectatorFrame(spectatorEvent{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- frame:
	default:
	}
	return nil
}

func encodeSpectatorFrame(ev spectatorEvent) (spectatorFrame, error) {
	text, err := json.Marshal(ev)
	if err != nil {
		return spectatorFrame{}, fmt.Errorf("encode spectator json: %w", err)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(ev); err != nil {
		return spectatorFrame{}, fmt.Errorf("encode spectator msgpack: %w", err)
	}
	return spectatorFrame{text: text, binary: buf.Bytes()}, nil
}

// ClientCount returns the number of connected spectators
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetStats returns spectator counters
func (h *WebSocketHub) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"spectators": h.ClientCount(),
		"rejected":   h.limiter.GetStats()["rejected"],
	}
}

// StartBroadcastLoop pushes the engine snapshot every interval while
// anyone is watching. A snapshot is only re-encoded when it changed.
func (h *WebSocketHub) StartBroadcastLoop(source interface{ Snapshot() *game.GameState }, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		var last *game.GameState
		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
			}

			if h.ClientCount() == 0 {
				continue
			}
			snap := source.Snapshot()
			if snap == last {
				continue
			}
			last = snap
			if err := h.Publish("game:state", snap); err != nil {
				log.Printf("⚠️ Spectator encode failed: %v", err)
			}
		}
	}()
}

// HandleWebSocket upgrades a spectator connection.
// ?format=msgpack selects binary frames.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		metrics.RecordConnectionRejected("ws_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.limiter.Allow(ip) {
		log.Printf("⚠️ Spectator rejected from %s: per-IP limit reached", ip)
		metrics.RecordConnectionRejected("ws_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade error: %v", err)
		h.limiter.Release(ip)
		return
	}

	client := &wsClient{
		conn:    conn,
		ip:      ip,
		msgpack: r.URL.Query().Get("format") == "msgpack",
	}
	select {
	case h.register <- client:
	case <-h.stopChan:
		h.limiter.Release(ip)
		conn.Close()
		return
	}

	// Spectators are read-only; reading only detects the close
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.stopChan:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
