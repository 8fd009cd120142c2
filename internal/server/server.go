// Package server accepts arena clients over TCP, assigns their ids and feeds
// their commands into the game engine.
package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"flag-arena/internal/game"
	"flag-arena/internal/metrics"
	"flag-arena/internal/protocol"
	"flag-arena/internal/ratelimit"
)

// Config holds acceptor settings
type Config struct {
	Codec        protocol.Codec
	MaxPlayers   int           // 0 for unlimited
	CommandRate  float64       // Commands per second per connection, 0 for unlimited
	CommandBurst int           // Bucket size for CommandRate
	WriteTimeout time.Duration // Deadline for the handshake write
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Codec:        protocol.Framed{},
		MaxPlayers:   64,
		CommandRate:  120,
		CommandBurst: 60,
		WriteTimeout: 2 * time.Second,
	}
}

// Server owns the listener and one reader goroutine per connection
type Server struct {
	cfg      Config
	engine   *game.Engine
	registry *Registry
	limiter  *ratelimit.Keyed[uint32]

	listener net.Listener
	nextID   atomic.Uint32

	accepted atomic.Int64
	rejected atomic.Int64
	dropped  atomic.Int64

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a server feeding engine and broadcasting through registry
func New(cfg Config, engine *game.Engine, registry *Registry) *Server {
	if cfg.Codec == nil {
		cfg.Codec = protocol.Framed{}
	}
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		registry: registry,
	}
	if cfg.CommandRate > 0 {
		burst := cfg.CommandBurst
		if burst <= 0 {
			burst = int(cfg.CommandRate)
		}
		s.limiter = ratelimit.New[uint32](ratelimit.Config{
			PerSecond: cfg.CommandRate,
			Burst:     burst,
		})
	}
	return s
}

// Listen binds addr and starts accepting
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.Start(ln)
	return nil
}

// Start accepts connections from ln until Stop
func (s *Server) Start(ln net.Listener) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Printf("🔌 Arena server listening on %s (%s framing)", ln.Addr(), s.cfg.Codec.Name())
}

// Stop closes the listener and every client, then waits for readers to exit
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.listener.Close()
	s.registry.CloseAll()
	s.wg.Wait()

	if s.limiter != nil {
		s.limiter.Stop()
	}
	log.Println("🔌 Arena server stopped")
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// GetStats returns acceptor counters
func (s *Server) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"accepted":         s.accepted.Load(),
		"rejected":         s.rejected.Load(),
		"commands_dropped": s.dropped.Load(),
	}
	if s.limiter != nil {
		stats["rate_limiter"] = s.limiter.Stats()
	}
	return stats
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			log.Printf("⚠️ Accept error: %v", err)
			if errors.Is(err, net.ErrClosed) {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		s.admit(conn)
	}
}

// admit runs the join sequence: handshake, engine insert, registry insert,
// then the reader goroutine.
func (s *Server) admit(conn net.Conn) {
	if s.cfg.MaxPlayers > 0 && s.registry.Len() >= s.cfg.MaxPlayers {
		s.rejected.Add(1)
		metrics.RecordConnectionRejected("max_players")
		log.Printf("🚫 Rejected %s: server full (%d players)", conn.RemoteAddr(), s.cfg.MaxPlayers)
		conn.Close()
		return
	}

	id := s.nextID.Add(1)

	if s.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if err := protocol.WriteHandshake(conn, id); err != nil {
		log.Printf("⚠️ Handshake with %s failed: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	conn.SetWriteDeadline(time.Time{})

	s.engine.AddPlayer(id)
	s.registry.Add(id, conn)
	if !s.running.Load() {
		// Stop raced with this join; the reader will clean up
		conn.Close()
	}
	s.accepted.Add(1)
	metrics.RecordConnectionAccepted()

	s.wg.Add(1)
	go s.readLoop(id, conn)
}

// readLoop decodes commands until the connection ends, then removes the
// player exactly once.
func (s *Server) readLoop(id uint32, conn net.Conn) {
	defer s.wg.Done()
	defer s.disconnect(id)

	reader := s.cfg.Codec.NewCommandReader(conn)
	for {
		cmd, err := reader.Next()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				s.drop("malformed")
				log.Printf("⚠️ Player %d sent a malformed command: %v", id, err)
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && s.running.Load() {
				log.Printf("⚠️ Player %d read error: %v", id, err)
			}
			return
		}

		if s.limiter != nil && !s.limiter.Allow(id) {
			s.drop("rate_limit")
			continue
		}
		s.apply(id, cmd)
	}
}

// apply feeds one command into the engine on behalf of connection id
func (s *Server) apply(id uint32, cmd protocol.Command) {
	switch cmd.Tag {
	case protocol.TagPlayer:
		if cmd.Player.ID != id {
			s.drop("id_mismatch")
			return
		}
		metrics.RecordCommand("player")
		switch s.engine.ApplyPlayerUpdate(*cmd.Player) {
		case game.UpdateStale:
			s.drop("stale")
		case game.UpdateUnknown:
			s.drop("unknown_player")
		}

	case protocol.TagBullet:
		metrics.RecordCommand("bullet")
		bullet := *cmd.Bullet
		bullet.OwnerID = id
		if !s.engine.FireBullet(bullet) {
			s.drop("bullet_cap")
		}
	}
}

func (s *Server) drop(reason string) {
	s.dropped.Add(1)
	metrics.RecordCommandDropped(reason)
}

func (s *Server) disconnect(id uint32) {
	s.engine.RemovePlayer(id)
	s.registry.Remove(id)
	if s.limiter != nil {
		s.limiter.Forget(id)
	}
}
