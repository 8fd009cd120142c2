package bot

import (
	"context"
	"log"
	"sync"
	"time"
)

// Swarm runs a group of bots against one server
type Swarm struct {
	cfg    Config
	source StateSource

	mu          sync.Mutex
	controllers []*Controller
}

// NewSwarm creates a swarm. source is shared by all bots; nil gives each bot
// its own StreamState.
func NewSwarm(cfg Config, source StateSource) *Swarm {
	cfg.applyDefaults()
	return &Swarm{cfg: cfg, source: source}
}

// Start dials count bots. Bots that fail to connect are logged and skipped.
// Returns the number started.
func (s *Swarm) Start(ctx context.Context, count int) int {
	started := 0
	for i := 0; i < count; i++ {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		c, err := Dial(dialCtx, s.cfg, s.source)
		cancel()
		if err != nil {
			log.Printf("⚠️ Bot %d/%d failed to connect: %v", i+1, count, err)
			continue
		}
		c.Start()

		s.mu.Lock()
		s.controllers = append(s.controllers, c)
		s.mu.Unlock()
		started++
	}

	if count > 0 {
		log.Printf("🤖 %d/%d bots connected to %s", started, count, s.cfg.Addr)
	}
	return started
}

// Stop disconnects every bot
func (s *Swarm) Stop() {
	s.mu.Lock()
	controllers := s.controllers
	s.controllers = nil
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range controllers {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			c.Stop()
		}(c)
	}
	wg.Wait()
}

// Len returns the number of running bots
func (s *Swarm) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.controllers)
}

// GetStats returns swarm counters
func (s *Swarm) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sent int64
	for _, c := range s.controllers {
		sent += c.CommandsSent()
	}
	return map[string]interface{}{
		"bots":          len(s.controllers),
		"commands_sent": sent,
	}
}
