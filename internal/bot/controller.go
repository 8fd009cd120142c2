package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"flag-arena/internal/game"
	"flag-arena/internal/protocol"
)

// DefaultTick is the bot decision interval
const DefaultTick = 100 * time.Millisecond

// StateSource supplies the latest game state a bot decides on.
// *game.Engine and *StreamState both satisfy it.
type StateSource interface {
	Snapshot() *game.GameState
}

// Config holds per-bot settings
type Config struct {
	Addr          string
	Codec         protocol.Codec
	Tick          time.Duration
	ShootCooldown time.Duration
	WriteTimeout  time.Duration

	// World size the bot wanders over. Broadcast snapshots do not carry it.
	WorldWidth  float32
	WorldHeight float32
}

func (c *Config) applyDefaults() {
	if c.Codec == nil {
		c.Codec = protocol.Framed{}
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.ShootCooldown <= 0 {
		c.ShootCooldown = DefaultShootCooldown
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = time.Second
	}
	if c.WorldWidth <= 0 {
		c.WorldWidth = game.WorldWidth
	}
	if c.WorldHeight <= 0 {
		c.WorldHeight = game.WorldHeight
	}
}

// Controller drives one bot connection
type Controller struct {
	cfg    Config
	conn   net.Conn
	source StateSource
	brain  *Brain

	commandsSent atomic.Int64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Dial connects a bot and completes the handshake. A nil source makes the
// bot decide on the server's own broadcast stream.
func Dial(ctx context.Context, cfg Config, source StateSource) (*Controller, error) {
	cfg.applyDefaults()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	id, err := protocol.ReadHandshake(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})

	c := &Controller{
		cfg:      cfg,
		conn:     conn,
		brain:    NewBrain(id, cfg.ShootCooldown, nil),
		stopChan: make(chan struct{}),
	}
	c.brain.SetWorld(cfg.WorldWidth, cfg.WorldHeight)

	// The server writes a snapshot every tick; the socket must be drained
	// either way or the server's writes to this bot start timing out.
	if source == nil {
		c.source = NewStreamState(conn, cfg.Codec)
	} else {
		c.source = source
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			io.Copy(io.Discard, conn)
		}()
	}
	return c, nil
}

// ID returns the player id assigned by the server
func (c *Controller) ID() uint32 {
	return c.brain.ID
}

// Start runs the decision loop
func (c *Controller) Start() {
	c.wg.Add(1)
	go c.loop()
}

// Stop closes the connection and waits for the loop to exit
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.conn.Close()
	})
	c.wg.Wait()
}

// CommandsSent returns how many commands this bot has written
func (c *Controller) CommandsSent() int64 {
	return c.commandsSent.Load()
}

func (c *Controller) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case now := <-ticker.C:
			if err := c.step(now); err != nil {
				select {
				case <-c.stopChan:
				default:
					log.Printf("🤖 Bot %d stopped: %v", c.brain.ID, err)
				}
				c.conn.Close()
				return
			}
		}
	}
}

// step decides and writes all commands for one tick in a single write
func (c *Controller) step(now time.Time) error {
	cmds := c.brain.Decide(c.source.Snapshot(), now)
	if len(cmds) == 0 {
		return nil
	}

	var buf []byte
	for _, cmd := range cmds {
		data, err := c.cfg.Codec.EncodeCommand(cmd)
		if err != nil {
			return err
		}
		buf = append(buf, data...)
	}

	c.conn.SetWriteDeadline(now.Add(c.cfg.WriteTimeout))
	if _, err := c.conn.Write(buf); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return err
		}
		return fmt.Errorf("write commands: %w", err)
	}
	c.commandsSent.Add(int64(len(cmds)))
	return nil
}
