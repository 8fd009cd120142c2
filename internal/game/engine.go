package game

import (
	"log"
	"math/rand"
	"slices"
	"sync"
	"time"

	"flag-arena/internal/game/ranking"
	"flag-arena/internal/game/spatial"
)

// ScoreInterval is how often the flag holder earns a point
const ScoreInterval = time.Second

// hitGridCell is the broad-phase cell size for bullet-player checks
const hitGridCell = 2 * PlayerRadius

// Broadcaster receives the pre-tick snapshot once per tick, after the engine
// lock has been released. Implementations must not modify the state.
type Broadcaster interface {
	Broadcast(state *GameState)
}

// EngineConfig holds engine settings
type EngineConfig struct {
	TickRate    int
	WorldWidth  float32
	WorldHeight float32
	BoxCount    int
	MaxBullets  int   // Hard cap on live bullets, 0 for none
	Seed        int64 // RNG seed, 0 picks one from the clock
}

// DefaultEngineConfig returns the standard 24 Hz 800x600 arena
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickRate:    24,
		WorldWidth:  WorldWidth,
		WorldHeight: WorldHeight,
		BoxCount:    DefaultBoxCount,
		MaxBullets:  2000,
	}
}

// TickStats summarizes one tick for metrics
type TickStats struct {
	Tick       uint64
	Duration   time.Duration
	Players    int
	Bullets    int
	BoxHits    int
	PlayerHits int
	Captures   int
	ScoreTicks int
}

// EngineStats is a point-in-time view for the API
type EngineStats struct {
	MatchID     string  `json:"match_id"`
	Tick        uint64  `json:"tick"`
	Players     int     `json:"players"`
	Bullets     int     `json:"bullets"`
	Boxes       int     `json:"boxes"`
	FlagOwnerID *uint32 `json:"flag_owner_id"`
}

// Engine owns the authoritative GameState and runs the fixed-tick simulation.
type Engine struct {
	mu     sync.Mutex
	state  GameState
	config EngineConfig
	rng    *rand.Rand

	lastScore time.Time
	tickCount uint64
	hitGrid   *spatial.Grid

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	loopWg   sync.WaitGroup

	broadcasters []Broadcaster
	snapshots    SnapshotStore
	eventLog     *EventLog
	leaderboard  *Leaderboard

	// OnTick is called after every tick, outside the engine lock
	OnTick func(stats TickStats)
}

// NewEngine creates an engine with a freshly populated world
func NewEngine(cfg EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaults.TickRate
	}
	if cfg.WorldWidth <= BoxSize {
		cfg.WorldWidth = defaults.WorldWidth
	}
	if cfg.WorldHeight <= BoxSize {
		cfg.WorldHeight = defaults.WorldHeight
	}
	if cfg.BoxCount < 0 {
		cfg.BoxCount = 0
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	e := &Engine{
		state:       NewGameState(cfg.WorldWidth, cfg.WorldHeight, cfg.BoxCount, rng),
		config:      cfg,
		rng:         rng,
		hitGrid:     spatial.NewGrid(cfg.WorldWidth, cfg.WorldHeight, hitGridCell),
		stopChan:    make(chan struct{}),
		eventLog:    NewEventLog(),
		leaderboard: NewLeaderboard(),
	}
	initial := e.state.Clone()
	e.snapshots.Publish(&initial)
	return e
}

// AddBroadcaster registers a snapshot sink. Call before Start.
func (e *Engine) AddBroadcaster(b Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcasters = append(e.broadcasters, b)
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.config.TickRate))
	e.mu.Unlock()

	e.loopWg.Add(1)
	go func() {
		defer e.loopWg.Done()
		for {
			select {
			case now := <-e.ticker.C:
				e.Step(now)
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS (match %s)", e.config.TickRate, e.eventLog.MatchID())
}

// Stop stops the game loop and waits for the current tick to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	e.mu.Unlock()

	e.loopWg.Wait()
	log.Println("🛑 Game engine stopped")
}

// Step runs exactly one simulation tick as of now.
func (e *Engine) Step(now time.Time) TickStats {
	start := time.Now()

	e.mu.Lock()
	e.tickCount++
	tick := e.tickCount
	stats := TickStats{Tick: tick}
	if e.lastScore.IsZero() {
		e.lastScore = now
	}

	// Clone the pre-tick world; it is both the broadcast payload and the
	// collision reference for this tick.
	e.state.SyncFlag()
	snap := e.state.Clone()
	e.snapshots.Publish(&snap)

	e.stepBullets(&snap, tick, &stats)
	e.stepFlag(&snap, tick, now, &stats)
	e.stepScore(tick, now, &stats)
	e.stepHits(&snap, tick, &stats)
	e.pruneBullets()

	e.leaderboard.Sync(e.state.Players)
	stats.Players = len(e.state.Players)
	stats.Bullets = len(e.state.Bullets)
	broadcasters := e.broadcasters
	e.mu.Unlock()

	for _, b := range broadcasters {
		b.Broadcast(&snap)
	}

	stats.Duration = time.Since(start)
	if e.OnTick != nil {
		e.OnTick(stats)
	}
	return stats
}

// stepBullets advances bullets and resolves bullet-box hits.
// Hits are measured at the snapshot position, so a bullet already on a box
// is stopped before it moves. Live and snapshot bullets share indices here.
// Iterates in descending index order so removal does not skip bullets.
func (e *Engine) stepBullets(snap *GameState, tick uint64, stats *TickStats) {
	for i := range e.state.Bullets {
		e.state.Bullets[i].Advance()
	}

	for i := len(e.state.Bullets) - 1; i >= 0; i-- {
		b := snap.Bullets[i]
		for j, box := range e.state.Boxes {
			if Distance(b.X, b.Y, box.X, box.Y) >= BoxSize {
				continue
			}
			replacement := e.state.RespawnBox(j, e.rng)
			e.state.Bullets = append(e.state.Bullets[:i], e.state.Bullets[i+1:]...)
			stats.BoxHits++
			e.eventLog.EmitSimple(EventTypeBoxDestroyed, tick, b.OwnerID, BoxPayload{
				Index: j,
				OldX:  box.X,
				OldY:  box.Y,
				NewX:  replacement.X,
				NewY:  replacement.Y,
			})
			break
		}
	}
}

// stepFlag hands the flag to the first player (in join order) standing on it.
func (e *Engine) stepFlag(snap *GameState, tick uint64, now time.Time, stats *TickStats) {
	for _, p := range snap.Players {
		if Distance(p.X, p.Y, snap.FlagX, snap.FlagY) >= FlagPickupRadius {
			continue
		}
		if e.state.CaptureFlag(p.ID) {
			e.lastScore = now
			stats.Captures++
			e.eventLog.EmitSimple(EventTypeFlagCapture, tick, p.ID, FlagPayload{X: p.X, Y: p.Y})
		}
		return
	}
}

// stepScore awards the holder one point per elapsed ScoreInterval
func (e *Engine) stepScore(tick uint64, now time.Time, stats *TickStats) {
	if now.Sub(e.lastScore) < ScoreInterval {
		return
	}
	e.lastScore = now

	holder, ok := e.state.FlagHolder()
	if !ok {
		return
	}
	holder.Score++
	stats.ScoreTicks++
	e.eventLog.EmitSimple(EventTypeScore, tick, holder.ID, ScorePayload{Score: holder.Score})
}

// stepHits resolves bullets against players using the pre-tick snapshot.
// A victim is penalized once per tick; every hitting bullet credits its owner.
func (e *Engine) stepHits(snap *GameState, tick uint64, stats *TickStats) {
	credits := make(map[uint32]int32)

	e.hitGrid.Clear()
	for i, b := range snap.Bullets {
		e.hitGrid.Insert(uint32(i), b.X, b.Y)
	}

	for _, p := range snap.Players {
		var shooters []uint32
		candidates := e.hitGrid.QueryRadius(p.X, p.Y, PlayerRadius)
		slices.Sort(candidates)
		for _, idx := range candidates {
			b := snap.Bullets[idx]
			if b.OwnerID == p.ID {
				continue
			}
			if Distance(p.X, p.Y, b.X, b.Y) < PlayerRadius {
				shooters = append(shooters, b.OwnerID)
			}
		}
		if len(shooters) == 0 {
			continue
		}

		victim, ok := e.state.FindPlayer(p.ID)
		if !ok {
			continue
		}
		hadFlag := victim.HasFlag
		e.state.Respawn(victim, e.rng)
		victim.Score--
		respawnX, respawnY := victim.X, victim.Y
		if hadFlag {
			e.state.DropFlag()
			e.eventLog.EmitSimple(EventTypeFlagDrop, tick, p.ID, FlagPayload{X: p.X, Y: p.Y})
		}

		for _, shooter := range shooters {
			credits[shooter]++
			stats.PlayerHits++
			e.eventLog.EmitSimple(EventTypeHit, tick, shooter, HitPayload{
				ShooterID: shooter,
				VictimID:  p.ID,
				RespawnX:  respawnX,
				RespawnY:  respawnY,
			})
		}
	}

	for id, points := range credits {
		if shooter, ok := e.state.FindPlayer(id); ok {
			shooter.Score += points
		}
	}
}

// pruneBullets drops bullets that left the world, filtering in place
func (e *Engine) pruneBullets() {
	w, h := e.state.Width(), e.state.Height()
	kept := e.state.Bullets[:0]
	for _, b := range e.state.Bullets {
		if b.InBounds(w, h) {
			kept = append(kept, b)
		}
	}
	for i := len(kept); i < len(e.state.Bullets); i++ {
		e.state.Bullets[i] = Bullet{}
	}
	e.state.Bullets = kept
}

// AddPlayer inserts a new player at the spawn point
func (e *Engine) AddPlayer(id uint32) Player {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.state.AddPlayer(id)
	e.leaderboard.Sync([]Player{p})
	e.eventLog.EmitSimple(EventTypePlayerJoin, e.tickCount, id,
		PlayerJoinPayload{SpawnX: p.X, SpawnY: p.Y})

	log.Printf("👤 Player %d joined (%d online)", id, len(e.state.Players))
	return p
}

// RemovePlayer removes a player; a holder drops the flag.
// Returns false if the player was already gone.
func (e *Engine) RemovePlayer(id uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.FindPlayer(id)
	if !ok {
		return false
	}
	leaving := *p
	e.state.RemovePlayer(id)
	e.leaderboard.Remove(id)

	e.eventLog.EmitSimple(EventTypePlayerLeave, e.tickCount, id,
		PlayerLeavePayload{Score: leaving.Score, HadFlag: leaving.HasFlag})
	if leaving.HasFlag {
		e.eventLog.EmitSimple(EventTypeFlagDrop, e.tickCount, id,
			FlagPayload{X: leaving.X, Y: leaving.Y})
	}

	log.Printf("👋 Player %d left with score %d (%d online)", id, leaving.Score, len(e.state.Players))
	return true
}

// ApplyPlayerUpdate accepts a client position update
func (e *Engine) ApplyPlayerUpdate(update Player) UpdateResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ApplyPlayerUpdate(update)
}

// FireBullet appends a client bullet. Returns false if the bullet cap is hit.
func (e *Engine) FireBullet(b Bullet) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.AddBullet(b, e.config.MaxBullets)
}

// GetPlayer returns a copy of the live player
func (e *Engine) GetPlayer(id uint32) (Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.FindPlayer(id)
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Snapshot returns the latest published pre-tick clone without locking.
func (e *Engine) Snapshot() *GameState {
	return e.snapshots.Latest()
}

// State returns a clone of the live state
func (e *Engine) State() GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Leaderboard returns the top n players by score
func (e *Engine) Leaderboard(n int) []ranking.Entry {
	return e.leaderboard.Top(n)
}

// Stats returns counters for the API
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := EngineStats{
		MatchID: e.eventLog.MatchID(),
		Tick:    e.tickCount,
		Players: len(e.state.Players),
		Bullets: len(e.state.Bullets),
		Boxes:   len(e.state.Boxes),
	}
	if e.state.FlagOwnerID != nil {
		id := *e.state.FlagOwnerID
		stats.FlagOwnerID = &id
	}
	return stats
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.config
}

// StartEventLog starts writing events to filePath
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and closes the event log
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// EventLogStats returns event log counters
func (e *Engine) EventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}
