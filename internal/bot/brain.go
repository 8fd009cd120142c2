// Package bot runs computer-controlled players. A bot is a virtual client:
// it connects over TCP, receives its id from the handshake and sends the
// same PLAYER and BULLET commands a human client would.
package bot

import (
	"math"
	"math/rand"
	"time"

	"flag-arena/internal/game"
	"flag-arena/internal/protocol"
)

// Bot behaviour constants
const (
	MoveStep       = 5   // Units moved per decision
	RetargetRadius = 10  // Pick a new wander point when this close
	BoxShootRadius = 50  // Boxes closer than this are shot if in the way
	PlayerRange    = 200 // Players closer than this are shot at

	DefaultShootCooldown = 400 * time.Millisecond
)

// aimCone is cos(45°): a box counts as "in the way" when its direction is
// within 45° of the travel direction.
var aimCone = float32(math.Sqrt2 / 2)

// Brain is one bot's decision state. It is not safe for concurrent use.
type Brain struct {
	ID            uint32
	ShootCooldown time.Duration

	targetX, targetY float32
	lastShot         time.Time

	// Position last sent. The server only moves a player on respawn, which
	// bumps respawn_num, so the local copy stays authoritative until then.
	x, y       float32
	respawnNum uint32
	placed     bool

	rng           *rand.Rand
	width, height float32
}

// NewBrain creates a brain for player id with a random wander target
func NewBrain(id uint32, cooldown time.Duration, rng *rand.Rand) *Brain {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	}
	if cooldown <= 0 {
		cooldown = DefaultShootCooldown
	}
	b := &Brain{
		ID:            id,
		ShootCooldown: cooldown,
		rng:           rng,
		width:         game.WorldWidth,
		height:        game.WorldHeight,
	}
	b.retarget()
	return b
}

// Target returns the current wander point
func (b *Brain) Target() (float32, float32) {
	return b.targetX, b.targetY
}

// SetWorld sets the area wander targets are drawn from and picks a new target
func (b *Brain) SetWorld(width, height float32) {
	if width <= 0 || height <= 0 {
		return
	}
	b.width, b.height = width, height
	b.retarget()
}

func (b *Brain) retarget() {
	b.targetX = b.rng.Float32() * b.width
	b.targetY = b.rng.Float32() * b.height
}

// Decide computes this tick's commands from state. It returns nil while the
// bot's player is absent from state.
func (b *Brain) Decide(state *game.GameState, now time.Time) []protocol.Command {
	if state == nil {
		return nil
	}
	var self game.Player
	found := false
	for _, p := range state.Players {
		if p.ID == b.ID {
			self, found = p, true
			break
		}
	}
	if !found {
		return nil
	}

	if !b.placed || self.RespawnNum != b.respawnNum {
		b.x, b.y = self.X, self.Y
		b.respawnNum = self.RespawnNum
		b.placed = true
	}

	goalX, goalY := state.FlagX, state.FlagY
	if self.HasFlag {
		goalX, goalY = b.targetX, b.targetY
	}
	dirX, dirY := game.Normalize(goalX-b.x, goalY-b.y)
	b.x += dirX * MoveStep
	b.y += dirY * MoveStep

	if game.Distance(b.x, b.y, b.targetX, b.targetY) < RetargetRadius {
		b.retarget()
	}

	moved := self
	moved.X, moved.Y = b.x, b.y
	cmds := []protocol.Command{protocol.PlayerCommand(moved)}

	if now.Sub(b.lastShot) < b.ShootCooldown {
		return cmds
	}

	var shots []protocol.Command
	if box, ok := b.blockingBox(state.Boxes, dirX, dirY); ok {
		shots = append(shots, b.fireAt(box.X, box.Y))
	}
	for _, target := range b.playersInRange(state.Players) {
		shots = append(shots, b.fireAt(target.X, target.Y))
	}
	if len(shots) > 0 {
		b.lastShot = now
	}
	return append(cmds, shots...)
}

// blockingBox returns the nearest box within BoxShootRadius that lies
// roughly along the travel direction.
func (b *Brain) blockingBox(boxes []game.WoodBox, dirX, dirY float32) (game.WoodBox, bool) {
	if dirX == 0 && dirY == 0 {
		return game.WoodBox{}, false
	}

	best := -1
	bestDist := float32(BoxShootRadius)
	for i, box := range boxes {
		d := game.Distance(b.x, b.y, box.X, box.Y)
		if d >= bestDist {
			continue
		}
		bx, by := game.Normalize(box.X-b.x, box.Y-b.y)
		if bx*dirX+by*dirY < aimCone {
			continue
		}
		best, bestDist = i, d
	}
	if best < 0 {
		return game.WoodBox{}, false
	}
	return boxes[best], true
}

// playersInRange returns every other player within PlayerRange, in join order
func (b *Brain) playersInRange(players []game.Player) []game.Player {
	var inRange []game.Player
	for _, p := range players {
		if p.ID == b.ID {
			continue
		}
		if game.Distance(b.x, b.y, p.X, p.Y) < PlayerRange {
			inRange = append(inRange, p)
		}
	}
	return inRange
}

func (b *Brain) fireAt(x, y float32) protocol.Command {
	dx, dy := game.Normalize(x-b.x, y-b.y)
	return protocol.BulletCommand(game.Bullet{
		X:       b.x,
		Y:       b.y,
		DX:      dx,
		DY:      dy,
		OwnerID: b.ID,
	})
}
