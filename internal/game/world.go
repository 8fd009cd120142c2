package game

import (
	"math"
	"math/rand"
)

// maxSpotAttempts bounds FindFreeSpot on a pathologically crowded board
const maxSpotAttempts = 10000

// UpdateResult describes what ApplyPlayerUpdate did with a position update
type UpdateResult uint8

const (
	UpdateApplied UpdateResult = iota
	UpdateStale                // respawn_num older than the server's
	UpdateUnknown              // no such player
)

// NewGameState creates an empty world of the given size with boxCount boxes
// placed on free spots. The flag starts at its rest point.
func NewGameState(width, height float32, boxCount int, rng *rand.Rand) GameState {
	s := GameState{
		Players: make([]Player, 0),
		Bullets: make([]Bullet, 0),
		Boxes:   make([]WoodBox, 0, boxCount),
		FlagX:   FlagRestX,
		FlagY:   FlagRestY,
		width:   width,
		height:  height,
	}
	for i := 0; i < boxCount; i++ {
		x, y := s.FindFreeSpot(rng)
		s.Boxes = append(s.Boxes, WoodBox{X: x, Y: y})
	}
	return s
}

// FindPlayer returns a pointer into s.Players for the given id
func (s *GameState) FindPlayer(id uint32) (*Player, bool) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// AddPlayer inserts a fresh player at the spawn point and returns a copy of it.
func (s *GameState) AddPlayer(id uint32) Player {
	p := Player{ID: id, X: SpawnX, Y: SpawnY}
	s.Players = append(s.Players, p)
	return p
}

// RemovePlayer deletes the player. A departing holder drops the flag.
// Returns false if the player was not present.
func (s *GameState) RemovePlayer(id uint32) bool {
	for i := range s.Players {
		if s.Players[i].ID != id {
			continue
		}
		if s.Players[i].HasFlag || (s.FlagOwnerID != nil && *s.FlagOwnerID == id) {
			s.DropFlag()
		}
		s.Players = append(s.Players[:i], s.Players[i+1:]...)
		return true
	}
	return false
}

// ApplyPlayerUpdate overwrites the position of update.ID unless the update
// carries an older respawn_num than the server holds.
func (s *GameState) ApplyPlayerUpdate(update Player) UpdateResult {
	p, ok := s.FindPlayer(update.ID)
	if !ok {
		return UpdateUnknown
	}
	if update.RespawnNum < p.RespawnNum {
		return UpdateStale
	}
	p.X = update.X
	p.Y = update.Y
	return UpdateApplied
}

// AddBullet appends b unless the world already holds maxBullets bullets.
// A maxBullets of zero or less means no cap.
func (s *GameState) AddBullet(b Bullet, maxBullets int) bool {
	if maxBullets > 0 && len(s.Bullets) >= maxBullets {
		return false
	}
	s.Bullets = append(s.Bullets, b)
	return true
}

// IsSpotFree reports whether (x, y) keeps half a box slot of separation on
// either axis from every player and every box except skipBox (-1 for none).
func (s *GameState) IsSpotFree(x, y float32, skipBox int) bool {
	const half = BoxSize / 2
	for _, p := range s.Players {
		if abs32(p.X-x) < half && abs32(p.Y-y) < half {
			return false
		}
	}
	for i, b := range s.Boxes {
		if i == skipBox {
			continue
		}
		if abs32(b.X-x) < half && abs32(b.Y-y) < half {
			return false
		}
	}
	return true
}

// FindFreeSpot draws random box-aligned candidates until one is free.
func (s *GameState) FindFreeSpot(rng *rand.Rand) (float32, float32) {
	return s.findFreeSpotExcept(rng, -1)
}

func (s *GameState) findFreeSpotExcept(rng *rand.Rand, skipBox int) (float32, float32) {
	maxX := int(s.Width()) - BoxSize
	maxY := int(s.Height()) - BoxSize
	var x, y float32
	for attempt := 0; attempt < maxSpotAttempts; attempt++ {
		x = float32(rng.Intn(maxX))
		y = float32(rng.Intn(maxY))
		if s.IsSpotFree(x, y, skipBox) {
			return x, y
		}
	}
	return x, y
}

// RespawnBox replaces box i in place with a box on a fresh free spot.
func (s *GameState) RespawnBox(i int, rng *rand.Rand) WoodBox {
	x, y := s.findFreeSpotExcept(rng, i)
	s.Boxes[i] = WoodBox{X: x, Y: y}
	return s.Boxes[i]
}

// Respawn teleports p to a free spot and bumps its respawn counter.
func (s *GameState) Respawn(p *Player, rng *rand.Rand) {
	x, y := s.FindFreeSpot(rng)
	p.X = x
	p.Y = y
	p.RespawnNum++
}

// CaptureFlag gives the flag to id. Returns true if id did not already hold it.
func (s *GameState) CaptureFlag(id uint32) bool {
	holder, ok := s.FindPlayer(id)
	if !ok {
		return false
	}
	owner := id
	s.FlagOwnerID = &owner
	s.FlagX = holder.X
	s.FlagY = holder.Y
	if holder.HasFlag {
		return false
	}
	for i := range s.Players {
		s.Players[i].HasFlag = s.Players[i].ID == id
	}
	return true
}

// DropFlag clears every holder and returns the flag to its rest point.
func (s *GameState) DropFlag() {
	for i := range s.Players {
		s.Players[i].HasFlag = false
	}
	s.FlagOwnerID = nil
	s.FlagX = FlagRestX
	s.FlagY = FlagRestY
}

// SyncFlag moves the flag onto its holder.
func (s *GameState) SyncFlag() {
	if holder, ok := s.FlagHolder(); ok {
		s.FlagX = holder.X
		s.FlagY = holder.Y
	}
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
