package game

// World geometry and gameplay constants
const (
	WorldWidth  = 800
	WorldHeight = 600

	PlayerRadius = 20 // Bullet-to-player hit radius
	BoxSize      = 20 // Box side length, also the bullet-to-box hit radius

	BulletSpeed      = 20 // Units per tick
	FlagPickupRadius = 10

	SpawnX = 100
	SpawnY = 100

	FlagRestX = 400
	FlagRestY = 300

	DefaultBoxCount = 20
)

// Player is a connected participant (human or bot).
// Only X and Y are ever accepted from the network.
type Player struct {
	ID         uint32  `json:"id"`
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	HasFlag    bool    `json:"has_flag"`
	RespawnNum uint32  `json:"respawn_num"`
	Score      int32   `json:"score"`
}

// Bullet travels along a unit direction until it leaves the world or hits a box.
type Bullet struct {
	X       float32 `json:"x"`
	Y       float32 `json:"y"`
	DX      float32 `json:"dx"`
	DY      float32 `json:"dy"`
	OwnerID uint32  `json:"owner_id"`
}

// Advance moves the bullet one tick along its direction.
func (b *Bullet) Advance() {
	b.X += b.DX * BulletSpeed
	b.Y += b.DY * BulletSpeed
}

// InBounds reports whether the bullet is still inside a width x height world.
func (b Bullet) InBounds(width, height float32) bool {
	return b.X >= 0 && b.X <= width && b.Y >= 0 && b.Y <= height
}

// WoodBox is a destructible obstacle.
type WoodBox struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// GameState is the whole world. The JSON form is also the broadcast wire document.
type GameState struct {
	Players     []Player  `json:"players"`
	FlagX       float32   `json:"flag_x"`
	FlagY       float32   `json:"flag_y"`
	FlagOwnerID *uint32   `json:"flag_owner_id"`
	Bullets     []Bullet  `json:"bullets"`
	Boxes       []WoodBox `json:"boxes"`

	width  float32
	height float32
}

// Clone returns a deep copy that shares no memory with s.
func (s *GameState) Clone() GameState {
	c := GameState{
		Players: make([]Player, len(s.Players)),
		FlagX:   s.FlagX,
		FlagY:   s.FlagY,
		Bullets: make([]Bullet, len(s.Bullets)),
		Boxes:   make([]WoodBox, len(s.Boxes)),
		width:   s.width,
		height:  s.height,
	}
	copy(c.Players, s.Players)
	copy(c.Bullets, s.Bullets)
	copy(c.Boxes, s.Boxes)
	if s.FlagOwnerID != nil {
		id := *s.FlagOwnerID
		c.FlagOwnerID = &id
	}
	return c
}

// Width returns the world width. Zero-value states fall back to the default world.
func (s *GameState) Width() float32 {
	if s.width == 0 {
		return WorldWidth
	}
	return s.width
}

// Height returns the world height.
func (s *GameState) Height() float32 {
	if s.height == 0 {
		return WorldHeight
	}
	return s.height
}

// FlagHolder returns the current flag holder, if any.
func (s *GameState) FlagHolder() (*Player, bool) {
	if s.FlagOwnerID == nil {
		return nil, false
	}
	return s.FindPlayer(*s.FlagOwnerID)
}
