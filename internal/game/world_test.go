package game

import (
	"math"
	"math/rand"
	"testing"
)

// TestDistance verifies Euclidean distance
func TestDistance(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 float32
		want           float32
	}{
		{"same point", 5, 5, 5, 5, 0},
		{"3-4-5 triangle", 0, 0, 3, 4, 5},
		{"negative coords", -1, -1, 2, 3, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.x1, tt.y1, tt.x2, tt.y2); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestNormalize verifies unit vectors and the zero vector
func TestNormalize(t *testing.T) {
	dx, dy := Normalize(3, 4)
	if math.Abs(float64(dx)-0.6) > 1e-6 || math.Abs(float64(dy)-0.8) > 1e-6 {
		t.Errorf("Expected (0.6, 0.8), got (%v, %v)", dx, dy)
	}

	dx, dy = Normalize(0, 0)
	if dx != 0 || dy != 0 {
		t.Errorf("Expected zero vector, got (%v, %v)", dx, dy)
	}
}

// TestNewGameStateSpacing verifies initial boxes respect spacing
func TestNewGameStateSpacing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewGameState(WorldWidth, WorldHeight, DefaultBoxCount, rng)

	if len(s.Boxes) != DefaultBoxCount {
		t.Fatalf("Expected %d boxes, got %d", DefaultBoxCount, len(s.Boxes))
	}
	for i, b := range s.Boxes {
		if b.X < 0 || b.X >= WorldWidth-BoxSize || b.Y < 0 || b.Y >= WorldHeight-BoxSize {
			t.Errorf("Box %d out of range: (%v, %v)", i, b.X, b.Y)
		}
		if !s.IsSpotFree(b.X, b.Y, i) {
			t.Errorf("Box %d at (%v, %v) overlaps another box", i, b.X, b.Y)
		}
	}
}

// TestIsSpotFree verifies the half-slot rule on both axes
func TestIsSpotFree(t *testing.T) {
	s := GameState{
		Players: []Player{{ID: 1, X: 100, Y: 100}},
		Boxes:   []WoodBox{{X: 300, Y: 300}},
	}

	tests := []struct {
		name string
		x, y float32
		want bool
	}{
		{"on player", 100, 100, false},
		{"near player", 109, 95, false},
		{"far on x", 110, 100, true},
		{"far on y", 100, 111, true},
		{"on box", 305, 305, false},
		{"clear", 500, 500, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsSpotFree(tt.x, tt.y, -1); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if !s.IsSpotFree(300, 300, 0) {
		t.Error("Skipped box should not block its own spot")
	}
}

// TestRespawnBoxSequence verifies every replacement satisfies spacing
func TestRespawnBoxSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s := NewGameState(WorldWidth, WorldHeight, DefaultBoxCount, rng)
	for id := uint32(1); id <= 8; id++ {
		p := s.AddPlayer(id)
		x, y := s.FindFreeSpot(rng)
		s.ApplyPlayerUpdate(Player{ID: p.ID, X: x, Y: y})
	}

	for i := 0; i < 500; i++ {
		idx := rng.Intn(len(s.Boxes))
		b := s.RespawnBox(idx, rng)
		if !s.IsSpotFree(b.X, b.Y, idx) {
			t.Fatalf("Replacement %d at (%v, %v) violates spacing", i, b.X, b.Y)
		}
		if len(s.Boxes) != DefaultBoxCount {
			t.Fatalf("Expected box count to stay %d, got %d", DefaultBoxCount, len(s.Boxes))
		}
	}
}

// TestRespawnMonotonic verifies respawn_num only increases
func TestRespawnMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := NewGameState(WorldWidth, WorldHeight, 0, rng)
	s.AddPlayer(1)

	var last uint32
	for i := 0; i < 20; i++ {
		p, _ := s.FindPlayer(1)
		s.Respawn(p, rng)
		if p.RespawnNum <= last {
			t.Fatalf("respawn_num went from %d to %d", last, p.RespawnNum)
		}
		last = p.RespawnNum
	}
}

// TestApplyPlayerUpdatePositionOnly verifies no other field is accepted
func TestApplyPlayerUpdatePositionOnly(t *testing.T) {
	s := GameState{}
	s.AddPlayer(1)

	res := s.ApplyPlayerUpdate(Player{ID: 1, X: 42, Y: 24, HasFlag: true, Score: 99, RespawnNum: 5})
	if res != UpdateApplied {
		t.Fatalf("Expected UpdateApplied, got %d", res)
	}
	p, _ := s.FindPlayer(1)
	if p.X != 42 || p.Y != 24 {
		t.Errorf("Expected position (42, 24), got (%v, %v)", p.X, p.Y)
	}
	if p.HasFlag || p.Score != 0 || p.RespawnNum != 0 {
		t.Errorf("Update leaked non-position fields: %+v", *p)
	}

	if res := s.ApplyPlayerUpdate(Player{ID: 9}); res != UpdateUnknown {
		t.Errorf("Expected UpdateUnknown, got %d", res)
	}
}

// TestCloneIsDeep verifies clones share no memory
func TestCloneIsDeep(t *testing.T) {
	s := GameState{}
	s.AddPlayer(1)
	s.AddBullet(Bullet{X: 1}, 0)
	s.Boxes = append(s.Boxes, WoodBox{X: 5})
	s.CaptureFlag(1)

	c := s.Clone()
	s.Players[0].X = 999
	s.Bullets[0].X = 999
	s.Boxes[0].X = 999
	*s.FlagOwnerID = 999

	if c.Players[0].X == 999 || c.Bullets[0].X == 999 || c.Boxes[0].X == 999 {
		t.Error("Clone shares slices with the original")
	}
	if *c.FlagOwnerID != 1 {
		t.Error("Clone shares the flag owner pointer")
	}
}
