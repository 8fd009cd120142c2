package render

import (
	"bytes"
	"image/png"
	"testing"

	"flag-arena/internal/game"
)

func testState() *game.GameState {
	owner := uint32(1)
	return &game.GameState{
		Players:     []game.Player{{ID: 1, X: 400, Y: 300, HasFlag: true}, {ID: 2, X: 100, Y: 100}},
		FlagX:       400,
		FlagY:       300,
		FlagOwnerID: &owner,
		Bullets:     []game.Bullet{{X: 200, Y: 200, DX: 1}},
		Boxes:       []game.WoodBox{{X: 600, Y: 500}},
	}
}

// TestMinimapSize verifies output dimensions follow the scale
func TestMinimapSize(t *testing.T) {
	tests := []struct {
		scale float64
		w, h  int
	}{
		{0, 400, 300},
		{0.5, 400, 300},
		{1, 800, 600},
		{0.01, 80, 60},
		{10, 1600, 1200},
	}

	for _, tt := range tests {
		img := Minimap(testState(), tt.scale)
		b := img.Bounds()
		if b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("scale %v: expected %dx%d, got %dx%d", tt.scale, tt.w, tt.h, b.Dx(), b.Dy())
		}
	}
}

// TestMinimapDrawsBox verifies a box pixel carries the box color
func TestMinimapDrawsBox(t *testing.T) {
	img := Minimap(testState(), 1)

	r, g, b, _ := img.At(610, 510).RGBA()
	br, bg, bb, _ := boxColor.RGBA()
	if r != br || g != bg || b != bb {
		t.Errorf("Expected box color at box center, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

// TestWriteMinimapPNG verifies the output decodes as PNG
func TestWriteMinimapPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMinimapPNG(&buf, testState(), DefaultScale); err != nil {
		t.Fatalf("WriteMinimapPNG failed: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 400 {
		t.Errorf("Expected width 400, got %d", img.Bounds().Dx())
	}
}
