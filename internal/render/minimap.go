// Package render draws server-side previews of the arena.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"

	"flag-arena/internal/game"
)

const (
	// DefaultScale renders the 800x600 arena at 400x300
	DefaultScale = 0.5
	MinScale     = 0.1
	MaxScale     = 2.0

	gridSize = 100.0
)

var (
	backgroundColor = color.RGBA{24, 32, 24, 255}
	gridColor       = color.RGBA{40, 52, 40, 255}
	boxColor        = color.RGBA{139, 90, 43, 255}
	bulletColor     = color.RGBA{255, 230, 120, 255}
	playerColor     = color.RGBA{90, 160, 255, 255}
	holderColor     = color.RGBA{255, 215, 0, 255}
	flagColor       = color.RGBA{220, 40, 40, 255}
)

// ClampScale keeps scale inside [MinScale, MaxScale]; zero means DefaultScale
func ClampScale(scale float64) float64 {
	switch {
	case scale == 0:
		return DefaultScale
	case scale < MinScale:
		return MinScale
	case scale > MaxScale:
		return MaxScale
	default:
		return scale
	}
}

// Minimap draws state at the given scale
func Minimap(state *game.GameState, scale float64) image.Image {
	scale = ClampScale(scale)
	worldW, worldH := float64(state.Width()), float64(state.Height())
	w := int(worldW*scale + 0.5)
	h := int(worldH*scale + 0.5)

	dc := gg.NewContext(w, h)
	dc.Scale(scale, scale)

	drawBackground(dc, worldW, worldH)
	drawBoxes(dc, state.Boxes)
	drawBullets(dc, state.Bullets)
	drawPlayers(dc, state.Players)
	drawFlag(dc, state.FlagX, state.FlagY)

	return dc.Image()
}

// WriteMinimapPNG renders state and encodes it as PNG to w
func WriteMinimapPNG(w io.Writer, state *game.GameState, scale float64) error {
	img := Minimap(state, scale)
	dc := gg.NewContextForImage(img)
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode minimap: %w", err)
	}
	return nil
}

func drawBackground(dc *gg.Context, w, h float64) {
	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for x := gridSize; x < w; x += gridSize {
		dc.DrawLine(x, 0, x, h)
		dc.Stroke()
	}
	for y := gridSize; y < h; y += gridSize {
		dc.DrawLine(0, y, w, y)
		dc.Stroke()
	}
}

// Box coordinates are the top-left corner
func drawBoxes(dc *gg.Context, boxes []game.WoodBox) {
	dc.SetColor(boxColor)
	for _, b := range boxes {
		dc.DrawRectangle(float64(b.X), float64(b.Y), game.BoxSize, game.BoxSize)
		dc.Fill()
	}
}

func drawBullets(dc *gg.Context, bullets []game.Bullet) {
	dc.SetColor(bulletColor)
	for _, b := range bullets {
		dc.DrawCircle(float64(b.X), float64(b.Y), 3)
		dc.Fill()
	}
}

func drawPlayers(dc *gg.Context, players []game.Player) {
	for _, p := range players {
		x, y := float64(p.X), float64(p.Y)

		dc.SetColor(playerColor)
		dc.DrawCircle(x, y, game.PlayerRadius)
		dc.Fill()

		if p.HasFlag {
			dc.SetColor(holderColor)
			dc.SetLineWidth(4)
			dc.DrawCircle(x, y, game.PlayerRadius+4)
			dc.Stroke()
		}
	}
}

func drawFlag(dc *gg.Context, x, y float32) {
	fx, fy := float64(x), float64(y)

	dc.SetColor(color.White)
	dc.SetLineWidth(2)
	dc.DrawLine(fx, fy, fx, fy-24)
	dc.Stroke()

	dc.SetColor(flagColor)
	dc.MoveTo(fx, fy-24)
	dc.LineTo(fx+16, fy-18)
	dc.LineTo(fx, fy-12)
	dc.ClosePath()
	dc.Fill()
}
