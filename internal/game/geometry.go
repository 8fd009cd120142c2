package game

import "math"

// Distance returns the Euclidean distance between (x1, y1) and (x2, y2).
func Distance(x1, y1, x2, y2 float32) float32 {
	dx := float64(x2 - x1)
	dy := float64(y2 - y1)
	return float32(math.Hypot(dx, dy))
}

// Normalize returns the unit vector pointing along (dx, dy).
// A zero vector is returned unchanged.
func Normalize(dx, dy float32) (float32, float32) {
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return 0, 0
	}
	return dx / length, dy / length
}
