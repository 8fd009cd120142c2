// Package spatial provides a uniform grid for broad-phase proximity queries.
//
// Entities are stored as uint32 indices into the caller's slice, and cells
// are preallocated and reused between ticks.
package spatial

// Grid buckets entity indices into fixed-size square cells.
// Positions outside the world are clamped into the border cells, so queries
// near or beyond the edge still see them.
//
// Memory layout: cells[row*cols+col]
type Grid struct {
	cellSize    float32
	invCellSize float32
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32
	count       int
}

// NewGrid creates a grid covering width x height.
// cellSize should be at least the largest query radius.
func NewGrid(width, height, cellSize float32) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	cells := make([][]uint32, cols*rows)
	for i := range cells {
		cells[i] = make([]uint32, 0, 4)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 32),
	}
}

// Clear empties all cells, keeping their capacity
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert adds entity id at (x, y)
func (g *Grid) Insert(id uint32, x, y float32) {
	idx := g.row(y)*g.cols + g.col(x)
	g.cells[idx] = append(g.cells[idx], id)
	g.count++
}

// Len returns the number of inserted entities
func (g *Grid) Len() int {
	return g.count
}

// QueryRadius returns every id whose cell overlaps the square around
// (cx, cy) with half-side radius. Candidates still need an exact distance
// check.
//
// The returned slice is reused by the next call.
func (g *Grid) QueryRadius(cx, cy, radius float32) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, maxCol := g.col(cx-radius), g.col(cx+radius)
	minRow, maxRow := g.row(cy-radius), g.row(cy+radius)

	for row := minRow; row <= maxRow; row++ {
		base := row * g.cols
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[base+col]...)
		}
	}
	return g.scratch
}

// Dimensions returns the grid size in cells
func (g *Grid) Dimensions() (cols, rows int) {
	return g.cols, g.rows
}

func (g *Grid) col(x float32) int {
	return clamp(int(x*g.invCellSize), g.cols-1)
}

func (g *Grid) row(y float32) int {
	return clamp(int(y*g.invCellSize), g.rows-1)
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
