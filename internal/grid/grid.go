// Package grid provides the binary occupancy grid used for top-down maps.
package grid

import (
	"bytes"
	"fmt"
)

// Grid is a 2D binary occupancy grid stored row-major, one byte per cell.
// A cell is either 0 (free/unknown) or 1 (occupied/seen). One byte per
// element matches the layout the map digest is computed over.
type Grid struct {
	Rows  int
	Cols  int
	Cells []uint8
}

// New creates an all-zero grid with the given dimensions.
func New(rows, cols int) *Grid {
	return &Grid{
		Rows:  rows,
		Cols:  cols,
		Cells: make([]uint8, rows*cols),
	}
}

// At returns true if the cell at (row, col) is set.
func (g *Grid) At(row, col int) bool {
	return g.Cells[row*g.Cols+col] != 0
}

// Set marks or clears the cell at (row, col).
func (g *Grid) Set(row, col int, v bool) {
	if v {
		g.Cells[row*g.Cols+col] = 1
	} else {
		g.Cells[row*g.Cols+col] = 0
	}
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return g.Rows * g.Cols
}

// Equal reports whether two grids have identical shape and content.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil {
		return false
	}
	return g.Rows == other.Rows && g.Cols == other.Cols &&
		bytes.Equal(g.Cells, other.Cells)
}

// Pack bit-packs the cells MSB-first, eight cells per byte, padding the
// final byte with zero bits when Rows*Cols is not a multiple of eight.
func (g *Grid) Pack() []byte {
	packed := make([]byte, (g.Len()+7)/8)
	for i, c := range g.Cells {
		if c != 0 {
			packed[i/8] |= 1 << uint(7-i%8)
		}
	}
	return packed
}

// Unpack reverses Pack for a grid of the given shape. It fails if the
// packed slice is too short to hold rows*cols bits.
func Unpack(packed []byte, rows, cols int) (*Grid, error) {
	n := rows * cols
	if len(packed) < (n+7)/8 {
		return nil, fmt.Errorf("packed data too short: %d bytes for %dx%d grid", len(packed), rows, cols)
	}
	g := New(rows, cols)
	for i := 0; i < n; i++ {
		if packed[i/8]&(1<<uint(7-i%8)) != 0 {
			g.Cells[i] = 1
		}
	}
	return g, nil
}
