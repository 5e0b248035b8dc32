package main

import (
	"fmt"
	"math/rand"
)

// TileSize is the edge length of one grid cell in world pixels
const TileSize = 32.0

// CellKind classifies a static grid cell
type CellKind int

const (
	CellEmpty CellKind = 0
	CellWall  CellKind = 1 // indestructible
	CellBlock CellKind = 2 // destructible
)

// Cell is a grid coordinate
type Cell struct {
	X, Y int
}

// Add returns the neighbouring cell in direction d
func (c Cell) Add(d Dir) Cell {
	dx, dy := d.Delta()
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

// Center returns the world position of the cell center
func (c Cell) Center() (float64, float64) {
	return float64(c.X)*TileSize + TileSize/2, float64(c.Y)*TileSize + TileSize/2
}

// CellAt returns the cell containing a world position
func CellAt(x, y float64) Cell {
	return Cell{X: floorDiv(x), Y: floorDiv(y)}
}

func floorDiv(v float64) int {
	i := int(v / TileSize)
	if v < 0 && float64(i)*TileSize != v {
		i--
	}
	return i
}

// Dir is one of the four axis directions, or none
type Dir int

const (
	DirNone Dir = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

// Dirs lists the four directions in search order
var Dirs = [4]Dir{DirUp, DirDown, DirLeft, DirRight}

// Delta returns the grid offset of one step
func (d Dir) Delta() (int, int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	}
	return 0, 0
}

// Opposite returns the reverse direction
func (d Dir) Opposite() Dir {
	switch d {
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	case DirLeft:
		return DirRight
	case DirRight:
		return DirLeft
	}
	return DirNone
}

// Horizontal reports whether d moves along x
func (d Dir) Horizontal() bool {
	return d == DirLeft || d == DirRight
}

func (d Dir) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	}
	return ""
}

// ParseDir converts a wire direction; unknown values map to DirNone
func ParseDir(s string) Dir {
	switch s {
	case "up":
		return DirUp
	case "down":
		return DirDown
	case "left":
		return DirLeft
	case "right":
		return DirRight
	}
	return DirNone
}

// SolidChecker reports whether a solid hazard blocks a cell
type SolidChecker interface {
	SolidAt(c Cell) bool
}

// Grid is the static arena: walls, destructible blocks and open ground
type Grid struct {
	Width, Height int
	cells         []CellKind
}

// NewGrid creates an all-empty grid
func NewGrid(w, h int) *Grid {
	return &Grid{Width: w, Height: h, cells: make([]CellKind, w*h)}
}

// GenerateGrid builds the classic arena: border and pillar walls, random
// blocks, and clear spawn corners.
func GenerateGrid(w, h int, density float64, rng *rand.Rand) *Grid {
	g := NewGrid(w, h)
	reserved := make(map[Cell]bool, 12)
	for _, c := range g.SpawnCorners() {
		reserved[c] = true
		for _, d := range Dirs {
			reserved[c.Add(d)] = true
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := Cell{x, y}
			switch {
			case x == 0 || y == 0 || x == w-1 || y == h-1:
				g.Set(c, CellWall)
			case reserved[c]:
			case x%2 == 0 && y%2 == 0:
				g.Set(c, CellWall)
			case rng.Float64() < density:
				g.Set(c, CellBlock)
			}
		}
	}
	return g
}

// ParseGrid builds a grid from rows of '#' (wall), '+' (block) and '.' (empty)
func ParseGrid(rows []string) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("layout is empty")
	}
	g := NewGrid(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != g.Width {
			return nil, fmt.Errorf("layout row %d has width %d, want %d", y, len(row), g.Width)
		}
		for x, ch := range row {
			switch ch {
			case '#':
				g.Set(Cell{x, y}, CellWall)
			case '+':
				g.Set(Cell{x, y}, CellBlock)
			case '.':
			default:
				return nil, fmt.Errorf("layout row %d: unknown cell %q", y, ch)
			}
		}
	}
	return g, nil
}

// Clone returns an independent copy
func (g *Grid) Clone() *Grid {
	cp := &Grid{Width: g.Width, Height: g.Height, cells: make([]CellKind, len(g.cells))}
	copy(cp.cells, g.cells)
	return cp
}

// InBounds reports whether c lies inside the grid
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

// Kind returns the cell kind; out-of-bounds cells read as walls
func (g *Grid) Kind(c Cell) CellKind {
	if !g.InBounds(c) {
		return CellWall
	}
	return g.cells[c.Y*g.Width+c.X]
}

// Set overwrites a cell; out-of-bounds writes are ignored
func (g *Grid) Set(c Cell, k CellKind) {
	if !g.InBounds(c) {
		return
	}
	g.cells[c.Y*g.Width+c.X] = k
}

// IsWalkable reports whether an agent may enter c
func (g *Grid) IsWalkable(c Cell, hazards SolidChecker) bool {
	if g.Kind(c) != CellEmpty {
		return false
	}
	return hazards == nil || !hazards.SolidAt(c)
}

// Destroy turns a block into ground and possibly rolls a pickup drop
func (g *Grid) Destroy(c Cell, rng *rand.Rand, table PickupTable) (PickupKind, bool) {
	if g.Kind(c) != CellBlock {
		return "", false
	}
	g.Set(c, CellEmpty)
	return table.Roll(rng)
}

// SpawnCorners returns the four start cells in slot order
func (g *Grid) SpawnCorners() [4]Cell {
	return [4]Cell{
		{1, 1},
		{g.Width - 2, g.Height - 2},
		{g.Width - 2, 1},
		{1, g.Height - 2},
	}
}

// CheckSpawns reports an error unless the four spawn corners are distinct
// cells of open ground
func (g *Grid) CheckSpawns() error {
	seen := make(map[Cell]bool, 4)
	for slot, c := range g.SpawnCorners() {
		if seen[c] {
			return fmt.Errorf("spawn %d at %v overlaps another spawn", slot, c)
		}
		seen[c] = true
		if g.Kind(c) != CellEmpty {
			return fmt.Errorf("spawn %d at %v is not open ground", slot, c)
		}
	}
	return nil
}

// Rows returns the cell kinds as a 2D array, row-major
func (g *Grid) Rows() [][]CellKind {
	rows := make([][]CellKind, g.Height)
	for y := range rows {
		rows[y] = make([]CellKind, g.Width)
		copy(rows[y], g.cells[y*g.Width:(y+1)*g.Width])
	}
	return rows
}

// CountKind returns how many cells have kind k
func (g *Grid) CountKind(k CellKind) int {
	n := 0
	for _, v := range g.cells {
		if v == k {
			n++
		}
	}
	return n
}
