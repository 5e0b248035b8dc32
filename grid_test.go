package main

import (
	"math/rand"
	"testing"
)

func mustGrid(t *testing.T, rows ...string) *Grid {
	t.Helper()
	g, err := ParseGrid(rows)
	if err != nil {
		t.Fatalf("parse grid: %v", err)
	}
	return g
}

func TestParseGrid(t *testing.T) {
	g := mustGrid(t,
		"#####",
		"#.+.#",
		"#####",
	)
	if g.Width != 5 || g.Height != 3 {
		t.Fatalf("expected 5x3, got %dx%d", g.Width, g.Height)
	}
	if g.Kind(Cell{2, 1}) != CellBlock {
		t.Error("expected block at (2,1)")
	}
	if g.Kind(Cell{1, 1}) != CellEmpty {
		t.Error("expected empty at (1,1)")
	}
	if g.CountKind(CellWall) != 12 {
		t.Errorf("expected 12 walls, got %d", g.CountKind(CellWall))
	}
}

func TestParseGridErrors(t *testing.T) {
	cases := map[string][]string{
		"empty":   {},
		"ragged":  {"###", "##"},
		"unknown": {"#x#"},
	}
	for name, rows := range cases {
		if _, err := ParseGrid(rows); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestGridOutOfBoundsIsWall(t *testing.T) {
	g := NewGrid(3, 3)
	for _, c := range []Cell{{-1, 0}, {0, -1}, {3, 0}, {0, 3}} {
		if g.Kind(c) != CellWall {
			t.Errorf("%v should read as wall", c)
		}
		if g.IsWalkable(c, nil) {
			t.Errorf("%v should not be walkable", c)
		}
	}
	g.Set(Cell{5, 5}, CellBlock) // ignored
	if g.CountKind(CellBlock) != 0 {
		t.Error("out-of-bounds set should be ignored")
	}
}

func TestGenerateGrid(t *testing.T) {
	g := GenerateGrid(15, 13, 1.0, rand.New(rand.NewSource(1)))

	for x := 0; x < g.Width; x++ {
		if g.Kind(Cell{x, 0}) != CellWall || g.Kind(Cell{x, g.Height - 1}) != CellWall {
			t.Fatalf("border column %d should be walls", x)
		}
	}
	if g.Kind(Cell{2, 2}) != CellWall {
		t.Error("expected pillar at (2,2)")
	}
	for _, c := range g.SpawnCorners() {
		if g.Kind(c) != CellEmpty {
			t.Errorf("spawn %v should be empty", c)
		}
		open := 0
		for _, d := range Dirs {
			if g.Kind(c.Add(d)) == CellEmpty {
				open++
			}
		}
		if open < 2 {
			t.Errorf("spawn %v should have two open neighbours, got %d", c, open)
		}
	}
	if g.CountKind(CellBlock) == 0 {
		t.Error("density 1 should place blocks")
	}
}

func TestGenerateGridEvenDimensionsKeepsSpawnsOpen(t *testing.T) {
	g := GenerateGrid(14, 12, 1.0, rand.New(rand.NewSource(3)))
	if err := g.CheckSpawns(); err != nil {
		t.Fatalf("even-sized arena: %v", err)
	}
	for slot, c := range g.SpawnCorners() {
		if !g.IsWalkable(c, nil) {
			t.Errorf("slot %d spawn %v is not walkable", slot, c)
		}
	}
}

func TestCheckSpawns(t *testing.T) {
	if err := mustGrid(t,
		"#####",
		"#...#",
		"#.#.#",
		"#...#",
		"#####",
	).CheckSpawns(); err != nil {
		t.Errorf("open corners should pass: %v", err)
	}

	blocked := mustGrid(t,
		"#####",
		"#...#",
		"#.#.#",
		"#..+#",
		"#####",
	)
	if err := blocked.CheckSpawns(); err == nil {
		t.Error("a block on a spawn corner should fail")
	}

	tiny := mustGrid(t,
		"###",
		"#.#",
		"###",
	)
	if err := tiny.CheckSpawns(); err == nil {
		t.Error("overlapping spawn corners should fail")
	}
}

func TestGenerateGridDeterministic(t *testing.T) {
	a := GenerateGrid(15, 13, 0.5, rand.New(rand.NewSource(42)))
	b := GenerateGrid(15, 13, 0.5, rand.New(rand.NewSource(42)))
	ar, br := a.Rows(), b.Rows()
	for y := range ar {
		for x := range ar[y] {
			if ar[y][x] != br[y][x] {
				t.Fatalf("grids differ at (%d,%d)", x, y)
			}
		}
	}
}

func TestDestroyOnlyBlocks(t *testing.T) {
	g := mustGrid(t, "#+.")
	rng := rand.New(rand.NewSource(1))
	table := PickupTable{Chance: 1, Entries: []PickupWeight{{Kind: PickupKick, Weight: 1}}}

	if _, ok := g.Destroy(Cell{0, 0}, rng, table); ok {
		t.Error("walls are indestructible")
	}
	if g.Kind(Cell{0, 0}) != CellWall {
		t.Error("wall should remain")
	}
	kind, ok := g.Destroy(Cell{1, 0}, rng, table)
	if !ok || kind != PickupKick {
		t.Errorf("expected kick drop, got %q %v", kind, ok)
	}
	if g.Kind(Cell{1, 0}) != CellEmpty {
		t.Error("block should become empty")
	}
}

func TestCellAtAndCenter(t *testing.T) {
	c := Cell{3, 2}
	x, y := c.Center()
	if CellAt(x, y) != c {
		t.Errorf("center of %v maps to %v", c, CellAt(x, y))
	}
	if CellAt(TileSize-0.01, 0) != (Cell{0, 0}) {
		t.Error("just below the boundary belongs to cell 0")
	}
	if CellAt(TileSize, 0) != (Cell{1, 0}) {
		t.Error("the boundary belongs to the next cell")
	}
	if CellAt(-1, -1) != (Cell{-1, -1}) {
		t.Error("negative positions floor")
	}
}

func TestParseDir(t *testing.T) {
	for _, d := range Dirs {
		if ParseDir(d.String()) != d {
			t.Errorf("round trip failed for %v", d)
		}
		if d.Opposite().Opposite() != d {
			t.Errorf("opposite of opposite should be %v", d)
		}
	}
	if ParseDir("north") != DirNone {
		t.Error("unknown direction should be none")
	}
}
