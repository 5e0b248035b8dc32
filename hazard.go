package main

import (
	"math"
	"math/rand"
	"sort"
)

// HazardConfig holds the timing rules of the hazard engine
type HazardConfig struct {
	Fuse          float64 // seconds from placement to detonation
	BlastDuration float64 // seconds a blast cell stays lethal
	ChainDelay    float64 // seconds before a hazard hit by a blast detonates
	KickEnabled   bool
	KickSpeed     float64 // px/s
	Pickups       PickupTable
}

// NewHazardConfig derives engine timing from arena settings
func NewHazardConfig(a ArenaConfig) HazardConfig {
	return HazardConfig{
		Fuse:          a.HazardFuse,
		BlastDuration: a.BlastDuration,
		ChainDelay:    a.ChainDelay,
		KickEnabled:   a.KickEnabled,
		KickSpeed:     a.KickSpeed * TileSize,
		Pickups:       NewPickupTable(a.PickupChance, a.PickupWeights),
	}
}

// Hazard is a placed, timed brain that detonates into a cross-shaped blast
type Hazard struct {
	ID      int
	OwnerID string
	Cell    Cell
	X, Y    float64 // world position, differs from the cell center only while kicked
	Timer   float64 // seconds remaining
	Range   int
	Solid   bool
	Kicked  bool
	KickDir Dir
}

// ToState converts to protocol state
func (h *Hazard) ToState() HazardState {
	return HazardState{
		ID:    h.ID,
		X:     h.Cell.X,
		Y:     h.Cell.Y,
		Owner: h.OwnerID,
		Range: h.Range,
		Timer: round2(h.Timer),
	}
}

// Blast is the transient lethal footprint of a detonation on one cell
type Blast struct {
	Cell      Cell
	OwnerID   string
	CreatedAt float64
	Duration  float64
}

// ToState converts to protocol state
func (b *Blast) ToState() BlastState {
	return BlastState{X: b.Cell.X, Y: b.Cell.Y, CreatedAt: round2(b.CreatedAt)}
}

// AdvanceResult reports what one engine step changed
type AdvanceResult struct {
	Detonated  []*Hazard
	BlastCells []Blast
	Drops      []Pickup
}

// HazardEngine owns the live hazards and blast cells of one arena
type HazardEngine struct {
	cfg     HazardConfig
	hazards []*Hazard // placement order
	byCell  map[Cell]*Hazard
	blasts  map[Cell]*Blast
	now     float64
	nextID  int
}

// NewHazardEngine creates an empty engine
func NewHazardEngine(cfg HazardConfig) *HazardEngine {
	return &HazardEngine{
		cfg:    cfg,
		byCell: make(map[Cell]*Hazard),
		blasts: make(map[Cell]*Blast),
	}
}

// Config returns the engine's timing rules
func (e *HazardEngine) Config() HazardConfig {
	return e.cfg
}

// Now returns the engine clock in seconds
func (e *HazardEngine) Now() float64 {
	return e.now
}

// Hazards returns the live hazards in placement order
func (e *HazardEngine) Hazards() []*Hazard {
	return e.hazards
}

// At returns the hazard occupying c, or nil
func (e *HazardEngine) At(c Cell) *Hazard {
	return e.byCell[c]
}

// SolidAt reports whether a solid hazard blocks c
func (e *HazardEngine) SolidAt(c Cell) bool {
	h := e.byCell[c]
	return h != nil && h.Solid
}

// BlastAt reports whether c is inside an active blast
func (e *HazardEngine) BlastAt(c Cell) bool {
	_, ok := e.blasts[c]
	return ok
}

// BlastOwner returns the owner of the blast covering c
func (e *HazardEngine) BlastOwner(c Cell) (string, bool) {
	b, ok := e.blasts[c]
	if !ok {
		return "", false
	}
	return b.OwnerID, true
}

// Blasts returns the active blast cells in row-major order
func (e *HazardEngine) Blasts() []*Blast {
	list := make([]*Blast, 0, len(e.blasts))
	for _, b := range e.blasts {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Cell.Y != list[j].Cell.Y {
			return list[i].Cell.Y < list[j].Cell.Y
		}
		return list[i].Cell.X < list[j].Cell.X
	})
	return list
}

// Place drops a hazard at the agent's cell. Capacity, curse and occupancy
// violations are silent no-ops.
func (e *HazardEngine) Place(a *Agent, g *Grid) (*Hazard, bool) {
	if a == nil || !a.Alive || a.Curse == CurseNoHazard {
		return nil, false
	}
	if a.HazardsPlaced >= a.HazardCapacity {
		return nil, false
	}
	c := a.Cell()
	if g.Kind(c) != CellEmpty || e.byCell[c] != nil {
		return nil, false
	}
	e.nextID++
	x, y := c.Center()
	h := &Hazard{
		ID:      e.nextID,
		OwnerID: a.ID,
		Cell:    c,
		X:       x,
		Y:       y,
		Timer:   e.cfg.Fuse,
		Range:   a.EffectiveRange(),
	}
	e.hazards = append(e.hazards, h)
	e.byCell[c] = h
	a.HazardsPlaced++
	return h, true
}

// Kick sets a solid hazard sliding in direction d. Returns false when kicking
// is disabled or the way is already blocked.
func (e *HazardEngine) Kick(h *Hazard, d Dir, g *Grid) bool {
	if !e.cfg.KickEnabled || h == nil || h.Kicked || d == DirNone {
		return false
	}
	if !e.kickClear(h.Cell.Add(d), g) {
		return false
	}
	h.Kicked = true
	h.KickDir = d
	return true
}

// Advance runs one ordered engine step: kicked hazards slide, solidity is
// refreshed, timers tick, due hazards detonate, expired blasts are removed.
func (e *HazardEngine) Advance(dt float64, g *Grid, agents map[string]*Agent, rng *rand.Rand) AdvanceResult {
	var res AdvanceResult
	e.now += dt

	for _, h := range e.hazards {
		if h.Kicked {
			e.slide(h, dt, g)
			if _, hot := e.blasts[h.Cell]; hot && h.Timer > e.cfg.ChainDelay {
				h.Timer = e.cfg.ChainDelay
			}
		}
	}

	for _, h := range e.hazards {
		if h.Solid {
			continue
		}
		owner := agents[h.OwnerID]
		if owner == nil || !owner.Alive || owner.Cell() != h.Cell {
			h.Solid = true
		}
	}

	for _, h := range e.hazards {
		h.Timer -= dt
	}

	for {
		due := e.nextDue()
		if due == nil {
			break
		}
		e.detonate(due, g, agents, rng, &res)
	}

	for c, b := range e.blasts {
		if e.now-b.CreatedAt >= b.Duration {
			delete(e.blasts, c)
		}
	}
	return res
}

func (e *HazardEngine) nextDue() *Hazard {
	for _, h := range e.hazards {
		if h.Timer <= 0 {
			return h
		}
	}
	return nil
}

func (e *HazardEngine) remove(h *Hazard) {
	for i, o := range e.hazards {
		if o == h {
			e.hazards = append(e.hazards[:i], e.hazards[i+1:]...)
			break
		}
	}
	if e.byCell[h.Cell] == h {
		delete(e.byCell, h.Cell)
	}
}

func (e *HazardEngine) detonate(h *Hazard, g *Grid, agents map[string]*Agent, rng *rand.Rand, res *AdvanceResult) {
	e.remove(h)
	if owner := agents[h.OwnerID]; owner != nil && owner.HazardsPlaced > 0 {
		owner.HazardsPlaced--
	}
	res.Detonated = append(res.Detonated, h)

	blastFootprint(g, h.Cell, h.Range, func(c Cell, kind CellKind) {
		b := e.blasts[c]
		if b == nil {
			b = &Blast{Cell: c}
			e.blasts[c] = b
		}
		b.OwnerID = h.OwnerID
		b.CreatedAt = e.now
		b.Duration = e.cfg.BlastDuration
		res.BlastCells = append(res.BlastCells, *b)

		if kind == CellBlock {
			if drop, ok := g.Destroy(c, rng, e.cfg.Pickups); ok {
				res.Drops = append(res.Drops, Pickup{Cell: c, Kind: drop})
			}
		}
		if other := e.byCell[c]; other != nil && other.Timer > e.cfg.ChainDelay {
			other.Timer = e.cfg.ChainDelay
		}
	})
}

// blastFootprint walks the cross of a detonation at origin. Walls stop a
// direction without being visited; a block is visited and then stops it.
func blastFootprint(g *Grid, origin Cell, blastRange int, visit func(c Cell, kind CellKind)) {
	visit(origin, g.Kind(origin))
	for _, d := range Dirs {
		c := origin
		for i := 1; i <= blastRange; i++ {
			c = c.Add(d)
			kind := g.Kind(c)
			if kind == CellWall {
				break
			}
			visit(c, kind)
			if kind == CellBlock {
				break
			}
		}
	}
}

func (e *HazardEngine) kickClear(c Cell, g *Grid) bool {
	return g.Kind(c) == CellEmpty && e.byCell[c] == nil
}

// slide moves a kicked hazard, handing it to the next cell once its center
// crosses the boundary, and snaps it to its cell center when the way ahead closes.
func (e *HazardEngine) slide(h *Hazard, dt float64, g *Grid) {
	dx, dy := h.KickDir.Delta()
	step := e.cfg.KickSpeed * dt
	for step > 1e-9 {
		cx, cy := h.Cell.Center()
		off := (h.X-cx)*float64(dx) + (h.Y-cy)*float64(dy)
		next := h.Cell.Add(h.KickDir)
		if off >= 0 && !e.kickClear(next, g) {
			h.X, h.Y = cx, cy
			h.Kicked = false
			h.KickDir = DirNone
			return
		}
		var dist float64
		if off < 0 {
			dist = -off
		} else {
			dist = TileSize/2 - off
		}
		move := math.Min(step, dist)
		h.X += move * float64(dx)
		h.Y += move * float64(dy)
		step -= move
		if off >= 0 && move >= dist {
			delete(e.byCell, h.Cell)
			h.Cell = next
			e.byCell[next] = h
			// push the center a hair past the boundary so CellAt agrees
			h.X += 1e-6 * float64(dx)
			h.Y += 1e-6 * float64(dy)
		}
	}
}
