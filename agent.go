package main

import "math"

// RoomCapacity is the number of participant slots per room
const RoomCapacity = 4

// Agent is one participant in a room, human or bot
type Agent struct {
	ID   string
	Name string
	Bot  bool
	Slot int

	X, Y           float64 // world center in pixels
	Speed          float64 // pixels/s
	HazardCapacity int
	HazardsPlaced  int
	BlastRange     int
	Alive          bool
	Facing         Dir
	Intent         Dir  // movement requested for this tick
	DropHazard     bool // placement requested for this tick
	Kick           bool
	Curse          CurseKind
	CurseT         float64 // curse seconds remaining

	Connected bool
	Ready     bool
	Wins      int
	Kills     int
	Deaths    int

	stuckT float64
	Stuck  bool // no progress for the configured stuck time
}

// NewAgent creates an agent that has not spawned yet
func NewAgent(id, name string, slot int, bot bool) *Agent {
	return &Agent{
		ID:        id,
		Name:      name,
		Slot:      slot,
		Bot:       bot,
		Connected: !bot,
		Facing:    DirDown,
	}
}

// Spawn places the agent at the center of c with fresh per-match stats
func (a *Agent) Spawn(c Cell, cfg ArenaConfig) {
	a.X, a.Y = c.Center()
	a.Speed = cfg.AgentSpeed * TileSize
	a.HazardCapacity = cfg.HazardCapacity
	a.HazardsPlaced = 0
	a.BlastRange = cfg.BlastRange
	a.Alive = true
	a.Facing = DirDown
	a.Intent = DirNone
	a.DropHazard = false
	a.Kick = false
	a.Curse = CurseNone
	a.CurseT = 0
	a.stuckT = 0
	a.Stuck = false
}

// Cell returns the grid cell containing the agent's center
func (a *Agent) Cell() Cell {
	return CellAt(a.X, a.Y)
}

// EffectiveRange returns the blast range after curses
func (a *Agent) EffectiveRange() int {
	if a.Curse == CurseWeak {
		return 1
	}
	return a.BlastRange
}

// EffectiveSpeed returns the movement speed in pixels/s after curses
func (a *Agent) EffectiveSpeed() float64 {
	if a.Curse == CurseSlow {
		return a.Speed / 2
	}
	return a.Speed
}

// Kill marks the agent dead. Returns false if it already was.
func (a *Agent) Kill() bool {
	if !a.Alive {
		return false
	}
	a.Alive = false
	a.Intent = DirNone
	a.DropHazard = false
	a.Deaths++
	return true
}

// TickCurse counts down an active curse
func (a *Agent) TickCurse(dt float64) {
	if a.Curse == CurseNone {
		return
	}
	a.CurseT -= dt
	if a.CurseT <= 0 {
		a.Curse = CurseNone
		a.CurseT = 0
	}
}

// Move advances the agent along its intent for one tick. The off-axis
// coordinate is pulled to the lane center first; the agent never passes the
// center of its cell toward a cell it cannot enter. An agent with kick that
// reaches a solid hazard pushes it.
func (a *Agent) Move(dt float64, g *Grid, hz *HazardEngine, stuckAfter float64) {
	if !a.Alive || a.Intent == DirNone {
		a.stuckT = 0
		a.Stuck = false
		return
	}
	d := a.Intent
	a.Facing = d
	budget := a.EffectiveSpeed() * dt
	startX, startY := a.X, a.Y

	cx, cy := a.Cell().Center()
	if d.Horizontal() {
		a.Y, budget = approach(a.Y, cy, budget)
	} else {
		a.X, budget = approach(a.X, cx, budget)
	}

	dx, dy := d.Delta()
	for budget > 1e-9 {
		c := a.Cell()
		cx, cy := c.Center()
		along := (a.X-cx)*float64(dx) + (a.Y-cy)*float64(dy)
		next := c.Add(d)

		var dist float64
		if g.IsWalkable(next, hz) {
			dist = TileSize - along
		} else {
			if along >= 0 {
				if h := hz.At(next); a.Kick && h != nil && h.Solid {
					hz.Kick(h, d, g)
				}
				break
			}
			dist = -along
		}
		move := math.Min(budget, dist)
		a.X += move * float64(dx)
		a.Y += move * float64(dy)
		budget -= move
	}

	if math.Abs(a.X-startX)+math.Abs(a.Y-startY) < 1e-6 {
		a.stuckT += dt
		a.Stuck = a.stuckT >= stuckAfter
	} else {
		a.stuckT = 0
		a.Stuck = false
	}
}

// approach moves v toward target by at most budget and returns the new value
// and the unused budget.
func approach(v, target, budget float64) (float64, float64) {
	diff := target - v
	if math.Abs(diff) <= budget {
		return target, budget - math.Abs(diff)
	}
	if diff > 0 {
		return v + budget, 0
	}
	return v - budget, 0
}

// ToState converts to protocol state
func (a *Agent) ToState() AgentState {
	return AgentState{
		ID:        a.ID,
		Name:      a.Name,
		X:         round2(a.X),
		Y:         round2(a.Y),
		Alive:     a.Alive,
		Facing:    a.Facing.String(),
		Bot:       a.Bot,
		Hazards:   a.HazardCapacity - a.HazardsPlaced,
		Range:     a.EffectiveRange(),
		Kick:      a.Kick,
		Curse:     string(a.Curse),
		Connected: a.Connected,
	}
}

// Info returns the roster entry shown in lobbies and results
func (a *Agent) Info() PlayerInfo {
	return PlayerInfo{
		ID:        a.ID,
		Name:      a.Name,
		Slot:      a.Slot,
		Bot:       a.Bot,
		Ready:     a.Ready,
		Connected: a.Connected,
		Alive:     a.Alive,
		Wins:      a.Wins,
		Kills:     a.Kills,
		Deaths:    a.Deaths,
	}
}
