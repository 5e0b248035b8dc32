package main

import (
	"fmt"
	"math"
	"math/rand"
)

// Difficulty tunes how aggressive computer agents are
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty validates a difficulty name; empty means normal
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return Difficulty(s), nil
	case "":
		return DifficultyNormal, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// attackChance is the per-tick probability of considering a placement
func (d Difficulty) attackChance() float64 {
	switch d {
	case DifficultyEasy:
		return 0.05
	case DifficultyHard:
		return 0.3
	}
	return 0.15
}

// huntChance is the per-tick probability of chasing an opponent while wandering
func (d Difficulty) huntChance() float64 {
	switch d {
	case DifficultyHard:
		return 1
	case DifficultyNormal:
		return 0.5
	}
	return 0
}

// BotState is the behavior a bot chose on its last decision
type BotState string

const (
	BotWander BotState = "wander"
	BotFlee   BotState = "flee"
	BotAttack BotState = "attack"
	BotHunt   BotState = "hunt"
)

// World is the read-only view a bot decides against
type World struct {
	Grid    *Grid
	Hazards *HazardEngine
	Agents  []*Agent
	Danger  *DangerMap
	Zone    *DangerZone
	Cfg     DangerConfig
	Fuse    float64
}

// Decision is what a bot wants its agent to do this tick
type Decision struct {
	Dir  Dir
	Drop bool
}

// Bot drives one computer agent
type Bot struct {
	AgentID    string
	Difficulty Difficulty
	State      BotState
	dir        Dir
	rng        *rand.Rand
}

// NewBot creates a controller with its own seeded generator
func NewBot(agentID string, difficulty Difficulty, seed int64) *Bot {
	return &Bot{
		AgentID:    agentID,
		Difficulty: difficulty,
		State:      BotWander,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Decide runs one step of the flee / attack / hunt / wander priority chain
func (b *Bot) Decide(w *World, a *Agent) Decision {
	if !a.Alive {
		b.dir = DirNone
		return Decision{}
	}
	here := a.Cell()

	if w.Zone.InDanger(here) {
		b.State = BotFlee
		b.dir = b.flee(w, a, here)
		return Decision{Dir: b.dir}
	}

	if dir, ok := b.attack(w, a, here); ok {
		b.State = BotAttack
		b.dir = dir
		return Decision{Dir: dir, Drop: true}
	}

	// A hunt is only taken up from wander; once on, it holds while a path exists.
	hunting := b.State == BotHunt
	if b.State == BotWander {
		hunting = b.rng.Float64() < b.Difficulty.huntChance()
	}
	if hunting {
		if dir, ok := b.hunt(w, a, here); ok {
			b.State = BotHunt
			b.dir = dir
			return Decision{Dir: dir}
		}
	}

	b.State = BotWander
	b.wander(w, a, here)
	return Decision{Dir: b.dir}
}

func (b *Bot) flee(w *World, a *Agent, here Cell) Dir {
	path, ok := FindSafeCell(w.Grid, w.Hazards, here, w.Danger, a.EffectiveSpeed(), true)
	if !ok {
		path, ok = FindSafeCell(w.Grid, w.Hazards, here, w.Danger, a.EffectiveSpeed(), false)
	}
	if !ok || len(path) == 0 {
		return DirNone
	}
	return path[0].Dir
}

// attack places a hazard only when a hypothetical danger map with that hazard
// still leaves a temporally safe escape route.
func (b *Bot) attack(w *World, a *Agent, here Cell) (Dir, bool) {
	if a.HazardsPlaced >= a.HazardCapacity || a.Curse == CurseNoHazard {
		return DirNone, false
	}
	if w.Hazards.At(here) != nil || !b.hasTarget(w, a, here) {
		return DirNone, false
	}
	if b.rng.Float64() >= b.Difficulty.attackChance() {
		return DirNone, false
	}
	return PlanEscape(w, a, here)
}

// PlanEscape reports the first step of a verified escape from a hazard the
// agent would place at here.
func PlanEscape(w *World, a *Agent, here Cell) (Dir, bool) {
	h := &Hazard{OwnerID: a.ID, Cell: here, Timer: w.Fuse, Range: a.EffectiveRange()}
	dm := BuildDangerMap(w.Grid, w.Hazards.Hazards(), w.Hazards.Blasts(), w.Cfg, h)
	path, ok := NearestSafe(w.Grid, w.Hazards, here, dm)
	if !ok || len(path) == 0 {
		return DirNone, false
	}
	if !dm.IsPathSafe(path, a.EffectiveSpeed()) {
		return DirNone, false
	}
	return path[0].Dir, true
}

func (b *Bot) hasTarget(w *World, a *Agent, here Cell) bool {
	for _, d := range Dirs {
		if w.Grid.Kind(here.Add(d)) == CellBlock {
			return true
		}
	}
	for _, o := range w.Agents {
		if o == a || !o.Alive {
			continue
		}
		oc := o.Cell()
		if manhattan(oc, here) <= 1 {
			return true
		}
	}
	return false
}

func (b *Bot) hunt(w *World, a *Agent, here Cell) (Dir, bool) {
	var target *Agent
	best := math.MaxFloat64
	for _, o := range w.Agents {
		if o == a || !o.Alive {
			continue
		}
		if d := Distance(a.X, a.Y, o.X, o.Y); d < best {
			best = d
			target = o
		}
	}
	if target == nil {
		return DirNone, false
	}
	tc := target.Cell()
	goal := func(c Cell) bool { return manhattan(c, tc) == 1 }
	path, ok := FindPath(w.Grid, w.Hazards, here, goal, w.Zone.InDanger)
	if !ok || len(path) == 0 {
		return DirNone, false
	}
	return path[0].Dir, true
}

func (b *Bot) wander(w *World, a *Agent, here Cell) {
	stuckDir := DirNone
	if b.dir != DirNone {
		next := here.Add(b.dir)
		switch {
		case a.Stuck:
			stuckDir = b.dir
			b.dir = DirNone
		case w.Zone.InDanger(next):
			b.dir = DirNone
		case !w.Grid.IsWalkable(next, w.Hazards) && atLaneCenter(a, here):
			b.dir = DirNone
		}
	}
	if b.dir != DirNone {
		return
	}
	dirs := Dirs
	b.rng.Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })
	for _, d := range dirs {
		next := here.Add(d)
		if d != stuckDir && w.Grid.IsWalkable(next, w.Hazards) && !w.Zone.InDanger(next) {
			b.dir = d
			return
		}
	}
}

func atLaneCenter(a *Agent, c Cell) bool {
	cx, cy := c.Center()
	return math.Abs(a.X-cx) < 0.5 && math.Abs(a.Y-cy) < 0.5
}

func manhattan(a, b Cell) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
