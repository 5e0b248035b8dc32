package main

import (
	"math"

	"github.com/zyedidia/generic/mapset"
)

// crossingTiles is how many tiles of travel it takes to fully clear a cell
const crossingTiles = 1.5

// DangerConfig holds the timing margins used by temporal safety checks
type DangerConfig struct {
	BlastDuration float64
	ChainDelay    float64
	PrePadding    float64 // margin required between leaving a cell and its detonation
	PostPadding   float64 // margin required between a blast ending and entering its cell
}

// NewDangerConfig derives danger margins from arena settings
func NewDangerConfig(a ArenaConfig) DangerConfig {
	return DangerConfig{
		BlastDuration: a.BlastDuration,
		ChainDelay:    a.ChainDelay,
		PrePadding:    a.PrePadding,
		PostPadding:   a.PostPadding,
	}
}

// DangerMap maps each threatened cell to the seconds left before it turns lethal.
// Cells absent from the map are never reached by any present or future blast.
type DangerMap struct {
	cfg   DangerConfig
	times map[Cell]float64
}

// BuildDangerMap computes the danger map for the given hazards and active
// blasts. extra hazards are hypothetical: they take part in the computation
// but nothing real is mutated.
func BuildDangerMap(g *Grid, hazards []*Hazard, blasts []*Blast, cfg DangerConfig, extra ...*Hazard) *DangerMap {
	all := make([]*Hazard, 0, len(hazards)+len(extra))
	all = append(all, hazards...)
	all = append(all, extra...)

	eff := make([]float64, len(all))
	foot := make([][]Cell, len(all))
	at := make(map[Cell][]int, len(all))
	for i, h := range all {
		eff[i] = math.Max(h.Timer, 0)
		blastFootprint(g, h.Cell, h.Range, func(c Cell, _ CellKind) {
			foot[i] = append(foot[i], c)
		})
		at[h.Cell] = append(at[h.Cell], i)
	}

	// A hazard inside another's footprint goes off chainDelay after it.
	for round := 0; round <= len(all); round++ {
		changed := false
		for i := range all {
			for _, c := range foot[i] {
				for _, j := range at[c] {
					if j == i {
						continue
					}
					if t := eff[i] + cfg.ChainDelay; t < eff[j] {
						eff[j] = t
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}

	dm := &DangerMap{cfg: cfg, times: make(map[Cell]float64)}
	for i := range all {
		for _, c := range foot[i] {
			if t, ok := dm.times[c]; !ok || eff[i] < t {
				dm.times[c] = eff[i]
			}
		}
	}
	for _, b := range blasts {
		dm.times[b.Cell] = 0
	}
	return dm
}

// Time returns the seconds until c becomes lethal
func (dm *DangerMap) Time(c Cell) (float64, bool) {
	t, ok := dm.times[c]
	return t, ok
}

// Safe reports whether no present or future blast reaches c
func (dm *DangerMap) Safe(c Cell) bool {
	_, ok := dm.times[c]
	return !ok
}

// Len returns the number of threatened cells
func (dm *DangerMap) Len() int {
	return len(dm.times)
}

// StepSafe reports whether occupying c from arrival until arrival+crossing
// keeps clear of its blast window, padded on both sides.
func (dm *DangerMap) StepSafe(c Cell, arrival, crossing float64) bool {
	t, ok := dm.times[c]
	if !ok {
		return true
	}
	if arrival+crossing+dm.cfg.PrePadding < t {
		return true
	}
	return arrival > t+dm.cfg.BlastDuration+dm.cfg.PostPadding
}

// IsPathSafe checks every step of a path walked from now at speed px/s
func (dm *DangerMap) IsPathSafe(path []Step, speed float64) bool {
	if speed <= 0 {
		return len(path) == 0
	}
	crossing := crossingTiles * TileSize / speed
	for i, st := range path {
		arrival := float64(i+1) * TileSize / speed
		if !dm.StepSafe(st.Cell, arrival, crossing) {
			return false
		}
	}
	return true
}

// DangerZone is the set of cells inside a live hazard's footprint or an
// active blast, regardless of timing.
type DangerZone struct {
	cells mapset.Set[Cell]
}

// BuildDangerZone collects the immediate footprints of the live hazards plus active blasts
func BuildDangerZone(g *Grid, hazards []*Hazard, blasts []*Blast) *DangerZone {
	z := &DangerZone{cells: mapset.New[Cell]()}
	for _, h := range hazards {
		blastFootprint(g, h.Cell, h.Range, func(c Cell, _ CellKind) {
			z.cells.Put(c)
		})
	}
	for _, b := range blasts {
		z.cells.Put(b.Cell)
	}
	return z
}

// InDanger reports whether c is flagged dangerous
func (z *DangerZone) InDanger(c Cell) bool {
	return z.cells.Has(c)
}

// Size returns the number of flagged cells
func (z *DangerZone) Size() int {
	return z.cells.Size()
}
