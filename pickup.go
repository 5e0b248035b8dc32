package main

import "math/rand"

const (
	maxHazardCapacity = 8
	maxBlastRange     = 8
	speedUpStep       = 0.5 // tiles/s
	maxAgentSpeed     = 6.0 // tiles/s
)

// PickupKind identifies a power-up dropped by a destroyed block
type PickupKind string

const (
	PickupHazardUp PickupKind = "hazard_up"
	PickupRangeUp  PickupKind = "range_up"
	PickupSpeedUp  PickupKind = "speed_up"
	PickupKick     PickupKind = "kick"
	PickupCurse    PickupKind = "curse"
)

// pickupOrder fixes the draw order so seeded rolls replay identically
var pickupOrder = []PickupKind{PickupHazardUp, PickupRangeUp, PickupSpeedUp, PickupKick, PickupCurse}

// Valid reports whether k is a known pickup
func (k PickupKind) Valid() bool {
	for _, p := range pickupOrder {
		if p == k {
			return true
		}
	}
	return false
}

// CurseKind is a temporary handicap applied by the curse pickup
type CurseKind string

const (
	CurseNone     CurseKind = ""
	CurseSlow     CurseKind = "slow"      // half speed
	CurseWeak     CurseKind = "weak"      // blast range 1
	CurseNoHazard CurseKind = "no_hazard" // cannot place hazards
)

var curseOrder = []CurseKind{CurseSlow, CurseWeak, CurseNoHazard}

// PickupWeight is one row of the drop table
type PickupWeight struct {
	Kind   PickupKind
	Weight int
}

// PickupTable decides whether a destroyed block drops a pickup and which
type PickupTable struct {
	Chance  float64
	Entries []PickupWeight
}

// NewPickupTable builds a table from config weights in a fixed order
func NewPickupTable(chance float64, weights map[string]int) PickupTable {
	t := PickupTable{Chance: chance}
	for _, k := range pickupOrder {
		if w := weights[string(k)]; w > 0 {
			t.Entries = append(t.Entries, PickupWeight{Kind: k, Weight: w})
		}
	}
	return t
}

// Roll draws a drop. Returns false when nothing drops.
func (t PickupTable) Roll(rng *rand.Rand) (PickupKind, bool) {
	if len(t.Entries) == 0 || rng.Float64() >= t.Chance {
		return "", false
	}
	total := 0
	for _, e := range t.Entries {
		total += e.Weight
	}
	r := rng.Intn(total)
	for _, e := range t.Entries {
		if r < e.Weight {
			return e.Kind, true
		}
		r -= e.Weight
	}
	return t.Entries[len(t.Entries)-1].Kind, true
}

// Pickup is a power-up lying on the ground
type Pickup struct {
	Cell Cell
	Kind PickupKind
}

// ToState converts to protocol state
func (p *Pickup) ToState() PickupState {
	return PickupState{X: p.Cell.X, Y: p.Cell.Y, Kind: string(p.Kind)}
}

// ApplyPickup grants a pickup's effect to an agent
func ApplyPickup(a *Agent, kind PickupKind, rng *rand.Rand, curseSeconds float64) {
	switch kind {
	case PickupHazardUp:
		if a.HazardCapacity < maxHazardCapacity {
			a.HazardCapacity++
		}
	case PickupRangeUp:
		if a.BlastRange < maxBlastRange {
			a.BlastRange++
		}
	case PickupSpeedUp:
		a.Speed = Clamp(a.Speed+speedUpStep*TileSize, 0, maxAgentSpeed*TileSize)
	case PickupKick:
		a.Kick = true
	case PickupCurse:
		a.Curse = curseOrder[rng.Intn(len(curseOrder))]
		a.CurseT = curseSeconds
	}
}
