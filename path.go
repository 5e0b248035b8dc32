package main

import "github.com/zyedidia/generic/mapset"

// Step is one move of a path: the cell entered and the direction taken to enter it
type Step struct {
	Cell Cell
	Dir  Dir
}

type pathNode struct {
	cell   Cell
	parent int
	dir    Dir
}

// bfs expands walkable cells from start in up/down/left/right order and calls
// visit for every newly reached cell with its node index. visit returns true to stop.
func bfs(g *Grid, hazards SolidChecker, start Cell, avoid func(Cell) bool, visit func(nodes []pathNode, idx int) bool) {
	visited := mapset.New[Cell]()
	visited.Put(start)
	nodes := []pathNode{{cell: start, parent: -1}}
	for head := 0; head < len(nodes); head++ {
		cur := nodes[head].cell
		for _, d := range Dirs {
			n := cur.Add(d)
			if visited.Has(n) || !g.IsWalkable(n, hazards) {
				continue
			}
			if avoid != nil && avoid(n) {
				continue
			}
			visited.Put(n)
			nodes = append(nodes, pathNode{cell: n, parent: head, dir: d})
			if visit(nodes, len(nodes)-1) {
				return
			}
		}
	}
}

func unwind(nodes []pathNode, idx int) []Step {
	n := 0
	for i := idx; nodes[i].parent >= 0; i = nodes[i].parent {
		n++
	}
	path := make([]Step, n)
	for i := idx; nodes[i].parent >= 0; i = nodes[i].parent {
		n--
		path[n] = Step{Cell: nodes[i].cell, Dir: nodes[i].dir}
	}
	return path
}

// FindPath returns the shortest walkable route from start to the first cell
// satisfying goal. Cells for which avoid returns true are never entered. The
// start cell is exempt from both checks. A start that already satisfies goal
// yields an empty path.
func FindPath(g *Grid, hazards SolidChecker, start Cell, goal func(Cell) bool, avoid func(Cell) bool) ([]Step, bool) {
	if !g.InBounds(start) {
		return nil, false
	}
	if goal(start) {
		return []Step{}, true
	}
	var path []Step
	found := false
	bfs(g, hazards, start, avoid, func(nodes []pathNode, idx int) bool {
		if goal(nodes[idx].cell) {
			path = unwind(nodes, idx)
			found = true
			return true
		}
		return false
	})
	return path, found
}

// PathTo returns the shortest walkable route from start to target
func PathTo(g *Grid, hazards SolidChecker, start, target Cell, avoid func(Cell) bool) ([]Step, bool) {
	if !g.InBounds(target) {
		return nil, false
	}
	return FindPath(g, hazards, start, func(c Cell) bool { return c == target }, avoid)
}

// NearestSafe finds the closest cell absent from the danger map, moving
// through dangerous cells if needed.
func NearestSafe(g *Grid, hazards SolidChecker, start Cell, dm *DangerMap) ([]Step, bool) {
	return FindPath(g, hazards, start, dm.Safe, nil)
}

// NearestVerifiedSafe finds the closest cell absent from the danger map whose
// route also passes the temporal safety check at the given speed.
func NearestVerifiedSafe(g *Grid, hazards SolidChecker, start Cell, dm *DangerMap, speed float64) ([]Step, bool) {
	if !g.InBounds(start) {
		return nil, false
	}
	if dm.Safe(start) {
		return []Step{}, true
	}
	var path []Step
	found := false
	bfs(g, hazards, start, nil, func(nodes []pathNode, idx int) bool {
		if !dm.Safe(nodes[idx].cell) {
			return false
		}
		candidate := unwind(nodes, idx)
		if dm.IsPathSafe(candidate, speed) {
			path = candidate
			found = true
			return true
		}
		return false
	})
	return path, found
}

// FindSafeCell is the "go now" search toward a cell the danger map never
// reaches. With verify set only routes passing IsPathSafe are accepted.
func FindSafeCell(g *Grid, hazards SolidChecker, start Cell, dm *DangerMap, speed float64, verify bool) ([]Step, bool) {
	if verify {
		return NearestVerifiedSafe(g, hazards, start, dm, speed)
	}
	return NearestSafe(g, hazards, start, dm)
}
