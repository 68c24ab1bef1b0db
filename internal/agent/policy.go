// Package agent holds the house Pac-Man policy that plays tournament and
// duel matches to completion. The policy is pure: same board, same
// snapshot, same address, same move.
package agent

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
)

// Policy picks one direction per tick: breadth-first toward the nearest
// pellet (or frightened ghost while a power pellet is live), refusing tiles
// near hunting ghosts. The avoidance radius and the direction tie-break are
// derived from the agent address, so two agents on the same board make
// different runs of it.
type Policy struct {
	address string
	board   *maze.Maze
	avoid   int
	order   [4]engine.Direction
}

func New(address string, board *maze.Maze) *Policy {
	sum := sha256.Sum256([]byte(address))
	h := binary.BigEndian.Uint64(sum[:8])

	base := [4]engine.Direction{engine.DirUp, engine.DirLeft, engine.DirDown, engine.DirRight}
	var order [4]engine.Direction
	rot := int(h % 4)
	for i := 0; i < 4; i++ {
		order[i] = base[(i+rot)%4]
	}
	if h&4 != 0 {
		order[1], order[2] = order[2], order[1]
	}

	return &Policy{
		address: address,
		board:   board,
		avoid:   2 + int(h>>3)%3,
		order:   order,
	}
}

func (p *Policy) Address() string { return p.address }

// Next returns the direction to queue for this tick.
func (p *Policy) Next(snap engine.Snapshot) engine.Direction {
	if snap.GameOver {
		return engine.DirNone
	}
	start := maze.Point{X: snap.Pacman.X, Y: snap.Pacman.Y}

	danger := p.dangerSet(snap)
	delete(danger, start)

	targets := p.targetSet(snap)
	if len(targets) == 0 {
		return engine.DirNone
	}

	if dir, ok := p.searchStep(start, targets, danger); ok {
		return dir
	}
	// No safe route. Back away from the nearest hunter instead.
	return p.retreatStep(start, snap)
}

// dangerSet marks tiles within the avoidance radius of any hunting ghost.
func (p *Policy) dangerSet(snap engine.Snapshot) map[maze.Point]bool {
	danger := make(map[maze.Point]bool)
	for _, g := range snap.Ghosts {
		if g.Mode != engine.ModeChase && g.Mode != engine.ModeScatter {
			continue
		}
		for dx := -p.avoid; dx <= p.avoid; dx++ {
			for dy := -p.avoid; dy <= p.avoid; dy++ {
				if abs(dx)+abs(dy) > p.avoid {
					continue
				}
				danger[maze.Point{X: g.X + dx, Y: g.Y + dy}] = true
			}
		}
	}
	return danger
}

// targetSet is what the policy is hungry for this tick.
func (p *Policy) targetSet(snap engine.Snapshot) map[maze.Point]bool {
	targets := make(map[maze.Point]bool)
	if snap.PowerActive {
		for _, g := range snap.Ghosts {
			if g.Mode == engine.ModeFrightened {
				targets[maze.Point{X: g.X, Y: g.Y}] = true
			}
		}
		if len(targets) > 0 {
			return targets
		}
	}
	for y := 0; y < maze.Height; y++ {
		for x := 0; x < maze.Width; x++ {
			if snap.Pellets[y][x] {
				targets[maze.Point{X: x, Y: y}] = true
			}
		}
	}
	for _, pp := range snap.PowerPellets {
		targets[pp] = true
	}
	return targets
}

type pathNode struct {
	at    maze.Point
	first engine.Direction
}

// searchStep runs a breadth-first search from start, skipping danger tiles,
// and returns the first step of the shortest path to any target.
func (p *Policy) searchStep(start maze.Point, targets, danger map[maze.Point]bool) (engine.Direction, bool) {
	if targets[start] {
		// Standing on a target only happens mid-collection; keep moving
		// toward the next one by ignoring the tile under us.
		delete(targets, start)
		if len(targets) == 0 {
			return engine.DirNone, false
		}
	}

	visited := map[maze.Point]bool{start: true}
	queue := make([]pathNode, 0, 64)
	for _, dir := range p.order {
		next, ok := p.step(start, dir)
		if !ok || visited[next] || danger[next] {
			continue
		}
		visited[next] = true
		queue = append(queue, pathNode{at: next, first: dir})
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if targets[node.at] {
			return node.first, true
		}
		for _, dir := range p.order {
			next, ok := p.step(node.at, dir)
			if !ok || visited[next] || danger[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, pathNode{at: next, first: dir})
		}
	}
	return engine.DirNone, false
}

// retreatStep walks to the neighbor that maximizes distance from the
// nearest hunting ghost.
func (p *Policy) retreatStep(start maze.Point, snap engine.Snapshot) engine.Direction {
	best := engine.DirNone
	bestDist := p.hunterDistance(start, snap)
	for _, dir := range p.order {
		next, ok := p.step(start, dir)
		if !ok {
			continue
		}
		if d := p.hunterDistance(next, snap); d > bestDist {
			best, bestDist = dir, d
		}
	}
	return best
}

func (p *Policy) hunterDistance(at maze.Point, snap engine.Snapshot) int {
	closest := maze.Width + maze.Height
	for _, g := range snap.Ghosts {
		if g.Mode != engine.ModeChase && g.Mode != engine.ModeScatter {
			continue
		}
		if d := abs(at.X-g.X) + abs(at.Y-g.Y); d < closest {
			closest = d
		}
	}
	return closest
}

// step applies one move with tunnel wrap, excluding walls and the ghost
// house.
func (p *Policy) step(from maze.Point, dir engine.Direction) (maze.Point, bool) {
	dx, dy := dir.Delta()
	x, y := from.X+dx, from.Y+dy
	if y == maze.TunnelRow {
		if x < 0 {
			x = maze.Width - 1
		} else if x >= maze.Width {
			x = 0
		}
	}
	if p.board.IsWall(x, y) || p.board.IsGhostHouse(x, y) {
		return maze.Point{}, false
	}
	return maze.Point{X: x, Y: y}, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
