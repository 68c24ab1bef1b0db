package advisor

import (
	"context"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
)

// Scatter corners, one per ghost, used when a ghost has no pursuit angle.
var scatterCorners = map[string]maze.Point{
	"blinky": {X: maze.Width - 2, Y: 1},
	"pinky":  {X: 1, Y: 1},
	"inky":   {X: maze.Width - 2, Y: maze.Height - 2},
	"clyde":  {X: 1, Y: maze.Height - 2},
}

// Heuristic is the built-in advisor: the classic per-ghost pursuit rules,
// computed locally and deterministically. It stands in for a remote oracle
// and is what arenad runs by default.
type Heuristic struct{}

var _ Advisor = Heuristic{}

func NewHeuristic() Heuristic { return Heuristic{} }

// Suggest assigns each hunting ghost a pursuit tile:
//
//	blinky  the player's tile
//	pinky   four tiles ahead of the player's heading
//	inky    the player's tile reflected through blinky
//	clyde   the player when far, its corner when within 8 tiles
//
// Frightened and eaten ghosts get no suggestion. Targets may be
// unreachable tiles; they steer, they do not teleport.
func (Heuristic) Suggest(_ context.Context, s StateSummary) (GhostTargets, error) {
	pac := maze.Point{X: s.Pacman.X, Y: s.Pacman.Y}
	dir, err := engine.ParseDirection(s.Pacman.Direction)
	if err != nil {
		dir = engine.DirNone
	}
	dx, dy := dir.Delta()

	var blinkyAt maze.Point
	for _, g := range s.Ghosts {
		if g.ID == "blinky" {
			blinkyAt = maze.Point{X: g.X, Y: g.Y}
		}
	}

	targets := make(GhostTargets, len(s.Ghosts))
	for _, g := range s.Ghosts {
		if g.Mode == engine.ModeFrightened.String() || g.Mode == engine.ModeEaten.String() {
			continue
		}
		var t maze.Point
		switch g.ID {
		case "blinky":
			t = pac
		case "pinky":
			t = maze.Point{X: pac.X + 4*dx, Y: pac.Y + 4*dy}
		case "inky":
			pivot := maze.Point{X: pac.X + 2*dx, Y: pac.Y + 2*dy}
			t = maze.Point{X: 2*pivot.X - blinkyAt.X, Y: 2*pivot.Y - blinkyAt.Y}
		case "clyde":
			if manhattan(maze.Point{X: g.X, Y: g.Y}, pac) > 8 {
				t = pac
			} else {
				t = scatterCorners[g.ID]
			}
		default:
			t = scatterCorners["blinky"]
		}
		targets[g.ID] = clampToGrid(t)
	}
	return targets, nil
}

func clampToGrid(p maze.Point) maze.Point {
	if p.X < 0 {
		p.X = 0
	}
	if p.X >= maze.Width {
		p.X = maze.Width - 1
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if p.Y >= maze.Height {
		p.Y = maze.Height - 1
	}
	return p
}

func manhattan(a, b maze.Point) int {
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
