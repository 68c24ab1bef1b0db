// Package advisor is the port to the ghost-coordination oracle consulted on
// high difficulty tiers. Suggestions are advisory overlays for spectators
// and tooling; the engine never reads them back.
package advisor

import (
	"context"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
)

// GhostSummary is one ghost's slice of a StateSummary.
type GhostSummary struct {
	ID   string `json:"id"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Mode string `json:"mode"`
}

// PacmanSummary locates the player and its heading.
type PacmanSummary struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction"`
}

// StateSummary is the compact game view handed to an advisor.
type StateSummary struct {
	Tick        uint64         `json:"tick"`
	Score       uint64         `json:"score"`
	Pacman      PacmanSummary  `json:"pacman"`
	Ghosts      []GhostSummary `json:"ghosts"`
	PowerActive bool           `json:"powerActive"`
}

// Summarize projects a snapshot into the advisor's view.
func Summarize(snap engine.Snapshot) StateSummary {
	s := StateSummary{
		Tick:        snap.Tick,
		Score:       snap.Score,
		PowerActive: snap.PowerActive,
		Pacman: PacmanSummary{
			X:         snap.Pacman.X,
			Y:         snap.Pacman.Y,
			Direction: snap.Pacman.Direction.String(),
		},
	}
	for _, g := range snap.Ghosts {
		s.Ghosts = append(s.Ghosts, GhostSummary{ID: g.ID, X: g.X, Y: g.Y, Mode: g.Mode.String()})
	}
	return s
}

// GhostTargets maps ghost ids to suggested pursuit tiles. Absent ids have
// no suggestion this tick.
type GhostTargets map[string]maze.Point

// Advisor suggests coordinated ghost targets for a game state.
type Advisor interface {
	Suggest(ctx context.Context, s StateSummary) (GhostTargets, error)
}
