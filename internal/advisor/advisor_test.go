package advisor

import (
	"context"
	"testing"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
)

func huntingSummary() StateSummary {
	return StateSummary{
		Tick:   100,
		Pacman: PacmanSummary{X: 10, Y: 5, Direction: "right"},
		Ghosts: []GhostSummary{
			{ID: "blinky", X: 20, Y: 5, Mode: "chase"},
			{ID: "pinky", X: 3, Y: 3, Mode: "chase"},
			{ID: "inky", X: 20, Y: 20, Mode: "scatter"},
			{ID: "clyde", X: 11, Y: 5, Mode: "chase"},
		},
	}
}

func TestHeuristicTargets(t *testing.T) {
	targets, err := NewHeuristic().Suggest(context.Background(), huntingSummary())
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	if got := targets["blinky"]; got != (maze.Point{X: 10, Y: 5}) {
		t.Fatalf("blinky target = %+v", got)
	}
	if got := targets["pinky"]; got != (maze.Point{X: 14, Y: 5}) {
		t.Fatalf("pinky target = %+v", got)
	}
	// Pivot two ahead of the player is (12,5); reflecting blinky (20,5)
	// through it lands at (4,5).
	if got := targets["inky"]; got != (maze.Point{X: 4, Y: 5}) {
		t.Fatalf("inky target = %+v", got)
	}
	// Clyde one tile away retreats to its corner.
	if got := targets["clyde"]; got != (maze.Point{X: 1, Y: maze.Height - 2}) {
		t.Fatalf("clyde target = %+v", got)
	}
}

func TestHeuristicClydePursuesWhenFar(t *testing.T) {
	s := huntingSummary()
	s.Ghosts[3].X, s.Ghosts[3].Y = 26, 29
	targets, err := NewHeuristic().Suggest(context.Background(), s)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got := targets["clyde"]; got != (maze.Point{X: 10, Y: 5}) {
		t.Fatalf("clyde target = %+v", got)
	}
}

func TestHeuristicSkipsFrightenedAndEaten(t *testing.T) {
	s := huntingSummary()
	s.Ghosts[0].Mode = "frightened"
	s.Ghosts[1].Mode = "eaten"
	targets, err := NewHeuristic().Suggest(context.Background(), s)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if _, ok := targets["blinky"]; ok {
		t.Fatal("frightened ghost got a target")
	}
	if _, ok := targets["pinky"]; ok {
		t.Fatal("eaten ghost got a target")
	}
	if len(targets) != 2 {
		t.Fatalf("targets = %v", targets)
	}
}

func TestHeuristicClampsOffGridTargets(t *testing.T) {
	s := StateSummary{
		Pacman: PacmanSummary{X: 1, Y: 1, Direction: "up"},
		Ghosts: []GhostSummary{{ID: "pinky", X: 5, Y: 5, Mode: "chase"}},
	}
	targets, err := NewHeuristic().Suggest(context.Background(), s)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got := targets["pinky"]; got != (maze.Point{X: 1, Y: 0}) {
		t.Fatalf("pinky target = %+v", got)
	}
}

func TestSummarizeProjection(t *testing.T) {
	snap := engine.Snapshot{
		Tick:  42,
		Score: 310,
		Pacman: engine.PacmanState{
			X: 14, Y: 23, Direction: engine.DirLeft,
		},
		PowerActive: true,
	}
	snap.Ghosts[0] = engine.GhostState{ID: "blinky", X: 13, Y: 11, Mode: engine.ModeFrightened}

	s := Summarize(snap)
	if s.Tick != 42 || s.Score != 310 || !s.PowerActive {
		t.Fatalf("summary header = %+v", s)
	}
	if s.Pacman.Direction != "left" {
		t.Fatalf("pacman direction = %q", s.Pacman.Direction)
	}
	if len(s.Ghosts) != 4 || s.Ghosts[0].Mode != "frightened" {
		t.Fatalf("ghosts = %+v", s.Ghosts)
	}
}
