package session

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
)

// Frame type tags on the wire.
const (
	FrameFull  = "full"
	FrameDelta = "delta"
)

// FullFrame carries a complete snapshot. Spectators get one on join and on
// every round boundary; deltas in between.
type FullFrame struct {
	Type     string          `json:"type"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

// DeltaFrame carries only what changed since the previous frame. Tick and
// StateHash are always present; everything else is omitted when unchanged.
type DeltaFrame struct {
	Type      string `json:"type"`
	Tick      uint64 `json:"tick"`
	StateHash string `json:"stateHash"`

	Pacman       *engine.PacmanState `json:"pacman,omitempty"`
	Ghosts       []engine.GhostState `json:"ghosts,omitempty"`
	PelletsEaten []maze.Point        `json:"pelletsEaten,omitempty"`
	PowerEaten   []maze.Point        `json:"powerEaten,omitempty"`

	PowerActive        *bool   `json:"powerActive,omitempty"`
	PowerTimeRemaining *int    `json:"powerTimeRemaining,omitempty"`
	Score              *uint64 `json:"score,omitempty"`
	Lives              *int    `json:"lives,omitempty"`

	Fruit        *engine.FruitState `json:"fruit,omitempty"`
	FruitCleared bool               `json:"fruitCleared,omitempty"`

	GameOver bool `json:"gameOver,omitempty"`
}

func fullFrame(snap engine.Snapshot) FullFrame {
	return FullFrame{Type: FrameFull, Snapshot: snap}
}

// computeDelta diffs two consecutive snapshots of one session. It assumes
// cur is exactly one tick after prev with no round boundary between them.
func computeDelta(prev, cur engine.Snapshot) DeltaFrame {
	d := DeltaFrame{Type: FrameDelta, Tick: cur.Tick, StateHash: cur.StateHash}

	if cur.Pacman != prev.Pacman {
		p := cur.Pacman
		d.Pacman = &p
	}
	for i := range cur.Ghosts {
		if cur.Ghosts[i] != prev.Ghosts[i] {
			d.Ghosts = append(d.Ghosts, cur.Ghosts[i])
		}
	}
	for y := 0; y < maze.Height; y++ {
		for x := 0; x < maze.Width; x++ {
			if prev.Pellets[y][x] && !cur.Pellets[y][x] {
				d.PelletsEaten = append(d.PelletsEaten, maze.Point{X: x, Y: y})
			}
		}
	}
prevPower:
	for _, p := range prev.PowerPellets {
		for _, q := range cur.PowerPellets {
			if p == q {
				continue prevPower
			}
		}
		d.PowerEaten = append(d.PowerEaten, p)
	}

	if cur.PowerActive != prev.PowerActive {
		v := cur.PowerActive
		d.PowerActive = &v
	}
	if cur.PowerTimeRemaining != prev.PowerTimeRemaining {
		v := cur.PowerTimeRemaining
		d.PowerTimeRemaining = &v
	}
	if cur.Score != prev.Score {
		v := cur.Score
		d.Score = &v
	}
	if cur.Lives != prev.Lives {
		v := cur.Lives
		d.Lives = &v
	}

	switch {
	case cur.Fruit != nil && (prev.Fruit == nil || *cur.Fruit != *prev.Fruit):
		f := *cur.Fruit
		d.Fruit = &f
	case cur.Fruit == nil && prev.Fruit != nil:
		d.FruitCleared = true
	}

	d.GameOver = cur.GameOver
	return d
}

// Reconstructor rebuilds a session's snapshot stream from one full frame
// and the deltas that follow it. Clients and replay tooling mirror this
// logic.
type Reconstructor struct {
	snap   engine.Snapshot
	primed bool
}

// Prime (re)bases the reconstructor on a full frame. The snapshot is
// copied; applying deltas never mutates the frame passed in.
func (r *Reconstructor) Prime(f FullFrame) {
	r.snap = f.Snapshot
	r.snap.PowerPellets = append([]maze.Point(nil), f.Snapshot.PowerPellets...)
	if f.Snapshot.Fruit != nil {
		fruit := *f.Snapshot.Fruit
		r.snap.Fruit = &fruit
	}
	r.primed = true
}

// Apply folds one delta into the held snapshot. Deltas must arrive in
// strict tick order with no gaps.
func (r *Reconstructor) Apply(d DeltaFrame) error {
	if !r.primed {
		return errorsmod.Wrap(arenaerr.ErrInvalidArgument, "delta before full frame")
	}
	if d.Tick != r.snap.Tick+1 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "tick gap: have %d, delta %d", r.snap.Tick, d.Tick)
	}
	r.snap.Tick = d.Tick
	r.snap.StateHash = d.StateHash

	if d.Pacman != nil {
		r.snap.Pacman = *d.Pacman
	}
	for _, g := range d.Ghosts {
		for i := range r.snap.Ghosts {
			if r.snap.Ghosts[i].ID == g.ID {
				r.snap.Ghosts[i] = g
			}
		}
	}
	for _, p := range d.PelletsEaten {
		if r.snap.Pellets[p.Y][p.X] {
			r.snap.Pellets[p.Y][p.X] = false
			r.snap.PelletsRemaining--
			r.snap.PelletsEaten++
		}
	}
	for _, p := range d.PowerEaten {
		for i, q := range r.snap.PowerPellets {
			if p == q {
				r.snap.PowerPellets = append(r.snap.PowerPellets[:i], r.snap.PowerPellets[i+1:]...)
				break
			}
		}
	}
	if len(r.snap.PowerPellets) == 0 {
		r.snap.PowerPellets = nil
	}

	if d.PowerActive != nil {
		r.snap.PowerActive = *d.PowerActive
	}
	if d.PowerTimeRemaining != nil {
		r.snap.PowerTimeRemaining = *d.PowerTimeRemaining
	}
	if d.Score != nil {
		r.snap.Score = *d.Score
	}
	if d.Lives != nil {
		r.snap.Lives = *d.Lives
	}

	if d.Fruit != nil {
		fruit := *d.Fruit
		r.snap.Fruit = &fruit
	} else if d.FruitCleared {
		r.snap.Fruit = nil
	}

	if d.GameOver {
		r.snap.GameOver = true
	}
	return nil
}

// Snapshot returns a copy of the current reconstruction.
func (r *Reconstructor) Snapshot() engine.Snapshot {
	snap := r.snap
	snap.PowerPellets = append([]maze.Point(nil), r.snap.PowerPellets...)
	if r.snap.Fruit != nil {
		fruit := *r.snap.Fruit
		snap.Fruit = &fruit
	}
	return snap
}
