package engine

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
)

// Direction is a Pac-Man or ghost heading. DirNone means no input this tick.
type Direction uint8

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	}
	return ""
}

// ParseDirection validates a direction received from a boundary.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return DirUp, nil
	case "down":
		return DirDown, nil
	case "left":
		return DirLeft, nil
	case "right":
		return DirRight, nil
	}
	return DirNone, errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "direction %q", s)
}

// Opposite returns the reverse heading; DirNone reverses to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	case DirLeft:
		return DirRight
	case DirRight:
		return DirLeft
	}
	return DirNone
}

// Delta returns the tile offset of one step along d.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	}
	return 0, 0
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// GhostMode tracks a ghost's behavioral state.
type GhostMode uint8

const (
	ModeChase GhostMode = iota
	ModeScatter
	ModeFrightened
	ModeEaten
)

func (m GhostMode) String() string {
	switch m {
	case ModeChase:
		return "chase"
	case ModeScatter:
		return "scatter"
	case ModeFrightened:
		return "frightened"
	case ModeEaten:
		return "eaten"
	}
	return "unknown"
}

func (m GhostMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// GhostNames lists the four ghost identities in engine order.
var GhostNames = [4]string{"blinky", "pinky", "inky", "clyde"}

// PacmanState is the spectator-visible slice of Pac-Man.
type PacmanState struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Progress  float64   `json:"progress"`
	Direction Direction `json:"direction"`
	Queued    Direction `json:"queued,omitempty"`
}

// GhostState is the spectator-visible slice of one ghost.
type GhostState struct {
	ID        string    `json:"id"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Progress  float64   `json:"progress"`
	Direction Direction `json:"direction"`
	Mode      GhostMode `json:"mode"`
}

// FruitState describes the bonus item while it is on the board.
type FruitState struct {
	X              int `json:"x"`
	Y              int `json:"y"`
	Value          int `json:"value"`
	TicksRemaining int `json:"ticksRemaining"`
}

// Snapshot is an immutable copy of engine state after one tick. The pellet
// bitmap is a value array, so snapshots share nothing with the engine or
// each other.
type Snapshot struct {
	Tick  uint64 `json:"tick"`
	Round int    `json:"round"`
	Score uint64 `json:"score"`
	Lives int    `json:"lives"`

	Pacman PacmanState   `json:"pacman"`
	Ghosts [4]GhostState `json:"ghosts"`

	Pellets            [maze.Height][maze.Width]bool `json:"pellets"`
	PowerPellets       []maze.Point                  `json:"powerPellets"`
	PelletsRemaining   int                           `json:"pelletsRemaining"`
	PelletsEaten       int                           `json:"pelletsEaten"`
	PowerActive        bool                          `json:"powerActive"`
	PowerTimeRemaining int                           `json:"powerTimeRemaining"`

	Fruit *FruitState `json:"fruit,omitempty"`

	GameOver  bool   `json:"gameOver"`
	StateHash string `json:"stateHash"`
}
