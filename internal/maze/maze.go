// Package maze builds and serves the immutable 28x31 boards the engine
// simulates on. Boards come from four fixed templates plus a seeded
// procedural generator; results are memoized by (variant, seed).
package maze

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

// Board geometry. The ghost house, its exit corridor and the wrap tunnel sit
// at fixed coordinates on every variant; the engine and the generator both
// rely on these.
const (
	Width  = 28
	Height = 31

	TunnelRow = 14

	HouseMinX = 10
	HouseMaxX = 17
	HouseMinY = 12
	HouseMaxY = 15

	houseExitRow = 11

	PacmanSpawnX = 14
	PacmanSpawnY = 23
)

type Variant string

const (
	VariantClassic   Variant = "classic"
	VariantLabyrinth Variant = "labyrinth"
	VariantSpeedway  Variant = "speedway"
	VariantFortress  Variant = "fortress"
	VariantRandom    Variant = "random"
)

// Variants lists every known variant in a fixed order.
func Variants() []Variant {
	return []Variant{VariantClassic, VariantLabyrinth, VariantSpeedway, VariantFortress, VariantRandom}
}

// ParseVariant validates a variant name received from a boundary.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantClassic, VariantLabyrinth, VariantSpeedway, VariantFortress, VariantRandom:
		return Variant(s), nil
	}
	return "", errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "unknown maze variant %q", s)
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cell classifies one tile of the board.
type Cell uint8

const (
	CellWall Cell = iota
	CellOpen
	CellPellet
	CellPower
	CellHouse
	CellTunnel
)

// Maze is immutable after construction. The engine copies the pellet bitmap
// into its own state and mutates only the copy.
type Maze struct {
	variant     Variant
	seed        int64
	grid        [Height][Width]Cell
	power       []Point
	pacSpawn    Point
	ghostSpawns [4]Point
	pelletCount int
}

func (m *Maze) Variant() Variant { return m.variant }
func (m *Maze) Seed() int64      { return m.seed }

// Cell returns the classification of a tile; out-of-range is wall except on
// the tunnel row.
func (m *Maze) Cell(x, y int) Cell {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		if y == TunnelRow {
			return CellTunnel
		}
		return CellWall
	}
	return m.grid[y][x]
}

// IsWall reports whether (x, y) blocks movement. Out-of-range coordinates
// are walls except on the tunnel row, where both ends are open so movement
// can wrap.
func (m *Maze) IsWall(x, y int) bool {
	return m.Cell(x, y) == CellWall
}

// IsTunnel reports whether (x, y) lies on the wrap corridor.
func (m *Maze) IsTunnel(x, y int) bool {
	if y != TunnelRow {
		return false
	}
	if x >= HouseMinX && x <= HouseMaxX {
		return false
	}
	return !m.IsWall(x, y)
}

// IsGhostHouse reports whether (x, y) is a walkable cell of the house region.
func (m *Maze) IsGhostHouse(x, y int) bool {
	return inHouseRect(x, y) && !m.IsWall(x, y)
}

func inHouseRect(x, y int) bool {
	return x >= HouseMinX && x <= HouseMaxX && y >= HouseMinY && y <= HouseMaxY
}

func (m *Maze) SpawnForPacman() Point     { return m.pacSpawn }
func (m *Maze) SpawnsForGhosts() [4]Point { return m.ghostSpawns }
func (m *Maze) RemainingPellets() int     { return m.pelletCount }

// HasPellet reports whether the board starts with a normal pellet at (x, y).
func (m *Maze) HasPellet(x, y int) bool {
	return m.Cell(x, y) == CellPellet
}

// PowerPellets returns a copy of the power pellet positions.
func (m *Maze) PowerPellets() []Point {
	out := make([]Point, len(m.power))
	copy(out, m.power)
	return out
}

// PelletBitmap returns the initial pellet layout as a value, so callers can
// mutate their copy freely.
func (m *Maze) PelletBitmap() [Height][Width]bool {
	var b [Height][Width]bool
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			b[y][x] = m.grid[y][x] == CellPellet
		}
	}
	return b
}

// ghostSpawnPoints are inside the house interior, identical on every variant.
var ghostSpawnPoints = [4]Point{{X: 13, Y: 13}, {X: 14, Y: 13}, {X: 13, Y: 14}, {X: 14, Y: 14}}

// fromTemplate parses one of the fixed layouts. Template text is a
// compile-time constant, so a malformed one is a programmer error.
func fromTemplate(v Variant, rows []string) *Maze {
	if len(rows) != Height {
		panic(fmt.Sprintf("maze: template %s has %d rows, want %d", v, len(rows), Height))
	}
	m := &Maze{variant: v, ghostSpawns: ghostSpawnPoints, pacSpawn: Point{X: PacmanSpawnX, Y: PacmanSpawnY}}
	for y, row := range rows {
		if len(row) != Width {
			panic(fmt.Sprintf("maze: template %s row %d has %d cols, want %d", v, y, len(row), Width))
		}
		for x := 0; x < Width; x++ {
			var c Cell
			switch row[x] {
			case '#':
				c = CellWall
			case '.':
				c = CellPellet
			case 'o':
				c = CellPower
			case ' ':
				c = CellOpen
			default:
				panic(fmt.Sprintf("maze: template %s has unknown cell %q at (%d,%d)", v, row[x], x, y))
			}
			if c != CellWall {
				if inHouseRect(x, y) {
					c = CellHouse
				} else if y == TunnelRow && c == CellOpen {
					c = CellTunnel
				}
			}
			switch c {
			case CellPellet:
				m.pelletCount++
			case CellPower:
				m.power = append(m.power, Point{X: x, Y: y})
			}
			m.grid[y][x] = c
		}
	}
	if m.grid[PacmanSpawnY][PacmanSpawnX] == CellWall {
		panic(fmt.Sprintf("maze: template %s walls the spawn tile", v))
	}
	for _, g := range m.ghostSpawns {
		if m.grid[g.Y][g.X] == CellWall {
			panic(fmt.Sprintf("maze: template %s walls ghost spawn (%d,%d)", v, g.X, g.Y))
		}
	}
	return m
}
