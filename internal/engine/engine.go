// Package engine implements the per-match Pac-Man state machine. One engine
// owns one match; it advances strictly one tick at a time and hands out
// immutable snapshots. Given the same variant, seed, tier and input sequence
// it produces bit-identical snapshot streams on any host, which is what
// makes replays verifiable.
package engine

import (
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/xorshift"
)

const (
	// TickRate is the simulation frequency in ticks per second.
	TickRate = 60

	// InitialLives is the life count at match start.
	InitialLives = 3

	pacmanSpeed = 8.0 // tiles per second

	pelletPoints   = 10
	powerPoints    = 50
	extraLifeScore = 10000

	fruitMinPoints     = 100
	fruitMaxPoints     = 500
	fruitDurationTicks = 600
	fruitX, fruitY     = 14, 17
	fruitFirstPellets  = 70
	fruitSecondPellets = 170

	// boundaryEps decides whether a ghost sits on a tile boundary and may
	// pick a new direction. Ghost progress snaps to zero on every step, so
	// any epsilon below one tick of travel works.
	boundaryEps = 0.01
)

// comboPoints are the awards for eating ghosts during one power window,
// saturating at the last entry.
var comboPoints = [4]uint64{200, 400, 800, 1600}

var dirOrder = [4]Direction{DirUp, DirDown, DirLeft, DirRight}

// Config fixes a match before the first tick.
type Config struct {
	Variant maze.Variant
	Seed    int64
	Tier    int

	// RampDifficulty raises the effective tier by one per cleared round,
	// capped at the top tier. Survival runs set it.
	RampDifficulty bool
}

type pacman struct {
	x, y     int
	progress float64
	dir      Direction
	queued   Direction
	speed    float64
}

type ghost struct {
	x, y     int
	progress float64
	dir      Direction
	speed    float64
	mode     GhostMode
	spawn    maze.Point
}

type fruit struct {
	x, y  int
	value int
	ticks int
}

// Engine is the authoritative state of one match. It is not safe for
// concurrent use: exactly one driver calls Tick, and everyone else reads
// the snapshots it returns.
type Engine struct {
	cfg    Config
	boards *maze.Cache
	board  *maze.Maze
	rng    *xorshift.Source

	tick  uint64
	round int
	score uint64
	lives int

	pac    pacman
	ghosts [4]ghost

	pellets          [maze.Height][maze.Width]bool
	pelletsRemaining int
	power            []maze.Point
	powerActive      bool
	powerTicks       int
	combo            int

	fruit            *fruit
	pelletsEaten     int
	fruitSpawnedLow  bool
	fruitSpawnedHigh bool

	extraLifeAwarded bool
	over             bool

	hash [32]byte
}

// New builds an engine for one match. A nil cache gets a private one;
// sharing a cache across engines only saves maze generation work.
func New(cfg Config, boards *maze.Cache) (*Engine, error) {
	if _, err := TierConfig(cfg.Tier); err != nil {
		return nil, err
	}
	if boards == nil {
		boards = maze.NewCache()
	}
	if _, err := boards.Get(cfg.Variant, cfg.Seed); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, boards: boards, lives: InitialLives}
	e.startRound(1)
	e.recomputeHash()
	return e, nil
}

// Reset puts the engine back to its pre-first-tick state.
func (e *Engine) Reset() {
	e.tick = 0
	e.score = 0
	e.lives = InitialLives
	e.extraLifeAwarded = false
	e.over = false
	e.startRound(1)
	e.recomputeHash()
}

// Tick advances the match one step. The input is Pac-Man's requested
// direction for this tick; DirNone means no input. Once the match is over,
// Tick is a no-op returning the terminal snapshot.
func (e *Engine) Tick(input Direction) Snapshot {
	if e.over {
		return e.Snapshot()
	}
	e.tick++
	e.applyInput(input)
	e.movePacman()
	e.collect()
	e.moveGhosts()
	e.resolveCollisions()
	e.tickPower()
	e.tickFruit()
	e.maybeAdvanceRound()
	e.maybeAwardLife()
	e.recomputeHash()
	return e.Snapshot()
}

// IsGameOver reports whether the match reached its terminal state.
func (e *Engine) IsGameOver() bool { return e.over }

// StateHash returns the replay fingerprint of the current tick.
func (e *Engine) StateHash() [32]byte { return e.hash }

// Board returns the immutable maze the current round plays on.
func (e *Engine) Board() *maze.Maze { return e.board }

// EffectiveTier is the difficulty currently in force, after any per-round
// ramp.
func (e *Engine) EffectiveTier() Tier {
	level := e.cfg.Tier
	if e.cfg.RampDifficulty {
		level += e.round - 1
		if level > MaxTier {
			level = MaxTier
		}
	}
	return tierTable[level-1]
}

// Snapshot copies the externally visible state. The copy shares nothing
// with the engine.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Tick:               e.tick,
		Round:              e.round,
		Score:              e.score,
		Lives:              e.lives,
		Pacman:             PacmanState{X: e.pac.x, Y: e.pac.y, Progress: e.pac.progress, Direction: e.pac.dir, Queued: e.pac.queued},
		Pellets:            e.pellets,
		PowerPellets:       append([]maze.Point(nil), e.power...),
		PelletsRemaining:   e.pelletsRemaining,
		PelletsEaten:       e.pelletsEaten,
		PowerActive:        e.powerActive,
		PowerTimeRemaining: e.powerTicks,
		GameOver:           e.over,
		StateHash:          HashHex(e.hash),
	}
	for i := range e.ghosts {
		g := &e.ghosts[i]
		s.Ghosts[i] = GhostState{ID: GhostNames[i], X: g.x, Y: g.y, Progress: g.progress, Direction: g.dir, Mode: g.mode}
	}
	if e.fruit != nil {
		s.Fruit = &FruitState{X: e.fruit.x, Y: e.fruit.y, Value: e.fruit.value, TicksRemaining: e.fruit.ticks}
	}
	return s
}

// startRound loads the board for round r and resets everything that does
// not survive a round boundary. Round 1 plays the match seed's board;
// later rounds regenerate with seed+round. The RNG is reseeded with
// seed+round every round, so a round's randomness is insensitive to how
// the previous round ended.
func (e *Engine) startRound(r int) {
	boardSeed := e.cfg.Seed
	if r > 1 {
		boardSeed += int64(r)
	}
	board, err := e.boards.Get(e.cfg.Variant, boardSeed)
	if err != nil {
		// Variant was validated at construction.
		panic(err)
	}
	e.board = board
	e.round = r
	e.rng = xorshift.New(e.cfg.Seed + int64(r))
	e.pellets = board.PelletBitmap()
	e.pelletsRemaining = board.RemainingPellets()
	e.power = board.PowerPellets()
	e.pelletsEaten = 0
	e.fruit = nil
	e.fruitSpawnedLow = false
	e.fruitSpawnedHigh = false
	e.powerActive = false
	e.powerTicks = 0
	e.combo = 0
	e.resetActors()
}

func (e *Engine) resetActors() {
	sp := e.board.SpawnForPacman()
	e.pac = pacman{x: sp.X, y: sp.Y, dir: DirLeft, speed: pacmanSpeed}
	spawns := e.board.SpawnsForGhosts()
	for i := range e.ghosts {
		e.ghosts[i] = ghost{
			x:     spawns[i].X,
			y:     spawns[i].Y,
			dir:   DirLeft,
			speed: e.ghostSpeed(),
			mode:  ModeScatter,
			spawn: spawns[i],
		}
	}
}

func (e *Engine) ghostSpeed() float64 {
	return pacmanSpeed * e.EffectiveTier().GhostSpeed
}

// applyInput queues the requested direction. An exact reverse takes effect
// immediately, flipping the sub-tile progress so the turn feels instant.
func (e *Engine) applyInput(input Direction) {
	if input == DirNone || input > DirRight {
		return
	}
	if input == e.pac.dir.Opposite() {
		e.pac.dir = input
		e.pac.queued = input
		e.pac.progress = 1 - e.pac.progress
		return
	}
	e.pac.queued = input
}

func (e *Engine) movePacman() {
	e.pac.progress += e.pac.speed / TickRate
	if e.pac.progress < 1 {
		return
	}
	if e.open(e.pac.x, e.pac.y, e.pac.dir) {
		e.pac.progress--
		e.pac.x, e.pac.y = step(e.pac.x, e.pac.y, e.pac.dir)
		if q := e.pac.queued; q != DirNone && q != e.pac.dir && e.open(e.pac.x, e.pac.y, q) {
			e.pac.dir = q
		}
		return
	}
	if q := e.pac.queued; q != DirNone && q != e.pac.dir && e.open(e.pac.x, e.pac.y, q) {
		e.pac.dir = q
		e.pac.progress--
		e.pac.x, e.pac.y = step(e.pac.x, e.pac.y, q)
		return
	}
	e.pac.progress = 0
}

// open reports whether one step from (x, y) along d lands on a walkable
// tile. Off-board counts as wall except on the tunnel row.
func (e *Engine) open(x, y int, d Direction) bool {
	dx, dy := d.Delta()
	return !e.board.IsWall(x+dx, y+dy)
}

// step advances one tile along d, wrapping horizontally on the tunnel row.
func step(x, y int, d Direction) (int, int) {
	dx, dy := d.Delta()
	nx, ny := x+dx, y+dy
	if ny == maze.TunnelRow {
		if nx < 0 {
			nx = maze.Width - 1
		} else if nx >= maze.Width {
			nx = 0
		}
	}
	return nx, ny
}

func (e *Engine) collect() {
	x, y := e.pac.x, e.pac.y
	if e.pellets[y][x] {
		e.pellets[y][x] = false
		e.pelletsRemaining--
		e.pelletsEaten++
		e.score += pelletPoints
	}
	if e.takePowerPellet(x, y) {
		e.score += powerPoints
		e.activatePower()
	}
	if f := e.fruit; f != nil && f.x == x && f.y == y {
		e.score += uint64(f.value)
		e.fruit = nil
	}
}

func (e *Engine) takePowerPellet(x, y int) bool {
	for i, p := range e.power {
		if p.X == x && p.Y == y {
			e.power = append(e.power[:i], e.power[i+1:]...)
			return true
		}
	}
	return false
}

// activatePower frightens every ghost that is not already eaten. Frightened
// speed is half the tier speed in absolute terms, so back-to-back power
// pellets do not compound the slowdown.
func (e *Engine) activatePower() {
	for i := range e.ghosts {
		g := &e.ghosts[i]
		if g.mode == ModeEaten {
			continue
		}
		g.mode = ModeFrightened
		g.dir = g.dir.Opposite()
		g.progress = 1 - g.progress
		g.speed = e.ghostSpeed() * 0.5
	}
	e.combo = 0
	e.powerActive = true
	e.powerTicks = e.EffectiveTier().PowerSeconds * TickRate
}

func (e *Engine) moveGhosts() {
	for i := range e.ghosts {
		e.moveGhost(&e.ghosts[i])
	}
}

func (e *Engine) moveGhost(g *ghost) {
	atBoundary := g.progress < boundaryEps
	if g.mode == ModeEaten && atBoundary && g.x == g.spawn.X && g.y == g.spawn.Y {
		e.reviveGhost(g)
	}
	if atBoundary {
		if g.mode == ModeEaten {
			e.steerEatenGhost(g)
		} else {
			e.steerGhost(g)
		}
	}
	g.progress += g.speed / TickRate
	if g.progress < 1 {
		return
	}
	if e.open(g.x, g.y, g.dir) {
		g.x, g.y = step(g.x, g.y, g.dir)
		if g.mode == ModeEaten && g.x == g.spawn.X && g.y == g.spawn.Y {
			e.reviveGhost(g)
		}
	}
	// Progress snaps to zero on step and on stall, so every tile entry is
	// a fresh boundary decision.
	g.progress = 0
}

func (e *Engine) reviveGhost(g *ghost) {
	g.mode = ModeChase
	g.speed = e.ghostSpeed()
}

// steerGhost picks the next direction uniformly among open ones, excluding
// the reverse unless nothing else is open. The draw comes from the match
// RNG, so replays reproduce it.
func (e *Engine) steerGhost(g *ghost) {
	rev := g.dir.Opposite()
	var open [4]Direction
	n := 0
	for _, d := range dirOrder {
		if d == rev || !e.open(g.x, g.y, d) {
			continue
		}
		open[n] = d
		n++
	}
	if n == 0 {
		if e.open(g.x, g.y, rev) {
			g.dir = rev
		}
		return
	}
	g.dir = open[e.rng.Intn(n)]
}

// steerEatenGhost heads home greedily by Manhattan distance, never
// reversing unless stuck in a dead end. No randomness: returning ghosts
// must not disturb the RNG stream.
func (e *Engine) steerEatenGhost(g *ghost) {
	rev := g.dir.Opposite()
	best := DirNone
	bestDist := maze.Width*maze.Height + 1
	for _, d := range dirOrder {
		if d == rev || !e.open(g.x, g.y, d) {
			continue
		}
		nx, ny := step(g.x, g.y, d)
		dist := abs(nx-g.spawn.X) + abs(ny-g.spawn.Y)
		if dist < bestDist {
			best, bestDist = d, dist
		}
	}
	if best == DirNone {
		if e.open(g.x, g.y, rev) {
			g.dir = rev
		}
		return
	}
	g.dir = best
}

func (e *Engine) resolveCollisions() {
	for i := range e.ghosts {
		g := &e.ghosts[i]
		if g.x != e.pac.x || g.y != e.pac.y {
			continue
		}
		switch g.mode {
		case ModeFrightened:
			e.score += comboPoints[e.combo]
			if e.combo < len(comboPoints)-1 {
				e.combo++
			}
			g.mode = ModeEaten
			g.speed = e.ghostSpeed() * 2
		case ModeChase, ModeScatter:
			e.loseLife()
			return
		}
	}
}

func (e *Engine) loseLife() {
	e.lives--
	if e.lives <= 0 {
		e.lives = 0
		e.over = true
		return
	}
	e.resetActors()
	e.powerActive = false
	e.powerTicks = 0
	e.combo = 0
}

func (e *Engine) tickPower() {
	if !e.powerActive {
		return
	}
	e.powerTicks--
	if e.powerTicks > 0 {
		return
	}
	e.powerTicks = 0
	e.powerActive = false
	for i := range e.ghosts {
		g := &e.ghosts[i]
		if g.mode == ModeFrightened {
			g.mode = ModeChase
			g.speed = e.ghostSpeed()
		}
	}
	e.combo = 0
}

func (e *Engine) tickFruit() {
	if !e.fruitSpawnedLow && e.pelletsEaten >= fruitFirstPellets {
		e.fruitSpawnedLow = true
		e.spawnFruit()
	} else if !e.fruitSpawnedHigh && e.pelletsEaten >= fruitSecondPellets {
		e.fruitSpawnedHigh = true
		e.spawnFruit()
	}
	if e.fruit == nil {
		return
	}
	e.fruit.ticks--
	if e.fruit.ticks <= 0 {
		e.fruit = nil
	}
}

func (e *Engine) spawnFruit() {
	e.fruit = &fruit{
		x:     fruitX,
		y:     fruitY,
		value: fruitMinPoints + e.rng.Intn(fruitMaxPoints-fruitMinPoints+1),
		ticks: fruitDurationTicks,
	}
}

func (e *Engine) maybeAdvanceRound() {
	if e.pelletsRemaining > 0 || len(e.power) > 0 {
		return
	}
	e.startRound(e.round + 1)
}

func (e *Engine) maybeAwardLife() {
	if e.extraLifeAwarded || e.score < extraLifeScore {
		return
	}
	e.extraLifeAwarded = true
	e.lives++
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
