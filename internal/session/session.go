// Package session hosts the live engines. A manager owns every running
// session, drives each at the engine cadence, fans frames out to its room
// and fires lifecycle hooks the orchestrators build on.
package session

import (
	"sort"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/advisor"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/bus"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
)

// Kind classifies a session; it is also the room prefix.
type Kind string

const (
	KindMatch     Kind = Kind(bus.KindMatch)
	KindChallenge Kind = Kind(bus.KindChallenge)
	KindSurvival  Kind = Kind(bus.KindSurvival)
)

// Config describes one session to create.
type Config struct {
	ID           string
	Kind         Kind
	Variant      maze.Variant
	Seed         int64
	Tier         int
	Participants []string
}

// Lifecycle hooks. All fire synchronously from the session's driver and
// are shielded: a panicking hook is logged, not fatal.
type (
	RoundChangeFunc func(sessionID string, round int, snap engine.Snapshot)
	GameOverFunc    func(sessionID string, snap engine.Snapshot, reason string)
	FrameFunc       func(sessionID, room string, payload any)
)

// Terminal reasons on game_over events.
const (
	ReasonEngineFault = "engine_fault"
)

// Event payloads beyond frames.
type RoundStartEvent struct {
	Round         int     `json:"round"`
	Difficulty    int     `json:"difficulty"`
	GhostSpeed    float64 `json:"ghostSpeed"`
	PowerDuration int     `json:"powerDuration"`
}

type RoundEndEvent struct {
	Round          int    `json:"round"`
	Score          uint64 `json:"score"`
	LivesRemaining int    `json:"livesRemaining"`
	NextDifficulty int    `json:"nextDifficulty"`
}

type GameOverEvent struct {
	Reason    string `json:"reason,omitempty"`
	Tick      uint64 `json:"tick"`
	Round     int    `json:"round"`
	Score     uint64 `json:"score"`
	Lives     int    `json:"lives"`
	StateHash string `json:"stateHash"`
}

type GhostTargetsEvent struct {
	Tick    uint64               `json:"tick"`
	Targets advisor.GhostTargets `json:"targets"`
}

const (
	defaultTickPeriod = time.Second / 60

	// advisorEvery spaces ghost_targets overlays; suggestions are advisory
	// and do not need frame cadence.
	advisorEvery = 30
)

type sessionState uint8

const (
	stateCreated sessionState = iota
	stateRunning
	stateDone
)

type session struct {
	id           string
	kind         Kind
	room         string
	participants []string

	mu        sync.Mutex
	eng       *engine.Engine
	prev      engine.Snapshot
	havePrev  bool
	lastRound int
	pending   engine.Direction
	state     sessionState

	stopOnce    sync.Once
	stopCh      chan struct{}
	done        chan struct{}
	advisorCh   chan advisor.StateSummary
	advisorDone chan struct{}

	// endSnap and endReason carry a finished game's terminal state from the
	// tick loop to the game-over hook. Only the driver goroutine touches
	// them; the hook fires after done is closed, so a hook that stops or
	// removes the session does not wait on its own goroutine.
	endSnap   *engine.Snapshot
	endReason string
}

func (s *session) signalStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Options wires a Manager.
type Options struct {
	Logger  log.Logger
	Bus     bus.Bus
	Boards  *maze.Cache
	Advisor advisor.Advisor // optional; nil disables ghost_targets overlays

	// TickPeriod overrides the 60 Hz cadence; tests shrink it.
	TickPeriod time.Duration
}

// Manager owns the session map and everything that runs inside it.
type Manager struct {
	logger     log.Logger
	bus        bus.Bus
	boards     *maze.Cache
	advisor    advisor.Advisor
	tickPeriod time.Duration

	mu       sync.RWMutex
	sessions map[string]*session

	cbMu          sync.RWMutex
	onRoundChange RoundChangeFunc
	onGameOver    GameOverFunc
	onFrame       FrameFunc
}

func NewManager(opts Options) *Manager {
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = defaultTickPeriod
	}
	return &Manager{
		logger:     opts.Logger.With("module", "session"),
		bus:        opts.Bus,
		boards:     opts.Boards,
		advisor:    opts.Advisor,
		tickPeriod: opts.TickPeriod,
		sessions:   make(map[string]*session),
	}
}

func (m *Manager) SetOnRoundChange(cb RoundChangeFunc) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onRoundChange = cb
}

func (m *Manager) SetOnGameOver(cb GameOverFunc) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onGameOver = cb
}

func (m *Manager) SetOnFrame(cb FrameFunc) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onFrame = cb
}

// CreateSession builds the engine and registers the session without
// starting it.
func (m *Manager) CreateSession(cfg Config) error {
	if cfg.ID == "" {
		return errorsmod.Wrap(arenaerr.ErrInvalidArgument, "empty session id")
	}
	switch cfg.Kind {
	case KindMatch, KindChallenge, KindSurvival:
	default:
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "session kind %q", cfg.Kind)
	}

	eng, err := engine.New(engine.Config{
		Variant:        cfg.Variant,
		Seed:           cfg.Seed,
		Tier:           cfg.Tier,
		RampDifficulty: cfg.Kind == KindSurvival,
	}, m.boards)
	if err != nil {
		return err
	}

	s := &session{
		id:           cfg.ID,
		kind:         cfg.Kind,
		room:         bus.RoomName(string(cfg.Kind), cfg.ID),
		participants: append([]string(nil), cfg.Participants...),
		eng:          eng,
		lastRound:    1,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[cfg.ID]; exists {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "session %s already exists", cfg.ID)
	}
	m.sessions[cfg.ID] = s
	m.logger.Info("session created", "session", cfg.ID, "kind", cfg.Kind, "variant", cfg.Variant, "seed", cfg.Seed, "tier", cfg.Tier)
	return nil
}

// StartSession launches the session's driver.
func (m *Manager) StartSession(id string) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return errorsmod.Wrapf(arenaerr.ErrSessionNotFound, "session %s", id)
	}

	s.mu.Lock()
	if s.state != stateCreated {
		s.mu.Unlock()
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "session %s already started", id)
	}
	s.state = stateRunning
	if m.advisor != nil {
		s.advisorCh = make(chan advisor.StateSummary, 1)
		s.advisorDone = make(chan struct{})
	}
	s.mu.Unlock()

	if s.advisorCh != nil {
		go m.advisorLoop(s)
	}
	go m.drive(s)
	m.logger.Info("session started", "session", id)
	return nil
}

// StopSession halts the driver and waits for it; the session stays
// available for FullSync until removed.
func (m *Manager) StopSession(id string) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		m.logger.Debug("stop for unknown session", "session", id)
		return
	}
	m.stop(s)
}

func (m *Manager) stop(s *session) {
	s.mu.Lock()
	started := s.state != stateCreated
	s.state = stateDone
	s.mu.Unlock()
	s.signalStop()
	if started {
		<-s.done
	}
}

// RemoveSession stops the session and drops it from the map.
func (m *Manager) RemoveSession(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		m.logger.Debug("remove for unknown session", "session", id)
		return
	}
	m.stop(s)
	m.logger.Info("session removed", "session", id)
}

// QueueInput stores a participant's direction for the next tick, replacing
// any direction already waiting. Unknown sessions, unknown participants and
// non-moves are ignored.
func (m *Manager) QueueInput(id, participant string, dir engine.Direction) {
	if dir == engine.DirNone {
		return
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		m.logger.Debug("input for unknown session", "session", id)
		return
	}
	allowed := false
	for _, p := range s.participants {
		if p == participant {
			allowed = true
			break
		}
	}
	if !allowed {
		m.logger.Debug("input from non-participant", "session", id, "participant", participant)
		return
	}
	s.mu.Lock()
	s.pending = dir
	s.mu.Unlock()
}

// FullSync returns the session's current snapshot for a joining spectator,
// or nil when the session is unknown.
func (m *Manager) FullSync(id string) *engine.Snapshot {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.eng.Snapshot()
	return &snap
}

// Room returns the broadcast room for a session id, or "" when unknown.
func (m *Manager) Room(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s.room
	}
	return ""
}

// Participants returns a session's participant list, nil when unknown.
func (m *Manager) Participants(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return append([]string(nil), s.participants...)
	}
	return nil
}

// ActiveSessions lists ids of sessions that have not finished, sorted.
func (m *Manager) ActiveSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, s := range m.sessions {
		s.mu.Lock()
		live := s.state != stateDone
		s.mu.Unlock()
		if live {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Shutdown stops every session and empties the map. No frames are emitted
// after it returns.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.stop(s)
	}
	m.logger.Info("session manager drained", "stopped", len(sessions))
}
