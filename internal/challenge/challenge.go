// Package challenge runs user-versus-ghosts matches outside the tournament
// tree. Each challenge is a chain of owned timers: connect deadline, betting
// window, countdown, game cap and reconnect grace. Every transition is
// decided under the challenge lock, so a timer that lost its race finds the
// state moved on and bails.
package challenge

import (
	"math/rand"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/google/uuid"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/betting"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/bus"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/ledger"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/metrics"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/session"
)

// State names a challenge's position in its lifecycle.
type State string

const (
	StateWaitingAgent State = "waiting_agent"
	StateBetting      State = "betting"
	StateCountdown    State = "countdown"
	StateActive       State = "active"
	StateCompleted    State = "completed"
	StateExpired      State = "expired"
)

// Winner labels on challenge results.
const (
	WinnerPacman = "pacman"
	WinnerGhost  = "ghost"
)

// matchIDBase keeps challenge match ids clear of the tournament range, so
// both can share the betting orchestrator and the ledger.
const matchIDBase = uint64(1) << 48

// seedSpan bounds the per-challenge seed draw.
const seedSpan = 1_000_000

// ghostSide is the label shown for the house side of a challenge pool.
const ghostSide = "ghosts"

// Defaults for the timer chain.
const (
	defaultMaxConcurrent  = 10
	defaultConnectTimeout = 60 * time.Second
	defaultGameTimeout    = 5 * time.Minute
	defaultReconnectGrace = 10 * time.Second
	defaultCountdown      = 3 * time.Second
	defaultBettingWindow  = 30 * time.Second
)

// Wire payloads for the challenge room.
type (
	CreatedEvent struct {
		ChallengeID string       `json:"challengeId"`
		MatchID     uint64       `json:"matchId"`
		Agent       string       `json:"agent"`
		Variant     maze.Variant `json:"variant"`
		Seed        int64        `json:"seed"`
		Tier        int          `json:"tier"`
		State       State        `json:"state"`
	}

	StateEvent struct {
		ChallengeID string  `json:"challengeId"`
		State       State   `json:"state"`
		Seconds     float64 `json:"seconds,omitempty"`
	}

	ExpiredEvent struct {
		ChallengeID string `json:"challengeId"`
		Reason      string `json:"reason"`
	}

	ResultEvent struct {
		ChallengeID string `json:"challengeId"`
		MatchID     uint64 `json:"matchId"`
		Winner      string `json:"winner"`
		Reason      string `json:"reason,omitempty"`
		ScoreA      uint64 `json:"scoreA"`
		ScoreB      uint64 `json:"scoreB"`
		GameLogHash string `json:"gameLogHash"`
	}
)

// Info is the introspection view served over the API.
type Info struct {
	ID      string       `json:"id"`
	MatchID uint64       `json:"matchId"`
	Agent   string       `json:"agent"`
	State   State        `json:"state"`
	Variant maze.Variant `json:"variant"`
	Seed    int64        `json:"seed"`
	Tier    int          `json:"tier"`
}

type challenge struct {
	id      string
	matchID uint64
	agent   string
	room    string
	variant maze.Variant
	seed    int64
	tier    int

	mu         sync.Mutex
	state      State
	connected  bool
	betsOpened bool

	// stage owns the current pre-game deadline: connect, betting window or
	// countdown. cap and grace run only against an active game.
	stage *time.Timer
	cap   *time.Timer
	grace *time.Timer
}

func (ch *challenge) stopTimersLocked() {
	for _, t := range []*time.Timer{ch.stage, ch.cap, ch.grace} {
		if t != nil {
			t.Stop()
		}
	}
}

// Options wires a Controller.
type Options struct {
	Logger   log.Logger
	Bus      bus.Bus
	Sessions *session.Manager
	Betting  *betting.Orchestrator // nil disables wagering on challenges
	Auth     *bus.AgentAuth        // optional; finished matches drop their replay-protection state

	MaxConcurrent  int
	ConnectTimeout time.Duration
	GameTimeout    time.Duration
	ReconnectGrace time.Duration
	Countdown      time.Duration
	BettingWindow  time.Duration
}

func (o *Options) fill() {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultMaxConcurrent
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.GameTimeout <= 0 {
		o.GameTimeout = defaultGameTimeout
	}
	if o.ReconnectGrace <= 0 {
		o.ReconnectGrace = defaultReconnectGrace
	}
	if o.Countdown <= 0 {
		o.Countdown = defaultCountdown
	}
	if o.BettingWindow <= 0 {
		o.BettingWindow = defaultBettingWindow
	}
}

// Controller owns every live challenge. It claims the session manager's
// game-over hook; challenge sessions are the only manager sessions routed
// through it, everything else is ignored by id.
type Controller struct {
	logger   log.Logger
	bus      bus.Bus
	sessions *session.Manager
	betting  *betting.Orchestrator
	auth     *bus.AgentAuth
	opts     Options

	mu          sync.Mutex
	challenges  map[string]*challenge
	nextMatchID uint64
	draining    bool
}

func NewController(opts Options) *Controller {
	opts.fill()
	c := &Controller{
		logger:     opts.Logger.With("module", "challenge"),
		bus:        opts.Bus,
		sessions:   opts.Sessions,
		betting:    opts.Betting,
		auth:       opts.Auth,
		opts:       opts,
		challenges: make(map[string]*challenge),
	}
	c.sessions.SetOnGameOver(c.handleGameOver)
	return c
}

// CreateChallenge registers a new challenge and starts its connect
// deadline. The returned info carries the room-derivable id and the match
// id used for wagering and settlement.
func (c *Controller) CreateChallenge(agent string, variant maze.Variant, tier int) (Info, error) {
	if agent == "" {
		return Info{}, errorsmod.Wrap(arenaerr.ErrInvalidArgument, "empty agent address")
	}
	if tier < 1 || tier > 5 {
		return Info{}, errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "tier %d outside [1,5]", tier)
	}
	known := false
	for _, v := range maze.Variants() {
		if v == variant {
			known = true
			break
		}
	}
	if !known {
		return Info{}, errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "maze variant %q", variant)
	}

	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return Info{}, errorsmod.Wrap(arenaerr.ErrUnavailable, "challenge controller draining")
	}
	if len(c.challenges) >= c.opts.MaxConcurrent {
		c.mu.Unlock()
		return Info{}, errorsmod.Wrapf(arenaerr.ErrUnavailable, "challenge slots full (%d live)", c.opts.MaxConcurrent)
	}
	c.nextMatchID++
	ch := &challenge{
		id:      uuid.NewString(),
		matchID: matchIDBase + c.nextMatchID,
		agent:   agent,
		variant: variant,
		seed:    rand.Int63n(seedSpan),
		tier:    tier,
		state:   StateWaitingAgent,
	}
	ch.room = bus.RoomName(bus.KindChallenge, ch.id)
	c.challenges[ch.id] = ch
	c.mu.Unlock()
	metrics.ChallengesActive.Inc()

	ch.mu.Lock()
	ch.stage = time.AfterFunc(c.opts.ConnectTimeout, func() { c.expireUnconnected(ch) })
	ch.mu.Unlock()

	c.bus.Broadcast(ch.room, "challenge_created", CreatedEvent{
		ChallengeID: ch.id,
		MatchID:     ch.matchID,
		Agent:       agent,
		Variant:     variant,
		Seed:        ch.seed,
		Tier:        tier,
		State:       StateWaitingAgent,
	})
	c.logger.Info("challenge created", "challenge", ch.id, "agent", agent, "variant", variant, "tier", tier)
	return c.info(ch), nil
}

// AgentConnected moves a waiting challenge toward its game, or clears the
// reconnect grace on a mid-match return.
func (c *Controller) AgentConnected(id string) error {
	ch, err := c.lookup(id)
	if err != nil {
		return err
	}

	ch.mu.Lock()
	switch ch.state {
	case StateWaitingAgent:
		ch.connected = true
		ch.stage.Stop()
		if c.betting != nil {
			ch.state = StateBetting
			ch.betsOpened = true
			ch.stage = time.AfterFunc(c.opts.BettingWindow, func() { c.closeBetting(ch) })
			ch.mu.Unlock()

			if err := c.betting.OpenBettingWindow(ch.matchID, ch.agent, ghostSide, c.opts.BettingWindow); err != nil {
				c.logger.Error("challenge betting window failed to open", "challenge", ch.id, "err", err)
			}
			c.broadcastState(ch, StateBetting, c.opts.BettingWindow)
			return nil
		}
		ch.state = StateCountdown
		ch.stage = time.AfterFunc(c.opts.Countdown, func() { c.activate(ch) })
		ch.mu.Unlock()

		c.broadcastState(ch, StateCountdown, c.opts.Countdown)
		return nil

	case StateBetting, StateCountdown, StateActive:
		// Reconnect. Stopping the grace timer keeps the game alive.
		ch.connected = true
		if ch.grace != nil {
			ch.grace.Stop()
		}
		ch.mu.Unlock()
		c.logger.Info("agent reconnected", "challenge", ch.id)
		return nil

	default:
		state := ch.state
		ch.mu.Unlock()
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "challenge %s is %s", id, state)
	}
}

// AgentDisconnected starts the reconnect grace. A challenge that never sees
// the agent again is decided when the grace lapses.
func (c *Controller) AgentDisconnected(id string) {
	ch, err := c.lookup(id)
	if err != nil {
		c.logger.Debug("disconnect for unknown challenge", "challenge", id)
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !ch.connected {
		return
	}
	switch ch.state {
	case StateBetting, StateCountdown, StateActive:
		ch.connected = false
		if ch.grace != nil {
			ch.grace.Stop()
		}
		ch.grace = time.AfterFunc(c.opts.ReconnectGrace, func() { c.graceExpired(ch) })
		c.logger.Info("agent disconnected, grace running", "challenge", ch.id, "grace", c.opts.ReconnectGrace)
	default:
	}
}

// Info returns the introspection view of one challenge.
func (c *Controller) Info(id string) (Info, error) {
	ch, err := c.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return c.info(ch), nil
}

// InfoForMatch resolves the live challenge playing under a match id. Signed
// agent actions carry match ids, not challenge ids.
func (c *Controller) InfoForMatch(matchID uint64) (Info, bool) {
	c.mu.Lock()
	var found *challenge
	for _, ch := range c.challenges {
		if ch.matchID == matchID {
			found = ch
			break
		}
	}
	c.mu.Unlock()
	if found == nil {
		return Info{}, false
	}
	return c.info(found), true
}

// ActiveChallengeCount reports challenges that have not reached a terminal
// state.
func (c *Controller) ActiveChallengeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.challenges)
}

// Shutdown silences every timer and abandons live challenges. Sessions
// already playing are stopped; pools are left to the betting drain.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	live := make([]*challenge, 0, len(c.challenges))
	for _, ch := range c.challenges {
		live = append(live, ch)
	}
	c.mu.Unlock()

	for _, ch := range live {
		ch.mu.Lock()
		wasActive := ch.state == StateActive
		ch.state = StateExpired
		ch.stopTimersLocked()
		ch.mu.Unlock()
		if wasActive {
			c.sessions.StopSession(ch.id)
		}
	}
	c.logger.Info("challenge controller drained", "abandoned", len(live))
}

func (c *Controller) lookup(id string) (*challenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.challenges[id]
	if !ok {
		return nil, errorsmod.Wrapf(arenaerr.ErrSessionNotFound, "challenge %s", id)
	}
	return ch, nil
}

func (c *Controller) info(ch *challenge) Info {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return Info{
		ID:      ch.id,
		MatchID: ch.matchID,
		Agent:   ch.agent,
		State:   ch.state,
		Variant: ch.variant,
		Seed:    ch.seed,
		Tier:    ch.tier,
	}
}

func (c *Controller) broadcastState(ch *challenge, state State, window time.Duration) {
	evt := StateEvent{ChallengeID: ch.id, State: state}
	if window > 0 {
		evt.Seconds = window.Seconds()
	}
	c.bus.Broadcast(ch.room, "challenge_state", evt)
}

// expireUnconnected fires when no agent showed up inside the connect
// deadline. No pool exists yet, so there is nothing to settle.
func (c *Controller) expireUnconnected(ch *challenge) {
	ch.mu.Lock()
	if ch.state != StateWaitingAgent {
		ch.mu.Unlock()
		return
	}
	ch.state = StateExpired
	ch.stopTimersLocked()
	ch.mu.Unlock()

	c.logger.Info("challenge expired, agent never connected", "challenge", ch.id)
	c.bus.Broadcast(ch.room, "challenge_expired", ExpiredEvent{ChallengeID: ch.id, Reason: "connect_timeout"})
	c.remove(ch)
}

// closeBetting locks the pool and starts the countdown. The betting
// orchestrator's own expiry may have locked already; that race is benign.
func (c *Controller) closeBetting(ch *challenge) {
	ch.mu.Lock()
	if ch.state != StateBetting {
		ch.mu.Unlock()
		return
	}
	ch.state = StateCountdown
	ch.stage = time.AfterFunc(c.opts.Countdown, func() { c.activate(ch) })
	ch.mu.Unlock()

	if err := c.betting.LockBets(ch.matchID); err != nil {
		c.logger.Debug("challenge pool already locked", "challenge", ch.id, "err", err)
	}
	c.broadcastState(ch, StateCountdown, c.opts.Countdown)
}

// activate builds the engine session and starts the game clock.
func (c *Controller) activate(ch *challenge) {
	ch.mu.Lock()
	if ch.state != StateCountdown {
		ch.mu.Unlock()
		return
	}
	ch.state = StateActive
	ch.cap = time.AfterFunc(c.opts.GameTimeout, func() { c.timeoutGame(ch) })
	ch.mu.Unlock()

	err := c.sessions.CreateSession(session.Config{
		ID:           ch.id,
		Kind:         session.KindChallenge,
		Variant:      ch.variant,
		Seed:         ch.seed,
		Tier:         ch.tier,
		Participants: []string{ch.agent},
	})
	if err == nil {
		err = c.sessions.StartSession(ch.id)
	}
	if err != nil {
		c.logger.Error("challenge session failed to start", "challenge", ch.id, "err", err)
		c.expireBroken(ch, "engine_fault")
		return
	}

	c.broadcastState(ch, StateActive, 0)
	c.logger.Info("challenge live", "challenge", ch.id, "agent", ch.agent)
}

// expireBroken tears down a challenge that could not reach or survive its
// game. An opened pool settles for the ghosts so wagers do not hang.
func (c *Controller) expireBroken(ch *challenge, reason string) {
	ch.mu.Lock()
	if ch.state == StateCompleted || ch.state == StateExpired {
		ch.mu.Unlock()
		return
	}
	ch.state = StateExpired
	ch.stopTimersLocked()
	betsOpened := ch.betsOpened
	ch.mu.Unlock()

	if betsOpened {
		c.settle(ch, ledger.SideB)
	}
	c.bus.Broadcast(ch.room, "challenge_expired", ExpiredEvent{ChallengeID: ch.id, Reason: reason})
	c.remove(ch)
}

// graceExpired decides a challenge whose agent never came back.
func (c *Controller) graceExpired(ch *challenge) {
	ch.mu.Lock()
	if ch.connected {
		ch.mu.Unlock()
		return
	}
	switch ch.state {
	case StateActive:
		ch.mu.Unlock()
		c.sessions.StopSession(ch.id)
		snap := c.sessions.FullSync(ch.id)
		c.finish(ch, WinnerGhost, "disconnect", snap)
	case StateBetting, StateCountdown:
		ch.mu.Unlock()
		c.logger.Info("agent lost before game start", "challenge", ch.id)
		c.expireBroken(ch, "disconnect")
	default:
		ch.mu.Unlock()
	}
}

// timeoutGame ends a game that hit the duration cap. The lives rule decides
// the winner, same as a natural game over.
func (c *Controller) timeoutGame(ch *challenge) {
	ch.mu.Lock()
	if ch.state != StateActive {
		ch.mu.Unlock()
		return
	}
	ch.mu.Unlock()

	c.sessions.StopSession(ch.id)
	snap := c.sessions.FullSync(ch.id)
	if snap == nil {
		// The session vanished under us; its game-over path owns the result.
		return
	}
	winner := WinnerGhost
	if snap.Lives > 0 {
		winner = WinnerPacman
	}
	c.finish(ch, winner, "timeout", snap)
}

// handleGameOver is the session manager's game-over hook. Sessions that are
// not challenges fall through.
func (c *Controller) handleGameOver(sessionID string, snap engine.Snapshot, reason string) {
	c.mu.Lock()
	ch, ok := c.challenges[sessionID]
	c.mu.Unlock()
	if !ok {
		return
	}
	winner := WinnerGhost
	if snap.Lives > 0 {
		winner = WinnerPacman
	}
	c.finish(ch, winner, reason, &snap)
}

// finish is the single terminal path for played challenges: settle the pool
// on the winner, publish the result, release the session. Exactly one
// caller wins the state flip; the rest bail.
func (c *Controller) finish(ch *challenge, winner, reason string, snap *engine.Snapshot) {
	ch.mu.Lock()
	if ch.state != StateActive {
		ch.mu.Unlock()
		return
	}
	ch.state = StateCompleted
	ch.stopTimersLocked()
	betsOpened := ch.betsOpened
	ch.mu.Unlock()

	if betsOpened {
		side := ledger.SideB
		if winner == WinnerPacman {
			side = ledger.SideA
		}
		c.settle(ch, side)
	}

	evt := ResultEvent{
		ChallengeID: ch.id,
		MatchID:     ch.matchID,
		Winner:      winner,
		Reason:      reason,
	}
	if snap != nil {
		evt.ScoreA = snap.Score
		evt.GameLogHash = snap.StateHash
	}
	c.bus.Broadcast(ch.room, "match_result", evt)
	c.sessions.RemoveSession(ch.id)
	c.remove(ch)
	c.logger.Info("challenge finished", "challenge", ch.id, "winner", winner, "reason", reason)
}

// settle locks and settles the challenge pool. A settle failure leaves the
// pool locked for operators; the challenge result stands either way.
func (c *Controller) settle(ch *challenge, side uint8) {
	if err := c.betting.LockBets(ch.matchID); err != nil {
		c.logger.Debug("challenge pool already locked", "challenge", ch.id, "err", err)
	}
	if err := c.betting.SettleBets(ch.matchID, side); err != nil {
		c.logger.Error("challenge pool failed to settle", "challenge", ch.id, "match", ch.matchID, "err", err)
	}
}

func (c *Controller) remove(ch *challenge) {
	c.mu.Lock()
	delete(c.challenges, ch.id)
	c.mu.Unlock()
	if c.auth != nil {
		c.auth.Forget(ch.matchID)
	}
	metrics.ChallengesActive.Dec()
}
