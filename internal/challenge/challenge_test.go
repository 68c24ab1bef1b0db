package challenge

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/betting"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/bus"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/ledger"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/session"
)

type harness struct {
	mem  *bus.Memory
	led  *ledger.Memory
	bets *betting.Orchestrator
	mgr  *session.Manager
	ctl  *Controller
}

func newHarness(t *testing.T, withBetting bool, tweak func(*Options)) *harness {
	t.Helper()
	logger := log.NewNopLogger()
	mem := bus.NewMemory()
	led := ledger.NewMemory()
	mgr := session.NewManager(session.Options{
		Logger:     logger,
		Bus:        mem,
		Boards:     maze.NewCache(),
		TickPeriod: 2 * time.Millisecond,
	})

	var bets *betting.Orchestrator
	if withBetting {
		bets = betting.NewOrchestrator(betting.Options{
			Logger:       logger,
			Bus:          mem,
			Ledger:       led,
			OddsInterval: 5 * time.Millisecond,
			Backoff:      ledger.Backoff{Attempts: 2, Base: time.Millisecond, Cap: 2 * time.Millisecond},
		})
	}

	opts := Options{
		Logger:         logger,
		Bus:            mem,
		Sessions:       mgr,
		Betting:        bets,
		MaxConcurrent:  10,
		ConnectTimeout: 200 * time.Millisecond,
		GameTimeout:    2 * time.Second,
		ReconnectGrace: 30 * time.Millisecond,
		Countdown:      20 * time.Millisecond,
		BettingWindow:  40 * time.Millisecond,
	}
	if tweak != nil {
		tweak(&opts)
	}
	ctl := NewController(opts)
	t.Cleanup(func() {
		ctl.Shutdown()
		mgr.Shutdown()
		if bets != nil {
			bets.Shutdown()
		}
	})
	return &harness{mem: mem, led: led, bets: bets, mgr: mgr, ctl: ctl}
}

func (h *harness) waitState(t *testing.T, room string, state State, timeout time.Duration) {
	t.Helper()
	_, ok := h.mem.WaitFor(func(e bus.Event) bool {
		if e.Room != room || e.Name != "challenge_state" {
			return false
		}
		return e.Payload.(StateEvent).State == state
	}, timeout)
	require.True(t, ok, "challenge never reached %s", state)
}

func TestCreateChallengeValidation(t *testing.T) {
	h := newHarness(t, false, nil)

	_, err := h.ctl.CreateChallenge("", maze.VariantClassic, 1)
	require.ErrorIs(t, err, arenaerr.ErrInvalidArgument)

	_, err = h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 0)
	require.ErrorIs(t, err, arenaerr.ErrInvalidArgument)
	_, err = h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 6)
	require.ErrorIs(t, err, arenaerr.ErrInvalidArgument)

	_, err = h.ctl.CreateChallenge("0xplayer", maze.Variant("bogus"), 2)
	require.ErrorIs(t, err, arenaerr.ErrInvalidArgument)

	require.Zero(t, h.ctl.ActiveChallengeCount())
	require.Empty(t, h.mem.Events())
}

func TestChallengeWithoutBettingCountsDownOnConnect(t *testing.T) {
	h := newHarness(t, false, nil)

	info, err := h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 1)
	require.NoError(t, err)
	require.Equal(t, StateWaitingAgent, info.State)
	require.Equal(t, matchIDBase+1, info.MatchID)
	require.Equal(t, 1, h.ctl.ActiveChallengeCount())

	room := bus.RoomName(bus.KindChallenge, info.ID)
	created := h.mem.InRoom(room)
	require.NotEmpty(t, created)
	require.Equal(t, "challenge_created", created[0].Name)
	require.Equal(t, info.ID, created[0].Payload.(CreatedEvent).ChallengeID)

	require.NoError(t, h.ctl.AgentConnected(info.ID))
	h.waitState(t, room, StateCountdown, time.Second)
	h.waitState(t, room, StateActive, time.Second)

	// No betting orchestrator means no wagering stage at all.
	require.Empty(t, h.mem.Named("betting_opened"))
	for _, e := range h.mem.Named("challenge_state") {
		require.NotEqual(t, StateBetting, e.Payload.(StateEvent).State)
	}

	// The engine session is live in the same room.
	_, ok := h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == room && e.Name == "frame"
	}, time.Second)
	require.True(t, ok, "no frames after activation")

	got, err := h.ctl.Info(info.ID)
	require.NoError(t, err)
	require.Equal(t, StateActive, got.State)
}

func TestChallengeTimeoutDecidesByLives(t *testing.T) {
	h := newHarness(t, false, func(o *Options) {
		o.GameTimeout = 300 * time.Millisecond
	})

	info, err := h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 1)
	require.NoError(t, err)
	require.NoError(t, h.ctl.AgentConnected(info.ID))

	room := bus.RoomName(bus.KindChallenge, info.ID)
	evt, ok := h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == room && e.Name == "match_result"
	}, 3*time.Second)
	require.True(t, ok, "timeout never resolved the challenge")

	// Three lives cannot drain inside a 150-tick game, so the survivor rule
	// picks the pacman side.
	res := evt.Payload.(ResultEvent)
	require.Equal(t, WinnerPacman, res.Winner)
	require.Equal(t, "timeout", res.Reason)
	require.Equal(t, info.MatchID, res.MatchID)
	require.NotEmpty(t, res.GameLogHash)

	require.Zero(t, h.ctl.ActiveChallengeCount())
	require.Nil(t, h.mgr.FullSync(info.ID))
	_, err = h.ctl.Info(info.ID)
	require.ErrorIs(t, err, arenaerr.ErrSessionNotFound)
}

func TestChallengeDisconnectForfeitsToGhosts(t *testing.T) {
	h := newHarness(t, true, func(o *Options) {
		o.BettingWindow = 150 * time.Millisecond
	})

	info, err := h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 2)
	require.NoError(t, err)
	room := bus.RoomName(bus.KindChallenge, info.ID)
	bettingRoom := bus.RoomName(bus.KindBetting, strconv.FormatUint(info.MatchID, 10))

	require.NoError(t, h.ctl.AgentConnected(info.ID))

	// The betting window gates the countdown.
	h.waitState(t, room, StateBetting, time.Second)
	_, ok := h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == bettingRoom && e.Name == "betting_opened"
	}, time.Second)
	require.True(t, ok)
	require.NoError(t, h.bets.RecordBet(info.MatchID, ledger.SideA, sdkmath.NewIntWithDecimal(1, 18)))

	h.waitState(t, room, StateCountdown, time.Second)
	_, ok = h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == bettingRoom && e.Name == "bets_locked"
	}, time.Second)
	require.True(t, ok)

	h.waitState(t, room, StateActive, time.Second)

	// Walk away mid-game and stay away past the grace.
	h.ctl.AgentDisconnected(info.ID)

	evt, ok := h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == room && e.Name == "match_result"
	}, 2*time.Second)
	require.True(t, ok, "grace never resolved the challenge")
	res := evt.Payload.(ResultEvent)
	require.Equal(t, WinnerGhost, res.Winner)
	require.Equal(t, "disconnect", res.Reason)

	// The pool settles for side B on the ledger.
	winner, settled := h.led.Settled(info.MatchID)
	require.True(t, settled)
	require.Equal(t, ledger.SideB, winner)
	require.Contains(t, h.led.CallsNamed("settleBets"), fmt.Sprintf("settleBets(%d,1)", info.MatchID))

	_, ok = h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == bettingRoom && e.Name == "bets_settled"
	}, time.Second)
	require.True(t, ok)
	require.Zero(t, h.ctl.ActiveChallengeCount())
}

func TestChallengeReconnectInsideGraceKeepsPlaying(t *testing.T) {
	h := newHarness(t, false, func(o *Options) {
		o.ReconnectGrace = 150 * time.Millisecond
	})

	info, err := h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 1)
	require.NoError(t, err)
	room := bus.RoomName(bus.KindChallenge, info.ID)
	require.NoError(t, h.ctl.AgentConnected(info.ID))
	h.waitState(t, room, StateActive, time.Second)

	h.ctl.AgentDisconnected(info.ID)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.ctl.AgentConnected(info.ID))

	// Outlive the grace; the game must still be running.
	time.Sleep(300 * time.Millisecond)
	got, err := h.ctl.Info(info.ID)
	require.NoError(t, err)
	require.Equal(t, StateActive, got.State)
	require.Empty(t, h.mem.Named("match_result"))
}

func TestConnectTimeoutExpiresChallenge(t *testing.T) {
	h := newHarness(t, false, func(o *Options) {
		o.ConnectTimeout = 30 * time.Millisecond
	})

	info, err := h.ctl.CreateChallenge("0xplayer", maze.VariantSpeedway, 3)
	require.NoError(t, err)
	room := bus.RoomName(bus.KindChallenge, info.ID)

	evt, ok := h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == room && e.Name == "challenge_expired"
	}, time.Second)
	require.True(t, ok)
	require.Equal(t, "connect_timeout", evt.Payload.(ExpiredEvent).Reason)
	require.Zero(t, h.ctl.ActiveChallengeCount())

	require.ErrorIs(t, h.ctl.AgentConnected(info.ID), arenaerr.ErrSessionNotFound)
	require.Empty(t, h.mem.Named("match_result"))
}

func TestPreGameDisconnectExpiresAndSettlesGhosts(t *testing.T) {
	h := newHarness(t, true, func(o *Options) {
		o.BettingWindow = 500 * time.Millisecond
	})

	info, err := h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 1)
	require.NoError(t, err)
	room := bus.RoomName(bus.KindChallenge, info.ID)
	require.NoError(t, h.ctl.AgentConnected(info.ID))
	h.waitState(t, room, StateBetting, time.Second)

	// Vanish while wagers are still open and never come back.
	h.ctl.AgentDisconnected(info.ID)

	evt, ok := h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == room && e.Name == "challenge_expired"
	}, time.Second)
	require.True(t, ok)
	require.Equal(t, "disconnect", evt.Payload.(ExpiredEvent).Reason)

	winner, settled := h.led.Settled(info.MatchID)
	require.True(t, settled)
	require.Equal(t, ledger.SideB, winner)
	require.Zero(t, h.ctl.ActiveChallengeCount())
	require.Empty(t, h.mem.Named("match_result"))
}

func TestNaturalGameOverSettlesWinnerSide(t *testing.T) {
	h := newHarness(t, true, nil)

	info, err := h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 2)
	require.NoError(t, err)
	room := bus.RoomName(bus.KindChallenge, info.ID)
	require.NoError(t, h.ctl.AgentConnected(info.ID))
	h.waitState(t, room, StateActive, 2*time.Second)

	h.ctl.handleGameOver(info.ID, engine.Snapshot{Lives: 2, Score: 4200, StateHash: "0xabcd"}, "")

	evt, ok := h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == room && e.Name == "match_result"
	}, time.Second)
	require.True(t, ok)
	res := evt.Payload.(ResultEvent)
	require.Equal(t, WinnerPacman, res.Winner)
	require.Empty(t, res.Reason)
	require.Equal(t, uint64(4200), res.ScoreA)
	require.Equal(t, "0xabcd", res.GameLogHash)

	winner, settled := h.led.Settled(info.MatchID)
	require.True(t, settled)
	require.Equal(t, ledger.SideA, winner)
	require.Zero(t, h.ctl.ActiveChallengeCount())
}

func TestGameOverWithNoLivesFallsToGhosts(t *testing.T) {
	h := newHarness(t, false, nil)

	info, err := h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 2)
	require.NoError(t, err)
	room := bus.RoomName(bus.KindChallenge, info.ID)
	require.NoError(t, h.ctl.AgentConnected(info.ID))
	h.waitState(t, room, StateActive, 2*time.Second)

	h.ctl.handleGameOver(info.ID, engine.Snapshot{Lives: 0, Score: 900, StateHash: "0x99"}, "")

	evt, ok := h.mem.WaitFor(func(e bus.Event) bool {
		return e.Room == room && e.Name == "match_result"
	}, time.Second)
	require.True(t, ok)
	require.Equal(t, WinnerGhost, evt.Payload.(ResultEvent).Winner)
}

func TestGameOverForStrangerSessionsIsIgnored(t *testing.T) {
	h := newHarness(t, false, nil)

	h.ctl.handleGameOver("not-a-challenge", engine.Snapshot{Lives: 0}, "")
	require.Empty(t, h.mem.Named("match_result"))
}

func TestConcurrencyCapRecyclesSlots(t *testing.T) {
	h := newHarness(t, false, func(o *Options) {
		o.MaxConcurrent = 2
		o.ConnectTimeout = 40 * time.Millisecond
	})

	_, err := h.ctl.CreateChallenge("0xone", maze.VariantClassic, 1)
	require.NoError(t, err)
	_, err = h.ctl.CreateChallenge("0xtwo", maze.VariantClassic, 1)
	require.NoError(t, err)
	_, err = h.ctl.CreateChallenge("0xthree", maze.VariantClassic, 1)
	require.ErrorIs(t, err, arenaerr.ErrUnavailable)

	// Expiry frees the slots.
	require.Eventually(t, func() bool {
		return h.ctl.ActiveChallengeCount() == 0
	}, time.Second, 5*time.Millisecond)
	_, err = h.ctl.CreateChallenge("0xthree", maze.VariantClassic, 1)
	require.NoError(t, err)
}

func TestShutdownStopsNewChallenges(t *testing.T) {
	h := newHarness(t, false, nil)

	_, err := h.ctl.CreateChallenge("0xplayer", maze.VariantClassic, 1)
	require.NoError(t, err)

	h.ctl.Shutdown()

	_, err = h.ctl.CreateChallenge("0xother", maze.VariantClassic, 1)
	require.ErrorIs(t, err, arenaerr.ErrUnavailable)

	// The abandoned challenge's connect deadline stays silent.
	time.Sleep(250 * time.Millisecond)
	require.Empty(t, h.mem.Named("challenge_expired"))

	h.ctl.Shutdown()
}
