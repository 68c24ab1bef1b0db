// Package api assembles arenad's client surface: the websocket gateway
// with its inbound message handlers, the REST endpoints for challenges and
// tournaments, health and Prometheus metrics.
package api

import (
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/betting"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/bus"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/challenge"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/session"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/tournament"
)

// Server owns the hub and the agent key registry, and dispatches inbound
// traffic into the components bound to it. Construction is two-phase: New
// builds the gateway so the components can publish through its hub, Bind
// attaches the components once they exist. Bind must run before traffic.
type Server struct {
	logger log.Logger
	auth   *bus.AgentAuth
	hub    *bus.Hub

	sessions    *session.Manager
	tournaments *tournament.Controller
	challenges  *challenge.Controller
	betting     *betting.Orchestrator
}

func New(logger log.Logger) *Server {
	s := &Server{
		logger: logger.With("module", "api"),
		auth:   bus.NewAgentAuth(),
	}
	s.hub = bus.NewHub(logger, bus.Handlers{
		JoinSync:    s.joinSync,
		PlayerInput: s.playerInput,
		AgentHello:  s.agentHello,
		AgentAction: s.agentAction,
	})
	return s
}

// Hub exposes the websocket fan-out for use as the component bus.
func (s *Server) Hub() *bus.Hub { return s.hub }

// Auth exposes the agent key registry so the challenge controller can drop
// per-match replay state when matches finish.
func (s *Server) Auth() *bus.AgentAuth { return s.auth }

// Bind attaches the components the routes and gateway dispatch into.
func (s *Server) Bind(
	sessions *session.Manager,
	tournaments *tournament.Controller,
	challenges *challenge.Controller,
	bets *betting.Orchestrator,
) {
	s.sessions = sessions
	s.tournaments = tournaments
	s.challenges = challenges
	s.betting = bets
}

// joinSync hands a joining spectator the live session's full frame so the
// delta stream that follows has a base to apply to. Rooms without live
// engine state sync nothing.
func (s *Server) joinSync(room string) (string, any) {
	kind, id, err := bus.ParseRoom(room)
	if err != nil {
		return "", nil
	}
	switch kind {
	case bus.KindMatch, bus.KindChallenge, bus.KindSurvival:
	default:
		return "", nil
	}
	if s.sessions == nil {
		return "", nil
	}
	snap := s.sessions.FullSync(id)
	if snap == nil {
		return "", nil
	}
	return "frame", session.FullFrame{Type: session.FrameFull, Snapshot: *snap}
}

// playerInput steers the sole pilot of a challenge or survival session.
// Multi-seat sessions only take signed agent actions.
func (s *Server) playerInput(room, direction string) error {
	kind, id, err := bus.ParseRoom(room)
	if err != nil {
		return err
	}
	if kind != bus.KindChallenge && kind != bus.KindSurvival {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "%s rooms take no player input", kind)
	}
	d, err := engine.ParseDirection(direction)
	if err != nil {
		return err
	}
	pilots := s.sessions.Participants(id)
	if len(pilots) == 0 {
		return errorsmod.Wrapf(arenaerr.ErrSessionNotFound, "session %s", id)
	}
	if len(pilots) > 1 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "session %s takes signed input only", id)
	}
	s.sessions.QueueInput(id, pilots[0], d)
	return nil
}

func (s *Server) agentHello(address string, pubKey []byte) error {
	return s.auth.Hello(address, pubKey)
}

// agentAction verifies signature and replay guard, then routes the move
// into the live challenge playing that match.
func (s *Server) agentAction(act bus.AgentAction) error {
	if err := s.auth.Verify(act); err != nil {
		return err
	}
	d, err := engine.ParseDirection(act.Direction)
	if err != nil {
		return err
	}
	info, ok := s.challenges.InfoForMatch(act.MatchID)
	if !ok {
		return errorsmod.Wrapf(arenaerr.ErrSessionNotFound, "match %d has no live session", act.MatchID)
	}
	if info.Agent != act.Address {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "agent %s does not play match %d", act.Address, act.MatchID)
	}
	s.sessions.QueueInput(info.ID, act.Address, d)
	return nil
}
