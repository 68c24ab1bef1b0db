// Package bus carries the spectator-facing event fabric: an outbound
// broadcast port the core components publish on, a websocket hub that
// implements it, and the signature checks for inbound agent traffic.
package bus

import (
	"strings"

	errorsmod "cosmossdk.io/errors"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

// Bus is the outbound fan-out contract. Broadcast is best-effort and must
// never block: a slow or absent transport drops messages, it does not stall
// a tick.
type Bus interface {
	Broadcast(room, event string, payload any)
}

// Room kinds the platform publishes on.
const (
	KindMatch      = "match"
	KindChallenge  = "challenge"
	KindSurvival   = "survival"
	KindTournament = "tournament"
	KindBetting    = "betting"
	KindLobby      = "lobby"
)

var knownKinds = map[string]bool{
	KindMatch:      true,
	KindChallenge:  true,
	KindSurvival:   true,
	KindTournament: true,
	KindBetting:    true,
	KindLobby:      true,
}

// RoomName forms the canonical `<kind>:<id>` room address.
func RoomName(kind, id string) string {
	return kind + ":" + id
}

// ParseRoom splits and validates a room address from a boundary.
func ParseRoom(room string) (kind, id string, err error) {
	kind, id, ok := strings.Cut(room, ":")
	if !ok || kind == "" || id == "" || !knownKinds[kind] {
		return "", "", errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "room %q", room)
	}
	return kind, id, nil
}
