package bus

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"

	errorsmod "cosmossdk.io/errors"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

const actionAuthDomainV1 = "arena/v1/agent_action"

// AgentAction is the signed inbound move an external agent submits for a
// match it plays in.
type AgentAction struct {
	MatchID   uint64 `json:"matchId"`
	Address   string `json:"agentAddress"`
	Direction string `json:"direction"`
	Tick      uint64 `json:"tick"`
	Signature []byte `json:"signature"`
}

// actionSignBytes builds the preimage an agent signs.
// signBytes = DOMAIN || 0x00 || matchId || 0x00 || address || 0x00 || direction || 0x00 || tick
func actionSignBytes(a AgentAction) []byte {
	matchID := strconv.FormatUint(a.MatchID, 10)
	tick := strconv.FormatUint(a.Tick, 10)
	out := make([]byte, 0, len(actionAuthDomainV1)+1+len(matchID)+1+len(a.Address)+1+len(a.Direction)+1+len(tick))
	out = append(out, []byte(actionAuthDomainV1)...)
	out = append(out, 0)
	out = append(out, []byte(matchID)...)
	out = append(out, 0)
	out = append(out, []byte(a.Address)...)
	out = append(out, 0)
	out = append(out, []byte(a.Direction)...)
	out = append(out, 0)
	out = append(out, []byte(tick)...)
	return out
}

// SignAction produces the signature field for an action. Agent clients and
// tests share it so the preimage never drifts.
func SignAction(priv ed25519.PrivateKey, a AgentAction) []byte {
	return ed25519.Sign(priv, actionSignBytes(a))
}

// DeriveAddress maps an ed25519 public key to its agent address: hex of the
// first 20 bytes of sha256(pubkey), 0x-prefixed.
func DeriveAddress(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "0x" + hex.EncodeToString(sum[:20])
}

type matchAgent struct {
	match uint64
	addr  string
}

// AgentAuth registers agent keys announced via agent_hello and verifies
// agent_action signatures, enforcing strictly increasing ticks per
// (match, agent) so captured actions cannot be replayed.
type AgentAuth struct {
	mu       sync.Mutex
	keys     map[string]ed25519.PublicKey
	lastTick map[matchAgent]uint64
}

func NewAgentAuth() *AgentAuth {
	return &AgentAuth{
		keys:     make(map[string]ed25519.PublicKey),
		lastTick: make(map[matchAgent]uint64),
	}
}

// Hello registers a public key for an address. The address must be the one
// the key derives to; re-registering the same key is a no-op.
func (a *AgentAuth) Hello(address string, pub []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	key := ed25519.PublicKey(pub)
	if derived := DeriveAddress(key); derived != address {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "address %q does not match key (%s)", address, derived)
	}
	a.mu.Lock()
	a.keys[address] = key
	a.mu.Unlock()
	return nil
}

// Verify checks an action's signature and tick monotonicity, and records
// the tick on success.
func (a *AgentAuth) Verify(act AgentAction) error {
	if len(act.Signature) != ed25519.SignatureSize {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "signature length %d", len(act.Signature))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	pub, ok := a.keys[act.Address]
	if !ok {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "unknown agent %s", act.Address)
	}
	if !ed25519.Verify(pub, actionSignBytes(act), act.Signature) {
		return errorsmod.Wrap(arenaerr.ErrInvalidArgument, "bad signature")
	}
	key := matchAgent{match: act.MatchID, addr: act.Address}
	if last, seen := a.lastTick[key]; seen && act.Tick <= last {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "stale tick %d (last %d)", act.Tick, last)
	}
	a.lastTick[key] = act.Tick
	return nil
}

// Forget drops replay-protection state for a finished match.
func (a *AgentAuth) Forget(matchID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.lastTick {
		if k.match == matchID {
			delete(a.lastTick, k)
		}
	}
}
