package ledger

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// TxEnvelope is the JSON transaction container the arena chain accepts.
// CometBFT transactions are opaque bytes; the chain decodes this envelope
// and routes on Type.
type TxEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// Operator auth: Sig is Ed25519 over (type, nonce, signer, sha256(value)),
	// nonce strictly increasing per signer.
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

const txAuthDomainV1 = "arena/tx/v1"

// txSignBytes builds the operator signature preimage.
// signBytes = DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value)
func txSignBytes(typ string, value []byte, nonce, signer string) []byte {
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV1)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV1)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

// Tx type routing keys.
const (
	TxCreateTournament   = "arena/create_tournament"
	TxAdvanceTournament  = "arena/advance_tournament"
	TxFinalizeTournament = "arena/finalize_tournament"
	TxLockBets           = "arena/lock_bets"
	TxSettleBets         = "arena/settle_bets"
	TxSubmitResult       = "arena/submit_result"
)

type CreateTournamentTx struct {
	Participants []string `json:"participants"`
	Size         int      `json:"size"`
}

type AdvanceTournamentTx struct {
	TournamentID uint64   `json:"tournamentId"`
	Winners      []string `json:"winners"`
}

type FinalizeTournamentTx struct {
	TournamentID uint64 `json:"tournamentId"`
	Champion     string `json:"champion"`
}

type LockBetsTx struct {
	MatchID uint64 `json:"matchId"`
}

type SettleBetsTx struct {
	MatchID uint64 `json:"matchId"`
	Winner  uint8  `json:"winner"`
}

// SubmitResultTx reuses the MatchResult wire shape.
type SubmitResultTx = MatchResult

// ABCI query paths.
const (
	QueryActiveAgents = "/agents/active"
	QueryAgentPrefix  = "/agent/"
)

// Event the chain emits when a tournament is registered; the new id rides
// in the attribute.
const (
	EventTournamentCreated = "TournamentCreated"
	AttrTournamentID       = "tournamentId"
)
