// Package ledger is the platform's port to the arena chain. Tournament,
// betting and challenge flows call through the Ledger interface; the
// Client implementation speaks JSON tx envelopes to a CometBFT node and
// the Memory implementation records calls for tests.
package ledger

import (
	"context"
)

// AgentInfo is the on-chain registry row for one agent.
type AgentInfo struct {
	Address    string `json:"address"`
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	Wins       uint64 `json:"wins"`
	Losses     uint64 `json:"losses"`
	Reputation uint64 `json:"reputation"`
	Active     bool   `json:"active"`
}

// MatchResult is the terminal record submitted for a finished match.
type MatchResult struct {
	MatchID   uint64 `json:"matchId"`
	ScoreA    uint64 `json:"scoreA"`
	ScoreB    uint64 `json:"scoreB"`
	Winner    string `json:"winner"`
	ReplayURI string `json:"replayURI"`
}

// Betting sides, as the chain encodes them.
const (
	SideA uint8 = 0
	SideB uint8 = 1
)

// Ledger is the fixed chain surface the platform drives.
type Ledger interface {
	// GetActiveAgents returns the addresses of agents eligible for matchmaking.
	GetActiveAgents(ctx context.Context) ([]string, error)
	// GetAgentInfo returns the registry row for one agent.
	GetAgentInfo(ctx context.Context, addr string) (AgentInfo, error)

	// CreateTournament registers a bracket on chain and returns its id.
	CreateTournament(ctx context.Context, participants []string, size int) (uint64, error)
	// AdvanceTournament records the winners that move into the next round.
	AdvanceTournament(ctx context.Context, id uint64, winners []string) error
	// FinalizeTournament closes the bracket with its champion.
	FinalizeTournament(ctx context.Context, id uint64, champion string) error

	// LockBets freezes the pools for a match.
	LockBets(ctx context.Context, matchID uint64) error
	// SettleBets pays out the pools for a match; winner is SideA or SideB.
	SettleBets(ctx context.Context, matchID uint64, winner uint8) error

	// SubmitResult records a finished match.
	SubmitResult(ctx context.Context, res MatchResult) error
}
