package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

// FakeTournament is the Memory ledger's record of one bracket.
type FakeTournament struct {
	ID           uint64
	Participants []string
	Size         int
	Rounds       [][]string
	Champion     string
	Finalized    bool
}

// Memory is an in-process Ledger that records every call. Tests assert on
// the call log and injected failures; single-node dev runs can use it in
// place of a chain.
type Memory struct {
	mu sync.Mutex

	registry []AgentInfo

	nextTournamentID uint64
	tournaments      map[uint64]*FakeTournament

	locked  map[uint64]bool
	settled map[uint64]uint8
	results []MatchResult

	calls    []string
	failures map[string]int
}

var _ Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tournaments: make(map[uint64]*FakeTournament),
		locked:      make(map[uint64]bool),
		settled:     make(map[uint64]uint8),
		failures:    make(map[string]int),
	}
}

// RegisterAgent seeds the registry; insertion order is registry order.
func (m *Memory) RegisterAgent(info AgentInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = append(m.registry, info)
}

// FailNext forces the next n calls of method to fail.
func (m *Memory) FailNext(method string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = n
}

// record logs the call and consumes one injected failure if armed.
// Callers hold m.mu.
func (m *Memory) record(method, args string) error {
	m.calls = append(m.calls, method+"("+args+")")
	if m.failures[method] > 0 {
		m.failures[method]--
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "injected %s failure", method)
	}
	return nil
}

func (m *Memory) GetActiveAgents(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("getActiveAgents", ""); err != nil {
		return nil, err
	}
	var addrs []string
	for _, a := range m.registry {
		if a.Active {
			addrs = append(addrs, a.Address)
		}
	}
	return addrs, nil
}

func (m *Memory) GetAgentInfo(_ context.Context, addr string) (AgentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("getAgentInfo", addr); err != nil {
		return AgentInfo{}, err
	}
	for _, a := range m.registry {
		if a.Address == addr {
			return a, nil
		}
	}
	return AgentInfo{}, errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "agent %s not registered", addr)
}

func (m *Memory) CreateTournament(_ context.Context, participants []string, size int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("createTournament", fmt.Sprintf("%d,%d", len(participants), size)); err != nil {
		return 0, err
	}
	m.nextTournamentID++
	id := m.nextTournamentID
	m.tournaments[id] = &FakeTournament{
		ID:           id,
		Participants: append([]string(nil), participants...),
		Size:         size,
	}
	return id, nil
}

func (m *Memory) AdvanceTournament(_ context.Context, id uint64, winners []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("advanceTournament", fmt.Sprintf("%d,[%s]", id, strings.Join(winners, " "))); err != nil {
		return err
	}
	t, ok := m.tournaments[id]
	if !ok {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "tournament %d not found", id)
	}
	if t.Finalized {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "tournament %d already finalized", id)
	}
	t.Rounds = append(t.Rounds, append([]string(nil), winners...))
	return nil
}

func (m *Memory) FinalizeTournament(_ context.Context, id uint64, champion string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("finalizeTournament", fmt.Sprintf("%d,%s", id, champion)); err != nil {
		return err
	}
	t, ok := m.tournaments[id]
	if !ok {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "tournament %d not found", id)
	}
	if t.Finalized {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "tournament %d already finalized", id)
	}
	t.Champion = champion
	t.Finalized = true
	return nil
}

func (m *Memory) LockBets(_ context.Context, matchID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("lockBets", fmt.Sprintf("%d", matchID)); err != nil {
		return err
	}
	if m.locked[matchID] {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "match %d already locked", matchID)
	}
	m.locked[matchID] = true
	return nil
}

func (m *Memory) SettleBets(_ context.Context, matchID uint64, winner uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("settleBets", fmt.Sprintf("%d,%d", matchID, winner)); err != nil {
		return err
	}
	if winner != SideA && winner != SideB {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "winner %d", winner)
	}
	if !m.locked[matchID] {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "match %d not locked", matchID)
	}
	if _, done := m.settled[matchID]; done {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "match %d already settled", matchID)
	}
	m.settled[matchID] = winner
	return nil
}

func (m *Memory) SubmitResult(_ context.Context, res MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("submitResult", fmt.Sprintf("%d,%s", res.MatchID, res.Winner)); err != nil {
		return err
	}
	m.results = append(m.results, res)
	return nil
}

// Calls returns the every-call log in order.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsNamed filters the call log by method.
func (m *Memory) CallsNamed(method string) []string {
	var out []string
	for _, c := range m.Calls() {
		if strings.HasPrefix(c, method+"(") {
			out = append(out, c)
		}
	}
	return out
}

// Tournament returns a copy of a recorded bracket.
func (m *Memory) Tournament(id uint64) (FakeTournament, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tournaments[id]
	if !ok {
		return FakeTournament{}, false
	}
	cp := *t
	cp.Participants = append([]string(nil), t.Participants...)
	cp.Rounds = make([][]string, len(t.Rounds))
	for i, r := range t.Rounds {
		cp.Rounds[i] = append([]string(nil), r...)
	}
	return cp, true
}

// Locked reports whether a match's pools were locked.
func (m *Memory) Locked(matchID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked[matchID]
}

// Settled reports the recorded winner for a match.
func (m *Memory) Settled(matchID uint64) (uint8, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.settled[matchID]
	return w, ok
}

// Results returns submitted match results in order.
func (m *Memory) Results() []MatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MatchResult, len(m.results))
	copy(out, m.results)
	return out
}
