// Package tournament runs autonomous brackets: it drafts the top agents
// from the registry, anchors every stage on the ledger, opens betting per
// match and plays the matches on the job queue.
package tournament

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/betting"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/bus"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/jobs"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/ledger"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/metrics"
)

const (
	// matchTier is the difficulty every bracket match is played at.
	matchTier = 3

	// seedSpan bounds the uniform per-match seed draw.
	seedSpan = 1_000_000

	defaultRoundTimeout = 30 * time.Minute
)

// Wire payloads for the tournament room.
type (
	Matchup struct {
		MatchID uint64       `json:"matchId"`
		AgentA  string       `json:"agentA"`
		AgentB  string       `json:"agentB"`
		Variant maze.Variant `json:"variant"`
		Seed    int64        `json:"seed"`
	}

	RoundStartEvent struct {
		TournamentID uint64    `json:"tournamentId"`
		Round        int       `json:"round"`
		Matchups     []Matchup `json:"matchups"`
	}

	MatchResultEvent struct {
		MatchID     uint64 `json:"matchId"`
		Winner      string `json:"winner"`
		ScoreA      uint64 `json:"scoreA"`
		ScoreB      uint64 `json:"scoreB"`
		GameLogHash string `json:"gameLogHash"`
	}

	AdvanceEvent struct {
		TournamentID uint64    `json:"tournamentId"`
		Round        int       `json:"round"`
		Matchups     []Matchup `json:"matchups"`
	}

	CompleteEvent struct {
		TournamentID uint64 `json:"tournamentId"`
		Champion     string `json:"champion"`
	}

	FailedEvent struct {
		TournamentID uint64 `json:"tournamentId"`
		Round        int    `json:"round"`
		Reason       string `json:"reason"`
	}
)

type pairing struct {
	matchID uint64
	agentA  string
	agentB  string
	winner  string
	played  bool
}

type tournament struct {
	id   uint64
	room string

	mu        sync.Mutex
	round     int
	pairings  []pairing
	completed int
	byMatch   map[uint64]int
	done      bool
	deadline  *time.Timer
}

// Options wires a Controller.
type Options struct {
	Logger  log.Logger
	Bus     bus.Bus
	Ledger  ledger.Ledger
	Betting *betting.Orchestrator
	Queue   jobs.Queue

	// BettingWindow is passed through to every match's betting window;
	// zero lets the betting orchestrator pick its default.
	BettingWindow time.Duration

	// RoundTimeout fails a tournament whose round never completes.
	RoundTimeout time.Duration

	// Backoff shapes ledger retries.
	Backoff ledger.Backoff
}

// Controller owns every running bracket. It is the job queue's completion
// sink.
type Controller struct {
	logger        log.Logger
	bus           bus.Bus
	ledger        ledger.Ledger
	betting       *betting.Orchestrator
	queue         jobs.Queue
	bettingWindow time.Duration
	roundTimeout  time.Duration
	backoff       ledger.Backoff

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	tournaments map[uint64]*tournament
	nextMatchID uint64
	draining    bool
}

func NewController(opts Options) *Controller {
	if opts.RoundTimeout <= 0 {
		opts.RoundTimeout = defaultRoundTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		logger:        opts.Logger.With("module", "tournament"),
		bus:           opts.Bus,
		ledger:        opts.Ledger,
		betting:       opts.Betting,
		queue:         opts.Queue,
		bettingWindow: opts.BettingWindow,
		roundTimeout:  opts.RoundTimeout,
		backoff:       opts.Backoff,
		ctx:           ctx,
		cancel:        cancel,
		tournaments:   make(map[uint64]*tournament),
	}
	c.queue.OnComplete(c.handleResult)
	return c
}

// CreateAutonomousTournament drafts the best size agents from the registry
// and starts a bracket. Nothing lands on the ledger unless the draft fills.
func (c *Controller) CreateAutonomousTournament(size int) (uint64, error) {
	if size != 8 && size != 16 {
		return 0, errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "bracket size %d, want 8 or 16", size)
	}
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return 0, errorsmod.Wrap(arenaerr.ErrUnavailable, "tournament controller draining")
	}
	c.mu.Unlock()

	participants, err := c.draft(size)
	if err != nil {
		return 0, err
	}

	var id uint64
	err = ledger.Retry(c.ctx, c.logger, c.backoff, "createTournament", func(ctx context.Context) error {
		var cerr error
		id, cerr = c.ledger.CreateTournament(ctx, participants, size)
		return cerr
	})
	if err != nil {
		return 0, err
	}

	t := &tournament{
		id:       id,
		room:     bus.RoomName(bus.KindTournament, strconv.FormatUint(id, 10)),
		round:    1,
		byMatch:  make(map[uint64]int),
		pairings: c.pair(participants),
	}

	c.mu.Lock()
	c.tournaments[id] = t
	c.mu.Unlock()
	metrics.TournamentsActive.Inc()

	c.logger.Info("tournament created", "tournament", id, "size", size, "participants", participants)
	matchups, matchJobs := c.prepareRound(t)
	c.launchRound(t, matchups, matchJobs)
	return id, nil
}

// ActiveTournamentCount reports brackets still in play. Completed and
// failed tournaments leave the set immediately.
func (c *Controller) ActiveTournamentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tournaments)
}

// Shutdown stops scheduling and waits for in-flight result handling.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	open := make([]*tournament, 0, len(c.tournaments))
	for _, t := range c.tournaments {
		open = append(open, t)
	}
	c.mu.Unlock()

	c.cancel()
	for _, t := range open {
		t.mu.Lock()
		t.done = true
		if t.deadline != nil {
			t.deadline.Stop()
		}
		t.mu.Unlock()
	}
	c.wg.Wait()
	c.logger.Info("tournament controller drained", "abandoned", len(open))
}

// draft returns the top agents by reputation, ties broken by registry
// order. It fails without ledger writes when the pool is too small.
func (c *Controller) draft(size int) ([]string, error) {
	var addrs []string
	err := ledger.Retry(c.ctx, c.logger, c.backoff, "getActiveAgents", func(ctx context.Context) error {
		var lerr error
		addrs, lerr = c.ledger.GetActiveAgents(ctx)
		return lerr
	})
	if err != nil {
		return nil, err
	}
	if len(addrs) < size {
		return nil, errorsmod.Wrapf(arenaerr.ErrInsufficientAgents, "need %d active agents, have %d", size, len(addrs))
	}

	infos := make([]ledger.AgentInfo, len(addrs))
	for i, addr := range addrs {
		err := ledger.Retry(c.ctx, c.logger, c.backoff, "getAgentInfo", func(ctx context.Context) error {
			var lerr error
			infos[i], lerr = c.ledger.GetAgentInfo(ctx, addr)
			return lerr
		})
		if err != nil {
			return nil, err
		}
	}

	order := make([]int, len(addrs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return infos[order[i]].Reputation > infos[order[j]].Reputation
	})

	picked := make([]string, size)
	for i := 0; i < size; i++ {
		picked[i] = addrs[order[i]]
	}
	return picked, nil
}

// pair builds the next round's matchups from an ordered field.
func (c *Controller) pair(field []string) []pairing {
	pairings := make([]pairing, 0, len(field)/2)
	c.mu.Lock()
	for i := 0; i+1 < len(field); i += 2 {
		c.nextMatchID++
		pairings = append(pairings, pairing{
			matchID: c.nextMatchID,
			agentA:  field[i],
			agentB:  field[i+1],
		})
	}
	c.mu.Unlock()
	return pairings
}

// prepareRound draws each pairing's variant and seed, indexes the matches
// and arms the round supervisor.
func (c *Controller) prepareRound(t *tournament) ([]Matchup, []jobs.Job) {
	variants := maze.Variants()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = 0
	matchups := make([]Matchup, len(t.pairings))
	matchJobs := make([]jobs.Job, len(t.pairings))
	for i := range t.pairings {
		p := &t.pairings[i]
		variant := variants[rand.Intn(len(variants))]
		seed := rand.Int63n(seedSpan)
		matchups[i] = Matchup{
			MatchID: p.matchID,
			AgentA:  p.agentA,
			AgentB:  p.agentB,
			Variant: variant,
			Seed:    seed,
		}
		matchJobs[i] = jobs.Job{
			MatchID:      p.matchID,
			TournamentID: t.id,
			Round:        t.round,
			AgentA:       p.agentA,
			AgentB:       p.agentB,
			Variant:      variant,
			Seed:         seed,
			Tier:         matchTier,
		}
		t.byMatch[p.matchID] = i
	}
	round := t.round
	if t.deadline != nil {
		t.deadline.Stop()
	}
	// The closure re-checks the round so a timer that loses the Stop race
	// at an advance boundary cannot fail a healthy bracket.
	t.deadline = time.AfterFunc(c.roundTimeout, func() {
		t.mu.Lock()
		stale := t.done || t.round != round
		t.mu.Unlock()
		if stale {
			return
		}
		c.failTournament(t, round, "round timed out")
	})
	return matchups, matchJobs
}

// launchRound announces the round, opens betting and schedules the matches.
func (c *Controller) launchRound(t *tournament, matchups []Matchup, matchJobs []jobs.Job) {
	t.mu.Lock()
	round := t.round
	t.mu.Unlock()

	c.bus.Broadcast(t.room, "round_start", RoundStartEvent{
		TournamentID: t.id,
		Round:        round,
		Matchups:     matchups,
	})

	for i := range matchups {
		m := matchups[i]
		if err := c.betting.OpenBettingWindow(m.MatchID, m.AgentA, m.AgentB, c.bettingWindow); err != nil {
			c.logger.Error("betting window failed to open", "tournament", t.id, "match", m.MatchID, "err", err)
		}
		if err := c.queue.Schedule(matchJobs[i]); err != nil {
			c.failTournament(t, round, "match scheduling failed: "+err.Error())
			return
		}
	}
	c.logger.Info("round started", "tournament", t.id, "round", round, "matches", len(matchups))
}

// handleResult is the queue's completion sink. It runs on worker
// goroutines; per-tournament state serializes on the tournament lock.
func (c *Controller) handleResult(res jobs.Result) {
	if res.TournamentID == 0 {
		return
	}
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	t, ok := c.tournaments[res.TournamentID]
	if ok {
		c.wg.Add(1)
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("result for unknown tournament", "tournament", res.TournamentID, "match", res.MatchID)
		return
	}
	defer c.wg.Done()

	if res.Err != nil {
		c.failTournament(t, res.Round, "match failed: "+res.Err.Error())
		return
	}

	err := ledger.Retry(c.ctx, c.logger, c.backoff, "submitResult", func(ctx context.Context) error {
		return c.ledger.SubmitResult(ctx, ledger.MatchResult{
			MatchID:   res.MatchID,
			ScoreA:    res.ScoreA,
			ScoreB:    res.ScoreB,
			Winner:    res.Winner,
			ReplayURI: res.ReplayURI,
		})
	})
	if err != nil {
		c.failTournament(t, res.Round, "result submission failed")
		return
	}

	if err := c.settleMatchBets(res); err != nil {
		c.failTournament(t, res.Round, "bet settlement failed")
		return
	}

	c.bus.Broadcast(t.room, "match_result", MatchResultEvent{
		MatchID:     res.MatchID,
		Winner:      res.Winner,
		ScoreA:      res.ScoreA,
		ScoreB:      res.ScoreB,
		GameLogHash: res.ReplayHash,
	})

	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	idx, known := t.byMatch[res.MatchID]
	if !known || t.pairings[idx].played {
		t.mu.Unlock()
		c.logger.Error("duplicate or stray match result", "tournament", t.id, "match", res.MatchID)
		return
	}
	t.pairings[idx].winner = res.Winner
	t.pairings[idx].played = true
	t.completed++
	roundDone := t.completed == len(t.pairings)
	t.mu.Unlock()

	if roundDone {
		c.advance(t)
	}
}

// settleMatchBets locks any still-open window, then settles it on the
// match outcome.
func (c *Controller) settleMatchBets(res jobs.Result) error {
	if err := c.betting.LockBets(res.MatchID); err != nil {
		c.logger.Debug("pool already locked", "match", res.MatchID, "err", err)
	}
	return c.betting.SettleBets(res.MatchID, res.WinnerSide)
}

// advance moves one bracket to its next round or crowns the champion.
// Exactly one ledger advancement lands per round boundary because the last
// completed match is the only caller. The final round finalizes instead of
// advancing.
func (c *Controller) advance(t *tournament) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	if t.deadline != nil {
		t.deadline.Stop()
	}
	winners := make([]string, len(t.pairings))
	for i, p := range t.pairings {
		winners[i] = p.winner
	}
	round := t.round
	t.mu.Unlock()

	if len(winners) == 1 {
		champion := winners[0]
		err := ledger.Retry(c.ctx, c.logger, c.backoff, "finalizeTournament", func(ctx context.Context) error {
			return c.ledger.FinalizeTournament(ctx, t.id, champion)
		})
		if err != nil {
			c.failTournament(t, round, "finalization failed")
			return
		}
		t.mu.Lock()
		t.done = true
		t.mu.Unlock()

		c.bus.Broadcast(t.room, "tournament_complete", CompleteEvent{
			TournamentID: t.id,
			Champion:     champion,
		})
		c.remove(t.id)
		c.logger.Info("tournament complete", "tournament", t.id, "champion", champion)
		return
	}

	err := ledger.Retry(c.ctx, c.logger, c.backoff, "advanceTournament", func(ctx context.Context) error {
		return c.ledger.AdvanceTournament(ctx, t.id, winners)
	})
	if err != nil {
		c.failTournament(t, round, "advancement failed")
		return
	}

	next := c.pair(winners)
	t.mu.Lock()
	t.round++
	t.byMatch = make(map[uint64]int)
	t.pairings = next
	t.mu.Unlock()

	matchups, matchJobs := c.prepareRound(t)
	c.bus.Broadcast(t.room, "tournament_advance", AdvanceEvent{
		TournamentID: t.id,
		Round:        round + 1,
		Matchups:     matchups,
	})
	c.launchRound(t, matchups, matchJobs)
}

// failTournament marks a bracket failed, announces it and drops it from
// the active set. Matches already on workers finish as no-ops; their
// betting pools are locked and left for manual intervention.
func (c *Controller) failTournament(t *tournament, round int, reason string) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	if t.deadline != nil {
		t.deadline.Stop()
	}
	var orphaned []uint64
	for _, p := range t.pairings {
		if !p.played {
			orphaned = append(orphaned, p.matchID)
		}
	}
	t.mu.Unlock()

	for _, matchID := range orphaned {
		if err := c.betting.LockBets(matchID); err != nil {
			c.logger.Debug("orphaned pool not lockable", "match", matchID, "err", err)
		}
	}

	c.logger.Error("tournament failed", "tournament", t.id, "round", round, "reason", reason)
	c.bus.Broadcast(t.room, "tournament_failed", FailedEvent{
		TournamentID: t.id,
		Round:        round,
		Reason:       reason,
	})
	c.remove(t.id)
}

func (c *Controller) remove(id uint64) {
	c.mu.Lock()
	delete(c.tournaments, id)
	c.mu.Unlock()
	metrics.TournamentsActive.Dec()
}
