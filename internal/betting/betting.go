// Package betting runs the pari-mutuel windows that ride alongside
// matches. Pools are wei amounts and stay big integers end to end; strings
// appear only on the wire and only at the broadcast boundary.
package betting

import (
	"context"
	"math/big"
	"math/rand"
	"strconv"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/bus"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/ledger"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/metrics"
)

// Bet bounds. Anything outside [0.001, 10] ether is rejected outright.
var (
	minBetWei = sdkmath.NewIntWithDecimal(1, 15)
	maxBetWei = sdkmath.NewIntWithDecimal(1, 19)
)

const (
	// oddsSaturation caps the quoted odds on a side nobody has backed.
	oddsSaturation = 99.99

	// evenOdds is quoted while both pools are empty.
	evenOdds = 2.0

	defaultOddsInterval = time.Second
)

// Window bounds when the caller does not pick one.
const (
	minWindow = 30 * time.Second
	maxWindow = 60 * time.Second
)

// Wire payloads. Wei totals are decimal strings.
type (
	BettingOpenedEvent struct {
		MatchID       uint64  `json:"matchId"`
		AgentA        string  `json:"agentA"`
		AgentB        string  `json:"agentB"`
		WindowSeconds float64 `json:"windowSeconds"`
	}

	BetPlacedEvent struct {
		MatchID uint64  `json:"matchId"`
		Side    uint8   `json:"side"`
		Amount  string  `json:"amount"`
		TotalA  string  `json:"totalA"`
		TotalB  string  `json:"totalB"`
		CountA  int     `json:"countA"`
		CountB  int     `json:"countB"`
		OddsA   float64 `json:"oddsA"`
		OddsB   float64 `json:"oddsB"`
	}

	OddsUpdateEvent struct {
		MatchID uint64  `json:"matchId"`
		TotalA  string  `json:"totalA"`
		TotalB  string  `json:"totalB"`
		OddsA   float64 `json:"oddsA"`
		OddsB   float64 `json:"oddsB"`
	}

	BetsLockedEvent struct {
		MatchID   uint64 `json:"matchId"`
		TotalPool string `json:"totalPool"`
	}

	BetsSettledEvent struct {
		MatchID   uint64 `json:"matchId"`
		Winner    uint8  `json:"winner"`
		TotalPool string `json:"totalPool"`
	}
)

type bettingState uint8

const (
	stateOpen bettingState = iota
	stateLocked
	stateSettled
)

type bettingSession struct {
	matchID uint64
	agentA  string
	agentB  string
	room    string

	mu       sync.Mutex
	state    bettingState
	pools    [2]sdkmath.Int
	counts   [2]int
	inFlight bool

	// ledgerMu serializes this match's ledger traffic; lock and settle
	// never overlap on chain.
	ledgerMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

func (s *bettingSession) signalStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *bettingSession) totalPool() sdkmath.Int {
	return s.pools[0].Add(s.pools[1])
}

// Options wires an Orchestrator.
type Options struct {
	Logger log.Logger
	Bus    bus.Bus
	Ledger ledger.Ledger

	// OddsInterval overrides the 1 s odds broadcast period; tests shrink it.
	OddsInterval time.Duration

	// Backoff shapes ledger retries.
	Backoff ledger.Backoff
}

// Orchestrator owns every live betting window.
type Orchestrator struct {
	logger       log.Logger
	bus          bus.Bus
	ledger       ledger.Ledger
	oddsInterval time.Duration
	backoff      ledger.Backoff

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[uint64]*bettingSession
	draining bool
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.OddsInterval <= 0 {
		opts.OddsInterval = defaultOddsInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		logger:       opts.Logger.With("module", "betting"),
		bus:          opts.Bus,
		ledger:       opts.Ledger,
		oddsInterval: opts.OddsInterval,
		backoff:      opts.Backoff,
		ctx:          ctx,
		cancel:       cancel,
		sessions:     make(map[uint64]*bettingSession),
	}
}

// OpenBettingWindow starts accepting bets on a match. A zero window picks
// a uniform duration between 30 and 60 seconds.
func (o *Orchestrator) OpenBettingWindow(matchID uint64, agentA, agentB string, window time.Duration) error {
	if window < 0 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "negative betting window %s", window)
	}
	if window == 0 {
		window = defaultWindow()
	}

	s := &bettingSession{
		matchID: matchID,
		agentA:  agentA,
		agentB:  agentB,
		room:    bus.RoomName(bus.KindBetting, strconv.FormatUint(matchID, 10)),
		pools:   [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()},
		stopCh:  make(chan struct{}),
	}

	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return errorsmod.Wrap(arenaerr.ErrUnavailable, "betting orchestrator draining")
	}
	if _, exists := o.sessions[matchID]; exists {
		o.mu.Unlock()
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "betting already open for match %d", matchID)
	}
	o.sessions[matchID] = s
	o.wg.Add(1)
	o.mu.Unlock()

	go o.runTimers(s, window)

	o.bus.Broadcast(s.room, "betting_opened", BettingOpenedEvent{
		MatchID:       matchID,
		AgentA:        agentA,
		AgentB:        agentB,
		WindowSeconds: window.Seconds(),
	})
	o.logger.Info("betting window opened", "match", matchID, "window", window)
	return nil
}

// RecordBet adds a wager to one side's pool while the window is open.
func (o *Orchestrator) RecordBet(matchID uint64, side uint8, amount sdkmath.Int) error {
	if side > ledger.SideB {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "bet side %d", side)
	}
	if amount.IsNil() || amount.LT(minBetWei) || amount.GT(maxBetWei) {
		return errorsmod.Wrap(arenaerr.ErrInvalidArgument, "bet amount outside [1e15, 1e19] wei")
	}
	s, err := o.session(matchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != stateOpen {
		s.mu.Unlock()
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "bets on match %d are locked", matchID)
	}
	s.pools[side] = s.pools[side].Add(amount)
	s.counts[side]++
	evt := BetPlacedEvent{
		MatchID: matchID,
		Side:    side,
		Amount:  amount.String(),
		TotalA:  s.pools[0].String(),
		TotalB:  s.pools[1].String(),
		CountA:  s.counts[0],
		CountB:  s.counts[1],
	}
	evt.OddsA, evt.OddsB = computeOdds(s.pools[0], s.pools[1])
	o.bus.Broadcast(s.room, "bet_placed", evt)
	s.mu.Unlock()

	metrics.BetsPlaced.Inc()
	return nil
}

// LockBets closes the window. The chain is told with retries, but a ledger
// failure does not reopen the pool; the lock stands in memory.
func (o *Orchestrator) LockBets(matchID uint64) error {
	s, err := o.session(matchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != stateOpen {
		s.mu.Unlock()
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "match %d already locked", matchID)
	}
	s.state = stateLocked
	total := s.totalPool()
	s.mu.Unlock()
	s.signalStop()

	o.wg.Add(1)
	defer o.wg.Done()
	s.ledgerMu.Lock()
	lerr := ledger.Retry(o.ctx, o.logger, o.backoff, "lockBets", func(ctx context.Context) error {
		return o.ledger.LockBets(ctx, matchID)
	})
	if lerr != nil {
		o.logger.Error("ledger lock failed; pool locked in memory", "match", matchID, "err", lerr)
	}
	// Broadcast before releasing ledgerMu so a racing settle cannot put
	// bets_settled on the wire first.
	o.bus.Broadcast(s.room, "bets_locked", BetsLockedEvent{
		MatchID:   matchID,
		TotalPool: total.String(),
	})
	s.ledgerMu.Unlock()

	o.logger.Info("bets locked", "match", matchID, "totalPool", total)
	return nil
}

// SettleBets pays out a locked pool. The ledger settlement must land; on
// final failure the pool stays locked and the caller may retry.
func (o *Orchestrator) SettleBets(matchID uint64, winner uint8) error {
	if winner > ledger.SideB {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "winner side %d", winner)
	}
	s, err := o.session(matchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != stateLocked || s.inFlight {
		state := s.state
		s.mu.Unlock()
		if state == stateOpen {
			return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "match %d not locked yet", matchID)
		}
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "match %d already settled", matchID)
	}
	s.inFlight = true
	total := s.totalPool()
	s.mu.Unlock()

	o.wg.Add(1)
	defer o.wg.Done()
	s.ledgerMu.Lock()
	lerr := ledger.Retry(o.ctx, o.logger, o.backoff, "settleBets", func(ctx context.Context) error {
		return o.ledger.SettleBets(ctx, matchID, winner)
	})
	if lerr != nil {
		s.ledgerMu.Unlock()
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		return lerr
	}

	s.mu.Lock()
	s.state = stateSettled
	s.mu.Unlock()

	o.bus.Broadcast(s.room, "bets_settled", BetsSettledEvent{
		MatchID:   matchID,
		Winner:    winner,
		TotalPool: total.String(),
	})
	s.ledgerMu.Unlock()

	o.mu.Lock()
	delete(o.sessions, matchID)
	o.mu.Unlock()

	o.logger.Info("bets settled", "match", matchID, "winner", winner, "totalPool", total)
	return nil
}

// ActiveSessionCount reports pools that are still open or locked.
func (o *Orchestrator) ActiveSessionCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// Shutdown cancels timers and retries, then waits for in-flight ledger
// traffic. Unsettled pools are abandoned.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return
	}
	o.draining = true
	sessions := make([]*bettingSession, 0, len(o.sessions))
	for _, s := range o.sessions {
		sessions = append(sessions, s)
	}
	o.mu.Unlock()

	o.cancel()
	for _, s := range sessions {
		s.mu.Lock()
		if s.state == stateOpen {
			s.state = stateLocked
		}
		s.mu.Unlock()
		s.signalStop()
	}
	o.wg.Wait()
	o.logger.Info("betting orchestrator drained", "abandoned", len(sessions))
}

func (o *Orchestrator) session(matchID uint64) (*bettingSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[matchID]
	if !ok {
		return nil, errorsmod.Wrapf(arenaerr.ErrSessionNotFound, "no betting for match %d", matchID)
	}
	return s, nil
}

// runTimers broadcasts odds once a second and locks the pool when the
// window lapses. Odds go out under the session lock, so none can trail the
// locked event.
func (o *Orchestrator) runTimers(s *bettingSession, window time.Duration) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.oddsInterval)
	defer ticker.Stop()
	expiry := time.NewTimer(window)
	defer expiry.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			o.broadcastOdds(s)
		case <-expiry.C:
			if err := o.LockBets(s.matchID); err != nil {
				o.logger.Debug("expiry lock skipped", "match", s.matchID, "err", err)
			}
			return
		}
	}
}

func (o *Orchestrator) broadcastOdds(s *bettingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return
	}
	evt := OddsUpdateEvent{
		MatchID: s.matchID,
		TotalA:  s.pools[0].String(),
		TotalB:  s.pools[1].String(),
	}
	evt.OddsA, evt.OddsB = computeOdds(s.pools[0], s.pools[1])
	o.bus.Broadcast(s.room, "odds_update", evt)
}

// defaultWindow picks a window length when the caller leaves it to us.
func defaultWindow() time.Duration {
	return minWindow + time.Duration(rand.Int63n(int64(maxWindow-minWindow)+1))
}

// computeOdds quotes total/side per side. Empty books quote even money;
// an empty side against a backed one saturates at 99.99.
func computeOdds(a, b sdkmath.Int) (float64, float64) {
	total := a.Add(b)
	if total.IsZero() {
		return evenOdds, evenOdds
	}
	return oddsValue(total, a), oddsValue(total, b)
}

func oddsValue(total, side sdkmath.Int) float64 {
	if side.IsZero() {
		return oddsSaturation
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(total.BigInt()),
		new(big.Float).SetInt(side.BigInt()),
	).Float64()
	if f > oddsSaturation {
		return oddsSaturation
	}
	return f
}
