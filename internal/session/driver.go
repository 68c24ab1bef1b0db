package session

import (
	"context"
	"time"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/advisor"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/metrics"
)

// drive runs a session's fixed-cadence tick loop. Ticks run on a fixed
// grid: a late wakeup runs ticks back-to-back until the loop catches up,
// so no simulated step is ever skipped.
func (m *Manager) drive(s *session) {
	metrics.ActiveSessions.Inc()
	defer func() {
		if s.advisorCh != nil {
			close(s.advisorCh)
			<-s.advisorDone
		}
		metrics.ActiveSessions.Dec()
		close(s.done)
		// The hook runs after done is closed, so callbacks may call
		// StopSession or RemoveSession on this session without deadlocking
		// on the driver they are running on.
		if s.endSnap != nil {
			m.emitGameOver(s.id, *s.endSnap, s.endReason)
		}
	}()

	next := time.Now()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		if wait := time.Until(next); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-s.stopCh:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		next = next.Add(m.tickPeriod)
		if !m.tickSession(s) {
			return
		}
	}
}

type tickOutcome struct {
	stopped      bool
	snap         engine.Snapshot
	payload      any
	tier         engine.Tier
	roundChanged bool
	endedRound   int
	wantAdvice   bool
}

// advance steps the engine once under the session lock and captures
// everything the publish side needs. The deferred unlock also releases the
// lock when the engine panics, so the fault path can take it again.
func (s *session) advance() tickOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateDone {
		return tickOutcome{stopped: true}
	}
	input := s.pending
	s.pending = engine.DirNone

	snap := s.eng.Tick(input)

	out := tickOutcome{
		snap:         snap,
		tier:         s.eng.EffectiveTier(),
		roundChanged: snap.Round != s.lastRound,
		endedRound:   s.lastRound,
	}
	if !s.havePrev || out.roundChanged {
		out.payload = fullFrame(snap)
	} else {
		out.payload = computeDelta(s.prev, snap)
	}
	s.prev = snap
	s.havePrev = true
	s.lastRound = snap.Round
	out.wantAdvice = s.advisorCh != nil && out.tier.Advisor && snap.Tick%advisorEvery == 0
	return out
}

// tickSession advances the engine one step and publishes the results.
// It reports whether the session should keep ticking.
func (m *Manager) tickSession(s *session) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			m.faultSession(s, r)
			alive = false
		}
	}()

	out := s.advance()
	if out.stopped {
		return false
	}
	snap := out.snap

	metrics.EngineTicks.Inc()
	m.bus.Broadcast(s.room, "frame", out.payload)
	metrics.FramesBroadcast.Inc()
	m.emitFrame(s.id, s.room, out.payload)

	if out.roundChanged {
		m.bus.Broadcast(s.room, "round_end", RoundEndEvent{
			Round:          out.endedRound,
			Score:          snap.Score,
			LivesRemaining: snap.Lives,
			NextDifficulty: out.tier.Level,
		})
		m.bus.Broadcast(s.room, "round_start", RoundStartEvent{
			Round:         snap.Round,
			Difficulty:    out.tier.Level,
			GhostSpeed:    out.tier.GhostSpeed,
			PowerDuration: out.tier.PowerSeconds,
		})
		m.emitRoundChange(s.id, snap.Round, snap)
	}

	if out.wantAdvice {
		select {
		case s.advisorCh <- advisor.Summarize(snap):
		default:
		}
	}

	if snap.GameOver {
		m.bus.Broadcast(s.room, "game_over", GameOverEvent{
			Tick:      snap.Tick,
			Round:     snap.Round,
			Score:     snap.Score,
			Lives:     snap.Lives,
			StateHash: snap.StateHash,
		})
		s.endSnap = &snap
		s.mu.Lock()
		s.state = stateDone
		s.mu.Unlock()
		m.logger.Info("session finished", "session", s.id, "tick", snap.Tick, "round", snap.Round, "score", snap.Score)
		return false
	}
	return true
}

// faultSession tears one session down after a panic inside its tick.
// Other sessions keep running.
func (m *Manager) faultSession(s *session, cause any) {
	m.logger.Error("engine fault", "session", s.id, "panic", cause)

	s.mu.Lock()
	s.state = stateDone
	last := s.prev
	s.mu.Unlock()

	m.bus.Broadcast(s.room, "game_over", GameOverEvent{
		Reason:    ReasonEngineFault,
		Tick:      last.Tick,
		Round:     last.Round,
		Score:     last.Score,
		Lives:     last.Lives,
		StateHash: last.StateHash,
	})
	s.endSnap = &last
	s.endReason = ReasonEngineFault

	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()
}

// advisorLoop turns tick summaries into ghost_targets overlays without
// ever making the driver wait.
func (m *Manager) advisorLoop(s *session) {
	defer close(s.advisorDone)
	for summary := range s.advisorCh {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		targets, err := m.advisor.Suggest(ctx, summary)
		cancel()
		if err != nil {
			m.logger.Debug("advisor unavailable", "session", s.id, "err", err)
			continue
		}
		if len(targets) == 0 {
			continue
		}
		m.bus.Broadcast(s.room, "ghost_targets", GhostTargetsEvent{Tick: summary.Tick, Targets: targets})
	}
}

// Shielded hook invocations. A panicking hook is the caller's bug; it is
// logged and the tick loop moves on.

func (m *Manager) emitFrame(id, room string, payload any) {
	m.cbMu.RLock()
	cb := m.onFrame
	m.cbMu.RUnlock()
	if cb == nil {
		return
	}
	defer m.shield("onFrame", id)
	cb(id, room, payload)
}

func (m *Manager) emitRoundChange(id string, round int, snap engine.Snapshot) {
	m.cbMu.RLock()
	cb := m.onRoundChange
	m.cbMu.RUnlock()
	if cb == nil {
		return
	}
	defer m.shield("onRoundChange", id)
	cb(id, round, snap)
}

func (m *Manager) emitGameOver(id string, snap engine.Snapshot, reason string) {
	m.cbMu.RLock()
	cb := m.onGameOver
	m.cbMu.RUnlock()
	if cb == nil {
		return
	}
	defer m.shield("onGameOver", id)
	cb(id, snap, reason)
}

func (m *Manager) shield(hook, id string) {
	if r := recover(); r != nil {
		m.logger.Error("lifecycle hook panicked", "hook", hook, "session", id, "panic", r)
	}
}
