package jobs

import (
	"context"

	"cosmossdk.io/log"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/agent"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/ledger"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/replay"
)

// maxDuelTicks caps one side's run at five minutes of game time.
const maxDuelTicks = 18000

// ctxCheckEvery spaces cancellation checks inside the tick loop.
const ctxCheckEvery = 600

// DuelRunner plays a match as two headless runs of the same board: each
// agent's policy drives its own engine over the identical (variant, seed,
// tier), and the higher score wins, agent A on ties. Both runs land in one
// replay log so the recorded hash covers every scored point.
type DuelRunner struct {
	logger log.Logger
	boards *maze.Cache
	store  replay.Store
}

func NewDuelRunner(logger log.Logger, boards *maze.Cache, store replay.Store) *DuelRunner {
	return &DuelRunner{
		logger: logger.With("module", "runner"),
		boards: boards,
		store:  store,
	}
}

func (r *DuelRunner) Run(ctx context.Context, job Job) (Result, error) {
	matchLog := replay.NewLog()

	scoreA, err := r.playSide(ctx, job, job.AgentA, matchLog)
	if err != nil {
		return Result{}, err
	}
	scoreB, err := r.playSide(ctx, job, job.AgentB, matchLog)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Job:        job,
		ScoreA:     scoreA,
		ScoreB:     scoreB,
		Winner:     job.AgentA,
		WinnerSide: ledger.SideA,
		ReplayHash: matchLog.HashHex(),
	}
	if scoreB > scoreA {
		res.Winner = job.AgentB
		res.WinnerSide = ledger.SideB
	}

	uri, err := r.store.Put(ctx, replay.Compress(matchLog.Bytes()))
	if err != nil {
		return Result{}, err
	}
	res.ReplayURI = uri

	r.logger.Debug("duel played", "match", job.MatchID,
		"scoreA", scoreA, "scoreB", scoreB, "ticks", matchLog.Ticks(), "replay", uri)
	return res, nil
}

// playSide runs one agent's engine to game over or the tick cap, recording
// every post-tick snapshot.
func (r *DuelRunner) playSide(ctx context.Context, job Job, address string, matchLog *replay.Log) (uint64, error) {
	eng, err := engine.New(engine.Config{
		Variant: job.Variant,
		Seed:    job.Seed,
		Tier:    job.Tier,
	}, r.boards)
	if err != nil {
		return 0, err
	}

	policy := agent.New(address, eng.Board())
	snap := eng.Snapshot()
	for i := 0; i < maxDuelTicks && !snap.GameOver; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		snap = eng.Tick(policy.Next(snap))
		matchLog.Record(snap)
	}
	return snap.Score, nil
}
