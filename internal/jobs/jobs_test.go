package jobs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/ledger"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/replay"
)

type fakeRunner struct {
	panicOn uint64
	block   bool
}

func (f *fakeRunner) Run(ctx context.Context, job Job) (Result, error) {
	if f.block {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
	if job.MatchID == f.panicOn {
		panic("board exploded")
	}
	return Result{
		Job:        job,
		ScoreA:     job.MatchID * 100,
		ScoreB:     50,
		Winner:     job.AgentA,
		WinnerSide: ledger.SideA,
	}, nil
}

func matchJob(id uint64) Job {
	return Job{
		MatchID: id,
		AgentA:  "0xa",
		AgentB:  "0xb",
		Variant: maze.VariantClassic,
		Seed:    int64(id),
		Tier:    3,
	}
}

func TestPoolCompletesScheduledJobs(t *testing.T) {
	p := NewPool(log.NewNopLogger(), &fakeRunner{}, Config{Workers: 3, QueueSize: 16})
	results := make(chan Result, 16)
	p.OnComplete(func(res Result) { results <- res })
	p.Start()

	for id := uint64(1); id <= 8; id++ {
		require.NoError(t, p.Schedule(matchJob(id)))
	}
	p.Stop()

	seen := make(map[uint64]Result)
	close(results)
	for res := range results {
		require.NoError(t, res.Err)
		seen[res.MatchID] = res
	}
	require.Len(t, seen, 8)
	require.Equal(t, uint64(300), seen[3].ScoreA)
}

func TestScheduleFailsWhenQueueFull(t *testing.T) {
	p := NewPool(log.NewNopLogger(), &fakeRunner{}, Config{Workers: 1, QueueSize: 2})
	// Workers not started, so nothing drains the queue.
	require.NoError(t, p.Schedule(matchJob(1)))
	require.NoError(t, p.Schedule(matchJob(2)))
	err := p.Schedule(matchJob(3))
	require.ErrorIs(t, err, arenaerr.ErrUnavailable)
	p.Stop()
}

func TestScheduleFailsAfterStop(t *testing.T) {
	p := NewPool(log.NewNopLogger(), &fakeRunner{}, Config{})
	p.Start()
	p.Stop()
	require.ErrorIs(t, p.Schedule(matchJob(1)), arenaerr.ErrUnavailable)
	p.Stop()
}

func TestPoolSurvivesRunnerPanic(t *testing.T) {
	p := NewPool(log.NewNopLogger(), &fakeRunner{panicOn: 1}, Config{Workers: 1, QueueSize: 4})
	results := make(chan Result, 4)
	p.OnComplete(func(res Result) { results <- res })
	p.Start()

	require.NoError(t, p.Schedule(matchJob(1)))
	require.NoError(t, p.Schedule(matchJob(2)))
	p.Stop()

	close(results)
	byID := make(map[uint64]Result)
	for res := range results {
		byID[res.MatchID] = res
	}
	require.Len(t, byID, 2, "panicking job must still report a result")
	require.ErrorIs(t, byID[1].Err, arenaerr.ErrEngineFault)
	require.NoError(t, byID[2].Err)
}

func TestPoolShieldsCompletionSink(t *testing.T) {
	p := NewPool(log.NewNopLogger(), &fakeRunner{}, Config{Workers: 1, QueueSize: 4})
	var mu sync.Mutex
	calls := 0
	p.OnComplete(func(Result) {
		mu.Lock()
		calls++
		mu.Unlock()
		panic("sink bug")
	})
	p.Start()

	require.NoError(t, p.Schedule(matchJob(1)))
	require.NoError(t, p.Schedule(matchJob(2)))
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, calls, "a panicking sink must not stop delivery")
}

func TestStopCancelsInFlightAndQueuedJobs(t *testing.T) {
	p := NewPool(log.NewNopLogger(), &fakeRunner{block: true}, Config{Workers: 1, QueueSize: 4})
	var mu sync.Mutex
	var results []Result
	p.OnComplete(func(res Result) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	})
	p.Start()

	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, p.Schedule(matchJob(id)))
	}
	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop hung on a blocked runner")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 3)
	for _, res := range results {
		require.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestDuelRunnerIsDeterministic(t *testing.T) {
	store := replay.NewMemStore()
	r := NewDuelRunner(log.NewNopLogger(), maze.NewCache(), store)
	job := Job{
		MatchID: 7,
		AgentA:  "0xaaa1",
		AgentB:  "0xbbb2",
		Variant: maze.VariantClassic,
		Seed:    42,
		Tier:    3,
	}

	first, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, first, second, "replaying the same job must give identical results")

	if first.ScoreA >= first.ScoreB {
		require.Equal(t, job.AgentA, first.Winner)
		require.Equal(t, ledger.SideA, first.WinnerSide)
	} else {
		require.Equal(t, job.AgentB, first.Winner)
		require.Equal(t, ledger.SideB, first.WinnerSide)
	}

	blob, ok := store.Get(first.ReplayURI)
	require.True(t, ok, "replay blob missing from store")
	raw, err := replay.Decompress(blob)
	require.NoError(t, err)
	require.Equal(t, first.ReplayHash, engine.HashHex(engine.Keccak256(raw)),
		"stored replay does not match the recorded hash")
	require.NotZero(t, strings.Count(string(raw), "\n"))
}

func TestDuelRunnerHonorsCancellation(t *testing.T) {
	r := NewDuelRunner(log.NewNopLogger(), maze.NewCache(), replay.NewMemStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, matchJob(1))
	require.ErrorIs(t, err, context.Canceled)
}
