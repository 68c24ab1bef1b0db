// Package jobs runs tournament matches on a bounded in-process worker
// pool. The queue is a port: the scheduler only sees Schedule and
// OnComplete, so a remote worker fleet can replace the local pool without
// touching the tournament controller.
package jobs

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/metrics"
)

// Job describes one match for a worker to play.
type Job struct {
	MatchID      uint64
	TournamentID uint64
	Round        int
	AgentA       string
	AgentB       string
	Variant      maze.Variant
	Seed         int64
	Tier         int
}

// Result reports a finished job. Err is set when the match could not be
// played; scores and replay fields are zero then.
type Result struct {
	Job

	ScoreA     uint64
	ScoreB     uint64
	Winner     string
	WinnerSide uint8
	ReplayHash string
	ReplayURI  string

	Err error
}

// Runner plays one job to completion.
type Runner interface {
	Run(ctx context.Context, job Job) (Result, error)
}

// Queue accepts jobs and reports their results.
type Queue interface {
	Schedule(job Job) error
	OnComplete(cb func(Result))
}

// Config sizes the pool.
type Config struct {
	Workers   int
	QueueSize int
}

// Pool is the in-process Queue: a fixed set of workers draining a bounded
// channel. Schedule never blocks; a full queue is the caller's signal to
// back off.
type Pool struct {
	logger  log.Logger
	runner  Runner
	workers int

	queue  chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool

	cbMu       sync.RWMutex
	onComplete func(Result)
}

func NewPool(logger log.Logger, runner Runner, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger:  logger.With("module", "jobs"),
		runner:  runner,
		workers: cfg.Workers,
		queue:   make(chan Job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnComplete registers the single completion sink. Results arrive on
// worker goroutines; the sink serializes on its own locks.
func (p *Pool) OnComplete(cb func(Result)) {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	p.onComplete = cb
}

// Start launches the workers.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "workers", p.workers, "queue", cap(p.queue))
}

// Schedule enqueues a job. It fails when the pool is stopped or the queue
// is full.
func (p *Pool) Schedule(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return errorsmod.Wrapf(arenaerr.ErrUnavailable, "pool stopped; match %d dropped", job.MatchID)
	}
	select {
	case p.queue <- job:
		metrics.JobQueueDepth.Inc()
		return nil
	default:
		return errorsmod.Wrapf(arenaerr.ErrUnavailable, "job queue full; match %d dropped", job.MatchID)
	}
}

// Stop cancels running jobs, drains the queue and waits for the workers.
// Queued jobs still produce a Result, with Err set once the context is
// gone.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	p.cancel()
	close(p.queue)
	if started {
		p.wg.Wait()
	}
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.queue {
		metrics.JobQueueDepth.Dec()
		res := p.run(job)
		if res.Err != nil {
			metrics.JobsCompleted.WithLabelValues("error").Inc()
			p.logger.Error("match job failed", "worker", id, "match", job.MatchID, "err", res.Err)
		} else {
			metrics.JobsCompleted.WithLabelValues("ok").Inc()
			p.logger.Info("match job finished", "worker", id, "match", job.MatchID,
				"scoreA", res.ScoreA, "scoreB", res.ScoreB, "winner", res.Winner)
		}
		p.complete(res)
	}
}

// run executes one job, converting runner panics into failed results so a
// bad board or engine bug cannot take a worker down.
func (p *Pool) run(job Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Job: job, Err: errorsmod.Wrapf(arenaerr.ErrEngineFault, "match runner panic: %v", r)}
		}
	}()
	res, err := p.runner.Run(p.ctx, job)
	if err != nil {
		res = Result{Job: job, Err: err}
	}
	return res
}

func (p *Pool) complete(res Result) {
	p.cbMu.RLock()
	cb := p.onComplete
	p.cbMu.RUnlock()
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("completion sink panicked", "match", res.MatchID, "panic", r)
		}
	}()
	cb(res)
}
