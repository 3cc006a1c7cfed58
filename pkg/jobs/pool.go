package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job represents a unit of work handed to the pool.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// PoolConfig configures worker pool behaviour.
type PoolConfig struct {
	Workers int
	Logger  *zap.Logger
}

// Result reports what happened to a single job of a drained batch.
type Result struct {
	Job     Job
	Err     error
	Skipped bool
}

// Pool runs batches of jobs with a fixed upper bound on concurrent handlers.
// It holds no state between batches.
type Pool struct {
	name    string
	handler Handler
	workers int
	logger  *zap.Logger
}

// NewPool builds a new pool with the provided handler.
func NewPool(name string, handler Handler, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Pool{
		name:    name,
		handler: handler,
		workers: cfg.Workers,
		logger:  cfg.Logger,
	}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// Drain runs every job and blocks until all of them have finished. Results are
// returned in input order. Jobs still waiting when ctx is done are not started
// and come back with Skipped set; jobs already in flight are allowed to finish.
func (p *Pool) Drain(ctx context.Context, batch []Job) []Result {
	results := make([]Result, len(batch))
	if len(batch) == 0 {
		return results
	}

	workers := p.workers
	if workers > len(batch) {
		workers = len(batch)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				results[idx] = p.run(ctx, batch[idx])
			}
		}()
	}

	now := time.Now().UTC()
	for i := range batch {
		if batch[i].Enqueued.IsZero() {
			batch[i].Enqueued = now
		}
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	skipped := 0
	failed := 0
	for _, res := range results {
		switch {
		case res.Skipped:
			skipped++
		case res.Err != nil:
			failed++
		}
	}
	p.logger.Sugar().Debugw("pool drained", "pool", p.name, "jobs", len(batch), "failed", failed, "skipped", skipped)

	return results
}

func (p *Pool) run(ctx context.Context, job Job) Result {
	if ctx.Err() != nil {
		return Result{Job: job, Skipped: true}
	}
	if err := p.handler(ctx, job); err != nil {
		p.logger.Sugar().Debugw("job failed", "pool", p.name, "job_id", job.ID, "type", job.Type, "error", err)
		return Result{Job: job, Err: err}
	}
	return Result{Job: job}
}
