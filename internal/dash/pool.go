package dash

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Submitter hands a track id to the asynchronous conversion mechanism.
// The caller returns immediately; execution, retries, and failure
// accounting happen behind this interface.
type Submitter interface {
	Submit(trackID int64)
}

// SubmitterFunc adapts a function to the Submitter interface. Tests use
// it to run conversions inline.
type SubmitterFunc func(trackID int64)

// Submit implements Submitter.
func (f SubmitterFunc) Submit(trackID int64) { f(trackID) }

type job struct {
	id      string
	trackID int64
}

// WorkerPool executes submitted conversions on a fixed set of workers,
// retrying each failed job up to a configured attempt budget with a
// fixed delay between attempts. Exhausting the budget leaves whatever
// status the runner last wrote; nothing escalates further.
type WorkerPool struct {
	jobs     chan job
	runner   func(ctx context.Context, trackID int64) error
	workers  int
	attempts int
	delay    time.Duration
	log      *slog.Logger
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewWorkerPool returns an unstarted pool. runner is invoked once per
// attempt; a nil error ends the job, a non-nil error consumes one
// attempt from the budget.
func NewWorkerPool(workers, queueSize, attempts int, delay time.Duration, runner func(ctx context.Context, trackID int64) error, log *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if attempts <= 0 {
		attempts = 1
	}
	return &WorkerPool{
		jobs:     make(chan job, queueSize),
		runner:   runner,
		workers:  workers,
		attempts: attempts,
		delay:    delay,
		log:      log,
	}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
}

// Stop prevents new submissions from being processed and waits for
// in-flight jobs to finish their current attempt.
func (p *WorkerPool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Submit implements Submitter. The send blocks if the queue is full.
func (p *WorkerPool) Submit(trackID int64) {
	p.jobs <- job{id: uuid.NewString(), trackID: trackID}
}

func (p *WorkerPool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			p.run(ctx, j)
		}
	}
}

func (p *WorkerPool) run(ctx context.Context, j job) {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		err := p.runner(ctx, j.trackID)
		if err == nil {
			return
		}

		p.log.Error("conversion attempt failed",
			slog.String("job_id", j.id),
			slog.Int64("track_id", j.trackID),
			slog.Int("attempt", attempt),
			slog.Int("attempts", p.attempts),
			slog.String("error", err.Error()))

		if attempt == p.attempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.delay):
		}
	}
}
