// Package async runs blocking work, such as opening database connections, on a
// bounded pool of worker goroutines and hands the result back as a Future.
package async

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultWorkers of an Executor.
	DefaultWorkers = 4

	// DefaultQueueSize of an Executor.
	DefaultQueueSize = 64
)

// ErrStopped is returned for work submitted after Stop.
var ErrStopped = errors.New("executor stopped")

// Job is a unit of work run by an Executor.
type Job interface {
	Run(ctx context.Context)
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context)

// Run calls f(ctx).
func (f JobFunc) Run(ctx context.Context) { f(ctx) }

// Observer is notified about every job the executor runs.
type Observer interface {
	ObserveJob(queueWait, runTime time.Duration)
}

// Options for constructing a new Executor.
type Options struct {
	// Workers is the number of goroutines running jobs. Defaults to DefaultWorkers.
	Workers int
	// QueueSize bounds the number of accepted but not yet running jobs.
	QueueSize int
	// Timeout bounds every job submitted through Submit. Zero means no timeout.
	Timeout time.Duration
	// Observer, when set, receives per-job timings.
	Observer Observer
}

type queued struct {
	ctx      context.Context
	job      Job
	enqueued time.Time
}

// Executor runs jobs on a fixed number of workers fed by a bounded queue.
// Jobs already queued when Stop is called still run.
type Executor struct {
	opts Options

	jobs   chan queued
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewExecutor starts an executor with the given options.
func NewExecutor(o Options) *Executor {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}

	e := &Executor{
		opts:   o,
		jobs:   make(chan queued, o.QueueSize),
		stopCh: make(chan struct{}),
	}

	e.wg.Add(o.Workers)
	for i := 0; i < o.Workers; i++ {
		go e.runWorker()
	}
	return e
}

// Timeout returns the per-job timeout; zero means none.
func (e *Executor) Timeout() time.Duration { return e.opts.Timeout }

// Workers returns the number of worker goroutines.
func (e *Executor) Workers() int { return e.opts.Workers }

// Pending returns the number of queued jobs not yet picked up by a worker.
func (e *Executor) Pending() int { return len(e.jobs) }

// Enqueue hands job to the pool. It blocks while the queue is full, until ctx
// is done or the executor stops.
func (e *Executor) Enqueue(ctx context.Context, job Job) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped {
		return ErrStopped
	}

	select {
	case e.jobs <- queued{ctx: ctx, job: job, enqueued: time.Now()}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopCh:
		return ErrStopped
	}
}

// Stop rejects further jobs, waits for queued and running jobs to finish and
// terminates the workers. Stop is idempotent.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		// Unblock producers waiting on a full queue before taking the write lock.
		close(e.stopCh)

		e.mu.Lock()
		e.stopped = true
		close(e.jobs)
		e.mu.Unlock()
	})
	e.wg.Wait()
}

func (e *Executor) runWorker() {
	defer e.wg.Done()
	for q := range e.jobs {
		started := time.Now()
		q.job.Run(q.ctx)
		if e.opts.Observer != nil {
			e.opts.Observer.ObserveJob(started.Sub(q.enqueued), time.Since(started))
		}
	}
}
