// Package workqueue runs fire-and-forget jobs on a fixed pool of goroutines.
package workqueue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"platformBrain/pkg/logger"
)

// Job is a unit of background work. The context carries the per-job timeout.
type Job func(ctx context.Context)

const (
	defaultWorkers    = 1
	defaultSize       = 256
	defaultJobTimeout = 10 * time.Second
)

// Queue is a bounded job queue. Submit never blocks: when the buffer is full
// the job is dropped and counted.
type Queue struct {
	name       string
	ch         chan Job
	workers    int
	jobTimeout time.Duration

	wg       sync.WaitGroup
	mu       sync.RWMutex
	started  bool
	stopped  bool
	dropped  atomic.Int64
	executed atomic.Int64
	onDrop   func(name string)
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.jobTimeout = d
		}
	}
}

// WithDropHook registers a callback invoked for every dropped job (metrics).
func WithDropHook(fn func(name string)) Option {
	return func(q *Queue) { q.onDrop = fn }
}

func New(name string, opts ...Option) *Queue {
	q := &Queue{
		name:       name,
		ch:         make(chan Job, defaultSize),
		workers:    defaultWorkers,
		jobTimeout: defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.loop()
	}
}

// Submit enqueues a job without blocking. It reports false when the job was
// dropped because the queue is full or stopped.
func (q *Queue) Submit(job Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		q.drop()
		return false
	}

	select {
	case q.ch <- job:
		return true
	default:
		q.drop()
		return false
	}
}

// Stop closes the queue, lets the workers drain what is buffered and waits.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.ch)
	started := q.started
	q.mu.Unlock()

	if started {
		q.wg.Wait()
	}
}

func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

func (q *Queue) Executed() int64 {
	return q.executed.Load()
}

// Pending returns the number of buffered jobs not yet picked up.
func (q *Queue) Pending() int {
	return len(q.ch)
}

func (q *Queue) drop() {
	q.dropped.Add(1)
	if q.onDrop != nil {
		q.onDrop(q.name)
	}
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for job := range q.ch {
		q.run(job)
	}
}

func (q *Queue) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workqueue job panicked", "queue", q.name, "panic", fmt.Sprint(r))
		}
		q.executed.Add(1)
	}()

	job(ctx)
}
