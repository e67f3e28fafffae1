// Package queue dispatches background executions to a bounded worker pool.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/diffuselab/sdqueue/internal/logger"
)

// DefaultCapacity is the buffer size of the dispatch channel. Submissions
// beyond it fail fast instead of blocking the request path.
const DefaultCapacity = 256

// ExecFunc is the unit of work executed on a worker. The context is
// cancelled when the execution is cancelled or the queue shuts down.
type ExecFunc func(ctx context.Context, executionID string)

type item struct {
	id string
	fn ExecFunc
}

// Queue runs submitted executions on a fixed pool of workers and supports
// cancellation of queued or running executions by id.
type Queue struct {
	workers int

	mu      sync.Mutex
	pending map[string]bool
	running map[string]context.CancelFunc
	closed  bool

	ch chan item
	wg sync.WaitGroup

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// New creates a queue with the given worker count. Workers are started by
// Start.
func New(workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		workers:    workers,
		pending:    make(map[string]bool),
		running:    make(map[string]context.CancelFunc),
		ch:         make(chan item, DefaultCapacity),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Start launches the worker pool.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	logger.Infof("Started %d queue workers", q.workers)
}

func (q *Queue) worker(n int) {
	defer q.wg.Done()
	for it := range q.ch {
		q.run(it)
	}
	logger.Debugf("Queue worker %d stopped", n)
}

func (q *Queue) run(it item) {
	q.mu.Lock()
	if !q.pending[it.id] {
		// cancelled while still queued
		q.mu.Unlock()
		return
	}
	delete(q.pending, it.id)
	ctx, cancel := context.WithCancel(q.baseCtx)
	q.running[it.id] = cancel
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.running, it.id)
		q.mu.Unlock()
		cancel()
	}()

	it.fn(ctx, it.id)
}

// Submit schedules fn for execution and returns its execution id. It never
// blocks on execution; it fails when the queue is stopped or saturated.
func (q *Queue) Submit(fn ExecFunc) (string, error) {
	id := uuid.NewString()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", fmt.Errorf("queue is stopped")
	}
	q.pending[id] = true
	q.mu.Unlock()

	select {
	case q.ch <- item{id: id, fn: fn}:
		return id, nil
	default:
		q.mu.Lock()
		delete(q.pending, id)
		q.mu.Unlock()
		return "", fmt.Errorf("queue is full")
	}
}

// Cancel stops the execution with the given id. A queued execution is
// removed immediately; a running one has its context cancelled and winds
// down asynchronously. It reports whether an execution was actually
// prevented or signalled.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending[id] {
		delete(q.pending, id)
		return true
	}
	if cancel, ok := q.running[id]; ok {
		cancel()
		return true
	}
	return false
}

// Stop drains the queue: no new submissions are accepted, running
// executions are cancelled and all workers are awaited.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	q.baseCancel()
	q.wg.Wait()
	logger.Info("Queue stopped")
}
