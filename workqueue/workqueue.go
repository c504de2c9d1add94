/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("work queue is closed")

// Task is one agent run to perform.
type Task struct {
	// Key identifies the work for de-duplication, e.g. "acme/widgets#7".
	Key      string
	IssueURL string
	Branch   string
	Trigger  string
}

// Handler performs a task.
type Handler func(ctx context.Context, task Task) error

// Queue runs tasks in the background with bounded concurrency. A task whose
// key is already queued or running is dropped.
type Queue struct {
	ctx     context.Context
	cancel  context.CancelFunc
	handler Handler
	sem     *semaphore.Weighted
	timeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// New creates a Queue. Tasks run under ctx, each bounded by timeout when it
// is positive, with at most concurrency running at once.
func New(ctx context.Context, concurrency int64, timeout time.Duration, handler Handler) *Queue {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Queue{
		ctx:      ctx,
		cancel:   cancel,
		handler:  handler,
		sem:      semaphore.NewWeighted(concurrency),
		timeout:  timeout,
		inflight: make(map[string]struct{}),
	}
}

// Enqueue schedules task. It reports false when a task with the same key
// is already queued or running.
func (q *Queue) Enqueue(task Task) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, ErrClosed
	}
	if _, dup := q.inflight[task.Key]; dup {
		dedupedCounter.Inc()
		return false, nil
	}
	q.inflight[task.Key] = struct{}{}
	inflightGauge.Inc()
	enqueuedCounter.Inc()

	q.wg.Add(1)
	go q.run(task)
	return true, nil
}

func (q *Queue) run(task Task) {
	defer q.wg.Done()
	defer q.done(task.Key)

	log := clog.FromContext(q.ctx).With("key", task.Key).With("trigger", task.Trigger)
	if err := q.sem.Acquire(q.ctx, 1); err != nil {
		log.With("error", err.Error()).Warn("Dropping queued task")
		return
	}
	defer q.sem.Release(1)

	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	start := time.Now()
	err := q.handler(ctx, task)
	runSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		log.With("error", err.Error()).Error("Task failed")
		return
	}
	log.Info("Task completed")
}

func (q *Queue) done(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, key)
	inflightGauge.Dec()
}

// InFlight returns the number of tasks queued or running.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// Close stops accepting tasks and waits for the ones already accepted.
// When ctx ends first, running tasks are cancelled and ctx's error returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
