/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDeduplicatesInFlightKeys(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	var calls atomic.Int32
	q := New(context.Background(), 2, 0, func(ctx context.Context, task Task) error {
		calls.Add(1)
		<-release
		return nil
	})

	task := Task{Key: "acme/widgets#7", IssueURL: "https://github.com/acme/widgets/issues/7", Branch: "main"}
	ok, err := q.Enqueue(task)
	require.NoError(t, err)
	require.True(t, ok, "first enqueue should be accepted")

	ok, err = q.Enqueue(task)
	require.NoError(t, err)
	require.False(t, ok, "duplicate enqueue should be dropped")
	assert.Equal(t, 1, q.InFlight())

	close(release)
	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(1), calls.Load(), "handler calls")
	assert.Equal(t, 0, q.InFlight())
}

func TestEnqueueAfterCompletion(t *testing.T) {
	t.Parallel()
	done := make(chan struct{}, 2)
	q := New(context.Background(), 1, 0, func(ctx context.Context, task Task) error {
		done <- struct{}{}
		return nil
	})

	task := Task{Key: "acme/widgets#7"}
	ok, err := q.Enqueue(task)
	require.NoError(t, err)
	require.True(t, ok)
	<-done

	// The key is released once the handler returns.
	require.Eventually(t, func() bool { return q.InFlight() == 0 }, 5*time.Second, time.Millisecond)

	ok, err = q.Enqueue(task)
	require.NoError(t, err)
	require.True(t, ok, "key should be free after completion")
	require.NoError(t, q.Close(context.Background()))
}

func TestConcurrencyBound(t *testing.T) {
	t.Parallel()
	const limit = 3
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	q := New(context.Background(), limit, 0, func(ctx context.Context, task Task) error {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	})

	for i := range 12 {
		ok, err := q.Enqueue(Task{Key: fmt.Sprintf("acme/widgets#%d", i+1)})
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, q.Close(context.Background()))
	assert.LessOrEqual(t, peak, limit, "peak concurrency")
	assert.Positive(t, peak, "no task ran")
}

func TestHandlerErrorReleasesKey(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	q := New(context.Background(), 1, 0, func(ctx context.Context, task Task) error {
		calls.Add(1)
		return errors.New("boom")
	})
	ok, err := q.Enqueue(Task{Key: "k"})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, 0, q.InFlight())
	assert.Equal(t, int32(1), calls.Load(), "handler calls")
}

func TestTaskTimeout(t *testing.T) {
	t.Parallel()
	result := make(chan error, 1)
	q := New(context.Background(), 1, 20*time.Millisecond, func(ctx context.Context, task Task) error {
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	})
	ok, err := q.Enqueue(Task{Key: "k"})
	require.NoError(t, err)
	require.True(t, ok)
	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("task was never cancelled")
	}
	require.NoError(t, q.Close(context.Background()))
}

func TestCloseRejectsAndCancels(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	q := New(context.Background(), 1, 0, func(ctx context.Context, task Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	ok, err := q.Enqueue(Task{Key: "running"})
	require.NoError(t, err)
	require.True(t, ok)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)

	_, err = q.Enqueue(Task{Key: "late"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueuedTaskDroppedOnShutdown(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	var calls atomic.Int32
	q := New(context.Background(), 1, 0, func(ctx context.Context, task Task) error {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	})
	q.Enqueue(Task{Key: "first"})
	<-started
	q.Enqueue(Task{Key: "second"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = q.Close(ctx)
	assert.Equal(t, int32(1), calls.Load(), "queued task should not run after shutdown")
}
