// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"time"

	"github.com/pdiddy/doc-conv-agent/internal/metrics"
	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

// ErrQueueFull is returned by Push when no space frees up within the wait.
var ErrQueueFull = errors.New("queue full")

// Queue is a bounded FIFO of submitted tasks.
type Queue struct {
	ch chan types.Entry
}

// NewQueue creates a queue holding at most capacity entries.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = types.DefaultQueueCapacity
	}
	return &Queue{ch: make(chan types.Entry, capacity)}
}

// Push appends e, waiting up to wait for space. It returns ErrQueueFull on
// timeout and ctx.Err() on cancellation.
func (q *Queue) Push(ctx context.Context, e types.Entry, wait time.Duration) error {
	if q.TryPush(e) {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case q.ch <- e:
		q.observe()
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush appends e if there is space right now.
func (q *Queue) TryPush(e types.Entry) bool {
	select {
	case q.ch <- e:
		q.observe()
		return true
	default:
		return false
	}
}

// Pop removes the oldest entry, waiting up to wait for one to arrive.
func (q *Queue) Pop(ctx context.Context, wait time.Duration) (types.Entry, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case e := <-q.ch:
		q.observe()
		return e, true
	case <-timer.C:
		return types.Entry{}, false
	case <-ctx.Done():
		return types.Entry{}, false
	}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) observe() { metrics.QueueDepth.Set(float64(len(q.ch))) }
