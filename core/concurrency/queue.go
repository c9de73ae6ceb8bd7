// File: core/concurrency/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unbounded blocking FIFO. Storage is an eapache ring that grows and shrinks
// with the load; blocking is layered on top with a broadcast channel so
// waiters can also select on a context.

package concurrency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Queue is safe for any number of producers and consumers. There is no
// capacity limit: a slow consumer lets the queue grow without bound.
type Queue[T any] struct {
	mu    sync.Mutex
	items *queue.Queue
	wake  chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		items: queue.New(),
		wake:  make(chan struct{}),
	}
}

// PushBack appends v and wakes blocked consumers.
func (q *Queue[T]) PushBack(v T) {
	q.mu.Lock()
	q.items.Add(v)
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
}

// TryPopFront removes the head without blocking.
func (q *Queue[T]) TryPopFront() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		var zero T
		return zero, false
	}
	return q.items.Remove().(T), true
}

// PopFront blocks until an item is available or ctx is done.
func (q *Queue[T]) PopFront(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			v := q.items.Remove().(T)
			q.mu.Unlock()
			return v, nil
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TimedPopFront blocks until an item is available or the absolute deadline
// passes, in which case ErrQueueTimeout is returned.
func (q *Queue[T]) TimedPopFront(deadline time.Time) (T, error) {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	v, err := q.PopFront(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return v, ErrQueueTimeout
	}
	return v, err
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// RemoveAll drains the queue and returns its contents in FIFO order.
func (q *Queue[T]) RemoveAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, q.items.Length())
	for q.items.Length() > 0 {
		out = append(out, q.items.Remove().(T))
	}
	return out
}
