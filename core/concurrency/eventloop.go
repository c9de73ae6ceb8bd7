// File: core/concurrency/eventloop.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoop drains an unbounded inbox in batches and hands each event to a
// single handler on one goroutine, so events pushed by one producer are
// handled in push order.

package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
)

// EventLoop dispatches events of type E to handler on the goroutine running Run.
type EventLoop[E any] struct {
	inbox     *Queue[E]
	handler   func(E)
	onPanic   func(any)
	batchSize int

	ctx     context.Context
	cancel  context.CancelFunc
	doneCh  chan struct{}
	running atomic.Bool
	stopped atomic.Bool
	once    sync.Once
}

// NewEventLoop creates a loop. batchSize bounds how many events are drained
// per wakeup; onPanic, if non-nil, receives values recovered from handler.
func NewEventLoop[E any](batchSize int, handler func(E), onPanic func(any)) *EventLoop[E] {
	if batchSize <= 0 {
		batchSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EventLoop[E]{
		inbox:     NewQueue[E](),
		handler:   handler,
		onPanic:   onPanic,
		batchSize: batchSize,
		ctx:       ctx,
		cancel:    cancel,
		doneCh:    make(chan struct{}),
	}
}

// Push enqueues ev. It never blocks; it fails only after Stop.
func (el *EventLoop[E]) Push(ev E) error {
	if el.stopped.Load() {
		return ErrLoopStopped
	}
	el.inbox.PushBack(ev)
	return nil
}

// Pending returns the number of events waiting in the inbox.
func (el *EventLoop[E]) Pending() int {
	return el.inbox.Len()
}

// Run dispatches until Stop is called, then handles whatever was already
// queued and returns.
func (el *EventLoop[E]) Run() {
	if !el.running.CompareAndSwap(false, true) {
		return
	}
	defer close(el.doneCh)

	batch := make([]E, 0, el.batchSize)
	for {
		ev, err := el.inbox.PopFront(el.ctx)
		if err != nil {
			for _, ev := range el.inbox.RemoveAll() {
				el.dispatch(ev)
			}
			return
		}
		batch = append(batch[:0], ev)
		for len(batch) < el.batchSize {
			next, ok := el.inbox.TryPopFront()
			if !ok {
				break
			}
			batch = append(batch, next)
		}
		for _, ev := range batch {
			el.dispatch(ev)
		}
	}
}

// Stop signals Run to finish and waits for it if it was started.
func (el *EventLoop[E]) Stop() {
	el.once.Do(func() {
		el.stopped.Store(true)
		el.cancel()
	})
	if el.running.Load() {
		<-el.doneCh
	}
}

func (el *EventLoop[E]) dispatch(ev E) {
	defer func() {
		if r := recover(); r != nil && el.onPanic != nil {
			el.onPanic(r)
		}
	}()
	el.handler(ev)
}
