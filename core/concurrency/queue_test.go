package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 100; i++ {
		q.PushBack(i)
	}
	require.Equal(t, 100, q.Len())
	for i := 0; i < 100; i++ {
		v, err := q.PopFront(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	_, ok := q.TryPopFront()
	assert.False(t, ok)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue[string]()
	got := make(chan string, 1)
	go func() {
		v, err := q.PopFront(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("pop returned before push")
	case <-time.After(20 * time.Millisecond):
	}
	q.PushBack("hello")
	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake")
	}
}

func TestQueue_PopHonorsContext(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.PopFront(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_TimedPopFront(t *testing.T) {
	q := NewQueue[int]()
	start := time.Now()
	_, err := q.TimedPopFront(start.Add(30 * time.Millisecond))
	assert.ErrorIs(t, err, ErrQueueTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)

	q.PushBack(7)
	v, err := q.TimedPopFront(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestQueue_RemoveAll(t *testing.T) {
	q := NewQueue[int]()
	q.PushBack(1)
	q.PushBack(2)
	assert.Equal(t, []int{1, 2}, q.RemoveAll())
	assert.Zero(t, q.Len())
}

func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	q := NewQueue[int]()
	const n = 4000
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n/4; i++ {
				q.PushBack(1)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum := 0
	for i := 0; i < n; i++ {
		v, err := q.PopFront(ctx)
		require.NoError(t, err)
		sum += v
	}
	wg.Wait()
	assert.Equal(t, n, sum)
}
