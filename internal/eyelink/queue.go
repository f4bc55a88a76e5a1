package eyelink

import (
	"sync"
	"time"
)

// queue is an unbounded FIFO safe for concurrent use. Push never blocks.
type queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends v
func (q *queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
}

// PushFront puts vs at the head of the queue, keeping their order.
func (q *queue[T]) PushFront(vs ...T) {
	if len(vs) == 0 {
		return
	}
	q.mu.Lock()
	items := make([]T, 0, len(vs)+len(q.items))
	items = append(items, vs...)
	q.items = append(items, q.items...)
	q.mu.Unlock()
	q.signal()
}

// TryPop removes the head without waiting
func (q *queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// PopTimeout waits up to d for an item
func (q *queue[T]) PopTimeout(d time.Duration) (T, bool) {
	if v, ok := q.TryPop(); ok {
		return v, true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-q.ready:
			if v, ok := q.TryPop(); ok {
				return v, true
			}
		case <-timer.C:
			return q.TryPop()
		}
	}
}

// Len returns the number of queued items
func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
