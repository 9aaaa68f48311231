// Package queue provides the unbounded multi-producer queue that carries
// conversion outcomes from pool workers to their single consumer.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
)

const (
	// Initial ring capacity; the ring doubles whenever it fills up.
	defaultInitialCapacity = 64
)

// Queue is an unbounded FIFO safe for any number of producers.
//
// Producers never block: a full ring is grown instead. Consumers either poll
// with TryPop/Drain or wait on Ready, which is signalled after every Push.
type Queue[T any] struct {
	mu   sync.Mutex
	ring []T
	head int
	size int

	// Closed flag
	closed atomic.Bool

	// Notification channel for data (BUFFERED, NEVER CLOSED)
	notifyC chan struct{}
}

// New creates an empty queue. A non-positive capacity selects the default.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = defaultInitialCapacity
	}

	return &Queue[T]{
		ring:    make([]T, nextPowerOfTwo(capacity)),
		notifyC: make(chan struct{}, 1),
	}
}

// Push appends value to the tail of the queue.
// Returns ErrQueueClosed if the queue was closed.
func (q *Queue[T]) Push(value T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	q.mu.Lock()
	if q.size == len(q.ring) {
		q.grow()
	}
	q.ring[(q.head+q.size)&(len(q.ring)-1)] = value
	q.size++
	q.mu.Unlock()

	select {
	case q.notifyC <- struct{}{}:
	default:
	}
	return nil
}

// TryPop removes and returns the head of the queue without blocking.
// Returns (zero, false) if the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return zero, false
	}

	value := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) & (len(q.ring) - 1)
	q.size--
	return value, true
}

// Drain removes every queued item and returns them in FIFO order.
func (q *Queue[T]) Drain() []T {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, q.size)
	for i := range out {
		idx := (q.head + i) & (len(q.ring) - 1)
		out[i] = q.ring[idx]
		q.ring[idx] = zero
	}
	q.head = 0
	q.size = 0
	return out
}

// Ready returns a channel that receives a value after items were pushed.
// Signals coalesce: one receive may stand for many pushes, so consumers
// must drain until TryPop reports empty.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.notifyC
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Close marks the queue as closed. Queued items remain poppable.
func (q *Queue[T]) Close() {
	q.closed.Store(true)
}

// grow doubles the ring, unwrapping the live window to index 0.
// Must be called with q.mu held.
func (q *Queue[T]) grow() {
	next := make([]T, len(q.ring)*2)
	for i := range q.size {
		next[i] = q.ring[(q.head+i)&(len(q.ring)-1)]
	}
	q.ring = next
	q.head = 0
}

// nextPowerOfTwo returns the next power of 2 >= n
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	if n&(n-1) == 0 {
		return n
	}

	power := 1
	for power < n {
		power *= 2
	}
	return power
}
