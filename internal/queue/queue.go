// Package queue holds telemetry rows between database writes.
package queue

import (
	"sync"
)

// Queue is a FIFO of pending rows. A bounded queue drops its oldest rows
// when full so a dead database cannot grow memory without limit.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	max     int
	dropped uint64
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue holding at most max rows. max <= 0 means
// unbounded.
func NewBounded[T any](max int) *Queue[T] {
	return &Queue[T]{max: max}
}

// Push appends items, dropping the oldest rows beyond the bound.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	q.trim()
}

// Requeue puts rows from a failed write back in front of anything pushed
// since, keeping arrival order.
func (q *Queue[T]) Requeue(items []T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
	q.trim()
}

func (q *Queue[T]) trim() {
	if q.max <= 0 || len(q.items) <= q.max {
		return
	}
	over := len(q.items) - q.max
	q.dropped += uint64(over)
	q.items = append(q.items[:0:0], q.items[over:]...)
}

// Drain removes and returns up to n rows from the front; n <= 0 takes all.
func (q *Queue[T]) Drain(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	if n <= 0 || n >= len(q.items) {
		out := q.items
		q.items = nil
		return out
	}
	out := append([]T(nil), q.items[:n]...)
	q.items = append(q.items[:0:0], q.items[n:]...)
	return out
}

// Len returns the number of pending rows.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many rows the bound has discarded.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear discards all pending rows.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
