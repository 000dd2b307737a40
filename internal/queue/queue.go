// Package queue holds the bounded FIFO the host buffers selections in
// between flushes.
package queue

import "sync"

// Queue is a thread-safe FIFO. With a limit it drops its oldest items once
// full, so a stalled store costs old selections rather than memory.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	dropped uint64
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue holding at most limit items. limit <= 0 means
// unbounded.
func NewBounded[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: max(limit, 0)}
}

// Push appends items and returns how many old items were dropped.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	return q.enforceLimit()
}

// PushFront requeues a batch that failed to flush ahead of anything pushed
// since. If that overflows the limit the oldest, i.e. the requeued batch,
// goes first.
func (q *Queue[T]) PushFront(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]T, 0, len(items)+len(q.items))
	merged = append(merged, items...)
	q.items = append(merged, q.items...)
	return q.enforceLimit()
}

func (q *Queue[T]) enforceLimit() int {
	over := len(q.items) - q.limit
	if q.limit == 0 || over <= 0 {
		return 0
	}
	clear(q.items[:over])
	q.items = q.items[over:]
	q.dropped += uint64(over)
	return over
}

// GetAndEmpty takes every queued item, oldest first.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items the limit has discarded so far.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
