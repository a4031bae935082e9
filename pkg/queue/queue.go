package queue

import (
	"sync"
	"time"
)

// Item is a payload waiting for (another) delivery attempt.
type Item[T any] struct {
	ID         string
	Payload    T
	RetryAt    time.Time
	RetryCount int
	MaxRetries int
}

// Exhausted reports whether the item has used all of its attempts.
func (i *Item[T]) Exhausted() bool {
	return i.RetryCount >= i.MaxRetries
}

// Queue is a bounded FIFO of items ordered by insertion; only items whose
// RetryAt has passed are handed out.
type Queue[T any] struct {
	items    []*Item[T]
	capacity int
	mu       sync.Mutex
	signal   chan struct{}
}

// NewQueue creates a queue holding at most capacity items (0 means unbounded).
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		items:    make([]*Item[T], 0),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds an item and reports false if the queue is full.
func (q *Queue[T]) Enqueue(item *Item[T]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, item)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Dequeue removes and returns the first item due at now, or nil.
func (q *Queue[T]) Dequeue(now time.Time) *Item[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if !item.RetryAt.After(now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return item
		}
	}
	return nil
}

// Signal fires (at most once per burst) when an item is enqueued.
func (q *Queue[T]) Signal() <-chan struct{} {
	return q.signal
}

func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) GetAll() []*Item[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]*Item[T], len(q.items))
	copy(result, q.items)
	return result
}
