// Package window provides the fixed-capacity ring that backs the moving statistics.
package window

import (
	"errors"

	"github.com/gammazero/deque"
)

// ErrFull is returned by Insert once the ring holds Cap elements.
var ErrFull = errors.New("ring is full")

// Ring keeps the most recently inserted elements in insertion order, oldest first.
// It is not safe for concurrent use.
type Ring[T any] struct {
	capacity int
	items    *deque.Deque[T]
}

// New creates an empty ring. Capacity below 1 is raised to 1.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		capacity: capacity,
		items:    deque.New[T](capacity, capacity),
	}
}

// Insert appends v while the ring still has room.
func (r *Ring[T]) Insert(v T) error {
	if r.items.Len() >= r.capacity {
		return ErrFull
	}
	r.items.PushBack(v)
	return nil
}

// EvictOldestAndInsert drops the oldest element, appends v and returns the dropped one.
// The ring must be full.
func (r *Ring[T]) EvictOldestAndInsert(v T) T {
	evicted := r.items.PopFront()
	r.items.PushBack(v)
	return evicted
}

func (r *Ring[T]) Len() int {
	return r.items.Len()
}

func (r *Ring[T]) Cap() int {
	return r.capacity
}

func (r *Ring[T]) Full() bool {
	return r.items.Len() == r.capacity
}

// At returns the element at index, counted from the oldest end when index >= 0 and
// from the newest end when index < 0 (-1 is the most recent). It panics when index is
// out of range.
func (r *Ring[T]) At(index int) T {
	if index < 0 {
		index += r.items.Len()
	}
	return r.items.At(index)
}

// Do calls fn for every element from oldest to newest.
func (r *Ring[T]) Do(fn func(T)) {
	for i, n := 0, r.items.Len(); i < n; i++ {
		fn(r.items.At(i))
	}
}

// Values returns a copy of the contents, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, 0, r.items.Len())
	r.Do(func(v T) {
		out = append(out, v)
	})
	return out
}

func (r *Ring[T]) Clear() {
	r.items.Clear()
}
