package windowstats

import (
	"fmt"
	"slices"

	"golang.org/x/exp/constraints"

	"github.com/lamrongol/QueueWithMovingStat/internal/window"
)

// Comparer is implemented by types that order themselves, such as time.Time.
type Comparer[T any] interface {
	Compare(other T) int
}

// Ordered tracks min, max and median over a fixed window of any totally ordered type.
// Its capacity is always odd so the median is a single element of the window.
//
// Equality is decided by compare returning 0, never by identity.
// Ordered is not safe for concurrent use.
type Ordered[T any] struct {
	values   *window.Ring[T]
	capacity int
	compare  func(a, b T) int

	fulfilled    bool
	lastInserted T
	lastEvicted  T
	inserted     bool
	evicted      bool

	min    T
	max    T
	median T
}

// NewOrderedFunc creates a window ordered by compare, which returns a negative number,
// zero or a positive number when a is less than, equal to or greater than b.
func NewOrderedFunc[T any](capacity int, compare func(a, b T) int) (*Ordered[T], error) {
	if compare == nil {
		return nil, ErrNilCompare
	}
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if capacity%2 == 0 {
		return nil, fmt.Errorf("%w, got %d", ErrEvenCapacity, capacity)
	}
	return &Ordered[T]{
		values:   window.New[T](capacity),
		capacity: capacity,
		compare:  compare,
	}, nil
}

// NewOrdered creates a window over a built-in ordered type. Floating point NaN is not
// ordered and must not be inserted.
func NewOrdered[T constraints.Ordered](capacity int) (*Ordered[T], error) {
	return NewOrderedFunc(capacity, compareOrdered[T])
}

// NewComparable creates a window over a type that implements Comparer.
func NewComparable[T Comparer[T]](capacity int) (*Ordered[T], error) {
	return NewOrderedFunc(capacity, func(a, b T) int {
		return a.Compare(b)
	})
}

func compareOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Insert adds v to the window. Once the window is full the oldest element is evicted
// and returned with ok set.
func (o *Ordered[T]) Insert(v T) (evicted T, ok bool) {
	o.lastInserted = v
	o.inserted = true

	if !o.fulfilled {
		_ = o.values.Insert(v)
		if o.values.Full() {
			o.fulfilled = true
			o.calcFromScratch()
		}
		var zero T
		return zero, false
	}

	old := o.values.EvictOldestAndInsert(v)
	o.lastEvicted = old
	o.evicted = true

	if o.compare(v, o.min) < 0 {
		o.min = v
	} else if o.compare(o.min, old) == 0 {
		o.min = o.scan(-1)
	}
	if o.compare(v, o.max) > 0 {
		o.max = v
	} else if o.compare(o.max, old) == 0 {
		o.max = o.scan(1)
	}

	o.updateMedian(old, v)
	return old, true
}

func (o *Ordered[T]) calcFromScratch() {
	o.min = o.scan(-1)
	o.max = o.scan(1)

	sorted := o.values.Values()
	slices.SortFunc(sorted, o.compare)
	o.median = sorted[len(sorted)/2]
}

func (o *Ordered[T]) updateMedian(old, v T) {
	oldSide := sign(o.compare(old, o.median))
	newSide := sign(o.compare(v, o.median))
	if oldSide == newSide {
		// both below, both above or both equal to the median
		return
	}

	// side is 1 when v moved the balance upwards and -1 when it moved it down
	side := 1
	if newSide <= 0 {
		side = -1
	}

	count := 0
	var nearest T
	found := false
	o.values.Do(func(d T) {
		if sign(o.compare(d, o.median)) != side {
			return
		}
		count++
		if !found || sign(o.compare(d, nearest)) == -side {
			nearest = d
			found = true
		}
	})
	if count > o.capacity/2 {
		o.median = nearest
	}
}

// scan returns the minimum for dir -1 and the maximum for dir 1.
func (o *Ordered[T]) scan(dir int) T {
	var best T
	first := true
	o.values.Do(func(d T) {
		if first || sign(o.compare(d, best)) == dir {
			best = d
			first = false
		}
	})
	return best
}

func sign(c int) int {
	switch {
	case c < 0:
		return -1
	case c > 0:
		return 1
	}
	return 0
}

// Reset empties the window and forgets all statistics.
func (o *Ordered[T]) Reset() {
	*o = Ordered[T]{
		values:   o.values,
		capacity: o.capacity,
		compare:  o.compare,
	}
	o.values.Clear()
}

func (o *Ordered[T]) Min() (T, error) {
	if !o.fulfilled {
		var zero T
		return zero, ErrNotFulfilled
	}
	return o.min, nil
}

func (o *Ordered[T]) Max() (T, error) {
	if !o.fulfilled {
		var zero T
		return zero, ErrNotFulfilled
	}
	return o.max, nil
}

func (o *Ordered[T]) Median() (T, error) {
	if !o.fulfilled {
		var zero T
		return zero, ErrNotFulfilled
	}
	return o.median, nil
}

func (o *Ordered[T]) LastInserted() (v T, ok bool) {
	return o.lastInserted, o.inserted
}

func (o *Ordered[T]) LastEvicted() (v T, ok bool) {
	return o.lastEvicted, o.evicted
}

func (o *Ordered[T]) Fulfilled() bool {
	return o.fulfilled
}

func (o *Ordered[T]) Capacity() int {
	return o.capacity
}

func (o *Ordered[T]) Size() int {
	return o.values.Len()
}

// At returns the element at index, oldest first; negative indexes count back from the
// most recent element. It panics when index is out of range.
func (o *Ordered[T]) At(index int) T {
	return o.values.At(index)
}

func (o *Ordered[T]) Values() []T {
	return o.values.Values()
}
