// Package windowstats maintains running statistics over fixed-size sliding windows.
package windowstats

import (
	"math"
	"slices"

	"github.com/lamrongol/QueueWithMovingStat/internal/window"
)

// WindowStats keeps a fixed-size window of values and maintains min, max, median,
// mean and variance as values slide through it.
//
// Statistics become available once the window has been filled for the first time; that
// is the only point where the window is sorted. Afterwards each Insert updates the
// median with comparisons and at most one pass over the window.
//
// The mean and variance are updated incrementally and accumulate floating-point
// rounding error over very long streams. NaN breaks the ordering and must not be
// inserted. WindowStats is not safe for concurrent use.
type WindowStats struct {
	values   *window.Ring[float64]
	capacity int
	odd      bool

	fulfilled    bool
	lastInserted float64
	lastEvicted  float64
	inserted     bool
	evicted      bool

	min        float64
	max        float64
	median     float64
	mean       float64
	sumSquares float64

	// central pair of the sorted window, even capacities only
	lowerMiddle  float64
	higherMiddle float64
}

func NewWindowStats(capacity int) *WindowStats {
	if capacity <= 0 {
		capacity = 1
	}
	return &WindowStats{
		values:   window.New[float64](capacity),
		capacity: capacity,
		odd:      capacity%2 == 1,
	}
}

// Insert adds v to the window. Once the window is full the oldest value is evicted and
// returned with ok set; during warm-up ok is false.
func (w *WindowStats) Insert(v float64) (evicted float64, ok bool) {
	w.lastInserted = v
	w.inserted = true

	if !w.fulfilled {
		// cannot fail: fulfilled flips as soon as the ring is full
		_ = w.values.Insert(v)
		if w.values.Full() {
			w.fulfilled = true
			w.calcFromScratch()
		}
		return 0, false
	}

	old := w.values.EvictOldestAndInsert(v)
	w.lastEvicted = old
	w.evicted = true

	if v < w.min {
		w.min = v
	} else if w.min == old {
		w.min = w.scanMin()
	}
	if v > w.max {
		w.max = v
	} else if w.max == old {
		w.max = w.scanMax()
	}

	n := float64(w.capacity)
	w.mean += (v - old) / n
	w.sumSquares += v*v - old*old

	if w.odd {
		w.updateOddMedian(old, v)
	} else {
		w.updateEvenMedian(old, v)
	}
	return old, true
}

func (w *WindowStats) calcFromScratch() {
	sorted := w.values.Values()
	slices.Sort(sorted)

	var sum, sumSquares float64
	for _, v := range sorted {
		sum += v
		sumSquares += v * v
	}
	n := len(sorted)
	w.min = sorted[0]
	w.max = sorted[n-1]
	w.mean = sum / float64(n)
	w.sumSquares = sumSquares

	if w.odd {
		w.median = sorted[n/2]
		return
	}
	w.lowerMiddle = sorted[n/2-1]
	w.higherMiddle = sorted[n/2]
	w.median = (w.lowerMiddle + w.higherMiddle) / 2
}

func (w *WindowStats) updateOddMedian(old, v float64) {
	m := w.median
	switch {
	case old < m && v < m, old == m && v == m, old > m && v > m:
		// one value left and one arrived on the same side: rank of m is unchanged
	case v > m:
		higher := 0
		minOverMedian := math.Inf(1)
		w.values.Do(func(d float64) {
			if d > m {
				higher++
				if d < minOverMedian {
					minOverMedian = d
				}
			}
		})
		if higher > w.capacity/2 {
			w.median = minOverMedian
		}
	default:
		lower := 0
		maxUnderMedian := math.Inf(-1)
		w.values.Do(func(d float64) {
			if d < m {
				lower++
				if d > maxUnderMedian {
					maxUnderMedian = d
				}
			}
		})
		if lower > w.capacity/2 {
			w.median = maxUnderMedian
		}
	}
}

func (w *WindowStats) updateEvenMedian(old, v float64) {
	lo, hi := w.lowerMiddle, w.higherMiddle
	half := w.capacity / 2

	switch {
	case old < lo && v < lo, old > hi && v > hi, old == lo && v == lo, old == hi && v == hi:
		return
	case v > hi:
		higher, equals := 0, 0
		minOverHigher := math.Inf(1)
		w.values.Do(func(d float64) {
			switch {
			case d > hi:
				higher++
				if d < minOverHigher {
					minOverHigher = d
				}
			case d == hi:
				equals++
			}
		})
		if higher == half {
			// the whole upper half now sits above hi
			if old != hi {
				w.lowerMiddle = hi
			}
			w.higherMiddle = minOverHigher
		} else if higher+equals > half {
			// copies of hi fill both central slots
			w.lowerMiddle = hi
		}
	case v < lo:
		lower, equals := 0, 0
		maxUnderLower := math.Inf(-1)
		w.values.Do(func(d float64) {
			switch {
			case d < lo:
				lower++
				if d > maxUnderLower {
					maxUnderLower = d
				}
			case d == lo:
				equals++
			}
		})
		if lower == half {
			if old != lo {
				w.higherMiddle = lo
			}
			w.lowerMiddle = maxUnderLower
		} else if lower+equals > half {
			w.higherMiddle = lo
		}
	default:
		// v landed inside [lo, hi]; it takes the slot the evicted value vacated
		if old <= lo {
			w.lowerMiddle = v
		} else {
			w.higherMiddle = v
		}
	}
	w.median = (w.lowerMiddle + w.higherMiddle) / 2
}

func (w *WindowStats) scanMin() float64 {
	m := math.Inf(1)
	w.values.Do(func(d float64) {
		if d < m {
			m = d
		}
	})
	return m
}

func (w *WindowStats) scanMax() float64 {
	m := math.Inf(-1)
	w.values.Do(func(d float64) {
		if d > m {
			m = d
		}
	})
	return m
}

// Reset empties the window and forgets all statistics.
func (w *WindowStats) Reset() {
	*w = WindowStats{
		values:   w.values,
		capacity: w.capacity,
		odd:      w.odd,
	}
	w.values.Clear()
}

func (w *WindowStats) Min() (float64, error) {
	if !w.fulfilled {
		return 0, ErrNotFulfilled
	}
	return w.min, nil
}

func (w *WindowStats) Max() (float64, error) {
	if !w.fulfilled {
		return 0, ErrNotFulfilled
	}
	return w.max, nil
}

// Median returns the central value for odd capacities and the average of the two
// central values for even ones.
func (w *WindowStats) Median() (float64, error) {
	if !w.fulfilled {
		return 0, ErrNotFulfilled
	}
	return w.median, nil
}

// LowerMiddle returns the lower of the two central values of an even window.
func (w *WindowStats) LowerMiddle() (float64, error) {
	if w.odd {
		return 0, ErrOddWindow
	}
	if !w.fulfilled {
		return 0, ErrNotFulfilled
	}
	return w.lowerMiddle, nil
}

// HigherMiddle returns the higher of the two central values of an even window.
func (w *WindowStats) HigherMiddle() (float64, error) {
	if w.odd {
		return 0, ErrOddWindow
	}
	if !w.fulfilled {
		return 0, ErrNotFulfilled
	}
	return w.higherMiddle, nil
}

func (w *WindowStats) Mean() (float64, error) {
	if !w.fulfilled {
		return 0, ErrNotFulfilled
	}
	return w.mean, nil
}

// Variance is the population variance of the window.
func (w *WindowStats) Variance() (float64, error) {
	if !w.fulfilled {
		return 0, ErrNotFulfilled
	}
	variance := w.sumSquares/float64(w.capacity) - w.mean*w.mean
	if variance < 0 {
		variance = 0
	}
	return variance, nil
}

func (w *WindowStats) StdDev() (float64, error) {
	variance, err := w.Variance()
	if err != nil {
		return 0, err
	}
	return math.Sqrt(variance), nil
}

// ZScore reports how many standard deviations value lies from the window mean.
// A window with no spread yields 0.
func (w *WindowStats) ZScore(value float64) (float64, error) {
	std, err := w.StdDev()
	if err != nil {
		return 0, err
	}
	if std == 0 {
		return 0, nil
	}
	return (value - w.mean) / std, nil
}

// LastInserted returns the most recently inserted value; ok is false before the first
// insert.
func (w *WindowStats) LastInserted() (v float64, ok bool) {
	return w.lastInserted, w.inserted
}

// LastEvicted returns the value dropped by the most recent insert into a full window;
// ok is false until the first eviction.
func (w *WindowStats) LastEvicted() (v float64, ok bool) {
	return w.lastEvicted, w.evicted
}

func (w *WindowStats) Fulfilled() bool {
	return w.fulfilled
}

func (w *WindowStats) Capacity() int {
	return w.capacity
}

func (w *WindowStats) Size() int {
	return w.values.Len()
}

// At returns the value at index, oldest first; negative indexes count back from the
// most recent value. It panics when index is out of range.
func (w *WindowStats) At(index int) float64 {
	return w.values.At(index)
}

// Values returns a copy of the window, oldest first.
func (w *WindowStats) Values() []float64 {
	return w.values.Values()
}
