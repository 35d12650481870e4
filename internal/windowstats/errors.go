package windowstats

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFulfilled is returned by statistics accessors until the window has been
	// filled once.
	ErrNotFulfilled = errors.New("statistics not yet available: window not fulfilled")

	ErrInvalidCapacity = errors.New("invalid window capacity")

	// ErrEvenCapacity rejects even windows for element types that cannot be averaged.
	ErrEvenCapacity = fmt.Errorf("%w: capacity must be odd", ErrInvalidCapacity)

	ErrOddWindow  = errors.New("odd window has a single middle value")
	ErrNilCompare = errors.New("nil compare function")
)
