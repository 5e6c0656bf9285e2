package gene

import (
	"math/rand"

	"golang.org/x/exp/constraints"
)

// floorDiv rounds toward negative infinity, unlike Go's truncating division.
func floorDiv[T constraints.Integer](a, b T) T {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// outputExtent is floor((in-window)/stride)+1. A non-positive result means the
// window does not fit.
func outputExtent(in, window, stride int) int {
	return floorDiv(in-window, stride) + 1
}

// RandIntInclusive draws uniformly from [lo, hi].
func RandIntInclusive[T constraints.Integer](rng *rand.Rand, lo, hi T) T {
	if hi <= lo {
		return lo
	}
	return lo + T(rng.Int63n(int64(hi-lo)+1))
}

func minOf[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}
