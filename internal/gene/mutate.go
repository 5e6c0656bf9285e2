package gene

import (
	"fmt"
	"math/rand"
)

// acceptMutation draws trials until one binds to prev, differs from the
// current parameters and is still acceptable to next. commit runs once, on
// the accepted trial.
func acceptMutation(
	rng *rand.Rand,
	bounds Bounds,
	current Gene,
	prev, next Gene,
	draw func() Gene,
	same func(Gene) bool,
	commit func(Gene),
) error {
	if rng == nil {
		return fmt.Errorf("%w: random source is required", ErrConstructionPrecondition)
	}
	if prev == nil {
		return fmt.Errorf("%w: %s mutation needs a predecessor", ErrConstructionPrecondition, current.Type())
	}
	for i := 0; i < bounds.Attempts(); i++ {
		trial := draw()
		if same(trial) {
			continue
		}
		if err := Bind(trial, prev); err != nil {
			continue
		}
		if next != nil && !next.CompatibleWith(trial) {
			continue
		}
		commit(trial)
		return nil
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrNoMutationChoice, current.Type(), bounds.Attempts())
}

// extentCap bounds a sampled window by the predecessor's leading extent.
func extentCap(r Range, prev Gene) int {
	limit := r.Max
	if prev == nil {
		return limit
	}
	if dim, ok := prev.Dimension(); ok && dim.Spatial() {
		limit = minOf(limit, dim.LeadingExtent())
	}
	return limit
}
