package gene

import (
	"fmt"
	"math/rand"
)

// FullyConnected is a dense layer. It may follow anything and its output is
// its own unit count.
type FullyConnected struct {
	base
	Units      int
	Activation Activation
}

func NewFullyConnected(units int, activation Activation) (*FullyConnected, error) {
	if units <= 0 {
		return nil, fmt.Errorf("%w: fully connected units=%d", ErrConstructionPrecondition, units)
	}
	return &FullyConnected{Units: units, Activation: activation}, nil
}

func (g *FullyConnected) Type() Type { return TypeFullyConnected }

func (g *FullyConnected) CompatibleWith(Gene) bool {
	return true
}

func (g *FullyConnected) PropagateDimension(Dimension) (Dimension, error) {
	return Flat(g.Units), nil
}

func (g *FullyConnected) Mutate(rng *rand.Rand, bounds Bounds, prev, next Gene) error {
	return acceptMutation(rng, bounds, g, prev, next,
		func() Gene {
			trial := *g
			trial.Units = RandIntInclusive(rng, bounds.FullyConnected.Min, bounds.FullyConnected.Max)
			return &trial
		},
		func(t Gene) bool { return t.(*FullyConnected).Units == g.Units },
		func(t Gene) { *g = *t.(*FullyConnected) },
	)
}

func (g *FullyConnected) Materialize(nameSuffix string) LayerSpec {
	spec := LayerSpec{
		Kind:       LayerDense,
		Name:       layerName("dense", nameSuffix),
		Activation: g.Activation,
		Parameters: map[string]any{
			"output_size": g.Units,
			"use_bias":    true,
		},
	}
	if g.bound {
		spec.InputShape = g.in.Shape()
		spec.OutputShape = g.out.Shape()
		spec.Flatten = g.in.Spatial()
		spec.Parameters["input_size"] = g.in.Elements()
		spec.ParameterCount = int64(g.in.Elements()*g.Units + g.Units)
	}
	return spec
}

func (g *FullyConnected) Clone() Gene {
	clone := *g
	return &clone
}
