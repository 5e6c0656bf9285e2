package gene

import (
	"fmt"
	"math/rand"
)

// Input is the root gene. Its dimension is the problem's input shape.
type Input struct {
	dim Dimension
}

func NewInput(dim Dimension) (*Input, error) {
	if !dim.Spatial() || !dim.Valid() {
		return nil, fmt.Errorf("%w: input dimension %s", ErrShape, dim)
	}
	return &Input{dim: dim}, nil
}

func (g *Input) Type() Type { return TypeInput }

func (g *Input) Dimension() (Dimension, bool) {
	return g.dim, true
}

// CompatibleWith is always false: nothing precedes an input.
func (g *Input) CompatibleWith(Gene) bool {
	return false
}

func (g *Input) PropagateDimension(Dimension) (Dimension, error) {
	return Dimension{}, fmt.Errorf("%w: input gene has no predecessor", ErrConstructionPrecondition)
}

func (g *Input) Mutate(*rand.Rand, Bounds, Gene, Gene) error {
	return fmt.Errorf("%w: input gene is immutable", ErrConstructionPrecondition)
}

func (g *Input) Materialize(nameSuffix string) LayerSpec {
	return LayerSpec{
		Kind:        LayerInput,
		Name:        layerName("input", nameSuffix),
		Activation:  ActivationNone,
		Parameters:  map[string]any{"shape": g.dim.Shape()},
		OutputShape: g.dim.Shape(),
	}
}

func (g *Input) Clone() Gene {
	clone := *g
	return &clone
}

func (g *Input) bind(Dimension, Dimension) {}
