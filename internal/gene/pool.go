package gene

import (
	"fmt"
	"math/rand"
)

// Pool1D max-pools along the length axis. Channels pass through.
type Pool1D struct {
	base
	Size   int
	Stride int
}

func NewPool1D(size, stride int) (*Pool1D, error) {
	if size <= 0 || stride <= 0 {
		return nil, fmt.Errorf("%w: pool1d size=%d stride=%d", ErrConstructionPrecondition, size, stride)
	}
	return &Pool1D{Size: size, Stride: stride}, nil
}

func (g *Pool1D) Type() Type { return TypePool1D }

func (g *Pool1D) CompatibleWith(prev Gene) bool {
	if prev == nil {
		return false
	}
	switch prev.Type() {
	case TypeInput, TypeConv1D:
	default:
		return false
	}
	dim, ok := spatialPrev(prev, Kind1D)
	return ok && g.Size <= dim.Length()
}

func (g *Pool1D) PropagateDimension(prev Dimension) (Dimension, error) {
	if prev.Kind != Kind1D {
		return Dimension{}, fmt.Errorf("%w: pool1d expects a 1d predecessor, got %s", ErrShape, prev.Kind)
	}
	length := outputExtent(prev.Length(), g.Size, g.Stride)
	if length <= 0 {
		return Dimension{}, fmt.Errorf("%w: pool1d window %d over length %d", ErrExhaustedExtent, g.Size, prev.Length())
	}
	return Dim1D(length, prev.Channels), nil
}

func (g *Pool1D) Mutate(rng *rand.Rand, bounds Bounds, prev, next Gene) error {
	return acceptMutation(rng, bounds, g, prev, next,
		func() Gene {
			trial := *g
			if rng.Intn(2) == 0 {
				trial.Size = RandIntInclusive(rng, bounds.PoolSize.Min, extentCap(bounds.PoolSize, prev))
			} else {
				trial.Stride = RandIntInclusive(rng, bounds.PoolStride.Min, bounds.PoolStride.Max)
			}
			return &trial
		},
		func(t Gene) bool {
			p := t.(*Pool1D)
			return p.Size == g.Size && p.Stride == g.Stride
		},
		func(t Gene) { *g = *t.(*Pool1D) },
	)
}

func (g *Pool1D) Materialize(nameSuffix string) LayerSpec {
	spec := LayerSpec{
		Kind:       LayerMaxPool1D,
		Name:       layerName("pool1d", nameSuffix),
		Activation: ActivationNone,
		Parameters: map[string]any{
			"pool_size": []int{g.Size},
			"stride":    []int{g.Stride},
		},
	}
	if g.bound {
		spec.InputShape = g.in.Shape()
		spec.OutputShape = g.out.Shape()
	}
	return spec
}

func (g *Pool1D) Clone() Gene {
	clone := *g
	return &clone
}

// Pool2D max-pools over height and width. Rule decides whether the window
// must fit on both axes or on either one.
type Pool2D struct {
	base
	Size   [2]int
	Stride [2]int
	Rule   Pool2DRule
}

func NewPool2D(size, stride [2]int, rule Pool2DRule) (*Pool2D, error) {
	if size[0] <= 0 || size[1] <= 0 || stride[0] <= 0 || stride[1] <= 0 {
		return nil, fmt.Errorf("%w: pool2d size=%v stride=%v", ErrConstructionPrecondition, size, stride)
	}
	parsed, err := ParsePool2DRule(string(rule))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstructionPrecondition, err)
	}
	return &Pool2D{Size: size, Stride: stride, Rule: parsed}, nil
}

func (g *Pool2D) Type() Type { return TypePool2D }

func (g *Pool2D) CompatibleWith(prev Gene) bool {
	if prev == nil {
		return false
	}
	switch prev.Type() {
	case TypeInput, TypeConv2D:
	default:
		return false
	}
	dim, ok := spatialPrev(prev, Kind2D)
	if !ok {
		return false
	}
	fitsH := g.Size[0] <= dim.Height
	fitsW := g.Size[1] <= dim.Width
	if g.Rule == Pool2DAny {
		return fitsH || fitsW
	}
	return fitsH && fitsW
}

func (g *Pool2D) PropagateDimension(prev Dimension) (Dimension, error) {
	if prev.Kind != Kind2D {
		return Dimension{}, fmt.Errorf("%w: pool2d expects a 2d predecessor, got %s", ErrShape, prev.Kind)
	}
	height := outputExtent(prev.Height, g.Size[0], g.Stride[0])
	width := outputExtent(prev.Width, g.Size[1], g.Stride[1])
	if height <= 0 || width <= 0 {
		return Dimension{}, fmt.Errorf("%w: pool2d window %v over %dx%d", ErrExhaustedExtent, g.Size, prev.Height, prev.Width)
	}
	return Dim2D(height, width, prev.Channels), nil
}

func (g *Pool2D) Mutate(rng *rand.Rand, bounds Bounds, prev, next Gene) error {
	return acceptMutation(rng, bounds, g, prev, next,
		func() Gene {
			trial := *g
			if rng.Intn(2) == 0 {
				s := RandIntInclusive(rng, bounds.PoolSize.Min, squareCap(bounds.PoolSize, prev))
				trial.Size = [2]int{s, s}
			} else {
				s := RandIntInclusive(rng, bounds.PoolStride.Min, bounds.PoolStride.Max)
				trial.Stride = [2]int{s, s}
			}
			return &trial
		},
		func(t Gene) bool {
			p := t.(*Pool2D)
			return p.Size == g.Size && p.Stride == g.Stride
		},
		func(t Gene) { *g = *t.(*Pool2D) },
	)
}

func (g *Pool2D) Materialize(nameSuffix string) LayerSpec {
	spec := LayerSpec{
		Kind:       LayerMaxPool2D,
		Name:       layerName("pool2d", nameSuffix),
		Activation: ActivationNone,
		Parameters: map[string]any{
			"pool_size": []int{g.Size[0], g.Size[1]},
			"stride":    []int{g.Stride[0], g.Stride[1]},
		},
	}
	if g.bound {
		spec.InputShape = g.in.Shape()
		spec.OutputShape = g.out.Shape()
	}
	return spec
}

func (g *Pool2D) Clone() Gene {
	clone := *g
	return &clone
}
