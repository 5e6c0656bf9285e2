package gene

import (
	"fmt"
	"math/rand"
)

// Conv1D convolves along the length axis.
type Conv1D struct {
	base
	Kernel     int
	Stride     int
	Kernels    int
	Activation Activation
}

func NewConv1D(kernel, stride, kernels int, activation Activation) (*Conv1D, error) {
	if kernel <= 0 || stride <= 0 || kernels <= 0 {
		return nil, fmt.Errorf("%w: conv1d kernel=%d stride=%d kernels=%d", ErrConstructionPrecondition, kernel, stride, kernels)
	}
	return &Conv1D{Kernel: kernel, Stride: stride, Kernels: kernels, Activation: activation}, nil
}

func (g *Conv1D) Type() Type { return TypeConv1D }

// CompatibleWith accepts an Input or Pool1D predecessor at least as long as
// the kernel.
func (g *Conv1D) CompatibleWith(prev Gene) bool {
	if prev == nil {
		return false
	}
	switch prev.Type() {
	case TypeInput, TypePool1D:
	default:
		return false
	}
	dim, ok := spatialPrev(prev, Kind1D)
	return ok && g.Kernel <= dim.Length()
}

func (g *Conv1D) PropagateDimension(prev Dimension) (Dimension, error) {
	if prev.Kind != Kind1D {
		return Dimension{}, fmt.Errorf("%w: conv1d expects a 1d predecessor, got %s", ErrShape, prev.Kind)
	}
	length := outputExtent(prev.Length(), g.Kernel, g.Stride)
	if length <= 0 {
		return Dimension{}, fmt.Errorf("%w: conv1d kernel %d over length %d", ErrExhaustedExtent, g.Kernel, prev.Length())
	}
	return Dim1D(length, g.Kernels), nil
}

func (g *Conv1D) Mutate(rng *rand.Rand, bounds Bounds, prev, next Gene) error {
	return acceptMutation(rng, bounds, g, prev, next,
		func() Gene {
			trial := *g
			switch rng.Intn(3) {
			case 0:
				trial.Kernel = RandIntInclusive(rng, bounds.KernelWidth.Min, extentCap(bounds.KernelWidth, prev))
			case 1:
				trial.Stride = RandIntInclusive(rng, bounds.Stride.Min, bounds.Stride.Max)
			default:
				trial.Kernels = RandIntInclusive(rng, bounds.Kernels.Min, bounds.Kernels.Max)
			}
			return &trial
		},
		func(t Gene) bool {
			c := t.(*Conv1D)
			return c.Kernel == g.Kernel && c.Stride == g.Stride && c.Kernels == g.Kernels
		},
		func(t Gene) { *g = *t.(*Conv1D) },
	)
}

func (g *Conv1D) Materialize(nameSuffix string) LayerSpec {
	spec := LayerSpec{
		Kind:       LayerConv1D,
		Name:       layerName("conv1d", nameSuffix),
		Activation: g.Activation,
		Parameters: map[string]any{
			"kernel_size":     []int{g.Kernel},
			"stride":          []int{g.Stride},
			"output_channels": g.Kernels,
			"padding":         "valid",
		},
	}
	if g.bound {
		spec.InputShape = g.in.Shape()
		spec.OutputShape = g.out.Shape()
		spec.Parameters["input_channels"] = g.in.Channels
		spec.ParameterCount = int64(g.Kernel*g.in.Channels*g.Kernels + g.Kernels)
	}
	return spec
}

func (g *Conv1D) Clone() Gene {
	clone := *g
	return &clone
}

// Conv2D convolves over height and width.
type Conv2D struct {
	base
	Kernel     [2]int
	Stride     [2]int
	Kernels    int
	Activation Activation
}

func NewConv2D(kernel, stride [2]int, kernels int, activation Activation) (*Conv2D, error) {
	if kernel[0] <= 0 || kernel[1] <= 0 || stride[0] <= 0 || stride[1] <= 0 || kernels <= 0 {
		return nil, fmt.Errorf("%w: conv2d kernel=%v stride=%v kernels=%d", ErrConstructionPrecondition, kernel, stride, kernels)
	}
	return &Conv2D{Kernel: kernel, Stride: stride, Kernels: kernels, Activation: activation}, nil
}

func (g *Conv2D) Type() Type { return TypeConv2D }

func (g *Conv2D) CompatibleWith(prev Gene) bool {
	if prev == nil {
		return false
	}
	switch prev.Type() {
	case TypeInput, TypeConv2D, TypePool2D:
	default:
		return false
	}
	dim, ok := spatialPrev(prev, Kind2D)
	return ok && g.Kernel[0] <= dim.Height && g.Kernel[1] <= dim.Width
}

func (g *Conv2D) PropagateDimension(prev Dimension) (Dimension, error) {
	if prev.Kind != Kind2D {
		return Dimension{}, fmt.Errorf("%w: conv2d expects a 2d predecessor, got %s", ErrShape, prev.Kind)
	}
	height := outputExtent(prev.Height, g.Kernel[0], g.Stride[0])
	width := outputExtent(prev.Width, g.Kernel[1], g.Stride[1])
	if height <= 0 || width <= 0 {
		return Dimension{}, fmt.Errorf("%w: conv2d kernel %v over %dx%d", ErrExhaustedExtent, g.Kernel, prev.Height, prev.Width)
	}
	return Dim2D(height, width, g.Kernels), nil
}

// Mutate keeps kernels square and strides uniform, matching what the
// generator samples.
func (g *Conv2D) Mutate(rng *rand.Rand, bounds Bounds, prev, next Gene) error {
	return acceptMutation(rng, bounds, g, prev, next,
		func() Gene {
			trial := *g
			switch rng.Intn(3) {
			case 0:
				k := RandIntInclusive(rng, bounds.KernelWidth.Min, squareCap(bounds.KernelWidth, prev))
				trial.Kernel = [2]int{k, k}
			case 1:
				s := RandIntInclusive(rng, bounds.Stride.Min, bounds.Stride.Max)
				trial.Stride = [2]int{s, s}
			default:
				trial.Kernels = RandIntInclusive(rng, bounds.Kernels.Min, bounds.Kernels.Max)
			}
			return &trial
		},
		func(t Gene) bool {
			c := t.(*Conv2D)
			return c.Kernel == g.Kernel && c.Stride == g.Stride && c.Kernels == g.Kernels
		},
		func(t Gene) { *g = *t.(*Conv2D) },
	)
}

func (g *Conv2D) Materialize(nameSuffix string) LayerSpec {
	spec := LayerSpec{
		Kind:       LayerConv2D,
		Name:       layerName("conv2d", nameSuffix),
		Activation: g.Activation,
		Parameters: map[string]any{
			"kernel_size":     []int{g.Kernel[0], g.Kernel[1]},
			"stride":          []int{g.Stride[0], g.Stride[1]},
			"output_channels": g.Kernels,
			"padding":         "valid",
		},
	}
	if g.bound {
		spec.InputShape = g.in.Shape()
		spec.OutputShape = g.out.Shape()
		spec.Parameters["input_channels"] = g.in.Channels
		spec.ParameterCount = int64(g.Kernel[0]*g.Kernel[1]*g.in.Channels*g.Kernels + g.Kernels)
	}
	return spec
}

func (g *Conv2D) Clone() Gene {
	clone := *g
	return &clone
}

// squareCap bounds a square window by the smaller spatial axis of prev.
func squareCap(r Range, prev Gene) int {
	limit := extentCap(r, prev)
	if dim, ok := spatialPrev(prev, Kind2D); ok {
		limit = minOf(limit, dim.Width)
	}
	return limit
}
