// Package gene defines the layer descriptors that make up a CNN genotype and
// the adjacency and shape rules between them.
package gene

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

var (
	ErrShape                    = errors.New("shape mismatch")
	ErrIncompatibleAdjacency    = errors.New("incompatible adjacency")
	ErrConstructionPrecondition = errors.New("construction precondition violated")
	ErrExhaustedExtent          = errors.New("exhausted spatial extent")
	ErrNoMutationChoice         = errors.New("no mutation choice available")
	ErrUnbound                  = errors.New("gene has no dimension")
)

// Type is the closed set of gene variants.
type Type uint8

const (
	TypeInput Type = iota + 1
	TypeConv1D
	TypeConv2D
	TypePool1D
	TypePool2D
	TypeFullyConnected
)

var typeNames = map[Type]string{
	TypeInput:          "input",
	TypeConv1D:         "conv1d",
	TypeConv2D:         "conv2d",
	TypePool1D:         "pool1d",
	TypePool2D:         "pool2d",
	TypeFullyConnected: "fully_connected",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown gene type: %q", name)
}

// Gene is one layer descriptor. The interface is sealed: only the variants in
// this package implement it.
type Gene interface {
	Type() Type
	// Dimension is the gene's output shape. ok is false until the gene has
	// been bound to a predecessor.
	Dimension() (Dimension, bool)
	// CompatibleWith reports whether the gene may directly follow prev. It
	// never looks past prev.
	CompatibleWith(prev Gene) bool
	// PropagateDimension computes the output shape for the given predecessor
	// output without changing the gene.
	PropagateDimension(prev Dimension) (Dimension, error)
	// Mutate resamples the gene's parameters in place so that it still
	// follows prev and next still follows it. next may be nil.
	Mutate(rng *rand.Rand, bounds Bounds, prev, next Gene) error
	Materialize(nameSuffix string) LayerSpec
	Clone() Gene

	bind(in, out Dimension)
}

// Bind checks g against prev and stores the propagated output shape on g.
func Bind(g, prev Gene) error {
	if g == nil || prev == nil {
		return fmt.Errorf("%w: gene and predecessor are required", ErrConstructionPrecondition)
	}
	if g.Type() == TypeInput {
		return fmt.Errorf("%w: input gene cannot follow %s", ErrConstructionPrecondition, prev.Type())
	}
	if !g.CompatibleWith(prev) {
		return fmt.Errorf("%w: %s cannot follow %s", ErrIncompatibleAdjacency, g.Type(), prev.Type())
	}
	in, ok := prev.Dimension()
	if !ok {
		return fmt.Errorf("%w: predecessor %s", ErrUnbound, prev.Type())
	}
	out, err := g.PropagateDimension(in)
	if err != nil {
		return err
	}
	g.bind(in, out)
	return nil
}

// spatialPrev returns the predecessor's bound dimension when it has the
// requested kind.
func spatialPrev(prev Gene, kind DimensionKind) (Dimension, bool) {
	if prev == nil {
		return Dimension{}, false
	}
	dim, ok := prev.Dimension()
	if !ok || dim.Kind != kind {
		return Dimension{}, false
	}
	return dim, true
}

// base holds the shape state every non-input variant shares.
type base struct {
	in    Dimension
	out   Dimension
	bound bool
}

func (b *base) Dimension() (Dimension, bool) {
	return b.out, b.bound
}

func (b *base) bind(in, out Dimension) {
	b.in = in
	b.out = out
	b.bound = true
}
