package genotype

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"cnnevo/internal/gene"
)

var ErrInvalidConfig = errors.New("invalid generator config")

const defaultMaxDepth = 128

// FailureReason classifies why an attempt produced no genotype.
type FailureReason string

const (
	ReasonIncompatibleAdjacency  FailureReason = "incompatible_adjacency"
	ReasonExhaustedSpatialExtent FailureReason = "exhausted_spatial_extent"
	ReasonShape                  FailureReason = "shape"
	ReasonNoMutationChoice       FailureReason = "no_mutation_choice"
)

func reasonFor(err error) FailureReason {
	switch {
	case errors.Is(err, gene.ErrExhaustedExtent):
		return ReasonExhaustedSpatialExtent
	case errors.Is(err, gene.ErrShape):
		return ReasonShape
	case errors.Is(err, gene.ErrNoMutationChoice):
		return ReasonNoMutationChoice
	default:
		return ReasonIncompatibleAdjacency
	}
}

// GenerationFailure reports an aborted generation attempt. No partial
// genotype accompanies it.
type GenerationFailure struct {
	Reason FailureReason
	Index  int
	Gene   gene.Type
	Err    error
}

func (f *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed at gene %d (%s): %s: %v", f.Index, f.Gene, f.Reason, f.Err)
}

func (f *GenerationFailure) Unwrap() error {
	return f.Err
}

// Probabilities are the continuation probabilities of each layer family.
type Probabilities struct {
	Conv         float64
	Pool         float64
	FullyConnect float64
}

func (p Probabilities) Validate() error {
	for _, v := range []struct {
		name string
		p    float64
	}{{"conv", p.Conv}, {"pool", p.Pool}, {"fully connected", p.FullyConnect}} {
		if v.p < 0 || v.p > 1 || math.IsNaN(v.p) {
			return fmt.Errorf("%w: %s probability %v outside [0, 1]", ErrInvalidConfig, v.name, v.p)
		}
	}
	return nil
}

// Generator builds random genotypes. Every draw comes from Rand, in this
// order per conv iteration: continuation, kernel size, stride, kernel count,
// pool continuation, pool size, pool stride. The dense phase draws
// continuation then unit count. A fixed seed therefore reproduces the same
// genotype.
type Generator struct {
	Bounds gene.Bounds
	Rand   *rand.Rand
	// OutputSize appends a softmax dense gene of this size when positive.
	OutputSize int
	// MaxDepth stops both phases once the chain holds this many genes.
	MaxDepth int
	Logger   *slog.Logger
}

// GenerateGenotype runs one generation attempt with default bounds.
func GenerateGenotype(rng *rand.Rand, input gene.Dimension, p Probabilities) (Genotype, error) {
	g := Generator{Bounds: gene.DefaultBounds(), Rand: rng}
	return g.Generate(input, p)
}

// Generate runs one attempt. An attempt that draws an illegal gene returns a
// *GenerationFailure; retrying is the caller's decision.
func (g *Generator) Generate(input gene.Dimension, p Probabilities) (Genotype, error) {
	if g == nil || g.Rand == nil {
		return Genotype{}, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	if err := p.Validate(); err != nil {
		return Genotype{}, err
	}
	if err := g.Bounds.Validate(); err != nil {
		return Genotype{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if g.OutputSize < 0 {
		return Genotype{}, fmt.Errorf("%w: output size %d", ErrInvalidConfig, g.OutputSize)
	}

	out, err := New(input)
	if err != nil {
		return Genotype{}, err
	}
	log := g.logger()
	rng := g.Rand
	b := g.Bounds
	is2D := input.Kind == gene.Kind2D
	log.Debug("generating genotype", "input", input.String(), "conv_prob", p.Conv, "pool_prob", p.Pool, "fc_prob", p.FullyConnect)

	for rng.Float64() < p.Conv {
		if out.Len() >= g.maxDepth() {
			log.Debug("conv phase stopped at max depth", "genes", out.Len())
			break
		}
		extent := leadingExtent(out.Tail())
		if extent < b.KernelWidth.Min {
			log.Debug("conv phase stopped: extent below minimum kernel", "extent", extent)
			break
		}
		conv, err := g.sampleConv(extent, is2D)
		if err != nil {
			return Genotype{}, err
		}
		if err := g.extend(&out, conv); err != nil {
			return Genotype{}, err
		}

		if rng.Float64() < p.Pool {
			extent = leadingExtent(out.Tail())
			if extent < b.PoolSize.Min {
				log.Debug("conv phase stopped: extent below minimum pool", "extent", extent)
				break
			}
			pool, err := g.samplePool(extent, is2D)
			if err != nil {
				return Genotype{}, err
			}
			if err := g.extend(&out, pool); err != nil {
				return Genotype{}, err
			}
		}
	}

	for rng.Float64() < p.FullyConnect {
		if out.Len() >= g.maxDepth() {
			log.Debug("dense phase stopped at max depth", "genes", out.Len())
			break
		}
		units := gene.RandIntInclusive(rng, b.FullyConnected.Min, b.FullyConnected.Max)
		dense, err := gene.NewFullyConnected(units, b.DenseActivation)
		if err != nil {
			return Genotype{}, err
		}
		if err := g.extend(&out, dense); err != nil {
			return Genotype{}, err
		}
	}

	if g.OutputSize > 0 {
		head, err := gene.NewFullyConnected(g.OutputSize, gene.ActivationSoftmax)
		if err != nil {
			return Genotype{}, err
		}
		if err := g.extend(&out, head); err != nil {
			return Genotype{}, err
		}
	}

	log.Debug("genotype generated", "genes", out.Len())
	return out, nil
}

func (g *Generator) sampleConv(extent int, is2D bool) (gene.Gene, error) {
	b := g.Bounds
	kernel := gene.RandIntInclusive(g.Rand, b.KernelWidth.Min, min(b.KernelWidth.Max, extent))
	stride := gene.RandIntInclusive(g.Rand, b.Stride.Min, b.Stride.Max)
	kernels := gene.RandIntInclusive(g.Rand, b.Kernels.Min, b.Kernels.Max)
	g.logger().Debug("sampled conv", "kernel", kernel, "stride", stride, "kernels", kernels, "2d", is2D)
	if is2D {
		return gene.NewConv2D([2]int{kernel, kernel}, [2]int{stride, stride}, kernels, b.ConvActivation)
	}
	return gene.NewConv1D(kernel, stride, kernels, b.ConvActivation)
}

func (g *Generator) samplePool(extent int, is2D bool) (gene.Gene, error) {
	b := g.Bounds
	size := gene.RandIntInclusive(g.Rand, b.PoolSize.Min, min(b.PoolSize.Max, extent))
	stride := gene.RandIntInclusive(g.Rand, b.PoolStride.Min, b.PoolStride.Max)
	g.logger().Debug("sampled pool", "size", size, "stride", stride, "2d", is2D)
	if is2D {
		return gene.NewPool2D([2]int{size, size}, [2]int{stride, stride}, b.Pool2DRule)
	}
	return gene.NewPool1D(size, stride)
}

// extend appends candidate or converts the rejection into a failure value.
func (g *Generator) extend(out *Genotype, candidate gene.Gene) error {
	index := out.Len()
	tail := out.Tail()
	if !candidate.CompatibleWith(tail) {
		g.logger().Debug("candidate rejected", "index", index, "gene", candidate.Type().String(), "tail", tail.Type().String())
		return &GenerationFailure{
			Reason: ReasonIncompatibleAdjacency,
			Index:  index,
			Gene:   candidate.Type(),
			Err:    fmt.Errorf("%w: %s cannot follow %s", gene.ErrIncompatibleAdjacency, candidate.Type(), tail.Type()),
		}
	}
	if err := gene.Bind(candidate, tail); err != nil {
		g.logger().Debug("candidate failed to bind", "index", index, "gene", candidate.Type().String(), "err", err)
		return &GenerationFailure{Reason: reasonFor(err), Index: index, Gene: candidate.Type(), Err: err}
	}
	out.Genes = append(out.Genes, candidate)
	return nil
}

func (g *Generator) maxDepth() int {
	if g.MaxDepth <= 0 {
		return defaultMaxDepth
	}
	return g.MaxDepth
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.Logger
}

func leadingExtent(tail gene.Gene) int {
	if tail == nil {
		return 0
	}
	dim, _ := tail.Dimension()
	return dim.LeadingExtent()
}
