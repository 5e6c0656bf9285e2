// Package genotype builds, validates and mutates ordered gene chains that
// describe one candidate CNN architecture.
package genotype

import (
	"errors"
	"fmt"
	"strconv"

	"cnnevo/internal/gene"
)

var ErrEmptyGenotype = errors.New("genotype has no genes")

// Genotype is an ordered gene chain rooted at exactly one Input gene.
type Genotype struct {
	ID        string
	ParentID  string
	Operation string
	Genes     []gene.Gene
}

// New returns a genotype holding only the input gene for dim.
func New(dim gene.Dimension) (Genotype, error) {
	root, err := gene.NewInput(dim)
	if err != nil {
		return Genotype{}, err
	}
	return Genotype{Genes: []gene.Gene{root}}, nil
}

func (g Genotype) Len() int {
	return len(g.Genes)
}

// Tail is the last gene, or nil for an empty genotype.
func (g Genotype) Tail() gene.Gene {
	if len(g.Genes) == 0 {
		return nil
	}
	return g.Genes[len(g.Genes)-1]
}

// InputShape is the root gene's dimension.
func (g Genotype) InputShape() (gene.Dimension, error) {
	if len(g.Genes) == 0 {
		return gene.Dimension{}, ErrEmptyGenotype
	}
	dim, _ := g.Genes[0].Dimension()
	return dim, nil
}

// OutputShape is the tail gene's bound dimension.
func (g Genotype) OutputShape() (gene.Dimension, error) {
	tail := g.Tail()
	if tail == nil {
		return gene.Dimension{}, ErrEmptyGenotype
	}
	dim, ok := tail.Dimension()
	if !ok {
		return gene.Dimension{}, fmt.Errorf("gene %d (%s): %w", len(g.Genes)-1, tail.Type(), gene.ErrUnbound)
	}
	return dim, nil
}

// Append binds next to the current tail and adds it to the chain.
func (g *Genotype) Append(next gene.Gene) error {
	tail := g.Tail()
	if tail == nil {
		return ErrEmptyGenotype
	}
	if err := gene.Bind(next, tail); err != nil {
		return fmt.Errorf("gene %d (%s): %w", len(g.Genes), next.Type(), err)
	}
	g.Genes = append(g.Genes, next)
	return nil
}

// Validate checks the chain invariant: one leading input gene, every other
// gene compatible with its predecessor and holding the dimension propagation
// gives it.
func (g Genotype) Validate() error {
	if len(g.Genes) == 0 {
		return ErrEmptyGenotype
	}
	if g.Genes[0] == nil || g.Genes[0].Type() != gene.TypeInput {
		return fmt.Errorf("gene 0: %w: genotype must start with an input gene", gene.ErrConstructionPrecondition)
	}
	for i := 1; i < len(g.Genes); i++ {
		cur, prev := g.Genes[i], g.Genes[i-1]
		if cur == nil {
			return fmt.Errorf("gene %d: %w: nil gene", i, gene.ErrConstructionPrecondition)
		}
		if cur.Type() == gene.TypeInput {
			return fmt.Errorf("gene %d: %w: input gene after position 0", i, gene.ErrConstructionPrecondition)
		}
		if !cur.CompatibleWith(prev) {
			return fmt.Errorf("gene %d (%s after %s): %w", i, cur.Type(), prev.Type(), gene.ErrIncompatibleAdjacency)
		}
		in, _ := prev.Dimension()
		want, err := cur.PropagateDimension(in)
		if err != nil {
			return fmt.Errorf("gene %d (%s): %w", i, cur.Type(), err)
		}
		got, ok := cur.Dimension()
		if !ok {
			return fmt.Errorf("gene %d (%s): %w", i, cur.Type(), gene.ErrUnbound)
		}
		if got != want {
			return fmt.Errorf("gene %d (%s): %w: holds %s, chain gives %s", i, cur.Type(), gene.ErrShape, got, want)
		}
	}
	return nil
}

// Propagate rebinds every gene from position from onward. On error the
// genotype is left partly rebound and should be discarded.
func (g Genotype) Propagate(from int) error {
	if len(g.Genes) == 0 {
		return ErrEmptyGenotype
	}
	if from < 1 {
		from = 1
	}
	for i := from; i < len(g.Genes); i++ {
		if err := gene.Bind(g.Genes[i], g.Genes[i-1]); err != nil {
			return fmt.Errorf("gene %d (%s): %w", i, g.Genes[i].Type(), err)
		}
	}
	return nil
}

// Clone deep-copies the gene chain.
func (g Genotype) Clone() Genotype {
	out := g
	out.Genes = make([]gene.Gene, len(g.Genes))
	for i, gn := range g.Genes {
		out.Genes[i] = gn.Clone()
	}
	return out
}

// Materialize lays the chain out as layer specs for an external builder.
func (g Genotype) Materialize() (gene.ModelSpec, error) {
	if err := g.Validate(); err != nil {
		return gene.ModelSpec{}, err
	}
	in, _ := g.InputShape()
	out, _ := g.OutputShape()
	spec := gene.ModelSpec{
		InputShape:  in.Shape(),
		OutputShape: out.Shape(),
		Layers:      make([]gene.LayerSpec, 0, len(g.Genes)),
	}
	for i, gn := range g.Genes {
		layer := gn.Materialize(strconv.Itoa(i))
		spec.TotalParameters += layer.ParameterCount
		spec.Layers = append(spec.Layers, layer)
	}
	return spec, nil
}

// Counts tallies genes per type.
func (g Genotype) Counts() map[gene.Type]int {
	counts := make(map[gene.Type]int, len(g.Genes))
	for _, gn := range g.Genes {
		counts[gn.Type()]++
	}
	return counts
}
