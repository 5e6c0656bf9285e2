package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"cnnevo/internal/gene"
	"cnnevo/internal/genotype"
)

var ErrRandomSourceRequired = errors.New("random source is required")

// MutateGeneAt resamples the parameters of the gene at Index.
type MutateGeneAt struct {
	Rand   *rand.Rand
	Bounds gene.Bounds
	Index  int
}

func (o MutateGeneAt) Name() string {
	return "mutate_gene_at"
}

func (o MutateGeneAt) Apply(ctx context.Context, g genotype.Genotype) (genotype.Genotype, error) {
	if err := ctx.Err(); err != nil {
		return genotype.Genotype{}, err
	}
	if o.Rand == nil {
		return genotype.Genotype{}, ErrRandomSourceRequired
	}
	mutated, err := genotype.MutateGene(o.Rand, o.Bounds, g, o.Index)
	if err != nil {
		return genotype.Genotype{}, err
	}
	return derive(mutated, g, o.Name()), nil
}

// MutateRandomGene resamples one uniformly chosen non-input gene.
type MutateRandomGene struct {
	Rand   *rand.Rand
	Bounds gene.Bounds
}

func (o *MutateRandomGene) Name() string {
	return "mutate_random_gene"
}

func (o *MutateRandomGene) Apply(ctx context.Context, g genotype.Genotype) (genotype.Genotype, error) {
	if err := ctx.Err(); err != nil {
		return genotype.Genotype{}, err
	}
	if o == nil || o.Rand == nil {
		return genotype.Genotype{}, ErrRandomSourceRequired
	}
	if g.Len() < 2 {
		return genotype.Genotype{}, fmt.Errorf("%w: genotype has only its input gene", gene.ErrNoMutationChoice)
	}
	index := 1 + o.Rand.Intn(g.Len()-1)
	mutated, err := genotype.MutateGene(o.Rand, o.Bounds, g, index)
	if err != nil {
		return genotype.Genotype{}, err
	}
	return derive(mutated, g, o.Name()), nil
}

// AddFullyConnected appends a dense gene with a sampled unit count.
type AddFullyConnected struct {
	Rand   *rand.Rand
	Bounds gene.Bounds
}

func (o *AddFullyConnected) Name() string {
	return "add_fully_connected"
}

func (o *AddFullyConnected) Apply(ctx context.Context, g genotype.Genotype) (genotype.Genotype, error) {
	if err := ctx.Err(); err != nil {
		return genotype.Genotype{}, err
	}
	if o == nil || o.Rand == nil {
		return genotype.Genotype{}, ErrRandomSourceRequired
	}
	if err := o.Bounds.Validate(); err != nil {
		return genotype.Genotype{}, err
	}
	units := gene.RandIntInclusive(o.Rand, o.Bounds.FullyConnected.Min, o.Bounds.FullyConnected.Max)
	dense, err := gene.NewFullyConnected(units, o.Bounds.DenseActivation)
	if err != nil {
		return genotype.Genotype{}, err
	}
	mutated := g.Clone()
	if err := mutated.Append(dense); err != nil {
		return genotype.Genotype{}, err
	}
	return derive(mutated, g, o.Name()), nil
}

// RemoveTailGene drops the last gene. The input gene is never removed.
type RemoveTailGene struct{}

func (RemoveTailGene) Name() string {
	return "remove_tail_gene"
}

func (o RemoveTailGene) Apply(ctx context.Context, g genotype.Genotype) (genotype.Genotype, error) {
	if err := ctx.Err(); err != nil {
		return genotype.Genotype{}, err
	}
	if g.Len() < 2 {
		return genotype.Genotype{}, fmt.Errorf("%w: genotype has only its input gene", gene.ErrNoMutationChoice)
	}
	mutated := g.Clone()
	mutated.Genes = mutated.Genes[:len(mutated.Genes)-1]
	return derive(mutated, g, o.Name()), nil
}

// derive records lineage on a child. The caller assigns the child's ID.
func derive(child, parent genotype.Genotype, operation string) genotype.Genotype {
	child.ID = ""
	child.ParentID = parent.ID
	child.Operation = operation
	return child
}
