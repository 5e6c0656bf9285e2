package genotype

import (
	"fmt"
	"math/rand"

	"cnnevo/internal/gene"
)

// MutationFailure reports that no legal resample was found for a gene. The
// genotype passed to MutateGene is unchanged.
type MutationFailure struct {
	Reason FailureReason
	Index  int
	Gene   gene.Type
	Err    error
}

func (f *MutationFailure) Error() string {
	return fmt.Sprintf("mutation failed at gene %d (%s): %s: %v", f.Index, f.Gene, f.Reason, f.Err)
}

func (f *MutationFailure) Unwrap() error {
	return f.Err
}

// MutateGene returns a copy of g in which the gene at index has new
// parameters. The copy is rebound from index onward, so every downstream gene
// must still accept its new predecessor. Each of bounds.Attempts() rounds
// starts from a fresh copy.
func MutateGene(rng *rand.Rand, bounds gene.Bounds, g Genotype, index int) (Genotype, error) {
	if rng == nil {
		return Genotype{}, fmt.Errorf("%w: random source is required", gene.ErrConstructionPrecondition)
	}
	if index < 0 || index >= len(g.Genes) {
		return Genotype{}, fmt.Errorf("%w: gene index %d out of range [0, %d)", gene.ErrConstructionPrecondition, index, len(g.Genes))
	}
	if index == 0 || g.Genes[index].Type() == gene.TypeInput {
		return Genotype{}, fmt.Errorf("%w: gene %d is the input gene", gene.ErrConstructionPrecondition, index)
	}
	if err := bounds.Validate(); err != nil {
		return Genotype{}, err
	}

	var lastErr error
	for attempt := 0; attempt < bounds.Attempts(); attempt++ {
		trial := g.Clone()
		target := trial.Genes[index]
		var next gene.Gene
		if index+1 < len(trial.Genes) {
			next = trial.Genes[index+1]
		}
		if err := target.Mutate(rng, bounds, trial.Genes[index-1], next); err != nil {
			lastErr = err
			continue
		}
		if err := trial.Propagate(index + 1); err != nil {
			lastErr = err
			continue
		}
		if err := trial.Validate(); err != nil {
			lastErr = err
			continue
		}
		return trial, nil
	}
	return Genotype{}, &MutationFailure{
		Reason: reasonFor(lastErr),
		Index:  index,
		Gene:   g.Genes[index].Type(),
		Err:    lastErr,
	}
}
