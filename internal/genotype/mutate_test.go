package genotype

import (
	"errors"
	"math/rand"
	"testing"

	"cnnevo/internal/gene"
)

func TestMutateGeneReturnsValidNeighbour(t *testing.T) {
	g := sampleGenotype(t)
	before := Signature(g)
	successes := 0
	for seed := int64(1); seed <= 30; seed++ {
		for index := 1; index < g.Len(); index++ {
			mutated, err := MutateGene(rand.New(rand.NewSource(seed)), gene.DefaultBounds(), g, index)
			if err != nil {
				var failure *MutationFailure
				if !errors.As(err, &failure) {
					t.Fatalf("seed %d index %d: expected mutation failure value, got %v", seed, index, err)
				}
				continue
			}
			successes++
			if err := mutated.Validate(); err != nil {
				t.Fatalf("seed %d index %d: mutated genotype invalid: %v", seed, index, err)
			}
			if Signature(mutated) == before {
				t.Fatalf("seed %d index %d: mutation left genotype unchanged", seed, index)
			}
			for i := range g.Genes {
				if mutated.Genes[i].Type() != g.Genes[i].Type() {
					t.Fatalf("seed %d index %d: gene %d changed type", seed, index, i)
				}
			}
		}
	}
	if successes == 0 {
		t.Fatal("expected at least one successful mutation")
	}
	if Signature(g) != before {
		t.Fatalf("original genotype modified: %s", Signature(g))
	}
}

func TestMutateGeneRejectsBadTargets(t *testing.T) {
	g := sampleGenotype(t)
	rng := rand.New(rand.NewSource(1))
	for _, index := range []int{-1, 0, g.Len()} {
		if _, err := MutateGene(rng, gene.DefaultBounds(), g, index); !errors.Is(err, gene.ErrConstructionPrecondition) {
			t.Fatalf("index %d: expected precondition error, got %v", index, err)
		}
	}
	if _, err := MutateGene(nil, gene.DefaultBounds(), g, 1); !errors.Is(err, gene.ErrConstructionPrecondition) {
		t.Fatalf("expected precondition error for nil rng, got %v", err)
	}
	if _, err := MutateGene(rng, gene.Bounds{}, g, 1); !errors.Is(err, gene.ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}
}

func TestMutateGeneReportsNoChoice(t *testing.T) {
	g, err := New(gene.Dim1D(4, 1))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := g.Append(mustGene(gene.NewPool1D(2, 1))); err != nil {
		t.Fatalf("append: %v", err)
	}
	bounds := gene.DefaultBounds()
	bounds.PoolSize = gene.Range{Min: 2, Max: 2}
	bounds.PoolStride = gene.Range{Min: 1, Max: 1}

	_, err = MutateGene(rand.New(rand.NewSource(1)), bounds, g, 1)
	var failure *MutationFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected mutation failure, got %v", err)
	}
	if failure.Reason != ReasonNoMutationChoice || failure.Index != 1 || failure.Gene != gene.TypePool1D {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if !errors.Is(err, gene.ErrNoMutationChoice) {
		t.Fatalf("expected ErrNoMutationChoice in chain, got %v", err)
	}
}
