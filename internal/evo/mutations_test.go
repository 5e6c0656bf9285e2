package evo

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"cnnevo/internal/gene"
	"cnnevo/internal/genotype"
)

// conv1dGenotype is in(100x1) -> conv1d 20/2 x8 -> fc 32.
func conv1dGenotype(t *testing.T) genotype.Genotype {
	t.Helper()
	g, err := genotype.New(gene.Dim1D(100, 1))
	if err != nil {
		t.Fatalf("new genotype: %v", err)
	}
	conv, err := gene.NewConv1D(20, 2, 8, gene.ActivationReLU)
	if err != nil {
		t.Fatalf("conv1d: %v", err)
	}
	dense, err := gene.NewFullyConnected(32, gene.ActivationReLU)
	if err != nil {
		t.Fatalf("dense: %v", err)
	}
	for _, gn := range []gene.Gene{conv, dense} {
		if err := g.Append(gn); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	g.ID = "parent"
	return g
}

func TestMutateGeneAtRecordsLineage(t *testing.T) {
	parent := conv1dGenotype(t)
	op := MutateGeneAt{Rand: rand.New(rand.NewSource(2)), Bounds: gene.DefaultBounds(), Index: 1}
	child, err := op.Apply(context.Background(), parent)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if child.ParentID != "parent" || child.ID != "" || child.Operation != "mutate_gene_at" {
		t.Fatalf("unexpected lineage id=%q parent=%q op=%q", child.ID, child.ParentID, child.Operation)
	}
	if genotype.Signature(child) == genotype.Signature(parent) {
		t.Fatal("expected changed genotype")
	}
	if err := child.Validate(); err != nil {
		t.Fatalf("validate child: %v", err)
	}
}

func TestMutateGeneAtRejectsInputIndex(t *testing.T) {
	op := MutateGeneAt{Rand: rand.New(rand.NewSource(2)), Bounds: gene.DefaultBounds(), Index: 0}
	if _, err := op.Apply(context.Background(), conv1dGenotype(t)); !errors.Is(err, gene.ErrConstructionPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	op = MutateGeneAt{Bounds: gene.DefaultBounds(), Index: 1}
	if _, err := op.Apply(context.Background(), conv1dGenotype(t)); !errors.Is(err, ErrRandomSourceRequired) {
		t.Fatalf("expected ErrRandomSourceRequired, got %v", err)
	}
}

func TestMutateRandomGeneNeverTouchesInput(t *testing.T) {
	parent := conv1dGenotype(t)
	for seed := int64(1); seed <= 20; seed++ {
		op := &MutateRandomGene{Rand: rand.New(rand.NewSource(seed)), Bounds: gene.DefaultBounds()}
		child, err := op.Apply(context.Background(), parent)
		if err != nil {
			continue
		}
		in, _ := child.InputShape()
		if in != gene.Dim1D(100, 1) {
			t.Fatalf("seed %d: input changed to %s", seed, in)
		}
		if err := child.Validate(); err != nil {
			t.Fatalf("seed %d: validate: %v", seed, err)
		}
	}

	bare, _ := genotype.New(gene.Dim1D(10, 1))
	op := &MutateRandomGene{Rand: rand.New(rand.NewSource(1)), Bounds: gene.DefaultBounds()}
	if _, err := op.Apply(context.Background(), bare); !errors.Is(err, gene.ErrNoMutationChoice) {
		t.Fatalf("expected ErrNoMutationChoice, got %v", err)
	}
}

func TestAddFullyConnectedAppendsDenseGene(t *testing.T) {
	parent := conv1dGenotype(t)
	bounds := gene.DefaultBounds()
	bounds.FullyConnected = gene.Range{Min: 12, Max: 12}
	op := &AddFullyConnected{Rand: rand.New(rand.NewSource(1)), Bounds: bounds}
	child, err := op.Apply(context.Background(), parent)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if child.Len() != parent.Len()+1 {
		t.Fatalf("expected %d genes, got %d", parent.Len()+1, child.Len())
	}
	out, _ := child.OutputShape()
	if out != gene.Flat(12) {
		t.Fatalf("expected flat(12), got %s", out)
	}
	if parent.Len() != 3 {
		t.Fatal("parent modified")
	}
}

func TestRemoveTailGene(t *testing.T) {
	parent := conv1dGenotype(t)
	child, err := RemoveTailGene{}.Apply(context.Background(), parent)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if child.Len() != 2 || child.Tail().Type() != gene.TypeConv1D {
		t.Fatalf("unexpected child %s", genotype.Signature(child))
	}
	out, _ := child.OutputShape()
	if out != gene.Dim1D(41, 8) {
		t.Fatalf("expected 41x8 output, got %s", out)
	}

	bare, _ := genotype.New(gene.Dim1D(10, 1))
	if _, err := (RemoveTailGene{}).Apply(context.Background(), bare); !errors.Is(err, gene.ErrNoMutationChoice) {
		t.Fatalf("expected ErrNoMutationChoice, got %v", err)
	}
}

func TestOperatorsRespectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (RemoveTailGene{}).Apply(ctx, conv1dGenotype(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
