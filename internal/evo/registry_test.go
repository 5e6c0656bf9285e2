package evo

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"cnnevo/internal/gene"
	"cnnevo/internal/genotype"
	"cnnevo/internal/model"
)

type noopOperator struct{}

func (noopOperator) Name() string { return "noop" }

func (noopOperator) Apply(_ context.Context, g genotype.Genotype) (genotype.Genotype, error) {
	return g, nil
}

func noopFactory(Params) Operator { return noopOperator{} }

var currentVersion = model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion}

func TestRegisterAndResolveOperator(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterOperator("noop", noopFactory); err != nil {
		t.Fatalf("register: %v", err)
	}

	op, err := ResolveOperator("noop", currentVersion, genotype.Genotype{}, Params{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if op.Name() != "noop" {
		t.Fatalf("unexpected operator: %s", op.Name())
	}
}

func TestRegisterOperatorDuplicate(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterOperator("noop", noopFactory); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterOperator("noop", noopFactory); !errors.Is(err, ErrOperatorExists) {
		t.Fatalf("expected ErrOperatorExists, got: %v", err)
	}
}

func TestRegisterOperatorValidation(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterOperator("", noopFactory); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := RegisterOperator("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if err := RegisterOperatorWithSpec(OperatorSpec{
		Name:          "bad-version",
		Factory:       noopFactory,
		SchemaVersion: 99,
		CodecVersion:  1,
	}); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestResolveOperatorNotFound(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	_, err := ResolveOperator("missing", currentVersion, genotype.Genotype{}, Params{})
	if !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("expected ErrOperatorNotFound, got: %v", err)
	}
}

func TestResolveOperatorVersionMismatch(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterOperator("noop", noopFactory); err != nil {
		t.Fatalf("register: %v", err)
	}

	stale := model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion + 1}
	_, err := ResolveOperator("noop", stale, genotype.Genotype{}, Params{})
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestResolveBuiltinRejectsInputOnlyGenotype(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterBuiltins(); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	if err := RegisterBuiltins(); err != nil {
		t.Fatalf("second register builtins: %v", err)
	}

	bare, err := genotype.New(gene.Dim1D(16, 1))
	if err != nil {
		t.Fatalf("new genotype: %v", err)
	}
	params := Params{Rand: rand.New(rand.NewSource(1)), Bounds: gene.DefaultBounds()}
	if _, err := ResolveOperator("remove_tail_gene", currentVersion, bare, params); !errors.Is(err, ErrOperatorIncompatible) {
		t.Fatalf("expected ErrOperatorIncompatible, got: %v", err)
	}
	op, err := ResolveOperator("add_fully_connected", currentVersion, bare, params)
	if err != nil {
		t.Fatalf("resolve add_fully_connected: %v", err)
	}
	if op.Name() != "add_fully_connected" {
		t.Fatalf("unexpected operator: %s", op.Name())
	}
}

func TestListOperatorsSorted(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterBuiltins(); err != nil {
		t.Fatalf("register builtins: %v", err)
	}

	names := ListOperators()
	want := []string{"add_fully_connected", "mutate_gene_at", "mutate_random_gene", "remove_tail_gene"}
	if len(names) != len(want) {
		t.Fatalf("unexpected operator list: %+v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected operator list: %+v", names)
		}
	}
}
