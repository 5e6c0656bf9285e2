package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"cnnevo/internal/gene"
	"cnnevo/internal/genotype"
	"cnnevo/internal/model"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

var (
	ErrOperatorExists       = errors.New("operator already registered")
	ErrOperatorNotFound     = errors.New("operator not found")
	ErrOperatorIncompatible = errors.New("operator incompatible with genotype")
	ErrVersionMismatch      = errors.New("operator version mismatch")
)

// Params carries the per-call inputs an operator factory may need.
type Params struct {
	Rand   *rand.Rand
	Bounds gene.Bounds
	Index  int
}

type Factory func(Params) Operator

type CompatibilityFn func(g genotype.Genotype) error

type OperatorSpec struct {
	Name          string
	Factory       Factory
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type registeredOperator struct {
	factory       Factory
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]registeredOperator
}{
	m: make(map[string]registeredOperator),
}

// RegisterOperator registers an operator factory with default schema and codec versions.
func RegisterOperator(name string, factory Factory) error {
	return RegisterOperatorWithSpec(OperatorSpec{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

// RegisterOperatorWithSpec registers an operator with explicit versioning and compatibility metadata.
func RegisterOperatorWithSpec(spec OperatorSpec) error {
	if spec.Name == "" {
		return errors.New("operator name is required")
	}
	if spec.Factory == nil {
		return errors.New("operator factory is required")
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, spec.Name)
	}

	operatorRegistry.m[spec.Name] = registeredOperator{
		factory:       spec.Factory,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	}
	return nil
}

// ResolveOperator builds a registered operator only if the record version and
// compatibility checks pass for g.
func ResolveOperator(name string, version model.VersionedRecord, g genotype.Genotype, params Params) (Operator, error) {
	operatorRegistry.mu.RLock()
	entry, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	if version.SchemaVersion != entry.schemaVersion || version.CodecVersion != entry.codecVersion {
		return nil, fmt.Errorf("%w: operator=%s expected(schema=%d codec=%d) got(schema=%d codec=%d)",
			ErrVersionMismatch,
			name,
			entry.schemaVersion,
			entry.codecVersion,
			version.SchemaVersion,
			version.CodecVersion,
		)
	}
	if entry.compatible != nil {
		if err := entry.compatible(g); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOperatorIncompatible, name, err)
		}
	}
	return entry.factory(params), nil
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterBuiltins adds the built-in operators that are not registered yet.
func RegisterBuiltins() error {
	builtins := []OperatorSpec{
		{
			Name:       "mutate_gene_at",
			Factory:    func(p Params) Operator { return MutateGeneAt{Rand: p.Rand, Bounds: p.Bounds, Index: p.Index} },
			Compatible: hasMutableGene,
		},
		{
			Name:       "mutate_random_gene",
			Factory:    func(p Params) Operator { return &MutateRandomGene{Rand: p.Rand, Bounds: p.Bounds} },
			Compatible: hasMutableGene,
		},
		{
			Name:    "add_fully_connected",
			Factory: func(p Params) Operator { return &AddFullyConnected{Rand: p.Rand, Bounds: p.Bounds} },
		},
		{
			Name:       "remove_tail_gene",
			Factory:    func(Params) Operator { return RemoveTailGene{} },
			Compatible: hasMutableGene,
		},
	}
	for _, spec := range builtins {
		spec.SchemaVersion = SupportedSchemaVersion
		spec.CodecVersion = SupportedCodecVersion
		if err := RegisterOperatorWithSpec(spec); err != nil && !errors.Is(err, ErrOperatorExists) {
			return err
		}
	}
	return nil
}

func hasMutableGene(g genotype.Genotype) error {
	if g.Len() < 2 {
		return errors.New("genotype has no gene besides its input")
	}
	return nil
}

func resetOperatorRegistryForTests() {
	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()
	operatorRegistry.m = make(map[string]registeredOperator)
}
