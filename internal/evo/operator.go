// Package evo holds the mutation operators applied to genotypes and the
// registry that resolves them by name.
package evo

import (
	"context"

	"cnnevo/internal/genotype"
)

// Operator derives a new genotype from g. g itself is never modified.
type Operator interface {
	Name() string
	Apply(ctx context.Context, g genotype.Genotype) (genotype.Genotype, error)
}
