package storage

import (
	"context"

	"cnnevo/internal/model"
)

// Store defines transaction-like persistence operations for genotypes and
// the populations that group them.
type Store interface {
	Init(ctx context.Context) error
	SaveGenotype(ctx context.Context, genotype model.GenotypeRecord) error
	GetGenotype(ctx context.Context, id string) (model.GenotypeRecord, bool, error)
	DeleteGenotype(ctx context.Context, id string) error
	SavePopulation(ctx context.Context, population model.Population) error
	GetPopulation(ctx context.Context, id string) (model.Population, bool, error)
	DeletePopulation(ctx context.Context, id string) error
	ListPopulations(ctx context.Context) ([]string, error)
}
