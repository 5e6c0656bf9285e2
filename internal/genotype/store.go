package genotype

import (
	"context"
	"fmt"

	"cnnevo/internal/model"
	"cnnevo/internal/storage"
)

// SavePopulationSnapshot stores every record and the population that lists
// them. Genotypes that belonged to an earlier snapshot of the same population
// and are absent now are deleted.
func SavePopulationSnapshot(ctx context.Context, store storage.Store, populationID string, generation int, records []model.GenotypeRecord) error {
	if store == nil {
		return fmt.Errorf("store is required")
	}
	if populationID == "" {
		return fmt.Errorf("population id is required")
	}

	ids := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("genotype id is required")
		}
		if err := store.SaveGenotype(ctx, rec); err != nil {
			return err
		}
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		ids = append(ids, rec.ID)
	}

	if err := reconcilePopulationMembership(ctx, store, populationID, seen); err != nil {
		return err
	}

	return store.SavePopulation(ctx, model.Population{
		VersionedRecord: storage.CurrentVersion(),
		ID:              populationID,
		GenotypeIDs:     ids,
		Generation:      generation,
	})
}

// LoadPopulationSnapshot reads a population and rebuilds its genotypes.
func LoadPopulationSnapshot(ctx context.Context, store storage.Store, populationID string) (model.Population, []Genotype, error) {
	if store == nil {
		return model.Population{}, nil, fmt.Errorf("store is required")
	}
	if populationID == "" {
		return model.Population{}, nil, fmt.Errorf("population id is required")
	}

	pop, ok, err := store.GetPopulation(ctx, populationID)
	if err != nil {
		return model.Population{}, nil, err
	}
	if !ok {
		return model.Population{}, nil, fmt.Errorf("population not found: %s", populationID)
	}

	genotypes := make([]Genotype, 0, len(pop.GenotypeIDs))
	for _, id := range pop.GenotypeIDs {
		g, err := Load(ctx, store, id)
		if err != nil {
			return model.Population{}, nil, fmt.Errorf("population %s: %w", populationID, err)
		}
		genotypes = append(genotypes, g)
	}
	return pop, genotypes, nil
}

// DeletePopulationSnapshot removes a population and the genotypes it lists.
func DeletePopulationSnapshot(ctx context.Context, store storage.Store, populationID string) error {
	if store == nil {
		return fmt.Errorf("store is required")
	}
	if populationID == "" {
		return fmt.Errorf("population id is required")
	}
	pop, ok, err := store.GetPopulation(ctx, populationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("population not found: %s", populationID)
	}
	for _, id := range pop.GenotypeIDs {
		if err := store.DeleteGenotype(ctx, id); err != nil {
			return err
		}
	}
	return store.DeletePopulation(ctx, populationID)
}

// Load reads one genotype record and rebuilds it.
func Load(ctx context.Context, store storage.Store, id string) (Genotype, error) {
	rec, ok, err := store.GetGenotype(ctx, id)
	if err != nil {
		return Genotype{}, err
	}
	if !ok {
		return Genotype{}, fmt.Errorf("genotype not found: %s", id)
	}
	return FromRecord(rec)
}

func reconcilePopulationMembership(ctx context.Context, store storage.Store, populationID string, keep map[string]struct{}) error {
	population, ok, err := store.GetPopulation(ctx, populationID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	for _, id := range population.GenotypeIDs {
		if _, stillPresent := keep[id]; stillPresent {
			continue
		}
		if err := store.DeleteGenotype(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
