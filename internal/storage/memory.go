package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cnnevo/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	genotypes   map[string]model.GenotypeRecord
	populations map[string]model.Population
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.genotypes = make(map[string]model.GenotypeRecord)
	s.populations = make(map[string]model.Population)
	return nil
}

func (s *MemoryStore) SaveGenotype(_ context.Context, genotype model.GenotypeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.genotypes[genotype.ID] = cloneGenotypeRecord(genotype)
	return nil
}

func (s *MemoryStore) GetGenotype(_ context.Context, id string) (model.GenotypeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	genotype, ok := s.genotypes[id]
	if !ok {
		return model.GenotypeRecord{}, false, nil
	}
	return cloneGenotypeRecord(genotype), true, nil
}

func (s *MemoryStore) DeleteGenotype(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.genotypes, id)
	return nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, population model.Population) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	population.GenotypeIDs = append([]string(nil), population.GenotypeIDs...)
	s.populations[population.ID] = population
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, id string) (model.Population, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	population, ok := s.populations[id]
	if !ok {
		return model.Population{}, false, nil
	}
	population.GenotypeIDs = append([]string(nil), population.GenotypeIDs...)
	return population, true, nil
}

func (s *MemoryStore) DeletePopulation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.populations, id)
	return nil
}

func (s *MemoryStore) ListPopulations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.populations))
	for id := range s.populations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func cloneGenotypeRecord(in model.GenotypeRecord) model.GenotypeRecord {
	out := in
	out.InputShape = append([]int(nil), in.InputShape...)
	out.Genes = make([]model.GeneRecord, len(in.Genes))
	for i, g := range in.Genes {
		g.Kernel = append([]int(nil), g.Kernel...)
		g.Stride = append([]int(nil), g.Stride...)
		out.Genes[i] = g
	}
	return out
}
