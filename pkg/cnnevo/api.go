// Package cnnevo is the public entry point for generating, mutating and
// exporting CNN genotypes.
package cnnevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"
	"github.com/prometheus/client_golang/prometheus"

	"cnnevo/internal/evo"
	"cnnevo/internal/export"
	"cnnevo/internal/gene"
	"cnnevo/internal/genotype"
	"cnnevo/internal/model"
	"cnnevo/internal/storage"
)

const (
	defaultDBPath         = "cnnevo.db"
	defaultMaxAttempts    = 10
	defaultMutateOperator = "mutate_random_gene"
	createdAtLayout       = "%Y-%m-%dT%H:%M:%SZ"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrAttemptsExhausted = errors.New("generation attempts exhausted")
)

type Options struct {
	StoreKind string
	DBPath    string
	// Registerer receives the client's metrics. A private registry is used
	// when nil.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
	Now        func() time.Time
}

type Client struct {
	store    storage.Store
	metrics  *metrics
	gatherer prometheus.Gatherer
	log      *slog.Logger
	now      func() time.Time
}

type GenerateRequest struct {
	PopulationID     string
	InputShape       []int
	Count            int
	Seed             int64
	Workers          int
	MaxAttempts      int
	ConvProb         float64
	PoolProb         float64
	FullyConnectProb float64
	OutputSize       int
	MaxDepth         int
	// Unique drops genotypes whose fingerprint already appeared earlier in
	// the same request.
	Unique bool
	Bounds *gene.Bounds
}

type GenotypeSummary struct {
	ID           string
	ParentID     string
	Operation    string
	CreatedAtUTC string
	Signature    string
	Fingerprint  string
	Genes        int
	Parameters   int64
	InputShape   []int
	OutputShape  []int
	// Attempts is the number of generation attempts the genotype needed.
	Attempts int
}

type GenerateSummary struct {
	PopulationID string
	Genotypes    []GenotypeSummary
	Attempts     int
	Failures     map[string]int
	Exhausted    int
	Duplicates   int
}

type MutateRequest struct {
	GenotypeID string
	Operator   string
	Index      int
	Seed       int64
	Bounds     *gene.Bounds
	// PopulationID, when set, adds the child to that population and advances
	// its generation.
	PopulationID string
}

type Description struct {
	Summary GenotypeSummary
	Model   gene.ModelSpec
	Record  model.GenotypeRecord
}

type ExportRequest struct {
	GenotypeID string
	Format     string
}

type PopulationItem struct {
	ID         string
	Generation int
	Size       int
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	reg := opts.Registerer
	var gatherer prometheus.Gatherer
	if reg == nil {
		private := prometheus.NewRegistry()
		reg, gatherer = private, private
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	m, err := newMetrics(reg)
	if err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}
	if err := evo.RegisterBuiltins(); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{store: store, metrics: m, gatherer: gatherer, log: log, now: now}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Gatherer exposes the client's metrics. It is nil when a caller-supplied
// Registerer is not also a Gatherer.
func (c *Client) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

func (c *Client) Operators() []string {
	return evo.ListOperators()
}

type slotResult struct {
	genotype genotype.Genotype
	attempts int
	failures map[genotype.FailureReason]int
	err      error
}

// Generate fills a new population. Slot i draws from its own source seeded
// with Seed+i, so the result does not depend on Workers.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateSummary, error) {
	input, err := gene.DimensionFromShape(req.InputShape)
	if err != nil {
		return GenerateSummary{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	bounds := gene.DefaultBounds()
	if req.Bounds != nil {
		bounds = *req.Bounds
	}
	if err := bounds.Validate(); err != nil {
		return GenerateSummary{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	probs := genotype.Probabilities{Conv: req.ConvProb, Pool: req.PoolProb, FullyConnect: req.FullyConnectProb}
	if err := probs.Validate(); err != nil {
		return GenerateSummary{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	populationID := req.PopulationID
	if populationID == "" {
		populationID = uuid.NewString()
	}

	results := c.generateSlots(ctx, input, probs, bounds, req, count, maxAttempts)

	summary := GenerateSummary{PopulationID: populationID, Failures: map[string]int{}}
	records := make([]model.GenotypeRecord, 0, count)
	seen := make(map[string]struct{}, count)
	createdAt := strftime.Format(createdAtLayout, c.now().UTC())
	for i, res := range results {
		if res.err != nil {
			return GenerateSummary{}, fmt.Errorf("slot %d: %w", i, res.err)
		}
		summary.Attempts += res.attempts
		for reason, n := range res.failures {
			summary.Failures[string(reason)] += n
		}
		if res.genotype.Len() == 0 {
			summary.Exhausted++
			continue
		}
		fingerprint := genotype.Fingerprint(res.genotype)
		if _, dup := seen[fingerprint]; dup {
			summary.Duplicates++
			if req.Unique {
				continue
			}
		}
		seen[fingerprint] = struct{}{}

		g := res.genotype
		g.ID = uuid.NewString()
		g.Operation = "generate"
		record, err := genotype.ToRecord(g)
		if err != nil {
			return GenerateSummary{}, err
		}
		record.CreatedAtUTC = createdAt
		item, err := summarize(g, record)
		if err != nil {
			return GenerateSummary{}, err
		}
		item.Attempts = res.attempts
		records = append(records, record)
		summary.Genotypes = append(summary.Genotypes, item)
	}

	if len(records) == 0 {
		return summary, fmt.Errorf("%w: %d slots, %d attempts each", ErrAttemptsExhausted, count, maxAttempts)
	}
	if err := genotype.SavePopulationSnapshot(ctx, c.store, populationID, 0, records); err != nil {
		return GenerateSummary{}, err
	}
	c.log.Info("population generated",
		"population", populationID,
		"genotypes", len(records),
		"attempts", summary.Attempts,
		"exhausted", summary.Exhausted,
	)
	return summary, nil
}

func (c *Client) generateSlots(
	ctx context.Context,
	input gene.Dimension,
	probs genotype.Probabilities,
	bounds gene.Bounds,
	req GenerateRequest,
	count, maxAttempts int,
) []slotResult {
	type job struct {
		idx int
	}

	jobs := make(chan job)
	results := make([]slotResult, count)

	workerCount := req.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > count {
		workerCount = count
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results[j.idx] = slotResult{err: err}
					continue
				}
				gen := genotype.Generator{
					Bounds:     bounds,
					Rand:       rand.New(rand.NewSource(req.Seed + int64(j.idx))),
					OutputSize: req.OutputSize,
					MaxDepth:   req.MaxDepth,
					Logger:     c.log,
				}
				results[j.idx] = c.generateSlot(&gen, input, probs, maxAttempts)
			}
		}()
	}

	for i := 0; i < count; i++ {
		jobs <- job{idx: i}
	}
	close(jobs)
	wg.Wait()
	return results
}

// generateSlot retries until an attempt succeeds or maxAttempts is spent. An
// exhausted slot returns an empty genotype and no error.
func (c *Client) generateSlot(gen *genotype.Generator, input gene.Dimension, probs genotype.Probabilities, maxAttempts int) slotResult {
	res := slotResult{failures: map[genotype.FailureReason]int{}}
	for res.attempts < maxAttempts {
		res.attempts++
		c.metrics.attempts.Inc()
		g, err := gen.Generate(input, probs)
		if err == nil {
			c.metrics.generated.Inc()
			res.genotype = g
			return res
		}
		var failure *genotype.GenerationFailure
		if !errors.As(err, &failure) {
			res.err = err
			return res
		}
		res.failures[failure.Reason]++
		c.metrics.failures.WithLabelValues(string(failure.Reason)).Inc()
		c.log.Debug("generation attempt failed", "attempt", res.attempts, "reason", string(failure.Reason), "index", failure.Index)
	}
	return res
}

// Mutate applies a registered operator to a stored genotype and stores the
// child under a new ID.
func (c *Client) Mutate(ctx context.Context, req MutateRequest) (GenotypeSummary, error) {
	if req.GenotypeID == "" {
		return GenotypeSummary{}, fmt.Errorf("%w: genotype id is required", ErrInvalidRequest)
	}
	name := req.Operator
	if name == "" {
		name = defaultMutateOperator
	}
	bounds := gene.DefaultBounds()
	if req.Bounds != nil {
		bounds = *req.Bounds
	}

	record, ok, err := c.store.GetGenotype(ctx, req.GenotypeID)
	if err != nil {
		return GenotypeSummary{}, err
	}
	if !ok {
		return GenotypeSummary{}, fmt.Errorf("genotype not found: %s", req.GenotypeID)
	}
	parent, err := genotype.FromRecord(record)
	if err != nil {
		return GenotypeSummary{}, err
	}

	op, err := evo.ResolveOperator(name, record.VersionedRecord, parent, evo.Params{
		Rand:   rand.New(rand.NewSource(req.Seed)),
		Bounds: bounds,
		Index:  req.Index,
	})
	if err != nil {
		c.metrics.mutations.WithLabelValues(name, "rejected").Inc()
		return GenotypeSummary{}, err
	}
	child, err := op.Apply(ctx, parent)
	if err != nil {
		c.metrics.mutations.WithLabelValues(name, "failed").Inc()
		return GenotypeSummary{}, err
	}
	c.metrics.mutations.WithLabelValues(name, "applied").Inc()

	child.ID = uuid.NewString()
	childRecord, err := genotype.ToRecord(child)
	if err != nil {
		return GenotypeSummary{}, err
	}
	childRecord.CreatedAtUTC = strftime.Format(createdAtLayout, c.now().UTC())
	if err := c.store.SaveGenotype(ctx, childRecord); err != nil {
		return GenotypeSummary{}, err
	}
	if req.PopulationID != "" {
		if err := c.addToPopulation(ctx, req.PopulationID, child.ID); err != nil {
			return GenotypeSummary{}, err
		}
	}
	c.log.Info("genotype mutated", "parent", parent.ID, "child", child.ID, "operator", name)
	return summarize(child, childRecord)
}

func (c *Client) addToPopulation(ctx context.Context, populationID, genotypeID string) error {
	pop, ok, err := c.store.GetPopulation(ctx, populationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("population not found: %s", populationID)
	}
	pop.GenotypeIDs = append(pop.GenotypeIDs, genotypeID)
	pop.Generation++
	return c.store.SavePopulation(ctx, pop)
}

func (c *Client) Describe(ctx context.Context, genotypeID string) (Description, error) {
	record, ok, err := c.store.GetGenotype(ctx, genotypeID)
	if err != nil {
		return Description{}, err
	}
	if !ok {
		return Description{}, fmt.Errorf("genotype not found: %s", genotypeID)
	}
	g, err := genotype.FromRecord(record)
	if err != nil {
		return Description{}, err
	}
	spec, err := g.Materialize()
	if err != nil {
		return Description{}, err
	}
	summary, err := summarize(g, record)
	if err != nil {
		return Description{}, err
	}
	return Description{Summary: summary, Model: spec, Record: record}, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) ([]byte, error) {
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	desc, err := c.Describe(ctx, req.GenotypeID)
	if err != nil {
		return nil, err
	}
	return export.Encode(desc.Model, format)
}

func (c *Client) Populations(ctx context.Context) ([]PopulationItem, error) {
	ids, err := c.store.ListPopulations(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]PopulationItem, 0, len(ids))
	for _, id := range ids {
		pop, ok, err := c.store.GetPopulation(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		items = append(items, PopulationItem{ID: pop.ID, Generation: pop.Generation, Size: len(pop.GenotypeIDs)})
	}
	return items, nil
}

func (c *Client) Population(ctx context.Context, populationID string) (PopulationItem, []GenotypeSummary, error) {
	pop, genotypes, err := genotype.LoadPopulationSnapshot(ctx, c.store, populationID)
	if err != nil {
		return PopulationItem{}, nil, err
	}
	items := make([]GenotypeSummary, 0, len(genotypes))
	for _, g := range genotypes {
		record, _, err := c.store.GetGenotype(ctx, g.ID)
		if err != nil {
			return PopulationItem{}, nil, err
		}
		item, err := summarize(g, record)
		if err != nil {
			return PopulationItem{}, nil, err
		}
		items = append(items, item)
	}
	return PopulationItem{ID: pop.ID, Generation: pop.Generation, Size: len(pop.GenotypeIDs)}, items, nil
}

func (c *Client) DeletePopulation(ctx context.Context, populationID string) error {
	return genotype.DeletePopulationSnapshot(ctx, c.store, populationID)
}

func summarize(g genotype.Genotype, record model.GenotypeRecord) (GenotypeSummary, error) {
	spec, err := g.Materialize()
	if err != nil {
		return GenotypeSummary{}, err
	}
	return GenotypeSummary{
		ID:           g.ID,
		ParentID:     g.ParentID,
		Operation:    g.Operation,
		CreatedAtUTC: record.CreatedAtUTC,
		Signature:    genotype.Signature(g),
		Fingerprint:  genotype.Fingerprint(g),
		Genes:        g.Len(),
		Parameters:   spec.TotalParameters,
		InputShape:   spec.InputShape,
		OutputShape:  spec.OutputShape,
	}, nil
}
