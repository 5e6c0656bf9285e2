package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"cnnevo/internal/gene"
	"cnnevo/internal/storage"
	"cnnevo/pkg/cnnevo"
)

const defaultDBPath = "cnnevo.db"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "generate":
		return runGenerate(ctx, args[1:])
	case "mutate":
		return runMutate(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "population":
		return runPopulation(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "operators":
		return runOperators(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// commonFlags are shared by every command that opens a store.
type commonFlags struct {
	storeKind *string
	dbPath    *string
	output    *string
	verbose   *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		storeKind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", defaultDBPath, "sqlite database path"),
		output:    fs.String("output", "auto", "output format: auto|table|json"),
		verbose:   fs.Bool("v", false, "enable debug logging on stderr"),
	}
}

func (f commonFlags) open(ctx context.Context) (*cnnevo.Client, error) {
	client, err := cnnevo.New(cnnevo.Options{
		StoreKind: *f.storeKind,
		DBPath:    *f.dbPath,
		Logger:    newLogger(*f.verbose),
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// jsonOutput resolves -output; auto prints tables only to a terminal.
func (f commonFlags) jsonOutput() (bool, error) {
	switch *f.output {
	case "json":
		return true, nil
	case "table":
		return false, nil
	case "auto", "":
		fd := os.Stdout.Fd()
		return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd), nil
	default:
		return false, fmt.Errorf("unsupported output format: %s", *f.output)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	fmt.Printf("initialized store=%s\n", *common.storeKind)
	return nil
}

func runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	common := addCommonFlags(fs)
	configPath := fs.String("config", "", "optional generate config path (.json, .yaml or .yml)")
	populationID := fs.String("pop-id", "", "population id (random when empty)")
	input := fs.String("input", "32x32x3", "input shape: LENGTHxCHANNELS or HEIGHTxWIDTHxCHANNELS")
	count := fs.Int("count", 10, "number of genotypes")
	seed := fs.Int64("seed", 1, "base random seed; slot i uses seed+i")
	workers := fs.Int("workers", 4, "parallel generation workers")
	attempts := fs.Int("attempts", 10, "generation attempts per genotype")
	convProb := fs.Float64("conv-prob", 0.7, "conv continuation probability")
	poolProb := fs.Float64("pool-prob", 0.5, "pool continuation probability")
	fcProb := fs.Float64("fc-prob", 0.5, "fully connected continuation probability")
	outputSize := fs.Int("output-size", 0, "append a softmax output layer of this size (0 disables)")
	maxDepth := fs.Int("max-depth", 0, "maximum genes per genotype (0 uses default)")
	unique := fs.Bool("unique", false, "drop genotypes with a repeated fingerprint")
	pool2DRule := fs.String("pool2d-rule", string(gene.Pool2DAll), "pool2d fit rule: all|any")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req cnnevo.GenerateRequest
	if *configPath != "" {
		loaded, err := loadGenerateRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
		req = loaded
	} else {
		shape, err := parseShape(*input)
		if err != nil {
			return err
		}
		req = cnnevo.GenerateRequest{
			PopulationID:     *populationID,
			InputShape:       shape,
			Count:            *count,
			Seed:             *seed,
			Workers:          *workers,
			MaxAttempts:      *attempts,
			ConvProb:         *convProb,
			PoolProb:         *poolProb,
			FullyConnectProb: *fcProb,
			OutputSize:       *outputSize,
			MaxDepth:         *maxDepth,
			Unique:           *unique,
		}
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if err := overrideFromFlags(&req, set, map[string]any{
		"pop-id":      *populationID,
		"input":       *input,
		"count":       *count,
		"seed":        *seed,
		"workers":     *workers,
		"attempts":    *attempts,
		"conv-prob":   *convProb,
		"pool-prob":   *poolProb,
		"fc-prob":     *fcProb,
		"output-size": *outputSize,
		"max-depth":   *maxDepth,
		"unique":      *unique,
		"pool2d-rule": *pool2DRule,
	}); err != nil {
		return err
	}

	asJSON, err := common.jsonOutput()
	if err != nil {
		return err
	}
	client, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Generate(ctx, req)
	if err != nil && !errors.Is(err, cnnevo.ErrAttemptsExhausted) {
		return err
	}
	if asJSON {
		if encErr := writeJSON(generateOutput(summary)); encErr != nil {
			return encErr
		}
		return err
	}

	fmt.Printf("population=%s genotypes=%d attempts=%d exhausted=%d duplicates=%d\n",
		summary.PopulationID, len(summary.Genotypes), summary.Attempts, summary.Exhausted, summary.Duplicates)
	for _, reason := range sortedKeys(summary.Failures) {
		fmt.Printf("  failure %s=%d\n", reason, summary.Failures[reason])
	}
	printGenotypeTable(summary.Genotypes)
	return err
}

func runMutate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mutate", flag.ContinueOnError)
	common := addCommonFlags(fs)
	id := fs.String("id", "", "genotype id")
	operator := fs.String("op", "mutate_random_gene", "mutation operator (see operators)")
	index := fs.Int("index", 1, "gene index for mutate_gene_at")
	seed := fs.Int64("seed", 1, "random seed")
	populationID := fs.String("pop-id", "", "population that receives the child (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("mutate requires --id")
	}

	asJSON, err := common.jsonOutput()
	if err != nil {
		return err
	}
	client, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	child, err := client.Mutate(ctx, cnnevo.MutateRequest{
		GenotypeID:   *id,
		Operator:     *operator,
		Index:        *index,
		Seed:         *seed,
		PopulationID: *populationID,
	})
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(genotypeOutput(child))
	}
	fmt.Printf("mutated parent=%s child=%s op=%s\n", child.ParentID, child.ID, child.Operation)
	printGenotypeTable([]cnnevo.GenotypeSummary{child})
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	common := addCommonFlags(fs)
	id := fs.String("id", "", "genotype id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("show requires --id")
	}

	asJSON, err := common.jsonOutput()
	if err != nil {
		return err
	}
	client, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	desc, err := client.Describe(ctx, *id)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(struct {
			Genotype genotypeItem   `json:"genotype"`
			Model    gene.ModelSpec `json:"model"`
		}{genotypeOutput(desc.Summary), desc.Model})
	}

	s := desc.Summary
	fmt.Printf("genotype=%s parent=%s op=%s created=%s fingerprint=%s\n", s.ID, orDash(s.ParentID), orDash(s.Operation), orDash(s.CreatedAtUTC), s.Fingerprint)
	fmt.Printf("signature=%s\n", s.Signature)
	for _, layer := range desc.Model.Layers {
		fmt.Printf("  %-10s %-10s in=%-12s out=%-12s params=%s\n",
			layer.Name, layer.Kind, formatShape(layer.InputShape), formatShape(layer.OutputShape), humanize.Comma(layer.ParameterCount))
	}
	fmt.Printf("total_params=%s\n", humanize.Comma(desc.Model.TotalParameters))
	return nil
}

func runPopulation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("population", flag.ContinueOnError)
	common := addCommonFlags(fs)
	id := fs.String("id", "", "population id (lists populations when empty)")
	deletePop := fs.Bool("delete", false, "delete the population and its genotypes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *deletePop && *id == "" {
		return errors.New("population --delete requires --id")
	}

	asJSON, err := common.jsonOutput()
	if err != nil {
		return err
	}
	client, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if *deletePop {
		if err := client.DeletePopulation(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("deleted population=%s\n", *id)
		return nil
	}

	if *id == "" {
		items, err := client.Populations(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			out := make([]populationItem, 0, len(items))
			for _, item := range items {
				out = append(out, populationItem{ID: item.ID, Generation: item.Generation, Size: item.Size})
			}
			return writeJSON(out)
		}
		if len(items) == 0 {
			fmt.Println("no populations found")
			return nil
		}
		for _, item := range items {
			fmt.Printf("population=%s generation=%d size=%d\n", item.ID, item.Generation, item.Size)
		}
		return nil
	}

	pop, members, err := client.Population(ctx, *id)
	if err != nil {
		return err
	}
	if asJSON {
		genotypes := make([]genotypeItem, 0, len(members))
		for _, m := range members {
			genotypes = append(genotypes, genotypeOutput(m))
		}
		return writeJSON(struct {
			populationItem
			Genotypes []genotypeItem `json:"genotypes"`
		}{populationItem{ID: pop.ID, Generation: pop.Generation, Size: pop.Size}, genotypes})
	}
	fmt.Printf("population=%s generation=%d size=%d\n", pop.ID, pop.Generation, pop.Size)
	printGenotypeTable(members)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := addCommonFlags(fs)
	id := fs.String("id", "", "genotype id")
	format := fs.String("format", "json", "export format: json|proto")
	outPath := fs.String("out", "", "output file (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("export requires --id")
	}

	client, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	data, err := client.Export(ctx, cnnevo.ExportRequest{GenotypeID: *id, Format: *format})
	if err != nil {
		return err
	}
	if *outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("exported genotype=%s format=%s path=%s bytes=%s\n", *id, *format, *outPath, humanize.Bytes(uint64(len(data))))
	return nil
}

func runOperators(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("operators", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	asJSON, err := common.jsonOutput()
	if err != nil {
		return err
	}
	client, err := cnnevo.New(cnnevo.Options{StoreKind: "memory", Logger: newLogger(*common.verbose)})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	names := client.Operators()
	if asJSON {
		return writeJSON(names)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

type genotypeItem struct {
	ID           string `json:"id"`
	ParentID     string `json:"parent_id,omitempty"`
	Operation    string `json:"operation,omitempty"`
	CreatedAtUTC string `json:"created_at_utc,omitempty"`
	Signature    string `json:"signature"`
	Fingerprint  string `json:"fingerprint"`
	Genes        int    `json:"genes"`
	Parameters   int64  `json:"parameters"`
	InputShape   []int  `json:"input_shape"`
	OutputShape  []int  `json:"output_shape"`
	Attempts     int    `json:"attempts,omitempty"`
}

type populationItem struct {
	ID         string `json:"id"`
	Generation int    `json:"generation"`
	Size       int    `json:"size"`
}

type generateItem struct {
	PopulationID string         `json:"population_id"`
	Attempts     int            `json:"attempts"`
	Exhausted    int            `json:"exhausted"`
	Duplicates   int            `json:"duplicates"`
	Failures     map[string]int `json:"failures"`
	Genotypes    []genotypeItem `json:"genotypes"`
}

func genotypeOutput(s cnnevo.GenotypeSummary) genotypeItem {
	return genotypeItem{
		ID:           s.ID,
		ParentID:     s.ParentID,
		Operation:    s.Operation,
		CreatedAtUTC: s.CreatedAtUTC,
		Signature:    s.Signature,
		Fingerprint:  s.Fingerprint,
		Genes:        s.Genes,
		Parameters:   s.Parameters,
		InputShape:   s.InputShape,
		OutputShape:  s.OutputShape,
		Attempts:     s.Attempts,
	}
}

func generateOutput(s cnnevo.GenerateSummary) generateItem {
	out := generateItem{
		PopulationID: s.PopulationID,
		Attempts:     s.Attempts,
		Exhausted:    s.Exhausted,
		Duplicates:   s.Duplicates,
		Failures:     s.Failures,
		Genotypes:    make([]genotypeItem, 0, len(s.Genotypes)),
	}
	for _, g := range s.Genotypes {
		out.Genotypes = append(out.Genotypes, genotypeOutput(g))
	}
	return out
}

func printGenotypeTable(items []cnnevo.GenotypeSummary) {
	for _, g := range items {
		fmt.Printf("  %s genes=%d params=%s out=%s %s\n", g.ID, g.Genes, humanize.Comma(g.Parameters), formatShape(g.OutputShape), g.Signature)
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatShape(shape []int) string {
	if len(shape) == 0 {
		return "-"
	}
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "x")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: cnnevoctl <init|generate|mutate|show|population|export|operators> [flags]", msg)
}
