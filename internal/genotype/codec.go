package genotype

import (
	"fmt"

	"cnnevo/internal/gene"
	"cnnevo/internal/model"
	"cnnevo/internal/storage"
)

// ToRecord flattens g into its persisted form. Dimensions are not stored.
func ToRecord(g Genotype) (model.GenotypeRecord, error) {
	in, err := g.InputShape()
	if err != nil {
		return model.GenotypeRecord{}, err
	}
	record := model.GenotypeRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              g.ID,
		ParentID:        g.ParentID,
		Operation:       g.Operation,
		Fingerprint:     Fingerprint(g),
		InputShape:      in.Shape(),
		Genes:           make([]model.GeneRecord, 0, len(g.Genes)),
	}
	for i, gn := range g.Genes {
		rec, err := geneRecord(gn)
		if err != nil {
			return model.GenotypeRecord{}, fmt.Errorf("gene %d: %w", i, err)
		}
		record.Genes = append(record.Genes, rec)
	}
	return record, nil
}

func geneRecord(g gene.Gene) (model.GeneRecord, error) {
	rec := model.GeneRecord{Type: g.Type().String()}
	switch v := g.(type) {
	case *gene.Input:
	case *gene.Conv1D:
		rec.Kernel = []int{v.Kernel}
		rec.Stride = []int{v.Stride}
		rec.Kernels = v.Kernels
		rec.Activation = string(v.Activation)
	case *gene.Conv2D:
		rec.Kernel = []int{v.Kernel[0], v.Kernel[1]}
		rec.Stride = []int{v.Stride[0], v.Stride[1]}
		rec.Kernels = v.Kernels
		rec.Activation = string(v.Activation)
	case *gene.Pool1D:
		rec.Kernel = []int{v.Size}
		rec.Stride = []int{v.Stride}
	case *gene.Pool2D:
		rec.Kernel = []int{v.Size[0], v.Size[1]}
		rec.Stride = []int{v.Stride[0], v.Stride[1]}
		rec.Pool2DRule = string(v.Rule)
	case *gene.FullyConnected:
		rec.Units = v.Units
		rec.Activation = string(v.Activation)
	default:
		return model.GeneRecord{}, fmt.Errorf("unsupported gene %T", g)
	}
	return rec, nil
}

// FromRecord rebuilds a genotype, recomputes every dimension and validates
// the chain.
func FromRecord(record model.GenotypeRecord) (Genotype, error) {
	dim, err := gene.DimensionFromShape(record.InputShape)
	if err != nil {
		return Genotype{}, fmt.Errorf("genotype %s: %w", record.ID, err)
	}
	if len(record.Genes) == 0 || record.Genes[0].Type != gene.TypeInput.String() {
		return Genotype{}, fmt.Errorf("genotype %s: %w: first gene must be input", record.ID, gene.ErrConstructionPrecondition)
	}
	out, err := New(dim)
	if err != nil {
		return Genotype{}, err
	}
	out.ID = record.ID
	out.ParentID = record.ParentID
	out.Operation = record.Operation
	for i, rec := range record.Genes[1:] {
		g, err := geneFromRecord(rec)
		if err != nil {
			return Genotype{}, fmt.Errorf("genotype %s gene %d: %w", record.ID, i+1, err)
		}
		if err := out.Append(g); err != nil {
			return Genotype{}, fmt.Errorf("genotype %s: %w", record.ID, err)
		}
	}
	if err := out.Validate(); err != nil {
		return Genotype{}, fmt.Errorf("genotype %s: %w", record.ID, err)
	}
	return out, nil
}

func geneFromRecord(rec model.GeneRecord) (gene.Gene, error) {
	typ, err := gene.ParseType(rec.Type)
	if err != nil {
		return nil, err
	}
	activation, err := gene.ParseActivation(rec.Activation)
	if err != nil {
		return nil, err
	}
	switch typ {
	case gene.TypeConv1D:
		if len(rec.Kernel) != 1 || len(rec.Stride) != 1 {
			return nil, fmt.Errorf("%w: conv1d needs 1d kernel and stride", gene.ErrShape)
		}
		return gene.NewConv1D(rec.Kernel[0], rec.Stride[0], rec.Kernels, activation)
	case gene.TypeConv2D:
		if len(rec.Kernel) != 2 || len(rec.Stride) != 2 {
			return nil, fmt.Errorf("%w: conv2d needs 2d kernel and stride", gene.ErrShape)
		}
		return gene.NewConv2D([2]int{rec.Kernel[0], rec.Kernel[1]}, [2]int{rec.Stride[0], rec.Stride[1]}, rec.Kernels, activation)
	case gene.TypePool1D:
		if len(rec.Kernel) != 1 || len(rec.Stride) != 1 {
			return nil, fmt.Errorf("%w: pool1d needs 1d size and stride", gene.ErrShape)
		}
		return gene.NewPool1D(rec.Kernel[0], rec.Stride[0])
	case gene.TypePool2D:
		if len(rec.Kernel) != 2 || len(rec.Stride) != 2 {
			return nil, fmt.Errorf("%w: pool2d needs 2d size and stride", gene.ErrShape)
		}
		return gene.NewPool2D([2]int{rec.Kernel[0], rec.Kernel[1]}, [2]int{rec.Stride[0], rec.Stride[1]}, gene.Pool2DRule(rec.Pool2DRule))
	case gene.TypeFullyConnected:
		return gene.NewFullyConnected(rec.Units, activation)
	default:
		return nil, fmt.Errorf("%w: %s may only appear first", gene.ErrConstructionPrecondition, typ)
	}
}
