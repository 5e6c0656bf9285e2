package storage

import (
	"errors"
	"testing"

	"cnnevo/internal/model"
)

func TestDecodeGenotypeRejectsVersionMismatch(t *testing.T) {
	data, err := EncodeGenotype(model.GenotypeRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: 99, CodecVersion: CurrentCodecVersion},
		ID:              "g1",
		InputShape:      []int{10, 1},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeGenotype(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodeGenotypeKeepsGenes(t *testing.T) {
	in := model.GenotypeRecord{
		VersionedRecord: CurrentVersion(),
		ID:              "g1",
		InputShape:      []int{32, 32, 3},
		Genes: []model.GeneRecord{
			{Type: "input"},
			{Type: "conv2d", Kernel: []int{5, 5}, Stride: []int{1, 1}, Kernels: 16, Activation: "relu"},
			{Type: "fully_connected", Units: 10, Activation: "softmax"},
		},
	}
	data, err := EncodeGenotype(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeGenotype(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Genes) != 3 || out.Genes[1].Kernels != 16 || out.Genes[2].Units != 10 {
		t.Fatalf("unexpected decoded genotype: %+v", out)
	}
}

func TestDecodePopulationRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodePopulation([]byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
}
