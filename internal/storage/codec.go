package storage

import (
	"encoding/json"
	"errors"

	"cnnevo/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the record header written by this build.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeGenotype(g model.GenotypeRecord) ([]byte, error) {
	return json.Marshal(g)
}

func DecodeGenotype(data []byte) (model.GenotypeRecord, error) {
	var genotype model.GenotypeRecord
	if err := json.Unmarshal(data, &genotype); err != nil {
		return model.GenotypeRecord{}, err
	}
	if err := checkVersion(genotype.VersionedRecord); err != nil {
		return model.GenotypeRecord{}, err
	}
	return genotype, nil
}

func EncodePopulation(p model.Population) ([]byte, error) {
	return json.Marshal(p)
}

func DecodePopulation(data []byte) (model.Population, error) {
	var population model.Population
	if err := json.Unmarshal(data, &population); err != nil {
		return model.Population{}, err
	}
	if err := checkVersion(population.VersionedRecord); err != nil {
		return model.Population{}, err
	}
	return population, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
