package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// GenotypeRecord is the persisted form of one genotype. Dimensions are not
// stored; they are recomputed from InputShape when the record is loaded.
type GenotypeRecord struct {
	VersionedRecord
	ID           string       `json:"id"`
	ParentID     string       `json:"parent_id,omitempty"`
	Operation    string       `json:"operation,omitempty"`
	CreatedAtUTC string       `json:"created_at_utc,omitempty"`
	Fingerprint  string       `json:"fingerprint,omitempty"`
	InputShape   []int        `json:"input_shape"`
	Genes        []GeneRecord `json:"genes"`
}

type GeneRecord struct {
	Type       string `json:"type"`
	Kernel     []int  `json:"kernel,omitempty"`
	Stride     []int  `json:"stride,omitempty"`
	Kernels    int    `json:"kernels,omitempty"`
	Units      int    `json:"units,omitempty"`
	Activation string `json:"activation,omitempty"`
	Pool2DRule string `json:"pool2d_rule,omitempty"`
}

type Population struct {
	VersionedRecord
	ID          string   `json:"id"`
	GenotypeIDs []string `json:"genotype_ids"`
	Generation  int      `json:"generation"`
}
