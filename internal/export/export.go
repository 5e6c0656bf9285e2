// Package export serializes materialized model specs for external builders.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"cnnevo/internal/gene"
)

// Format selects the serialization of a model spec.
type Format int

const (
	FormatJSON Format = iota
	FormatProto
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatProto:
		return "proto"
	default:
		return "unknown"
	}
}

func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "proto", "protobuf", "pb":
		return FormatProto, nil
	default:
		return 0, fmt.Errorf("unsupported export format: %q", name)
	}
}

// Encode writes spec in the given format.
func Encode(spec gene.ModelSpec, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return EncodeJSON(spec)
	case FormatProto:
		return EncodeProto(spec)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

func EncodeJSON(spec gene.ModelSpec) ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

func DecodeJSON(data []byte) (gene.ModelSpec, error) {
	var spec gene.ModelSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return gene.ModelSpec{}, err
	}
	return spec, nil
}

// ToStruct converts spec to a google.protobuf.Struct with the same field
// names as the JSON form.
func ToStruct(spec gene.ModelSpec) (*structpb.Struct, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

// EncodeProto writes spec as a binary google.protobuf.Struct. Map keys are
// ordered so the same spec always yields the same bytes.
func EncodeProto(spec gene.ModelSpec) ([]byte, error) {
	st, err := ToStruct(spec)
	if err != nil {
		return nil, fmt.Errorf("convert model spec: %w", err)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(st)
}

func DecodeProto(data []byte) (gene.ModelSpec, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return gene.ModelSpec{}, fmt.Errorf("decode model spec: %w", err)
	}
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return gene.ModelSpec{}, err
	}
	return DecodeJSON(raw)
}
