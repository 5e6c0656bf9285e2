package gene

import (
	"fmt"
	"strings"
)

// Activation is a framework-neutral activation tag.
type Activation string

const (
	ActivationNone    Activation = "none"
	ActivationReLU    Activation = "relu"
	ActivationSigmoid Activation = "sigmoid"
	ActivationTanh    Activation = "tanh"
	ActivationSoftmax Activation = "softmax"
	ActivationLinear  Activation = "linear"
)

func ParseActivation(name string) (Activation, error) {
	switch a := Activation(strings.ToLower(strings.TrimSpace(name))); a {
	case "":
		return ActivationNone, nil
	case ActivationNone, ActivationReLU, ActivationSigmoid, ActivationTanh, ActivationSoftmax, ActivationLinear:
		return a, nil
	default:
		return "", fmt.Errorf("unknown activation: %q", name)
	}
}

// LayerKind names the layer an external builder should create.
type LayerKind string

const (
	LayerInput     LayerKind = "Input"
	LayerConv1D    LayerKind = "Conv1D"
	LayerConv2D    LayerKind = "Conv2D"
	LayerMaxPool1D LayerKind = "MaxPool1D"
	LayerMaxPool2D LayerKind = "MaxPool2D"
	LayerDense     LayerKind = "Dense"
)

// LayerSpec is pure configuration for one layer; nothing here executes.
type LayerSpec struct {
	Kind       LayerKind      `json:"kind"`
	Name       string         `json:"name"`
	Activation Activation     `json:"activation"`
	Parameters map[string]any `json:"parameters"`

	InputShape     []int `json:"input_shape,omitempty"`
	OutputShape    []int `json:"output_shape,omitempty"`
	ParameterCount int64 `json:"parameter_count"`
	// Flatten is set on a dense layer fed by a spatial tensor.
	Flatten bool `json:"flatten,omitempty"`
}

// ModelSpec is an ordered set of layer specs for one genotype.
type ModelSpec struct {
	InputShape      []int       `json:"input_shape"`
	OutputShape     []int       `json:"output_shape"`
	Layers          []LayerSpec `json:"layers"`
	TotalParameters int64       `json:"total_parameters"`
}

func layerName(prefix, suffix string) string {
	if suffix == "" {
		return prefix
	}
	return prefix + "_" + suffix
}
