package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"cnnevo/internal/gene"
	"cnnevo/pkg/cnnevo"
)

// loadGenerateRequestFromConfig reads a JSON or YAML generate config. The
// format follows the file extension.
func loadGenerateRequestFromConfig(path string) (cnnevo.GenerateRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cnnevo.GenerateRequest{}, err
	}
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return cnnevo.GenerateRequest{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	var req cnnevo.GenerateRequest
	if v, ok := asString(raw["population_id"]); ok {
		req.PopulationID = v
	}
	if v, ok := asIntSlice(raw["input_shape"]); ok {
		req.InputShape = v
	} else if v, ok := asString(raw["input_shape"]); ok {
		shape, err := parseShape(v)
		if err != nil {
			return cnnevo.GenerateRequest{}, err
		}
		req.InputShape = shape
	}
	if v, ok := asInt(raw["count"]); ok {
		req.Count = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt(raw["max_attempts"]); ok {
		req.MaxAttempts = v
	}
	if v, ok := asFloat64(raw["conv_prob"]); ok {
		req.ConvProb = v
	}
	if v, ok := asFloat64(raw["pool_prob"]); ok {
		req.PoolProb = v
	}
	if v, ok := asFloat64(raw["fc_prob"]); ok {
		req.FullyConnectProb = v
	}
	if v, ok := asInt(raw["output_size"]); ok {
		req.OutputSize = v
	}
	if v, ok := asInt(raw["max_depth"]); ok {
		req.MaxDepth = v
	}
	if v, ok := asBool(raw["unique"]); ok {
		req.Unique = v
	}
	if rawBounds, ok := raw["bounds"].(map[string]any); ok {
		bounds, err := boundsFromConfig(rawBounds)
		if err != nil {
			return cnnevo.GenerateRequest{}, err
		}
		req.Bounds = &bounds
	}
	return req, nil
}

func boundsFromConfig(raw map[string]any) (gene.Bounds, error) {
	bounds := gene.DefaultBounds()
	ranges := map[string]*gene.Range{
		"kernel_width":    &bounds.KernelWidth,
		"kernels":         &bounds.Kernels,
		"stride":          &bounds.Stride,
		"pool_size":       &bounds.PoolSize,
		"pool_stride":     &bounds.PoolStride,
		"fully_connected": &bounds.FullyConnected,
	}
	for key, dst := range ranges {
		v, present := raw[key]
		if !present {
			continue
		}
		r, ok := asRange(v)
		if !ok {
			return gene.Bounds{}, fmt.Errorf("bounds.%s must be [min, max] or {min, max}", key)
		}
		*dst = r
	}
	if v, ok := asString(raw["pool2d_rule"]); ok {
		rule, err := gene.ParsePool2DRule(v)
		if err != nil {
			return gene.Bounds{}, err
		}
		bounds.Pool2DRule = rule
	}
	if v, ok := asString(raw["conv_activation"]); ok {
		a, err := gene.ParseActivation(v)
		if err != nil {
			return gene.Bounds{}, err
		}
		bounds.ConvActivation = a
	}
	if v, ok := asString(raw["dense_activation"]); ok {
		a, err := gene.ParseActivation(v)
		if err != nil {
			return gene.Bounds{}, err
		}
		bounds.DenseActivation = a
	}
	if v, ok := asInt(raw["mutation_attempts"]); ok {
		bounds.MutationAttempts = v
	}
	return bounds, nil
}

// overrideFromFlags applies only the flags the user set explicitly, so config
// values survive flag defaults.
func overrideFromFlags(req *cnnevo.GenerateRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "pop-id":
			req.PopulationID = v.(string)
		case "input":
			shape, err := parseShape(v.(string))
			if err != nil {
				return err
			}
			req.InputShape = shape
		case "count":
			req.Count = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		case "attempts":
			req.MaxAttempts = v.(int)
		case "conv-prob":
			req.ConvProb = v.(float64)
		case "pool-prob":
			req.PoolProb = v.(float64)
		case "fc-prob":
			req.FullyConnectProb = v.(float64)
		case "output-size":
			req.OutputSize = v.(int)
		case "max-depth":
			req.MaxDepth = v.(int)
		case "unique":
			req.Unique = v.(bool)
		case "pool2d-rule":
			rule, err := gene.ParsePool2DRule(v.(string))
			if err != nil {
				return err
			}
			if req.Bounds == nil {
				b := gene.DefaultBounds()
				req.Bounds = &b
			}
			req.Bounds.Pool2DRule = rule
		}
	}
	return nil
}

// parseShape reads "32x32x3" or "32,32,3".
func parseShape(s string) ([]int, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == 'x' || r == 'X' || r == ','
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty input shape")
	}
	shape := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid input shape %q: %w", s, err)
		}
		shape = append(shape, n)
	}
	return shape, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asIntSlice(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := asInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func asRange(v any) (gene.Range, bool) {
	if pair, ok := asIntSlice(v); ok && len(pair) == 2 {
		return gene.Range{Min: pair[0], Max: pair[1]}, true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return gene.Range{}, false
	}
	lo, okLo := asInt(m["min"])
	hi, okHi := asInt(m["max"])
	if !okLo || !okHi {
		return gene.Range{}, false
	}
	return gene.Range{Min: lo, Max: hi}, true
}
