package gene

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidBounds = errors.New("invalid sampling bounds")

// Pool2DRule selects how a 2D pool window is checked against its predecessor.
type Pool2DRule string

const (
	// Pool2DAll requires the window to fit on both axes.
	Pool2DAll Pool2DRule = "all"
	// Pool2DAny accepts a window that fits on either axis. Propagation then
	// rejects the axis that does not fit.
	Pool2DAny Pool2DRule = "any"
)

func ParsePool2DRule(name string) (Pool2DRule, error) {
	switch Pool2DRule(strings.ToLower(strings.TrimSpace(name))) {
	case "", Pool2DAll:
		return Pool2DAll, nil
	case Pool2DAny:
		return Pool2DAny, nil
	default:
		return "", fmt.Errorf("unknown pool2d rule: %q", name)
	}
}

// Range is an inclusive integer sampling range.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r Range) validate(name string) error {
	if r.Min <= 0 || r.Max < r.Min {
		return fmt.Errorf("%w: %s range [%d, %d]", ErrInvalidBounds, name, r.Min, r.Max)
	}
	return nil
}

// Bounds clamps every sampling distribution used by generation and mutation.
type Bounds struct {
	KernelWidth      Range
	Kernels          Range
	Stride           Range
	PoolSize         Range
	PoolStride       Range
	FullyConnected   Range
	Pool2DRule       Pool2DRule
	ConvActivation   Activation
	DenseActivation  Activation
	MutationAttempts int
}

func DefaultBounds() Bounds {
	return Bounds{
		KernelWidth:      Range{Min: 2, Max: 75},
		Kernels:          Range{Min: 5, Max: 30},
		Stride:           Range{Min: 1, Max: 5},
		PoolSize:         Range{Min: 2, Max: 5},
		PoolStride:       Range{Min: 1, Max: 5},
		FullyConnected:   Range{Min: 5, Max: 200},
		Pool2DRule:       Pool2DAll,
		ConvActivation:   ActivationReLU,
		DenseActivation:  ActivationReLU,
		MutationAttempts: 8,
	}
}

func (b Bounds) Validate() error {
	checks := []struct {
		name string
		r    Range
	}{
		{"kernel width", b.KernelWidth},
		{"kernels", b.Kernels},
		{"stride", b.Stride},
		{"pool size", b.PoolSize},
		{"pool stride", b.PoolStride},
		{"fully connected", b.FullyConnected},
	}
	for _, c := range checks {
		if err := c.r.validate(c.name); err != nil {
			return err
		}
	}
	if _, err := ParsePool2DRule(string(b.Pool2DRule)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBounds, err)
	}
	if b.MutationAttempts < 0 {
		return fmt.Errorf("%w: mutation attempts %d", ErrInvalidBounds, b.MutationAttempts)
	}
	return nil
}

// Attempts is the number of resampling tries a mutation gets, at least one.
func (b Bounds) Attempts() int {
	if b.MutationAttempts <= 0 {
		return 1
	}
	return b.MutationAttempts
}
