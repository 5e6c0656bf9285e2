package gene

import (
	"fmt"
	"strconv"
	"strings"
)

// DimensionKind tells which tensor layout a Dimension describes.
type DimensionKind uint8

const (
	KindNone DimensionKind = iota
	Kind1D
	Kind2D
	KindFlat
)

func (k DimensionKind) String() string {
	switch k {
	case Kind1D:
		return "1d"
	case Kind2D:
		return "2d"
	case KindFlat:
		return "flat"
	default:
		return "none"
	}
}

// Dimension is a gene output shape. 1D shapes use Height as the sequence
// length and leave Width zero; flat shapes only carry Units.
type Dimension struct {
	Kind     DimensionKind
	Height   int
	Width    int
	Channels int
	Units    int
}

func Dim1D(length, channels int) Dimension {
	return Dimension{Kind: Kind1D, Height: length, Channels: channels}
}

func Dim2D(height, width, channels int) Dimension {
	return Dimension{Kind: Kind2D, Height: height, Width: width, Channels: channels}
}

func Flat(units int) Dimension {
	return Dimension{Kind: KindFlat, Units: units}
}

// DimensionFromShape maps (length, channels) or (height, width, channels) to
// a Dimension.
func DimensionFromShape(shape []int) (Dimension, error) {
	for _, v := range shape {
		if v <= 0 {
			return Dimension{}, fmt.Errorf("%w: shape %v has non-positive entry", ErrShape, shape)
		}
	}
	switch len(shape) {
	case 2:
		return Dim1D(shape[0], shape[1]), nil
	case 3:
		return Dim2D(shape[0], shape[1], shape[2]), nil
	default:
		return Dimension{}, fmt.Errorf("%w: input shape must have 2 or 3 entries, got %d", ErrShape, len(shape))
	}
}

// Length is the 1D alias for Height.
func (d Dimension) Length() int {
	return d.Height
}

// LeadingExtent is the first spatial axis, or the unit count for flat shapes.
func (d Dimension) LeadingExtent() int {
	switch d.Kind {
	case Kind1D, Kind2D:
		return d.Height
	case KindFlat:
		return d.Units
	default:
		return 0
	}
}

func (d Dimension) Spatial() bool {
	return d.Kind == Kind1D || d.Kind == Kind2D
}

func (d Dimension) Valid() bool {
	switch d.Kind {
	case Kind1D:
		return d.Height > 0 && d.Channels > 0
	case Kind2D:
		return d.Height > 0 && d.Width > 0 && d.Channels > 0
	case KindFlat:
		return d.Units > 0
	default:
		return false
	}
}

func (d Dimension) Shape() []int {
	switch d.Kind {
	case Kind1D:
		return []int{d.Height, d.Channels}
	case Kind2D:
		return []int{d.Height, d.Width, d.Channels}
	case KindFlat:
		return []int{d.Units}
	default:
		return nil
	}
}

// Elements is the number of scalar activations the shape holds.
func (d Dimension) Elements() int {
	n := 0
	for i, v := range d.Shape() {
		if i == 0 {
			n = v
			continue
		}
		n *= v
	}
	return n
}

func (d Dimension) String() string {
	shape := d.Shape()
	if len(shape) == 0 {
		return "none"
	}
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "x")
}
