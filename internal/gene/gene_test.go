package gene

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func mustInput(t *testing.T, dim Dimension) *Input {
	t.Helper()
	in, err := NewInput(dim)
	if err != nil {
		t.Fatalf("new input: %v", err)
	}
	return in
}

func TestConv1DPropagatesFloorDivision(t *testing.T) {
	in := mustInput(t, Dim1D(100, 1))
	conv, err := NewConv1D(20, 2, 8, ActivationReLU)
	if err != nil {
		t.Fatalf("new conv1d: %v", err)
	}
	if !conv.CompatibleWith(in) {
		t.Fatal("expected conv1d to follow input")
	}
	got, err := conv.PropagateDimension(Dim1D(100, 1))
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}
	if want := Dim1D(41, 8); got != want {
		t.Fatalf("unexpected output dimension: got=%v want=%v", got, want)
	}
}

func TestConv2DPropagatesPerAxis(t *testing.T) {
	in := mustInput(t, Dim2D(32, 32, 3))
	conv, err := NewConv2D([2]int{5, 5}, [2]int{1, 1}, 16, ActivationReLU)
	if err != nil {
		t.Fatalf("new conv2d: %v", err)
	}
	if err := Bind(conv, in); err != nil {
		t.Fatalf("bind: %v", err)
	}
	got, ok := conv.Dimension()
	if !ok {
		t.Fatal("expected bound dimension")
	}
	if want := Dim2D(28, 28, 16); got != want {
		t.Fatalf("unexpected output dimension: got=%v want=%v", got, want)
	}
}

func TestConv1DKernelBoundaryIsInclusive(t *testing.T) {
	in := mustInput(t, Dim1D(12, 2))

	exact, _ := NewConv1D(12, 1, 4, ActivationReLU)
	if !exact.CompatibleWith(in) {
		t.Fatal("expected kernel equal to length to be legal")
	}
	if err := Bind(exact, in); err != nil {
		t.Fatalf("bind exact kernel: %v", err)
	}
	if dim, _ := exact.Dimension(); dim != Dim1D(1, 4) {
		t.Fatalf("unexpected dimension for exact kernel: %v", dim)
	}

	oversized, _ := NewConv1D(13, 1, 4, ActivationReLU)
	if oversized.CompatibleWith(in) {
		t.Fatal("expected kernel longer than input to be rejected")
	}
	if err := Bind(oversized, in); !errors.Is(err, ErrIncompatibleAdjacency) {
		t.Fatalf("expected incompatible adjacency, got %v", err)
	}
	if _, ok := oversized.Dimension(); ok {
		t.Fatal("rejected gene must not hold a dimension")
	}
}

func TestAdjacencyRules(t *testing.T) {
	in1 := mustInput(t, Dim1D(64, 1))
	in2 := mustInput(t, Dim2D(32, 32, 3))

	conv1, _ := NewConv1D(3, 1, 4, ActivationReLU)
	pool1, _ := NewPool1D(2, 2)
	conv2, _ := NewConv2D([2]int{3, 3}, [2]int{1, 1}, 4, ActivationReLU)
	pool2, _ := NewPool2D([2]int{2, 2}, [2]int{2, 2}, Pool2DAll)
	dense, _ := NewFullyConnected(10, ActivationReLU)

	mustBind := func(g, prev Gene) {
		t.Helper()
		if err := Bind(g, prev); err != nil {
			t.Fatalf("bind %s after %s: %v", g.Type(), prev.Type(), err)
		}
	}
	mustBind(conv1, in1)
	mustBind(pool1, conv1)
	mustBind(conv2, in2)
	mustBind(pool2, conv2)
	mustBind(dense, pool2)

	cases := []struct {
		name string
		gene Gene
		prev Gene
		want bool
	}{
		{"conv1d after input", mustFresh(conv1), in1, true},
		{"conv1d after pool1d", mustFresh(conv1), pool1, true},
		{"conv1d after conv1d", mustFresh(conv1), conv1, false},
		{"conv1d after 2d input", mustFresh(conv1), in2, false},
		{"conv2d after input", mustFresh(conv2), in2, true},
		{"conv2d after conv2d", mustFresh(conv2), conv2, true},
		{"conv2d after pool2d", mustFresh(conv2), pool2, true},
		{"conv2d after dense", mustFresh(conv2), dense, false},
		{"pool1d after input", mustFresh(pool1), in1, true},
		{"pool1d after conv1d", mustFresh(pool1), conv1, true},
		{"pool1d after pool1d", mustFresh(pool1), pool1, false},
		{"pool2d after input", mustFresh(pool2), in2, true},
		{"pool2d after conv2d", mustFresh(pool2), conv2, true},
		{"pool2d after pool2d", mustFresh(pool2), pool2, false},
		{"dense after input", mustFresh(dense), in1, true},
		{"dense after pool2d", mustFresh(dense), pool2, true},
		{"dense after dense", mustFresh(dense), dense, true},
		{"input after anything", in1, dense, false},
	}
	for _, tc := range cases {
		if got := tc.gene.CompatibleWith(tc.prev); got != tc.want {
			t.Fatalf("%s: got=%v want=%v", tc.name, got, tc.want)
		}
	}
}

func mustFresh(g Gene) Gene {
	switch v := g.(type) {
	case *Conv1D:
		return &Conv1D{Kernel: v.Kernel, Stride: v.Stride, Kernels: v.Kernels, Activation: v.Activation}
	case *Conv2D:
		return &Conv2D{Kernel: v.Kernel, Stride: v.Stride, Kernels: v.Kernels, Activation: v.Activation}
	case *Pool1D:
		return &Pool1D{Size: v.Size, Stride: v.Stride}
	case *Pool2D:
		return &Pool2D{Size: v.Size, Stride: v.Stride, Rule: v.Rule}
	case *FullyConnected:
		return &FullyConnected{Units: v.Units, Activation: v.Activation}
	default:
		return g
	}
}

func TestPropagateDimensionRejectsWrongArity(t *testing.T) {
	conv2, _ := NewConv2D([2]int{3, 3}, [2]int{1, 1}, 4, ActivationReLU)
	if _, err := conv2.PropagateDimension(Dim1D(32, 1)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected shape error, got %v", err)
	}
	pool1, _ := NewPool1D(2, 2)
	if _, err := pool1.PropagateDimension(Dim2D(8, 8, 1)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestPropagateDimensionIsPure(t *testing.T) {
	conv, _ := NewConv1D(7, 3, 6, ActivationReLU)
	prev := Dim1D(50, 2)
	first, err := conv.PropagateDimension(prev)
	if err != nil {
		t.Fatalf("first propagate: %v", err)
	}
	second, err := conv.PropagateDimension(prev)
	if err != nil {
		t.Fatalf("second propagate: %v", err)
	}
	if first != second {
		t.Fatalf("propagation is not pure: %v vs %v", first, second)
	}
	if _, ok := conv.Dimension(); ok {
		t.Fatal("propagation must not bind the gene")
	}
}

func TestPool1DPassesChannelsThrough(t *testing.T) {
	pool, _ := NewPool1D(3, 2)
	got, err := pool.PropagateDimension(Dim1D(41, 8))
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}
	if want := Dim1D(20, 8); got != want {
		t.Fatalf("unexpected pool output: got=%v want=%v", got, want)
	}
}

func TestPool2DRuleAllRequiresBothAxes(t *testing.T) {
	in := mustInput(t, Dim2D(10, 3, 1))
	pool, _ := NewPool2D([2]int{4, 4}, [2]int{1, 1}, Pool2DAll)
	if pool.CompatibleWith(in) {
		t.Fatal("expected strict rule to reject a window wider than the input")
	}
}

func TestPool2DRuleAnyAcceptsSingleAxisButPropagationFails(t *testing.T) {
	in := mustInput(t, Dim2D(10, 3, 1))
	pool, _ := NewPool2D([2]int{4, 4}, [2]int{1, 1}, Pool2DAny)
	if !pool.CompatibleWith(in) {
		t.Fatal("expected permissive rule to accept a window fitting the height")
	}
	err := Bind(pool, in)
	if !errors.Is(err, ErrExhaustedExtent) {
		t.Fatalf("expected exhausted extent on the width axis, got %v", err)
	}
	if _, ok := pool.Dimension(); ok {
		t.Fatal("failed bind must not leave a dimension behind")
	}

	both, _ := NewPool2D([2]int{11, 4}, [2]int{1, 1}, Pool2DAny)
	if both.CompatibleWith(in) {
		t.Fatal("expected permissive rule to reject a window fitting neither axis")
	}
}

func TestFullyConnectedIgnoresPredecessor(t *testing.T) {
	dense, _ := NewFullyConnected(64, ActivationReLU)
	for _, prev := range []Dimension{Dim1D(4, 2), Dim2D(3, 3, 3), Flat(9), {}} {
		got, err := dense.PropagateDimension(prev)
		if err != nil {
			t.Fatalf("propagate from %v: %v", prev, err)
		}
		if got != Flat(64) {
			t.Fatalf("unexpected dense output from %v: %v", prev, got)
		}
	}
}

func TestInputIsImmutableRoot(t *testing.T) {
	in := mustInput(t, Dim1D(10, 1))
	if err := in.Mutate(rand.New(rand.NewSource(1)), DefaultBounds(), nil, nil); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("expected construction precondition, got %v", err)
	}
	if _, err := in.PropagateDimension(Dim1D(10, 1)); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("expected construction precondition, got %v", err)
	}
	other := mustInput(t, Dim1D(10, 1))
	if err := Bind(other, in); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("expected construction precondition binding an input, got %v", err)
	}
	if _, err := NewInput(Flat(3)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected shape error for flat input, got %v", err)
	}
}

func TestConstructorsRejectNonPositiveParameters(t *testing.T) {
	if _, err := NewConv1D(0, 1, 1, ActivationReLU); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("conv1d: %v", err)
	}
	if _, err := NewConv2D([2]int{3, 3}, [2]int{0, 1}, 1, ActivationReLU); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("conv2d: %v", err)
	}
	if _, err := NewPool1D(2, -1); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("pool1d: %v", err)
	}
	if _, err := NewPool2D([2]int{2, 2}, [2]int{1, 1}, "diagonal"); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("pool2d: %v", err)
	}
	if _, err := NewFullyConnected(0, ActivationReLU); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("dense: %v", err)
	}
}

func TestMutateKeepsBothNeighboursCompatible(t *testing.T) {
	bounds := DefaultBounds()
	for seed := int64(1); seed <= 50; seed++ {
		in := mustInput(t, Dim1D(30, 1))
		conv, _ := NewConv1D(5, 1, 8, ActivationReLU)
		pool, _ := NewPool1D(3, 1)
		if err := Bind(conv, in); err != nil {
			t.Fatalf("bind conv: %v", err)
		}
		if err := Bind(pool, conv); err != nil {
			t.Fatalf("bind pool: %v", err)
		}
		before := *conv

		err := conv.Mutate(rand.New(rand.NewSource(seed)), bounds, in, pool)
		if err != nil {
			if !errors.Is(err, ErrNoMutationChoice) {
				t.Fatalf("seed %d: unexpected mutate error: %v", seed, err)
			}
			if !reflect.DeepEqual(*conv, before) {
				t.Fatalf("seed %d: failed mutation changed the gene", seed)
			}
			continue
		}
		if conv.Kernel == before.Kernel && conv.Stride == before.Stride && conv.Kernels == before.Kernels {
			t.Fatalf("seed %d: mutation left parameters unchanged", seed)
		}
		if !conv.CompatibleWith(in) {
			t.Fatalf("seed %d: mutated conv no longer follows input: %+v", seed, conv)
		}
		if !pool.CompatibleWith(conv) {
			t.Fatalf("seed %d: pool no longer follows mutated conv: %+v", seed, conv)
		}
		dim, ok := conv.Dimension()
		if !ok || !dim.Valid() {
			t.Fatalf("seed %d: mutated conv has invalid dimension %v", seed, dim)
		}
	}
}

func TestMutateWithoutAlternativesReportsNoChoice(t *testing.T) {
	bounds := DefaultBounds()
	bounds.FullyConnected = Range{Min: 10, Max: 10}
	in := mustInput(t, Dim1D(8, 1))
	dense, _ := NewFullyConnected(10, ActivationReLU)
	if err := Bind(dense, in); err != nil {
		t.Fatalf("bind: %v", err)
	}
	err := dense.Mutate(rand.New(rand.NewSource(3)), bounds, in, nil)
	if !errors.Is(err, ErrNoMutationChoice) {
		t.Fatalf("expected no mutation choice, got %v", err)
	}
	if dense.Units != 10 {
		t.Fatalf("unexpected units after failed mutation: %d", dense.Units)
	}
}

func TestMutateRequiresPredecessorAndRandomSource(t *testing.T) {
	dense, _ := NewFullyConnected(10, ActivationReLU)
	if err := dense.Mutate(rand.New(rand.NewSource(1)), DefaultBounds(), nil, nil); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("expected precondition without predecessor, got %v", err)
	}
	in := mustInput(t, Dim1D(8, 1))
	if err := dense.Mutate(nil, DefaultBounds(), in, nil); !errors.Is(err, ErrConstructionPrecondition) {
		t.Fatalf("expected precondition without rng, got %v", err)
	}
}

func TestMaterializeReportsShapesAndParameters(t *testing.T) {
	in := mustInput(t, Dim2D(32, 32, 3))
	conv, _ := NewConv2D([2]int{5, 5}, [2]int{1, 1}, 16, ActivationReLU)
	dense, _ := NewFullyConnected(10, ActivationSoftmax)
	if err := Bind(conv, in); err != nil {
		t.Fatalf("bind conv: %v", err)
	}
	if err := Bind(dense, conv); err != nil {
		t.Fatalf("bind dense: %v", err)
	}

	spec := conv.Materialize("1")
	if spec.Kind != LayerConv2D || spec.Name != "conv2d_1" {
		t.Fatalf("unexpected conv spec identity: %+v", spec)
	}
	if spec.ParameterCount != 5*5*3*16+16 {
		t.Fatalf("unexpected conv parameter count: %d", spec.ParameterCount)
	}
	if !reflect.DeepEqual(spec.OutputShape, []int{28, 28, 16}) {
		t.Fatalf("unexpected conv output shape: %v", spec.OutputShape)
	}

	denseSpec := dense.Materialize("2")
	if !denseSpec.Flatten {
		t.Fatal("expected dense after conv to flatten")
	}
	if denseSpec.Activation != ActivationSoftmax {
		t.Fatalf("unexpected dense activation: %s", denseSpec.Activation)
	}
	if want := int64(28*28*16*10 + 10); denseSpec.ParameterCount != want {
		t.Fatalf("unexpected dense parameter count: got=%d want=%d", denseSpec.ParameterCount, want)
	}
}
